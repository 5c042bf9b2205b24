package inttest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// SetupHTTPServer creates an HTTP server using the same Gin engine and middlewares as the service.
// Register the routes under test on the given router group. An HTTP client is returned to interact
// with the created server.
func SetupHTTPServer(t *testing.T, f func(router *gin.RouterGroup)) *HTTPClient {
	t.Helper()

	err := handler.RegisterValidation()
	require.NoError(t, err, "failed to register validation")
	gin.SetMode(gin.TestMode)

	engine := server.GetEngine(Logger(), "")
	f(server.Group(engine, ""))

	srv := httptest.NewServer(engine.Handler())
	client := srv.Client()
	t.Cleanup(func() {
		client.CloseIdleConnections()
		srv.Close()
	})

	return &HTTPClient{Client: client, ServerURL: srv.URL}
}

// HTTPClient sends requests the way the management API expects them and fails the test on
// unexpected responses. Use Client directly where these defaults don't fit.
type HTTPClient struct {
	Client    *http.Client
	ServerURL string
}

// WithHeader adds a header with the given key and value to HTTP request headers.
func WithHeader(key string, value string) func(http.Header) {
	return func(header http.Header) {
		header.Add(key, value)
	}
}

var withJSON = WithHeader("Content-Type", "application/json")

// Get sends a GET request and returns the response body. HTTP status other than 200 fails the
// test.
func (hc *HTTPClient) Get(t *testing.T, path string, headers ...func(http.Header)) []byte {
	t.Helper()
	return hc.Do(t, http.MethodGet, path, nil, http.StatusOK, headers...)
}

// Delete sends a DELETE request and returns the response body. HTTP status other than 200 fails
// the test.
func (hc *HTTPClient) Delete(t *testing.T, path string, headers ...func(http.Header)) []byte {
	t.Helper()
	return hc.Do(t, http.MethodDelete, path, nil, http.StatusOK, headers...)
}

// GetJSON unmarshals the body of a GET response into responseBody. HTTP status other than 200
// fails the test.
func (hc *HTTPClient) GetJSON(t *testing.T, path string, responseBody any, headers ...func(http.Header)) {
	t.Helper()
	hc.DoJSON(t, http.MethodGet, path, nil, http.StatusOK, responseBody, headers...)
}

// PostJSON posts the optional JSON requestBody and unmarshals the response into responseBody. HTTP
// status other than 201 fails the test.
func (hc *HTTPClient) PostJSON(t *testing.T, path string, requestBody io.Reader, responseBody any, headers ...func(http.Header)) {
	t.Helper()
	hc.DoJSON(t, http.MethodPost, path, requestBody, http.StatusCreated, responseBody, headers...)
}

// PutJSON puts the JSON requestBody and unmarshals the response into responseBody. HTTP status
// other than 200 fails the test.
func (hc *HTTPClient) PutJSON(t *testing.T, path string, requestBody io.Reader, responseBody any, headers ...func(http.Header)) {
	t.Helper()
	hc.DoJSON(t, http.MethodPut, path, requestBody, http.StatusOK, responseBody, headers...)
}

// PostForm posts the multipart form written by w. The response body is unmarshaled as JSON into
// responseBody. HTTP status other than 201 fails the test.
func (hc *HTTPClient) PostForm(t *testing.T, path string, w *multipart.Writer, requestBody io.Reader, responseBody any, headers ...func(http.Header)) {
	t.Helper()

	headers = append(headers, WithHeader("Content-Type", w.FormDataContentType()))
	body := hc.Do(t, http.MethodPost, path, requestBody, http.StatusCreated, headers...)
	unmarshal(t, http.MethodPost, path, body, responseBody)
}

// DoJSON sends a request with an optional JSON body. The response body is unmarshaled as JSON into
// responseBody unless it is nil. HTTP status other than expectedStatus fails the test.
func (hc *HTTPClient) DoJSON(t *testing.T, method, path string, requestBody io.Reader, expectedStatus int, responseBody any, headers ...func(http.Header)) {
	t.Helper()

	if requestBody != nil {
		headers = append(headers, withJSON)
	}
	body := hc.Do(t, method, path, requestBody, expectedStatus, headers...)
	if responseBody == nil {
		return
	}
	unmarshal(t, method, path, body, responseBody)
}

// Do sends a request of given method to path and returns the response body read in full. Failure
// to read or close the response body and HTTP status other than expectedStatus fail the test.
func (hc *HTTPClient) Do(t *testing.T, method, path string, requestBody io.Reader, expectedStatus int, headers ...func(http.Header)) []byte {
	t.Helper()

	errMsg := httpClientErrMessage(method, path)
	req, err := http.NewRequest(method, hc.ServerURL+path, requestBody)
	require.NoError(t, err, errMsg+": failed to create request")
	for _, f := range headers {
		f(req.Header)
	}

	res, err := hc.Client.Do(req)
	require.NoError(t, err, errMsg+": HTTP request failed")
	defer func() {
		require.NoError(t, res.Body.Close(), errMsg+": failed to close HTTP response body")
	}()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err, errMsg+": failed to read HTTP response body")
	require.Equal(t, expectedStatus, res.StatusCode, "%s: HTTP status mismatch, body: %s", errMsg, body)
	return body
}

func unmarshal(t *testing.T, method, path string, body []byte, responseBody any) {
	t.Helper()

	err := json.Unmarshal(body, responseBody)
	require.NoError(t, err, httpClientErrMessage(method, path)+": failed to unmarshal response body")
}

func httpClientErrMessage(method, path string) string {
	return fmt.Sprintf("failed %s %q", method, path)
}
