package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHref(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var href string
	r := gin.New()
	r.Use(BasePath("/rest/v1"))
	r.GET("/targets/:id", func(c *gin.Context) {
		href = Href(c, "targets", c.Param("id"), "actions", 3)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "http://localhost:8080/targets/device%201", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://localhost:8080/rest/v1/targets/device%201/actions/3", href)
}

func TestNewPagedList(t *testing.T) {
	list := NewPagedList[string](nil, 0)

	assert.NotNil(t, list.Content)
	assert.Equal(t, 0, list.Size)

	list = NewPagedList([]string{"a", "b"}, 10)
	assert.Equal(t, 2, list.Size)
	assert.Equal(t, int64(10), list.Total)
}
