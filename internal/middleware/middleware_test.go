package middleware_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/middleware"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := map[string]struct {
		err      error
		wantCode int
		wantBody middleware.ErrorResponse
	}{
		"BadRequest": {
			err:      errdef.NewBadRequest("invalid %s", "input"),
			wantCode: http.StatusBadRequest,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeBadRequest, Message: "invalid input"},
		},
		"NotFound": {
			err:      errdef.NewNotFound("target %q doesn't exist", "device-1"),
			wantCode: http.StatusNotFound,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeNotFound, Message: `target "device-1" doesn't exist`},
		},
		"Duplicated": {
			err:      errdef.NewDuplicated("exists"),
			wantCode: http.StatusConflict,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeDuplicated, Message: "exists"},
		},
		"Conflict": {
			err:      errdef.NewConflict("in use"),
			wantCode: http.StatusConflict,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeConflict, Message: "in use"},
		},
		"Forbidden": {
			err:      errdef.NewForbidden("nope"),
			wantCode: http.StatusForbidden,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeForbidden, Message: "nope"},
		},
		"Unauthorized": {
			err:      errdef.NewUnauthorized("who are you"),
			wantCode: http.StatusUnauthorized,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeUnauthorized, Message: "who are you"},
		},
		"UnsupportedMediaType": {
			err:      errdef.NewUnsupportedMediaType("json only"),
			wantCode: http.StatusUnsupportedMediaType,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeUnsupportedMediaType, Message: "json only"},
		},
		"Locked": {
			err:      errdef.NewLocked("locked"),
			wantCode: http.StatusLocked,
			wantBody: middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeLocked, Message: "locked"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.ErrorHandler())
			r.GET("/", func(c *gin.Context) {
				_ = c.Error(test.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, test.wantCode, w.Code)
			var got middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, test.wantBody, got)
		})
	}

	t.Run("KeepsStatusSetBeforeTheError", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.ErrorHandler())
		r.GET("/", func(c *gin.Context) {
			c.Status(http.StatusNotFound)
			_ = c.Error(errors.New("no route"))
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		var got middleware.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, middleware.ErrorResponse{ErrorCode: middleware.ErrorCodeNotFound, Message: "no route"}, got)
	})

	t.Run("InternalErrorHidesDetails", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.CorrelationID(), middleware.ErrorHandler())
		r.GET("/", func(c *gin.Context) {
			_ = c.Error(errors.New("connection refused"))
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var got middleware.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, middleware.ErrorCodeInternal, got.ErrorCode)
		assert.NotContains(t, got.Message, "connection refused")
		assert.Contains(t, got.Message, w.Header().Get(middleware.CorrelationIDHeader))
	})
}

func TestCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got string
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.GET("/", func(c *gin.Context) {
		got, _ = middleware.GetCorrelationID(c.Request.Context())
	})

	t.Run("Generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NoError(t, uuid.Validate(got))
		assert.Equal(t, got, w.Header().Get(middleware.CorrelationIDHeader))
	})

	t.Run("ReusedFromHeader", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.CorrelationIDHeader, id)

		r.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, got)
	})

	t.Run("InvalidHeaderIsReplaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.CorrelationIDHeader, "not-a-uuid")

		r.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "not-a-uuid", got)
		assert.NoError(t, uuid.Validate(got))
	})
}

func TestAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authentication := middleware.NewAuthentication(logger, &privateKey.PublicKey, middleware.AdminCredentials{
		Username:     "admin",
		PasswordHash: string(hash),
		Tenant:       "default",
	})
	authorization := middleware.NewAuthorization(logger)

	var user *model.User
	r := gin.New()
	r.Use(middleware.ErrorHandler(), authentication.Authenticate)
	r.GET("/targets", authorization.RequirePermission(model.ReadTarget), func(c *gin.Context) {
		user, _ = model.GetUserFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	sign := func(t *testing.T, key *rsa.PrivateKey, token jwt.Token) string {
		signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
		require.NoError(t, err)
		return string(signed)
	}

	do := func(t *testing.T, authorize func(req *http.Request)) *httptest.ResponseRecorder {
		user = nil
		req := httptest.NewRequest(http.MethodGet, "/targets", nil)
		authorize(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("BasicAuthentication", func(t *testing.T) {
		w := do(t, func(req *http.Request) {
			req.SetBasicAuth("admin", "secret")
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "admin", user.Username)
		assert.Equal(t, "default", user.Tenant)
		assert.ElementsMatch(t, model.AllPermissions, user.Permissions)
	})

	t.Run("BasicAuthenticationWrongPassword", func(t *testing.T) {
		w := do(t, func(req *http.Request) {
			req.SetBasicAuth("admin", "wrong")
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, user)
	})

	t.Run("BasicAuthenticationUnknownUser", func(t *testing.T) {
		w := do(t, func(req *http.Request) {
			req.SetBasicAuth("someone", "secret")
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		w := do(t, func(req *http.Request) {})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("BearerToken", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Subject("alice").
			Claim("tenant", "Acme").
			Claim("permissions", []string{model.ReadTarget}).
			Build()
		require.NoError(t, err)

		w := do(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+sign(t, privateKey, token))
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, "acme", user.Tenant)
		assert.Equal(t, []string{model.ReadTarget}, user.Permissions)
	})

	t.Run("BearerTokenMissingPermission", func(t *testing.T) {
		token, err := jwt.NewBuilder().
			Subject("bob").
			Claim("tenant", "acme").
			Claim("permissions", []string{model.ReadRollout}).
			Build()
		require.NoError(t, err)

		w := do(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+sign(t, privateKey, token))
		})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("BearerTokenWithoutTenant", func(t *testing.T) {
		token, err := jwt.NewBuilder().Subject("alice").Build()
		require.NoError(t, err)

		w := do(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+sign(t, privateKey, token))
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("BearerTokenSignedByOtherKey", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		token, err := jwt.NewBuilder().Subject("alice").Claim("tenant", "acme").Build()
		require.NoError(t, err)

		w := do(t, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+sign(t, otherKey, token))
		})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
