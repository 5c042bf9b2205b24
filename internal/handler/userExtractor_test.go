package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserFromContext(t *testing.T) {
	user := &model.User{
		Username:    "admin",
		Tenant:      "DEFAULT",
		Permissions: []string{model.ReadTarget},
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	request, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	c.Request = request.WithContext(model.NewContextWithUser(request.Context(), user))

	u, err := GetUserFromContext(c)
	require.NoError(t, err)

	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, "DEFAULT", u.Tenant)
}

func TestGetUserFromContext_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	request, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	c.Request = request

	_, err = GetUserFromContext(c)
	assert.Error(t, err)
}
