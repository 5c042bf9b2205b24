package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPathParameter(t *testing.T) {
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.AddParam("id", "123")

	id, ok := GetPathParameter(ctx, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(123), id)
}

func TestGetPathParameter_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)

	id, ok := GetPathParameter(ctx, "id")
	assert.False(t, ok)
	assert.Equal(t, uint(0), id)
	assert.True(t, ctx.IsAborted())
	require.Len(t, ctx.Errors, 1)
	assert.True(t, errdef.IsBadRequest(ctx.Errors.Last()))
}
