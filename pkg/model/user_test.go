package model_test

import (
	"context"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	user := &model.User{
		Username:    "admin",
		Tenant:      "DEFAULT",
		Permissions: []string{model.ReadTarget, model.UpdateTarget},
	}

	ctx := context.Background()

	got, ok := model.GetUserFromContext(ctx)
	assert.Nil(t, got, "want nil when no user is in the context")
	assert.False(t, ok, "want an error when no user is in the context")

	ctx = model.NewContextWithUser(ctx, user)

	got, ok = model.GetUserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "DEFAULT", got.Tenant)
	assert.True(t, got.HasPermission(model.UpdateTarget))
	assert.False(t, got.HasPermission(model.DeleteTarget))
}

func TestSystemContext(t *testing.T) {
	ctx := model.NewSystemContext(context.Background(), "tenant-a")

	got, ok := model.GetUserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, model.SystemUsername, got.Username)
	assert.Equal(t, "tenant-a", got.Tenant)
	for _, permission := range model.AllPermissions {
		assert.True(t, got.HasPermission(permission), permission)
	}
}

func TestAllPermissions(t *testing.T) {
	assert.Contains(t, model.AllPermissions, model.TenantConfigurationPermission)
	assert.Equal(t, "TENANT_CONFIGURATION", model.TenantConfigurationPermission)
	assert.Len(t, model.AllPermissions, 15)
}
