package inspector

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_ActionCleanupHandler_NoTenants(t *testing.T) {
	ctx := context.TODO()
	tenantConfigService := &mockTenantConfigService{}
	tenantConfigService.On("Tenants", ctx, tenantconfig.ActionCleanupEnabled, true).Return([]string{}, nil)
	actionService := &mockActionService{}

	handler := NewActionCleanupHandler(slog.Default(), tenantConfigService, actionService)

	err := handler.Handle(ctx)

	require.NoError(t, err)
	tenantConfigService.AssertExpectations(t)
	actionService.AssertExpectations(t)
}

func Test_ActionCleanupHandler_DeletesExpired(t *testing.T) {
	ctx := context.TODO()
	now := time.UnixMilli(1700000000000)
	tenantConfigService := &mockTenantConfigService{}
	tenantConfigService.On("Tenants", ctx, tenantconfig.ActionCleanupEnabled, true).Return([]string{"acme"}, nil)
	tenantConfigService.On("Long", mock.Anything, tenantconfig.ActionCleanupExpiry).Return(int64(1000), nil)
	tenantConfigService.On("String", mock.Anything, tenantconfig.ActionCleanupStatus).Return("canceled, error", nil)
	actionService := &mockActionService{}
	actionService.On("DeleteAll", mock.Anything, "status=in=(canceled,error);lastmodifiedat=lt=1699999999000", []uint(nil)).Return(int64(2), nil)

	handler := NewActionCleanupHandler(slog.Default(), tenantConfigService, actionService)
	handler.now = func() time.Time { return now }

	err := handler.Handle(ctx)

	require.NoError(t, err)
	tenantConfigService.AssertExpectations(t)
	actionService.AssertExpectations(t)
}

func TestCleanupFilter(t *testing.T) {
	_, ok := cleanupFilter(" , ", time.Now())

	assert.False(t, ok)
}

type mockTenantConfigService struct{ mock.Mock }

func (m *mockTenantConfigService) Tenants(ctx context.Context, key string, value any) ([]string, error) {
	called := m.Called(ctx, key, value)
	return called.Get(0).([]string), called.Error(1)
}

func (m *mockTenantConfigService) Long(ctx context.Context, key string) (int64, error) {
	called := m.Called(ctx, key)
	return called.Get(0).(int64), called.Error(1)
}

func (m *mockTenantConfigService) String(ctx context.Context, key string) (string, error) {
	called := m.Called(ctx, key)
	return called.String(0), called.Error(1)
}

type mockActionService struct{ mock.Mock }

func (m *mockActionService) DeleteAll(ctx context.Context, filter string, ids []uint) (int64, error) {
	called := m.Called(ctx, filter, ids)
	return called.Get(0).(int64), called.Error(1)
}
