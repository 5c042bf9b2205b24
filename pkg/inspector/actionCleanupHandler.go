package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
)

func NewActionCleanupHandler(logger *slog.Logger, tenantConfigService tenantConfigService, actionService actionService) actionCleanupHandler {
	return actionCleanupHandler{logger, tenantConfigService, actionService, time.Now}
}

type tenantConfigService interface {
	Tenants(ctx context.Context, key string, value any) ([]string, error)
	Long(ctx context.Context, key string) (int64, error)
	String(ctx context.Context, key string) (string, error)
}

type actionService interface {
	DeleteAll(ctx context.Context, filter string, ids []uint) (int64, error)
}

// actionCleanupHandler deletes the expired inactive actions of tenants which enabled the cleanup.
type actionCleanupHandler struct {
	logger              *slog.Logger
	tenantConfigService tenantConfigService
	actionService       actionService
	now                 func() time.Time
}

func (a actionCleanupHandler) Name() string {
	return "action-cleanup"
}

func (a actionCleanupHandler) Handle(ctx context.Context) error {
	tenants, err := a.tenantConfigService.Tenants(ctx, tenantconfig.ActionCleanupEnabled, true)
	if err != nil {
		return err
	}

	var errs []error
	for _, tenant := range tenants {
		tenantCtx := model.NewSystemContext(ctx, tenant)
		deleted, err := a.cleanup(tenantCtx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to clean up actions of tenant %q: %w", tenant, err))
			continue
		}
		if deleted > 0 {
			a.logger.InfoContext(tenantCtx, "Cleaned up actions", "tenant", tenant, "count", deleted)
		}
	}
	return errors.Join(errs...)
}

func (a actionCleanupHandler) cleanup(ctx context.Context) (int64, error) {
	expiry, err := a.tenantConfigService.Long(ctx, tenantconfig.ActionCleanupExpiry)
	if err != nil {
		return 0, err
	}
	statuses, err := a.tenantConfigService.String(ctx, tenantconfig.ActionCleanupStatus)
	if err != nil {
		return 0, err
	}

	filter, ok := cleanupFilter(statuses, a.expiredBefore(expiry))
	if !ok {
		return 0, nil
	}
	return a.actionService.DeleteAll(ctx, filter, nil)
}

// expiredBefore returns the time actions must have been modified before to be expired. expiry is
// given in milliseconds.
func (a actionCleanupHandler) expiredBefore(expiry int64) time.Time {
	return a.now().Add(-time.Duration(expiry) * time.Millisecond)
}

// cleanupFilter returns the filter of actions with any of the comma separated statuses last
// modified before. It returns false if no status is given.
func cleanupFilter(statuses string, before time.Time) (string, bool) {
	var list []string
	for _, status := range strings.Split(statuses, ",") {
		if status = strings.TrimSpace(status); status != "" {
			list = append(list, status)
		}
	}
	if len(list) == 0 {
		return "", false
	}
	return fmt.Sprintf("status=in=(%s);lastmodifiedat=lt=%d", strings.Join(list, ","), before.UnixMilli()), true
}
