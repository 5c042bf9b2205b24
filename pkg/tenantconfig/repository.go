package tenantconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

func (r repository) find(ctx context.Context, key string) (*model.TenantConfiguration, error) {
	var configuration *model.TenantConfiguration
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("key = ?", key).
		First(&configuration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("tenant configuration %q doesn't exist", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant configuration %q: %v", key, err)
	}

	return configuration, nil
}

func (r repository) findAll(ctx context.Context) ([]model.TenantConfiguration, error) {
	var configurations []model.TenantConfiguration
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Order("key").
		Find(&configurations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tenant configurations: %v", err)
	}

	return configurations, nil
}

// findTenants returns the tenants which set key to value.
func (r repository) findTenants(ctx context.Context, key, value string) ([]string, error) {
	var tenants []string
	err := r.db.
		WithContext(ctx).
		Model(&model.TenantConfiguration{}).
		Where("key = ? AND value = ?", key, value).
		Order("tenant").
		Pluck("tenant", &tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tenants configuring %q: %v", key, err)
	}

	return tenants, nil
}

// upsert creates the configurations or updates the value of existing ones.
func (r repository) upsert(ctx context.Context, configurations []model.TenantConfiguration) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at", "last_modified_by"}),
		}).
		Create(&configurations).Error
	if err != nil {
		return fmt.Errorf("failed to save tenant configurations: %v", err)
	}

	return nil
}

func (r repository) delete(ctx context.Context, key string) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("key = ?", key).
		Delete(&model.TenantConfiguration{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete tenant configuration %q: %v", key, err)
	}

	return nil
}
