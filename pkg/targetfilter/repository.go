package targetfilter

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const autoAssignDistributionSet = "AutoAssignDistributionSet"

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

func (r repository) filters(ctx context.Context) *gorm.DB {
	return r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx))
}

func (r repository) find(ctx context.Context, id uint) (*model.TargetFilterQuery, error) {
	var filter *model.TargetFilterQuery
	err := r.filters(ctx).
		Preload(autoAssignDistributionSet).
		First(&filter, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("target filter %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find target filter %d: %v", id, err)
	}
	return filter, nil
}

func (r repository) page(db *gorm.DB, params query.Params) ([]model.TargetFilterQuery, int64, error) {
	filters, total, err := query.Page[model.TargetFilterQuery](db, params, query.TargetFilterQueryFields, autoAssignDistributionSet)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find target filters: %v", err)
	}
	return filters, total, err
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.TargetFilterQuery, int64, error) {
	return r.page(r.filters(ctx), params)
}

func (r repository) findAllByDistributionSet(ctx context.Context, distributionSetID uint, params query.Params) ([]model.TargetFilterQuery, int64, error) {
	return r.page(r.filters(ctx).Where("auto_assign_distribution_set_id = ?", distributionSetID), params)
}

// findAutoAssigning finds the filters of the tenant in ctx which automatically assign a distribution set.
func (r repository) findAutoAssigning(ctx context.Context) ([]model.TargetFilterQuery, error) {
	var filters []model.TargetFilterQuery
	err := r.filters(ctx).
		Preload(autoAssignDistributionSet).
		Where("auto_assign_distribution_set_id IS NOT NULL").
		Order("id").
		Find(&filters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find auto assigning target filters: %v", err)
	}
	return filters, nil
}

// tenants returns the tenants having at least one auto assigning filter.
func (r repository) tenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.
		WithContext(ctx).
		Model(&model.TargetFilterQuery{}).
		Distinct("tenant").
		Where("auto_assign_distribution_set_id IS NOT NULL").
		Pluck("tenant", &tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tenants with auto assignments: %v", err)
	}
	return tenants, nil
}

// findUnassignedTargetIDs finds the targets matching the filter which are compatible with the
// distribution set and never had an action of it.
func (r repository) findUnassignedTargetIDs(ctx context.Context, filter string, ds *model.DistributionSet, limit int) ([]uint, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Model(&model.Target{}).
		Where("target_type_id IS NULL OR target_type_id IN (SELECT target_type_id FROM target_type_distribution_set_types WHERE distribution_set_type_id = ?)", ds.TypeID).
		Where("NOT EXISTS (SELECT 1 FROM actions WHERE actions.target_id = targets.id AND actions.distribution_set_id = ?)", ds.ID)

	db, err := query.Filter(db, filter, query.TargetFields)
	if err != nil {
		return nil, err
	}

	var ids []uint
	err = db.Order("id").Limit(limit).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find unassigned targets matching %q: %v", filter, err)
	}
	return ids, nil
}

func (r repository) create(ctx context.Context, filter *model.TargetFilterQuery) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(filter).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("target filter named %q already exists", filter.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create target filter: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, filter *model.TargetFilterQuery) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(filter).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("target filter named %q already exists", filter.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update target filter %d: %v", filter.ID, err)
	}
	return nil
}

func (r repository) delete(ctx context.Context, id uint) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Delete(&model.TargetFilterQuery{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete target filter %d: %v", id, err)
	}
	return nil
}
