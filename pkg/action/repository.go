package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"gorm.io/gorm"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

var preloads = []string{"Target", "DistributionSet", "Rollout"}

func (r repository) find(ctx context.Context, id uint) (*model.Action, error) {
	var action *model.Action
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx))
	for _, preload := range preloads {
		db = db.Preload(preload)
	}

	err := db.First(&action, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("action %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find action %d: %v", id, err)
	}
	return action, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.Action, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx))

	actions, total, err := query.Page[model.Action](db, params, query.ActionFields, preloads...)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find actions: %v", err)
	}
	return actions, total, err
}

func (r repository) findAllOfTarget(ctx context.Context, targetID uint, params query.Params) ([]model.Action, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("target_id = ?", targetID)

	actions, total, err := query.Page[model.Action](db, params, query.ActionFields, preloads...)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find actions of target %d: %v", targetID, err)
	}
	return actions, total, err
}

// findTargetID returns the id of the target with given controller id.
func (r repository) findTargetID(ctx context.Context, controllerID string) (uint, error) {
	var target model.Target
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Select("id").
		Where("controller_id = ?", controllerID).
		First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errdef.NewNotFound("target %q doesn't exist", controllerID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find target %q: %v", controllerID, err)
	}
	return target.ID, nil
}

func (r repository) findStatuses(ctx context.Context, actionID uint, params query.Params) ([]model.ActionStatus, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("action_id = ?", actionID)

	statuses, total, err := query.Page[model.ActionStatus](db, params, query.ActionStatusFields)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find status of action %d: %v", actionID, err)
	}
	return statuses, total, err
}

// deleteInactive deletes the inactive actions among ids together with their status history. The
// number of deleted actions is returned.
func (r repository) deleteInactive(ctx context.Context, ids []uint) (int64, error) {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inactive []uint
		err := tx.
			Model(&model.Action{}).
			Scopes(model.TenantScope(ctx)).
			Where("NOT active AND id IN ?", ids).
			Pluck("id", &inactive).Error
		if err != nil {
			return fmt.Errorf("failed to find inactive actions: %v", err)
		}
		if len(inactive) == 0 {
			return nil
		}

		err = tx.Where("action_id IN ?", inactive).Delete(&model.ActionStatus{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete status of actions: %v", err)
		}

		result := tx.Where("id IN ?", inactive).Delete(&model.Action{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete actions: %v", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// findInactiveIDs returns the ids of the inactive actions matching filter.
func (r repository) findInactiveIDs(ctx context.Context, filter string) ([]uint, error) {
	db, err := query.Filter(r.db.WithContext(ctx).Scopes(model.TenantScope(ctx)), filter, query.ActionFields)
	if err != nil {
		return nil, err
	}

	var ids []uint
	err = db.Model(&model.Action{}).Where("NOT active").Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find actions: %v", err)
	}
	return ids, nil
}
