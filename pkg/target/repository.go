package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/tag"
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

func (r repository) targets(ctx context.Context) *gorm.DB {
	return r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx))
}

func (r repository) find(ctx context.Context, controllerID string) (*model.Target, error) {
	var target *model.Target
	err := r.targets(ctx).
		Preload("TargetType").
		Where("controller_id = ?", controllerID).
		First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("target %q doesn't exist", controllerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find target %q: %v", controllerID, err)
	}

	return target, nil
}

// findByControllerIDs finds all targets with given controller ids. A missing target results in a
// not found error naming it.
func (r repository) findByControllerIDs(ctx context.Context, controllerIDs []string) ([]model.Target, error) {
	var targets []model.Target
	err := r.targets(ctx).
		Where("controller_id IN ?", controllerIDs).
		Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find targets: %v", err)
	}

	found := make(map[string]bool, len(targets))
	for _, target := range targets {
		found[target.ControllerID] = true
	}
	for _, controllerID := range controllerIDs {
		if !found[controllerID] {
			return nil, errdef.NewNotFound("target %q doesn't exist", controllerID)
		}
	}
	return targets, nil
}

func (r repository) page(db *gorm.DB, params query.Params) ([]model.Target, int64, error) {
	targets, total, err := query.Page[model.Target](db, params, query.TargetFields, "TargetType")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find targets: %v", err)
	}
	return targets, total, err
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.Target, int64, error) {
	return r.page(r.targets(ctx), params)
}

func (r repository) findAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.Target, int64, error) {
	condition, args := tag.MembersOf(model.TargetTagKind, tagID)
	return r.page(r.targets(ctx).Where(condition, args...), params)
}

// findAllByDistributionSet finds the targets having the distribution set assigned or installed.
func (r repository) findAllByDistributionSet(ctx context.Context, distributionSetID uint, installed bool, params query.Params) ([]model.Target, int64, error) {
	column := "assigned_distribution_set_id"
	if installed {
		column = "installed_distribution_set_id"
	}
	return r.page(r.targets(ctx).Where(column+" = ?", distributionSetID), params)
}

func (r repository) create(ctx context.Context, targets []model.Target) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&targets).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("target with given controller id already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create targets: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, target *model.Target) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(target).Error
	if err != nil {
		return fmt.Errorf("failed to update target %q: %v", target.ControllerID, err)
	}
	return nil
}

// delete deletes the target together with its actions, rollout memberships and metadata.
func (r repository) delete(ctx context.Context, target *model.Target) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec("DELETE FROM action_statuses WHERE action_id IN (SELECT id FROM actions WHERE target_id = ?)", target.ID).Error
		if err != nil {
			return fmt.Errorf("failed to delete action statuses of target %q: %v", target.ControllerID, err)
		}

		err = tx.Where("target_id = ?", target.ID).Delete(&model.Action{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete actions of target %q: %v", target.ControllerID, err)
		}

		err = tx.Where("target_id = ?", target.ID).Delete(&model.RolloutGroupTarget{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete rollout group memberships of target %q: %v", target.ControllerID, err)
		}

		err = metadata.DeleteAll(ctx, tx, model.TargetMetadata, target.ID)
		if err != nil {
			return err
		}

		err = tx.Select("Tags").Delete(target).Error
		if err != nil {
			return fmt.Errorf("failed to delete target %q: %v", target.ControllerID, err)
		}
		return nil
	})
}
