package rollout

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

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

const groupTargetsTable = "rollout_group_targets"

func orderedGroups(db *gorm.DB) *gorm.DB {
	return db.Order("rollout_groups.id")
}

func (r repository) find(ctx context.Context, id uint) (*model.Rollout, error) {
	var rollout *model.Rollout
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("DistributionSet").
		Preload("Groups", orderedGroups).
		First(&rollout, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("rollout %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rollout %d: %v", id, err)
	}

	return rollout, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.Rollout, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("deleted = ?", false)

	rollouts, total, err := query.Page[model.Rollout](db, params, query.RolloutFields, "DistributionSet", "Groups")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find rollouts: %v", err)
	}
	return rollouts, total, err
}

// findByStatus finds the rollouts of the tenant in ctx with any of the given statuses.
func (r repository) findByStatus(ctx context.Context, statuses ...model.RolloutStatus) ([]model.Rollout, error) {
	var rollouts []model.Rollout
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Groups", orderedGroups).
		Where("status IN ?", statuses).
		Order("id").
		Find(&rollouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find rollouts: %v", err)
	}
	return rollouts, nil
}

func (r repository) findActiveOfDistributionSet(ctx context.Context, distributionSetID uint) ([]model.Rollout, error) {
	var rollouts []model.Rollout
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Groups", orderedGroups).
		Where("distribution_set_id = ? AND status NOT IN ?", distributionSetID, finalStatuses).
		Find(&rollouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find rollouts of distribution set %d: %v", distributionSetID, err)
	}
	return rollouts, nil
}

// tenants returns the tenants having rollouts with any of the given statuses.
func (r repository) tenants(ctx context.Context, statuses ...model.RolloutStatus) ([]string, error) {
	var tenants []string
	err := r.db.
		WithContext(ctx).
		Model(&model.Rollout{}).
		Distinct("tenant").
		Where("status IN ?", statuses).
		Pluck("tenant", &tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tenants with rollouts: %v", err)
	}
	return tenants, nil
}

func (r repository) findGroup(ctx context.Context, rolloutID, groupID uint) (*model.RolloutGroup, error) {
	var group *model.RolloutGroup
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("rollout_id = ?", rolloutID).
		First(&group, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("rollout group %d of rollout %d doesn't exist", groupID, rolloutID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rollout group %d: %v", groupID, err)
	}

	return group, nil
}

func (r repository) findGroups(ctx context.Context, rolloutID uint, params query.Params) ([]model.RolloutGroup, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("rollout_id = ?", rolloutID)

	groups, total, err := query.Page[model.RolloutGroup](db, params, query.RolloutGroupFields)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find groups of rollout %d: %v", rolloutID, err)
	}
	return groups, total, err
}

func (r repository) findGroupTargets(ctx context.Context, groupID uint, params query.Params) ([]model.Target, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("id IN (SELECT target_id FROM "+groupTargetsTable+" WHERE rollout_group_id = ?)", groupID)

	targets, total, err := query.Page[model.Target](db, params, query.TargetFields, "TargetType")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find targets of rollout group %d: %v", groupID, err)
	}
	return targets, total, err
}

func (r repository) findGroupTargetIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.
		WithContext(ctx).
		Table(groupTargetsTable).
		Where("rollout_group_id = ?", groupID).
		Order("target_id").
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find targets of rollout group %d: %v", groupID, err)
	}
	return ids, nil
}

// findMatchingTargetIDs returns the ids of the targets matching filter which distribution sets of
// given type can be assigned to.
func (r repository) findMatchingTargetIDs(ctx context.Context, filter string, distributionSetTypeID uint) ([]uint, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Model(&model.Target{}).
		Where("target_type_id IS NULL OR target_type_id IN (SELECT target_type_id FROM target_type_distribution_set_types WHERE distribution_set_type_id = ?)", distributionSetTypeID)

	db, err := query.Filter(db, filter, query.TargetFields)
	if err != nil {
		return nil, err
	}

	var ids []uint
	err = db.Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find targets matching %q: %v", filter, err)
	}
	return ids, nil
}

func (r repository) create(ctx context.Context, rollout *model.Rollout, groupTargets [][]uint) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Create(rollout).Error
		if err != nil {
			return err
		}

		for i := range rollout.Groups {
			group := &rollout.Groups[i]
			group.RolloutID = rollout.ID
			err := tx.Create(group).Error
			if err != nil {
				return err
			}

			rows := make([]model.RolloutGroupTarget, 0, len(groupTargets[i]))
			for _, targetID := range groupTargets[i] {
				rows = append(rows, model.RolloutGroupTarget{RolloutGroupID: group.ID, TargetID: targetID})
			}
			if len(rows) == 0 {
				continue
			}
			err = tx.CreateInBatches(rows, 500).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("rollout named %q already exists", rollout.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create rollout: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, rollout *model.Rollout) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(rollout).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("rollout named %q already exists", rollout.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update rollout %d: %v", rollout.ID, err)
	}
	return nil
}

func (r repository) saveGroup(ctx context.Context, group *model.RolloutGroup) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Save(group).Error
	if err != nil {
		return fmt.Errorf("failed to update rollout group %d: %v", group.ID, err)
	}
	return nil
}

type statusCount struct {
	Status model.ActionStatusType
	Active bool
	Count  int64
}

// countActions counts the actions of the rollout, or of one of its groups if groupID isn't nil, by
// status.
func (r repository) countActions(ctx context.Context, rolloutID uint, groupID *uint) ([]statusCount, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Model(&model.Action{}).
		Where("rollout_id = ?", rolloutID)
	if groupID != nil {
		db = db.Where("rollout_group_id = ?", *groupID)
	}

	var counts []statusCount
	err := db.
		Select("status, active, COUNT(*) AS count").
		Group("status, active").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count actions of rollout %d: %v", rolloutID, err)
	}
	return counts, nil
}

func (r repository) findActiveActionIDs(ctx context.Context, rolloutID uint) ([]uint, error) {
	var ids []uint
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Model(&model.Action{}).
		Where("rollout_id = ? AND active = ?", rolloutID, true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active actions of rollout %d: %v", rolloutID, err)
	}
	return ids, nil
}

func (r repository) hasActions(ctx context.Context, rolloutID uint) (bool, error) {
	var exists bool
	err := r.db.
		WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM actions WHERE rollout_id = ?)", rolloutID).
		Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("failed to check actions of rollout %d: %v", rolloutID, err)
	}
	return exists, nil
}

// delete removes the rollout together with its groups and their memberships.
func (r repository) delete(ctx context.Context, rollout *model.Rollout) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec("DELETE FROM "+groupTargetsTable+" WHERE rollout_group_id IN (SELECT id FROM rollout_groups WHERE rollout_id = ?)", rollout.ID).Error
		if err != nil {
			return fmt.Errorf("failed to delete targets of rollout %d: %v", rollout.ID, err)
		}

		err = tx.Where("rollout_id = ?", rollout.ID).Delete(&model.RolloutGroup{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete groups of rollout %d: %v", rollout.ID, err)
		}

		err = tx.Omit(clause.Associations).Delete(rollout).Error
		if err != nil {
			return fmt.Errorf("failed to delete rollout %d: %v", rollout.ID, err)
		}
		return nil
	})
}
