package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

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

func (r repository) findTargets(ctx context.Context, ids []uint) ([]model.Target, error) {
	var targets []model.Target
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("TargetType.DistributionSetTypes").
		Where("id IN ?", ids).
		Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find targets: %v", err)
	}
	return targets, nil
}

func (r repository) findDistributionSet(ctx context.Context, id uint) (*model.DistributionSet, error) {
	var ds *model.DistributionSet
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Type.Elements").
		Preload("Modules.Type").
		Preload("Modules.Artifacts").
		First(&ds, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("distribution set %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find distribution set %d: %v", id, err)
	}
	return ds, nil
}

func (r repository) findAction(ctx context.Context, id uint) (*model.Action, error) {
	var action *model.Action
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Target").
		First(&action, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("action %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find action %d: %v", id, err)
	}
	return action, nil
}

// findActiveActions returns the active actions of the targets ordered by id.
func (r repository) findActiveActions(ctx context.Context, targetIDs []uint) ([]model.Action, error) {
	var actions []model.Action
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("active AND target_id IN ?", targetIDs).
		Order("id").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active actions: %v", err)
	}
	return actions, nil
}

func (r repository) findActiveActionsOfSet(ctx context.Context, distributionSetID uint) ([]model.Action, error) {
	var actions []model.Action
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Target").
		Where("active AND distribution_set_id = ?", distributionSetID).
		Order("id").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active actions of distribution set %d: %v", distributionSetID, err)
	}
	return actions, nil
}

func (r repository) findWaitingActions(ctx context.Context, targetID uint) ([]model.Action, error) {
	var actions []model.Action
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Target").
		Where("active AND target_id = ? AND status = ?", targetID, model.ActionStatusWaitForConfirmation).
		Order("id").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find actions waiting for confirmation of target %d: %v", targetID, err)
	}
	return actions, nil
}

// assignment is a new action of a target alongside the actions it cancels.
type assignment struct {
	target   *model.Target
	action   *model.Action
	canceled []model.Action
}

// assign creates the actions of the assignments and updates their targets. The distribution set
// and its modules are locked.
func (r repository) assign(ctx context.Context, ds *model.DistributionSet, assignments []assignment, message string) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range assignments {
			a := &assignments[i]
			for j := range a.canceled {
				canceled := &a.canceled[j]
				canceled.Status = model.ActionStatusCanceling
				err := updateAction(tx, canceled, "Canceled by the assignment of another distribution set")
				if err != nil {
					return err
				}
			}

			err := tx.Omit(clause.Associations).Create(a.action).Error
			if err != nil {
				return fmt.Errorf("failed to create action of target %q: %v", a.target.ControllerID, err)
			}

			err = addStatus(tx, a.action, message)
			if err != nil {
				return err
			}

			err = r.updateTarget(tx, a.target, a.action)
			if err != nil {
				return err
			}
		}

		err := tx.Model(&model.DistributionSet{}).Where("id = ?", ds.ID).Update("locked", true).Error
		if err != nil {
			return fmt.Errorf("failed to lock distribution set %d: %v", ds.ID, err)
		}

		err = tx.
			Model(&model.SoftwareModule{}).
			Where("id IN (SELECT software_module_id FROM distribution_set_modules WHERE distribution_set_id = ?)", ds.ID).
			Update("locked", true).Error
		if err != nil {
			return fmt.Errorf("failed to lock software modules of distribution set %d: %v", ds.ID, err)
		}
		return nil
	})
}

func (r repository) updateTarget(tx *gorm.DB, target *model.Target, action *model.Action) error {
	updates := map[string]any{
		"assigned_distribution_set_id": action.DistributionSetID,
		"update_status":                model.UpdateStatusPending,
	}
	if action.Status == model.ActionStatusFinished {
		now := time.Now()
		updates["installed_distribution_set_id"] = action.DistributionSetID
		updates["installed_at"] = now
		updates["update_status"] = model.UpdateStatusInSync
		target.InstalledDistributionSetID = &action.DistributionSetID
		target.InstalledAt = &now
		target.UpdateStatus = model.UpdateStatusInSync
	} else {
		target.UpdateStatus = model.UpdateStatusPending
	}
	target.AssignedDistributionSetID = &action.DistributionSetID

	err := tx.Model(&model.Target{}).Where("id = ?", target.ID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update target %q: %v", target.ControllerID, err)
	}
	return nil
}

// update saves the action and records its status. The target of a closed action falls back to its
// latest active action or its installed distribution set.
func (r repository) update(ctx context.Context, action *model.Action, messages ...string) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := updateAction(tx, action, messages...)
		if err != nil {
			return err
		}

		if action.Active {
			return nil
		}
		return resetTarget(tx, action.TargetID)
	})
}

func updateAction(tx *gorm.DB, action *model.Action, messages ...string) error {
	err := tx.Omit(clause.Associations).Save(action).Error
	if err != nil {
		return fmt.Errorf("failed to update action %d: %v", action.ID, err)
	}
	return addStatus(tx, action, messages...)
}

func addStatus(tx *gorm.DB, action *model.Action, messages ...string) error {
	status := model.ActionStatus{
		Tenant:     action.Tenant,
		ActionID:   action.ID,
		Status:     action.Status,
		Code:       action.LastStatusCode,
		Messages:   messages,
		OccurredAt: time.Now(),
	}
	err := tx.Create(&status).Error
	if err != nil {
		return fmt.Errorf("failed to add status of action %d: %v", action.ID, err)
	}
	return nil
}

func resetTarget(tx *gorm.DB, targetID uint) error {
	var target model.Target
	err := tx.First(&target, targetID).Error
	if err != nil {
		return fmt.Errorf("failed to find target %d: %v", targetID, err)
	}

	var latest model.Action
	err = tx.Where("active AND target_id = ?", targetID).Order("id DESC").Limit(1).Find(&latest).Error
	if err != nil {
		return fmt.Errorf("failed to find active actions of target %d: %v", targetID, err)
	}

	updates := map[string]any{}
	switch {
	case latest.ID != 0:
		updates["assigned_distribution_set_id"] = latest.DistributionSetID
		updates["update_status"] = model.UpdateStatusPending
	case target.InstalledDistributionSetID != nil:
		updates["assigned_distribution_set_id"] = *target.InstalledDistributionSetID
		updates["update_status"] = model.UpdateStatusInSync
	default:
		updates["assigned_distribution_set_id"] = nil
		updates["update_status"] = model.UpdateStatusRegistered
	}

	err = tx.Model(&model.Target{}).Where("id = ?", targetID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to reset target %d: %v", targetID, err)
	}
	return nil
}
