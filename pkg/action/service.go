package action

import (
	"context"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(logger *slog.Logger, repository actionRepository, deploymentService deploymentService) *service {
	return &service{
		logger:            logger,
		repository:        repository,
		deploymentService: deploymentService,
	}
}

type actionRepository interface {
	find(ctx context.Context, id uint) (*model.Action, error)
	findAll(ctx context.Context, params query.Params) ([]model.Action, int64, error)
	findAllOfTarget(ctx context.Context, targetID uint, params query.Params) ([]model.Action, int64, error)
	findTargetID(ctx context.Context, controllerID string) (uint, error)
	findStatuses(ctx context.Context, actionID uint, params query.Params) ([]model.ActionStatus, int64, error)
	findInactiveIDs(ctx context.Context, filter string) ([]uint, error)
	deleteInactive(ctx context.Context, ids []uint) (int64, error)
}

type deploymentService interface {
	Cancel(ctx context.Context, actionID uint, force bool) (*model.Action, error)
	Force(ctx context.Context, actionID uint) (*model.Action, error)
	Confirm(ctx context.Context, actionID uint, confirmation deployment.Confirmation) (*model.Action, error)
}

type service struct {
	logger            *slog.Logger
	repository        actionRepository
	deploymentService deploymentService
}

func (s service) Find(ctx context.Context, id uint) (*model.Action, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.Action, int64, error) {
	return s.repository.findAll(ctx, params)
}

func (s service) FindAllOfTarget(ctx context.Context, controllerID string, params query.Params) ([]model.Action, int64, error) {
	targetID, err := s.repository.findTargetID(ctx, controllerID)
	if err != nil {
		return nil, 0, err
	}
	return s.repository.findAllOfTarget(ctx, targetID, params)
}

// FindOfTarget returns the action if it belongs to the target with given controller id.
func (s service) FindOfTarget(ctx context.Context, controllerID string, actionID uint) (*model.Action, error) {
	targetID, err := s.repository.findTargetID(ctx, controllerID)
	if err != nil {
		return nil, err
	}

	action, err := s.repository.find(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.TargetID != targetID {
		return nil, errdef.NewNotFound("action %d of target %q doesn't exist", actionID, controllerID)
	}
	return action, nil
}

func (s service) FindStatuses(ctx context.Context, controllerID string, actionID uint, params query.Params) ([]model.ActionStatus, int64, error) {
	if _, err := s.FindOfTarget(ctx, controllerID, actionID); err != nil {
		return nil, 0, err
	}
	return s.repository.findStatuses(ctx, actionID, params)
}

func (s service) Cancel(ctx context.Context, controllerID string, actionID uint, force bool) error {
	if _, err := s.FindOfTarget(ctx, controllerID, actionID); err != nil {
		return err
	}
	_, err := s.deploymentService.Cancel(ctx, actionID, force)
	return err
}

// Force turns the action into a forced one. It's the only update of an action.
func (s service) Force(ctx context.Context, controllerID string, actionID uint) (*model.Action, error) {
	if _, err := s.FindOfTarget(ctx, controllerID, actionID); err != nil {
		return nil, err
	}

	if _, err := s.deploymentService.Force(ctx, actionID); err != nil {
		return nil, err
	}
	return s.repository.find(ctx, actionID)
}

func (s service) Confirm(ctx context.Context, controllerID string, actionID uint, confirmation deployment.Confirmation) error {
	if _, err := s.FindOfTarget(ctx, controllerID, actionID); err != nil {
		return err
	}
	_, err := s.deploymentService.Confirm(ctx, actionID, confirmation)
	return err
}

// Delete deletes an inactive action.
func (s service) Delete(ctx context.Context, id uint) error {
	action, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}
	if action.Active {
		return errdef.NewConflict("action %d is active and can't be deleted", id)
	}

	_, err = s.repository.deleteInactive(ctx, []uint{id})
	return err
}

// DeleteAll deletes the inactive actions either matching filter or given by ids. Active actions are
// skipped. The number of deleted actions is returned.
func (s service) DeleteAll(ctx context.Context, filter string, ids []uint) (int64, error) {
	if (filter == "") == (len(ids) == 0) {
		return 0, errdef.NewBadRequest("either a filter or a list of action ids is required")
	}

	if filter != "" {
		var err error
		ids, err = s.repository.findInactiveIDs(ctx, filter)
		if err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			return 0, nil
		}
	}

	deleted, err := s.repository.deleteInactive(ctx, ids)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Deleted actions", "count", deleted)
	return deleted, nil
}
