package target

import (
	"context"
	"log/slog"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
	"github.com/google/uuid"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(
	logger *slog.Logger,
	repository targetRepository,
	targetTypeService targetTypeService,
	tagService tagService,
	distributionSetService distributionSetService,
	deploymentService deploymentService,
	tenantConfigService tenantConfigService,
	publisher publisher,
) *service {
	return &service{
		logger:                 logger,
		repository:             repository,
		targetTypeService:      targetTypeService,
		tagService:             tagService,
		distributionSetService: distributionSetService,
		deploymentService:      deploymentService,
		tenantConfigService:    tenantConfigService,
		publisher:              publisher,
	}
}

type targetRepository interface {
	find(ctx context.Context, controllerID string) (*model.Target, error)
	findByControllerIDs(ctx context.Context, controllerIDs []string) ([]model.Target, error)
	findAll(ctx context.Context, params query.Params) ([]model.Target, int64, error)
	findAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.Target, int64, error)
	findAllByDistributionSet(ctx context.Context, distributionSetID uint, installed bool, params query.Params) ([]model.Target, int64, error)
	create(ctx context.Context, targets []model.Target) error
	save(ctx context.Context, target *model.Target) error
	delete(ctx context.Context, target *model.Target) error
}

type targetTypeService interface {
	Find(ctx context.Context, id uint) (*model.TargetType, error)
}

type tagService interface {
	Find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error)
	FindByMember(ctx context.Context, kind model.TagKind, memberID uint) ([]model.Tag, error)
	Assign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error
	Unassign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error
}

type distributionSetService interface {
	Find(ctx context.Context, id uint) (*model.DistributionSet, error)
}

type deploymentService interface {
	Assign(ctx context.Context, requests []deployment.Request) (*deployment.Result, error)
	AssignOffline(ctx context.Context, distributionSetID uint, targetIDs []uint) (*deployment.Result, error)
	AutoConfirm(ctx context.Context, targetID uint, initiator string) (int, error)
}

type tenantConfigService interface {
	Bool(ctx context.Context, key string) (bool, error)
	PollingTimes(ctx context.Context) (time.Duration, time.Duration, error)
}

type publisher interface {
	ThingDeleted(ctx context.Context, target model.Target) error
	RequestAttributesUpdate(ctx context.Context, target model.Target) error
}

type service struct {
	logger                 *slog.Logger
	repository             targetRepository
	targetTypeService      targetTypeService
	tagService             tagService
	distributionSetService distributionSetService
	deploymentService      deploymentService
	tenantConfigService    tenantConfigService
	publisher              publisher
}

func (s service) Find(ctx context.Context, controllerID string) (*model.Target, error) {
	return s.repository.find(ctx, controllerID)
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.Target, int64, error) {
	return s.repository.findAll(ctx, params)
}

func (s service) FindAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.Target, int64, error) {
	if _, err := s.tagService.Find(ctx, model.TargetTagKind, tagID); err != nil {
		return nil, 0, err
	}
	return s.repository.findAllByTag(ctx, tagID, params)
}

// FindAllByDistributionSet finds the targets the distribution set is assigned to or, if installed is
// true, installed on.
func (s service) FindAllByDistributionSet(ctx context.Context, distributionSetID uint, installed bool, params query.Params) ([]model.Target, int64, error) {
	if _, err := s.distributionSetService.Find(ctx, distributionSetID); err != nil {
		return nil, 0, err
	}
	return s.repository.findAllByDistributionSet(ctx, distributionSetID, installed, params)
}

// NewTarget is a target to create together with the id of its optional type.
type NewTarget struct {
	Target       model.Target
	TargetTypeID *uint
}

func (s service) Create(ctx context.Context, newTargets []NewTarget) ([]model.Target, error) {
	targets := make([]model.Target, 0, len(newTargets))
	for _, newTarget := range newTargets {
		target := newTarget.Target
		if target.SecurityToken == "" {
			target.SecurityToken = newSecurityToken()
		}
		if target.Name == "" {
			target.Name = target.ControllerID
		}
		target.UpdateStatus = model.UpdateStatusUnknown

		if newTarget.TargetTypeID != nil {
			targetType, err := s.targetTypeService.Find(ctx, *newTarget.TargetTypeID)
			if err != nil {
				return nil, err
			}
			target.TargetTypeID = &targetType.ID
			target.TargetType = targetType
		}
		targets = append(targets, target)
	}

	err := s.repository.create(ctx, targets)
	if err != nil {
		return nil, err
	}
	return targets, nil
}

func newSecurityToken() string {
	return uuid.NewString()
}

// UnassignType is the target type id given in an update to remove the type of a target.
const UnassignType = -1

// Update holds the changeable fields of a target. An empty SecurityToken keeps the current token.
type Update struct {
	Name              *string
	Description       *string
	Address           *string
	SecurityToken     *string
	RequestAttributes *bool
	TargetTypeID      *int64
}

func (s service) Update(ctx context.Context, controllerID string, update Update) (*model.Target, error) {
	if update.RequestAttributes != nil && !*update.RequestAttributes {
		return nil, errdef.NewBadRequest("requestAttributes can only be set to true")
	}

	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		target.Name = *update.Name
	}
	if update.Description != nil {
		target.Description = *update.Description
	}
	if update.Address != nil {
		target.Address = *update.Address
	}
	if update.SecurityToken != nil && *update.SecurityToken != "" {
		target.SecurityToken = *update.SecurityToken
	}

	if update.TargetTypeID != nil {
		switch id := *update.TargetTypeID; {
		case id == UnassignType:
			target.TargetTypeID = nil
			target.TargetType = nil
		case id > 0:
			targetType, err := s.targetTypeService.Find(ctx, uint(id))
			if err != nil {
				return nil, err
			}
			target.TargetTypeID = &targetType.ID
			target.TargetType = targetType
		default:
			return nil, errdef.NewBadRequest("invalid target type id %d", id)
		}
	}

	requestAttributes := update.RequestAttributes != nil && !target.RequestAttributes
	if update.RequestAttributes != nil {
		target.RequestAttributes = true
	}

	err = s.repository.save(ctx, target)
	if err != nil {
		return nil, err
	}

	if requestAttributes {
		err := s.publisher.RequestAttributesUpdate(ctx, *target)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to request attributes update", "controllerId", target.ControllerID, "error", err)
		}
	}
	return target, nil
}

func (s service) Delete(ctx context.Context, controllerID string) error {
	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return err
	}

	err = s.repository.delete(ctx, target)
	if err != nil {
		return err
	}

	err = s.publisher.ThingDeleted(ctx, *target)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish deletion of target", "controllerId", controllerID, "error", err)
	}
	return nil
}

func (s service) AssignType(ctx context.Context, controllerID string, targetTypeID uint) (*model.Target, error) {
	id := int64(targetTypeID)
	return s.Update(ctx, controllerID, Update{TargetTypeID: &id})
}

func (s service) UnassignType(ctx context.Context, controllerID string) (*model.Target, error) {
	id := int64(UnassignType)
	return s.Update(ctx, controllerID, Update{TargetTypeID: &id})
}

func (s service) FindTags(ctx context.Context, controllerID string) ([]model.Tag, error) {
	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return nil, err
	}
	return s.tagService.FindByMember(ctx, model.TargetTagKind, target.ID)
}

// AssignTag assigns the tag to the targets with given controller ids.
func (s service) AssignTag(ctx context.Context, tagID uint, controllerIDs ...string) error {
	ids, err := s.ids(ctx, controllerIDs)
	if err != nil {
		return err
	}
	return s.tagService.Assign(ctx, model.TargetTagKind, tagID, ids...)
}

func (s service) UnassignTag(ctx context.Context, tagID uint, controllerIDs ...string) error {
	ids, err := s.ids(ctx, controllerIDs)
	if err != nil {
		return err
	}
	return s.tagService.Unassign(ctx, model.TargetTagKind, tagID, ids...)
}

func (s service) ids(ctx context.Context, controllerIDs []string) ([]uint, error) {
	targets, err := s.repository.findByControllerIDs(ctx, controllerIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(targets))
	for _, target := range targets {
		ids = append(ids, target.ID)
	}
	return ids, nil
}

// FindDistributionSet finds the distribution set assigned to or, if installed is true, installed
// on the target. A nil set is returned if there is none.
func (s service) FindDistributionSet(ctx context.Context, controllerID string, installed bool) (*model.DistributionSet, error) {
	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return nil, err
	}

	id := target.AssignedDistributionSetID
	if installed {
		id = target.InstalledDistributionSetID
	}
	if id == nil {
		return nil, nil
	}
	return s.distributionSetService.Find(ctx, *id)
}

// Assignment is a request to deploy a distribution set to the target identified by ControllerID.
// The TargetID and DistributionSetID of the request are filled in by the service.
type Assignment struct {
	ControllerID string
	Request      deployment.Request
}

// Assign deploys distribution sets to targets. Offline assignments record the distribution sets as
// installed without creating running actions.
func (s service) Assign(ctx context.Context, assignments []Assignment, offline bool) (*deployment.Result, error) {
	controllerIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		controllerIDs = append(controllerIDs, assignment.ControllerID)
	}

	targets, err := s.repository.findByControllerIDs(ctx, controllerIDs)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]uint, len(targets))
	byID := make(map[uint]*model.Target, len(targets))
	for i, target := range targets {
		ids[target.ControllerID] = target.ID
		byID[target.ID] = &targets[i]
	}

	var result *deployment.Result
	if offline {
		result, err = s.assignOffline(ctx, assignments, ids)
	} else {
		requests := make([]deployment.Request, 0, len(assignments))
		for _, assignment := range assignments {
			request := assignment.Request
			request.TargetID = ids[assignment.ControllerID]
			requests = append(requests, request)
		}
		result, err = s.deploymentService.Assign(ctx, requests)
	}
	if err != nil {
		return nil, err
	}

	for i := range result.Actions {
		result.Actions[i].Target = byID[result.Actions[i].TargetID]
	}
	return result, nil
}

func (s service) assignOffline(ctx context.Context, assignments []Assignment, ids map[string]uint) (*deployment.Result, error) {
	var order []uint
	targetsBySet := make(map[uint][]uint)
	for _, assignment := range assignments {
		dsID := assignment.Request.DistributionSetID
		if _, ok := targetsBySet[dsID]; !ok {
			order = append(order, dsID)
		}
		targetsBySet[dsID] = append(targetsBySet[dsID], ids[assignment.ControllerID])
	}

	total := &deployment.Result{}
	for _, dsID := range order {
		result, err := s.deploymentService.AssignOffline(ctx, dsID, targetsBySet[dsID])
		if err != nil {
			return nil, err
		}
		total.Assigned += result.Assigned
		total.AlreadyAssigned += result.AlreadyAssigned
		total.Actions = append(total.Actions, result.Actions...)
	}
	return total, nil
}

// ConfirmationFlowEnabled returns true if actions need to be confirmed before they are started.
func (s service) ConfirmationFlowEnabled(ctx context.Context) (bool, error) {
	return s.tenantConfigService.Bool(ctx, tenantconfig.UserConfirmationEnabled)
}

// PollingTimes returns the polling interval of targets and the time after which a missed poll is
// considered overdue.
func (s service) PollingTimes(ctx context.Context) (time.Duration, time.Duration, error) {
	return s.tenantConfigService.PollingTimes(ctx)
}

// ActivateAutoConfirm confirms all actions of the target waiting for confirmation and all future
// ones on behalf of initiator. The initiator defaults to the current user.
func (s service) ActivateAutoConfirm(ctx context.Context, controllerID, initiator, remark string) (*model.Target, error) {
	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return nil, err
	}
	if target.AutoConfirmActive() {
		return nil, errdef.NewConflict("auto confirmation is already active for target %q", controllerID)
	}

	if initiator == "" {
		user, ok := model.GetUserFromContext(ctx)
		if !ok {
			return nil, errdef.NewUnauthorized("no user found in context")
		}
		initiator = user.Username
	}

	now := time.Now()
	target.AutoConfirmInitiator = initiator
	target.AutoConfirmRemark = remark
	target.AutoConfirmActivatedAt = &now
	err = s.repository.save(ctx, target)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.deploymentService.AutoConfirm(ctx, target.ID, initiator)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Activated auto confirmation", "controllerId", controllerID, "confirmedActions", confirmed)
	return target, nil
}

func (s service) DeactivateAutoConfirm(ctx context.Context, controllerID string) error {
	target, err := s.repository.find(ctx, controllerID)
	if err != nil {
		return err
	}
	if !target.AutoConfirmActive() {
		return nil
	}

	target.AutoConfirmInitiator = ""
	target.AutoConfirmRemark = ""
	target.AutoConfirmActivatedAt = nil
	return s.repository.save(ctx, target)
}
