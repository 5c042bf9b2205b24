package deployment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/dmf"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(logger *slog.Logger, repository deploymentRepository, tenantConfigService tenantConfigService, metadataService metadataService, publisher publisher) *service {
	return &service{
		logger:              logger,
		repository:          repository,
		tenantConfigService: tenantConfigService,
		metadataService:     metadataService,
		publisher:           publisher,
	}
}

type deploymentRepository interface {
	findTargets(ctx context.Context, ids []uint) ([]model.Target, error)
	findDistributionSet(ctx context.Context, id uint) (*model.DistributionSet, error)
	findAction(ctx context.Context, id uint) (*model.Action, error)
	findActiveActions(ctx context.Context, targetIDs []uint) ([]model.Action, error)
	findActiveActionsOfSet(ctx context.Context, distributionSetID uint) ([]model.Action, error)
	findWaitingActions(ctx context.Context, targetID uint) ([]model.Action, error)
	assign(ctx context.Context, ds *model.DistributionSet, assignments []assignment, message string) error
	update(ctx context.Context, action *model.Action, messages ...string) error
}

type tenantConfigService interface {
	Bool(ctx context.Context, key string) (bool, error)
}

type metadataService interface {
	FindTargetVisible(ctx context.Context, moduleIDs []uint) (map[uint][]model.Metadata, error)
}

type publisher interface {
	Assign(ctx context.Context, assignment dmf.Assignment) error
	CancelDownload(ctx context.Context, target model.Target, actionID uint) error
}

type notifier interface {
	ActionChanged(ctx context.Context, action model.Action)
}

type service struct {
	logger              *slog.Logger
	repository          deploymentRepository
	tenantConfigService tenantConfigService
	metadataService     metadataService
	publisher           publisher
	notifier            notifier
}

// SetNotifier sets the notifier told about every created or changed action.
func (s *service) SetNotifier(notifier notifier) {
	s.notifier = notifier
}

func (s service) notify(ctx context.Context, actions ...model.Action) {
	if s.notifier == nil {
		return
	}
	for _, action := range actions {
		s.notifier.ActionChanged(ctx, action)
	}
}

// Maintenance is the window an action may be installed in. Either all or none of its fields are
// set.
type Maintenance struct {
	// Schedule is a cron expression of the windows start
	Schedule string
	// Duration of the window formatted as HH:mm:ss
	Duration string
	// TimeZone offset of the schedule like +02:00
	TimeZone string
}

func (m Maintenance) validate() error {
	if m.Schedule == "" && m.Duration == "" && m.TimeZone == "" {
		return nil
	}
	if m.Schedule == "" || m.Duration == "" || m.TimeZone == "" {
		return errdef.NewBadRequest("maintenance window requires schedule, duration and timezone")
	}
	if _, err := tenantconfig.ParseDuration(m.Duration); err != nil {
		return errdef.NewBadRequest("invalid maintenance window duration: %v", err)
	}
	return nil
}

// Request assigns a distribution set to a target.
type Request struct {
	TargetID          uint
	DistributionSetID uint
	Type              model.ActionType
	// ForceTime in milliseconds since the epoch, required by timeforced actions
	ForceTime int64
	Weight    *int
	// ConfirmationRequired defaults to true if the user confirmation flow is enabled
	ConfirmationRequired *bool
	Maintenance          Maintenance
	RolloutID            *uint
	RolloutGroupID       *uint
}

func (r Request) validate() error {
	if r.Type == model.ActionTypeTimeForced && r.ForceTime <= 0 {
		return errdef.NewBadRequest("timeforced actions require a forcetime")
	}
	if r.Weight != nil && (*r.Weight < 0 || *r.Weight > 1000) {
		return errdef.NewBadRequest("weight must be between 0 and 1000")
	}
	return r.Maintenance.validate()
}

// Result of an assignment. Targets which already have an active action of the distribution set are
// counted as already assigned.
type Result struct {
	Assigned        int
	AlreadyAssigned int
	Actions         []model.Action
}

func (r Result) Total() int {
	return r.Assigned + r.AlreadyAssigned
}

// Assign creates the actions deploying the distribution sets to the targets of the requests and
// notifies the targets.
func (s service) Assign(ctx context.Context, requests []Request) (*Result, error) {
	return s.assign(ctx, requests, false)
}

// AssignOffline records the distribution set as installed on the targets without notifying them.
func (s service) AssignOffline(ctx context.Context, distributionSetID uint, targetIDs []uint) (*Result, error) {
	requests := make([]Request, 0, len(targetIDs))
	for _, id := range targetIDs {
		requests = append(requests, Request{TargetID: id, DistributionSetID: distributionSetID})
	}
	return s.assign(ctx, requests, true)
}

func (s service) assign(ctx context.Context, requests []Request, offline bool) (*Result, error) {
	user, ok := model.GetUserFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no user found in context")
	}

	multiAssignments, err := s.tenantConfigService.Bool(ctx, tenantconfig.MultiAssignmentsEnabled)
	if err != nil {
		return nil, err
	}

	confirmationFlow, err := s.tenantConfigService.Bool(ctx, tenantconfig.UserConfirmationEnabled)
	if err != nil {
		return nil, err
	}

	bySet := make(map[uint][]Request)
	var setIDs []uint
	for _, request := range requests {
		if err := request.validate(); err != nil {
			return nil, err
		}
		if _, ok := bySet[request.DistributionSetID]; !ok {
			setIDs = append(setIDs, request.DistributionSetID)
		}
		bySet[request.DistributionSetID] = append(bySet[request.DistributionSetID], request)
	}

	result := &Result{}
	for _, setID := range setIDs {
		ds, err := s.repository.findDistributionSet(ctx, setID)
		if err != nil {
			return nil, err
		}
		if !ds.Assignable() {
			return nil, errdef.NewBadRequest("distribution set %d is incomplete, invalid or deleted and can't be assigned", ds.ID)
		}

		assignments, alreadyAssigned, err := s.assignments(ctx, ds, bySet[setID], assignmentOptions{
			offline:          offline,
			multiAssignments: multiAssignments,
			confirmationFlow: confirmationFlow,
			initiatedBy:      user.Username,
		})
		if err != nil {
			return nil, err
		}
		result.AlreadyAssigned += alreadyAssigned
		if len(assignments) == 0 {
			continue
		}

		message := fmt.Sprintf("Assignment initiated by user '%s'", user.Username)
		if offline {
			message = fmt.Sprintf("Offline assignment by user '%s'", user.Username)
		}
		err = s.repository.assign(ctx, ds, assignments, message)
		if err != nil {
			return nil, err
		}

		for _, a := range assignments {
			result.Assigned++
			result.Actions = append(result.Actions, *a.action)
			s.notify(ctx, a.canceled...)
			s.notify(ctx, *a.action)
		}

		if !offline {
			s.publishAssignments(ctx, ds, assignments)
		}
	}

	s.logger.InfoContext(ctx, "Assigned distribution sets", "assigned", result.Assigned, "alreadyAssigned", result.AlreadyAssigned, "offline", offline)
	return result, nil
}

type assignmentOptions struct {
	offline          bool
	multiAssignments bool
	confirmationFlow bool
	initiatedBy      string
}

func (s service) assignments(ctx context.Context, ds *model.DistributionSet, requests []Request, options assignmentOptions) ([]assignment, int, error) {
	targetIDs := make([]uint, 0, len(requests))
	for _, request := range requests {
		targetIDs = append(targetIDs, request.TargetID)
	}

	targets, err := s.repository.findTargets(ctx, targetIDs)
	if err != nil {
		return nil, 0, err
	}
	targetsByID := make(map[uint]*model.Target, len(targets))
	for i := range targets {
		targetsByID[targets[i].ID] = &targets[i]
	}

	activeActions, err := s.repository.findActiveActions(ctx, targetIDs)
	if err != nil {
		return nil, 0, err
	}
	activeByTarget := make(map[uint][]model.Action)
	for _, action := range activeActions {
		activeByTarget[action.TargetID] = append(activeByTarget[action.TargetID], action)
	}

	var assignments []assignment
	alreadyAssigned := 0
	seen := make(map[uint]bool)
	for _, request := range requests {
		target, ok := targetsByID[request.TargetID]
		if !ok {
			return nil, 0, errdef.NewNotFound("target %d doesn't exist", request.TargetID)
		}
		if seen[target.ID] {
			continue
		}
		seen[target.ID] = true

		if target.TargetType != nil && !target.TargetType.IsCompatible(ds.TypeID) {
			return nil, 0, errdef.NewBadRequest("distribution set %d of type %q is not compatible with target type %q of target %q", ds.ID, ds.Type.Key, target.TargetType.Key, target.ControllerID)
		}

		if isAlreadyAssigned(target, ds, activeByTarget[target.ID], options.offline) {
			alreadyAssigned++
			continue
		}

		action := newAction(target, ds, request, options)
		var canceled []model.Action
		if !options.offline && !options.multiAssignments {
			for _, active := range activeByTarget[target.ID] {
				if !active.IsCancelingOrCanceled() {
					active.Target = target
					canceled = append(canceled, active)
				}
			}
		}

		assignments = append(assignments, assignment{
			target:   target,
			action:   action,
			canceled: canceled,
		})
	}
	return assignments, alreadyAssigned, nil
}

func isAlreadyAssigned(target *model.Target, ds *model.DistributionSet, active []model.Action, offline bool) bool {
	if offline {
		return target.InstalledDistributionSetID != nil && *target.InstalledDistributionSetID == ds.ID
	}
	for _, action := range active {
		if action.DistributionSetID == ds.ID && !action.IsCancelingOrCanceled() {
			return true
		}
	}
	return false
}

func newAction(target *model.Target, ds *model.DistributionSet, request Request, options assignmentOptions) *model.Action {
	actionType := request.Type
	if actionType == "" {
		actionType = model.ActionTypeForced
	}

	action := &model.Action{
		TargetID:            target.ID,
		DistributionSetID:   ds.ID,
		Type:                actionType,
		ForceTime:           request.ForceTime,
		Weight:              request.Weight,
		Active:              true,
		Status:              model.ActionStatusRunning,
		RolloutID:           request.RolloutID,
		RolloutGroupID:      request.RolloutGroupID,
		InitiatedBy:         options.initiatedBy,
		MaintenanceSchedule: request.Maintenance.Schedule,
		MaintenanceDuration: request.Maintenance.Duration,
		MaintenanceTimeZone: request.Maintenance.TimeZone,
	}

	if options.offline {
		action.Active = false
		action.Status = model.ActionStatusFinished
		return action
	}

	confirmationRequired := options.confirmationFlow && (request.ConfirmationRequired == nil || *request.ConfirmationRequired)
	action.ConfirmationRequired = confirmationRequired
	if confirmationRequired && !target.AutoConfirmActive() {
		action.Status = model.ActionStatusWaitForConfirmation
	}
	return action
}

// publishAssignments notifies the targets of their new and canceled actions. Failures are logged,
// targets still learn about their actions by polling.
func (s service) publishAssignments(ctx context.Context, ds *model.DistributionSet, assignments []assignment) {
	metadata := s.targetVisibleMetadata(ctx, ds)

	for _, a := range assignments {
		for _, canceled := range a.canceled {
			if err := s.publisher.CancelDownload(ctx, *a.target, canceled.ID); err != nil {
				s.logger.ErrorContext(ctx, "Failed to publish cancellation", "actionId", canceled.ID, "error", err)
			}
		}

		err := s.publisher.Assign(ctx, dmf.Assignment{
			Target:   *a.target,
			Action:   *a.action,
			Modules:  ds.Modules,
			Metadata: metadata,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish assignment", "actionId", a.action.ID, "controllerId", a.target.ControllerID, "error", err)
		}
	}
}

func (s service) targetVisibleMetadata(ctx context.Context, ds *model.DistributionSet) map[uint][]model.Metadata {
	moduleIDs := make([]uint, 0, len(ds.Modules))
	for _, module := range ds.Modules {
		moduleIDs = append(moduleIDs, module.ID)
	}
	if len(moduleIDs) == 0 {
		return nil
	}

	metadata, err := s.metadataService.FindTargetVisible(ctx, moduleIDs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to find target visible metadata", "distributionSetId", ds.ID, "error", err)
		return nil
	}
	return metadata
}

// Cancel requests the cancellation of an active action. A forced cancellation quits an action
// which is already being canceled without waiting for the target.
func (s service) Cancel(ctx context.Context, actionID uint, force bool) (*model.Action, error) {
	action, err := s.repository.findAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !action.Active {
		return nil, errdef.NewBadRequest("action %d is not active and can't be canceled", actionID)
	}

	if force {
		if action.Status != model.ActionStatusCanceling {
			return nil, errdef.NewBadRequest("action %d must be canceled before it can be force quit", actionID)
		}
		action.Status = model.ActionStatusCanceled
		action.Active = false
		err = s.repository.update(ctx, action, "Action force quit by user")
		if err != nil {
			return nil, err
		}
		s.notify(ctx, *action)
		return action, nil
	}

	if action.Status == model.ActionStatusCanceling {
		return nil, errdef.NewBadRequest("action %d is already being canceled", actionID)
	}

	action.Status = model.ActionStatusCanceling
	err = s.repository.update(ctx, action, "Cancellation requested by user")
	if err != nil {
		return nil, err
	}
	s.notify(ctx, *action)

	if action.Target != nil {
		if err := s.publisher.CancelDownload(ctx, *action.Target, action.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish cancellation", "actionId", action.ID, "error", err)
		}
	}
	return action, nil
}

// Force turns a soft or time forced action into a forced one.
func (s service) Force(ctx context.Context, actionID uint) (*model.Action, error) {
	action, err := s.repository.findAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !action.Active {
		return nil, errdef.NewBadRequest("action %d is not active and can't be forced", actionID)
	}
	if action.Type == model.ActionTypeForced {
		return action, nil
	}

	action.Type = model.ActionTypeForced
	err = s.repository.update(ctx, action, "Action forced by user")
	if err != nil {
		return nil, err
	}
	s.notify(ctx, *action)
	return action, nil
}

// Confirmation is the decision on an action waiting for confirmation.
type Confirmation struct {
	Confirmed bool
	Code      *int
	Details   []string
}

// Confirm confirms or denies an action waiting for confirmation. A confirmed action starts running
// while a denied one keeps waiting.
func (s service) Confirm(ctx context.Context, actionID uint, confirmation Confirmation) (*model.Action, error) {
	action, err := s.repository.findAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !action.Active || action.Status != model.ActionStatusWaitForConfirmation {
		return nil, errdef.NewBadRequest("action %d is not waiting for confirmation", actionID)
	}

	action.LastStatusCode = confirmation.Code
	if !confirmation.Confirmed {
		messages := append([]string{"Assignment denied"}, confirmation.Details...)
		err = s.repository.update(ctx, action, messages...)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, *action)
		return action, nil
	}

	err = s.start(ctx, action, append([]string{"Assignment confirmed"}, confirmation.Details...)...)
	if err != nil {
		return nil, err
	}
	return action, nil
}

// AutoConfirm confirms all actions of the target waiting for confirmation.
func (s service) AutoConfirm(ctx context.Context, targetID uint, initiator string) (int, error) {
	actions, err := s.repository.findWaitingActions(ctx, targetID)
	if err != nil {
		return 0, err
	}

	for i := range actions {
		err := s.start(ctx, &actions[i], fmt.Sprintf("Assignment automatically confirmed by initiator '%s'", initiator))
		if err != nil {
			return i, err
		}
	}
	return len(actions), nil
}

func (s service) start(ctx context.Context, action *model.Action, messages ...string) error {
	action.Status = model.ActionStatusRunning
	err := s.repository.update(ctx, action, messages...)
	if err != nil {
		return err
	}
	s.notify(ctx, *action)

	if action.Target == nil {
		return nil
	}

	ds, err := s.repository.findDistributionSet(ctx, action.DistributionSetID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to find distribution set of confirmed action", "actionId", action.ID, "error", err)
		return nil
	}

	err = s.publisher.Assign(ctx, dmf.Assignment{
		Target:   *action.Target,
		Action:   *action,
		Modules:  ds.Modules,
		Metadata: s.targetVisibleMetadata(ctx, ds),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish confirmed assignment", "actionId", action.ID, "error", err)
	}
	return nil
}

// CancelActionsOf cancels the active actions of the distribution set. Forced cancellations close
// the actions right away. The number of canceled actions is returned.
func (s service) CancelActionsOf(ctx context.Context, distributionSetID uint, force bool) (int, error) {
	actions, err := s.repository.findActiveActionsOfSet(ctx, distributionSetID)
	if err != nil {
		return 0, err
	}

	for i := range actions {
		action := &actions[i]
		if force {
			action.Status = model.ActionStatusCanceled
			action.Active = false
			err = s.repository.update(ctx, action, "Action canceled as its distribution set was invalidated")
		} else if action.Status != model.ActionStatusCanceling {
			action.Status = model.ActionStatusCanceling
			err = s.repository.update(ctx, action, "Cancellation requested as its distribution set was invalidated")
		}
		if err != nil {
			return i, err
		}
		s.notify(ctx, *action)

		if action.Target != nil {
			if err := s.publisher.CancelDownload(ctx, *action.Target, action.ID); err != nil {
				s.logger.ErrorContext(ctx, "Failed to publish cancellation", "actionId", action.ID, "error", err)
			}
		}
	}
	return len(actions), nil
}
