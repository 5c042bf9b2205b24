package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(
	logger *slog.Logger,
	repository rolloutRepository,
	distributionSetService distributionSetService,
	deploymentService deploymentService,
	tenantConfigService tenantConfigService,
) *service {
	return &service{
		logger:                 logger,
		repository:             repository,
		distributionSetService: distributionSetService,
		deploymentService:      deploymentService,
		tenantConfigService:    tenantConfigService,
		now:                    time.Now,
	}
}

type rolloutRepository interface {
	find(ctx context.Context, id uint) (*model.Rollout, error)
	findAll(ctx context.Context, params query.Params) ([]model.Rollout, int64, error)
	findByStatus(ctx context.Context, statuses ...model.RolloutStatus) ([]model.Rollout, error)
	findActiveOfDistributionSet(ctx context.Context, distributionSetID uint) ([]model.Rollout, error)
	tenants(ctx context.Context, statuses ...model.RolloutStatus) ([]string, error)
	findGroup(ctx context.Context, rolloutID, groupID uint) (*model.RolloutGroup, error)
	findGroups(ctx context.Context, rolloutID uint, params query.Params) ([]model.RolloutGroup, int64, error)
	findGroupTargets(ctx context.Context, groupID uint, params query.Params) ([]model.Target, int64, error)
	findGroupTargetIDs(ctx context.Context, groupID uint) ([]uint, error)
	findMatchingTargetIDs(ctx context.Context, filter string, distributionSetTypeID uint) ([]uint, error)
	create(ctx context.Context, rollout *model.Rollout, groupTargets [][]uint) error
	save(ctx context.Context, rollout *model.Rollout) error
	saveGroup(ctx context.Context, group *model.RolloutGroup) error
	countActions(ctx context.Context, rolloutID uint, groupID *uint) ([]statusCount, error)
	findActiveActionIDs(ctx context.Context, rolloutID uint) ([]uint, error)
	hasActions(ctx context.Context, rolloutID uint) (bool, error)
	delete(ctx context.Context, rollout *model.Rollout) error
}

type distributionSetService interface {
	Find(ctx context.Context, id uint) (*model.DistributionSet, error)
}

type deploymentService interface {
	Assign(ctx context.Context, requests []deployment.Request) (*deployment.Result, error)
	Cancel(ctx context.Context, actionID uint, force bool) (*model.Action, error)
}

type tenantConfigService interface {
	Bool(ctx context.Context, key string) (bool, error)
}

type service struct {
	logger                 *slog.Logger
	repository             rolloutRepository
	distributionSetService distributionSetService
	deploymentService      deploymentService
	tenantConfigService    tenantConfigService
	now                    func() time.Time
}

// finalStatuses are the statuses a rollout never leaves.
var finalStatuses = []model.RolloutStatus{
	model.RolloutStatusApprovalDenied,
	model.RolloutStatusStopped,
	model.RolloutStatusFinished,
	model.RolloutStatusDeleting,
	model.RolloutStatusDeleted,
}

func isFinal(status model.RolloutStatus) bool {
	for _, s := range finalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const (
	maxAmountGroups          = 500
	defaultSuccessThreshold  = "50"
	retrySuffix              = "_retry"
	failedRolloutFilterField = "failedrollout"
)

func (s service) Find(ctx context.Context, id uint) (*model.Rollout, error) {
	rollout, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rollout.Deleted {
		return nil, errdef.NewNotFound("rollout %d doesn't exist", id)
	}
	return rollout, nil
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.Rollout, int64, error) {
	return s.repository.findAll(ctx, params)
}

func (s service) FindGroups(ctx context.Context, id uint, params query.Params) ([]model.RolloutGroup, int64, error) {
	if _, err := s.Find(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.repository.findGroups(ctx, id, params)
}

func (s service) FindGroup(ctx context.Context, id, groupID uint) (*model.RolloutGroup, error) {
	if _, err := s.Find(ctx, id); err != nil {
		return nil, err
	}
	return s.repository.findGroup(ctx, id, groupID)
}

func (s service) FindGroupTargets(ctx context.Context, id, groupID uint, params query.Params) ([]model.Target, int64, error) {
	if _, err := s.FindGroup(ctx, id, groupID); err != nil {
		return nil, 0, err
	}
	return s.repository.findGroupTargets(ctx, groupID, params)
}

// Trigger is a condition or action of a rollout group together with its expression.
type Trigger struct {
	Name       string
	Expression string
}

// Conditions control when a rollout group continues with the next group or pauses the rollout.
type Conditions struct {
	SuccessCondition *Trigger
	SuccessAction    *Trigger
	ErrorCondition   *Trigger
	ErrorAction      *Trigger
}

// withDefaults returns c with the defaults of fallback applied and the success condition
// defaulting to continue with the next group once half of the targets finished.
func (c Conditions) withDefaults(fallback Conditions) Conditions {
	if c.SuccessCondition == nil {
		c.SuccessCondition = fallback.SuccessCondition
	}
	if c.SuccessAction == nil {
		c.SuccessAction = fallback.SuccessAction
	}
	if c.ErrorCondition == nil {
		c.ErrorCondition = fallback.ErrorCondition
	}
	if c.ErrorAction == nil {
		c.ErrorAction = fallback.ErrorAction
	}
	if c.SuccessCondition == nil {
		c.SuccessCondition = &Trigger{Name: model.ConditionThreshold, Expression: defaultSuccessThreshold}
	}
	if c.SuccessAction == nil {
		c.SuccessAction = &Trigger{Name: model.ActionNextGroup}
	}
	if c.ErrorCondition != nil && c.ErrorAction == nil {
		c.ErrorAction = &Trigger{Name: model.ActionPause}
	}
	return c
}

func (c Conditions) validate() error {
	if err := validateThreshold("success condition", c.SuccessCondition); err != nil {
		return err
	}
	if c.SuccessAction.Name != model.ActionNextGroup && c.SuccessAction.Name != model.ActionPause {
		return errdef.NewBadRequest("success action must be one of %s, %s", model.ActionNextGroup, model.ActionPause)
	}
	if c.ErrorCondition == nil {
		return nil
	}
	if err := validateThreshold("error condition", c.ErrorCondition); err != nil {
		return err
	}
	if c.ErrorAction.Name != model.ActionPause {
		return errdef.NewBadRequest("error action must be %s", model.ActionPause)
	}
	return nil
}

func validateThreshold(name string, trigger *Trigger) error {
	if trigger.Name != model.ConditionThreshold {
		return errdef.NewBadRequest("%s must be %s", name, model.ConditionThreshold)
	}
	if _, err := threshold(trigger.Expression); err != nil {
		return errdef.NewBadRequest("%s: %v", name, err)
	}
	return nil
}

func threshold(expression string) (float64, error) {
	value, err := strconv.ParseFloat(expression, 64)
	if err != nil || value < 0 || value > 100 {
		return 0, fmt.Errorf("threshold %q must be a percentage between 0 and 100", expression)
	}
	return value, nil
}

func (c Conditions) apply(group *model.RolloutGroup) {
	group.SuccessCondition = c.SuccessCondition.Name
	group.SuccessConditionExp = c.SuccessCondition.Expression
	group.SuccessAction = c.SuccessAction.Name
	group.SuccessActionExp = c.SuccessAction.Expression
	if c.ErrorCondition != nil {
		group.ErrorCondition = c.ErrorCondition.Name
		group.ErrorConditionExp = c.ErrorCondition.Expression
		group.ErrorAction = c.ErrorAction.Name
		group.ErrorActionExp = c.ErrorAction.Expression
	}
}

// NewGroup is an explicitly defined group of a rollout.
type NewGroup struct {
	Name                 string
	Description          string
	TargetFilterQuery    string
	TargetPercentage     float64
	Conditions           Conditions
	ConfirmationRequired *bool
}

// NewRollout is a rollout to create. Its targets are either split into AmountGroups equally sized
// groups or into the given Groups.
type NewRollout struct {
	Name                 string
	Description          string
	TargetFilterQuery    string
	DistributionSetID    uint
	Type                 model.ActionType
	ForceTime            int64
	Weight               *int
	StartAt              *time.Time
	Dynamic              bool
	AmountGroups         int
	Groups               []NewGroup
	Conditions           Conditions
	ConfirmationRequired *bool
}

func (n NewRollout) validate() error {
	if n.Name == "" {
		return errdef.NewBadRequest("rollout name is required")
	}
	if n.TargetFilterQuery == "" {
		return errdef.NewBadRequest("rollout requires a target filter query")
	}
	if _, _, err := query.Where(n.TargetFilterQuery, query.TargetFields); err != nil {
		return err
	}
	if n.Type == model.ActionTypeTimeForced && n.ForceTime <= 0 {
		return errdef.NewBadRequest("timeforced rollouts require a forcetime")
	}
	if n.Weight != nil && (*n.Weight < 0 || *n.Weight > 1000) {
		return errdef.NewBadRequest("weight must be between 0 and 1000")
	}

	if (n.AmountGroups == 0) == (len(n.Groups) == 0) {
		return errdef.NewBadRequest("either amountGroups or groups must be given")
	}
	if n.AmountGroups < 0 || n.AmountGroups > maxAmountGroups || len(n.Groups) > maxAmountGroups {
		return errdef.NewBadRequest("a rollout must have between 1 and %d groups", maxAmountGroups)
	}
	for i, group := range n.Groups {
		if group.TargetPercentage <= 0 || group.TargetPercentage > 100 {
			return errdef.NewBadRequest("target percentage of group %d must be greater than 0 and at most 100", i+1)
		}
		if group.TargetFilterQuery != "" {
			if _, _, err := query.Where(group.TargetFilterQuery, query.TargetFields); err != nil {
				return err
			}
		}
	}
	return nil
}

// groups returns the groups of the rollout, defining amountGroups equally sized ones if no groups
// were given.
func (n NewRollout) groups() []NewGroup {
	if len(n.Groups) > 0 {
		return n.Groups
	}

	groups := make([]NewGroup, 0, n.AmountGroups)
	for i := 0; i < n.AmountGroups; i++ {
		groups = append(groups, NewGroup{
			Name:             fmt.Sprintf("group-%d", i+1),
			TargetPercentage: 100 / float64(n.AmountGroups-i),
		})
	}
	return groups
}

// Create creates the rollout and splits the targets matching its filter into its groups. Targets
// of a type the distribution set is incompatible with are left out.
func (s service) Create(ctx context.Context, newRollout NewRollout) (*model.Rollout, error) {
	if newRollout.Type == "" {
		newRollout.Type = model.ActionTypeForced
	}
	if err := newRollout.validate(); err != nil {
		return nil, err
	}

	ds, err := s.distributionSetService.Find(ctx, newRollout.DistributionSetID)
	if err != nil {
		return nil, err
	}
	if !ds.Assignable() {
		return nil, errdef.NewBadRequest("distribution set %d is incomplete, invalid or deleted and can't be rolled out", ds.ID)
	}

	rolloutConditions := newRollout.Conditions.withDefaults(Conditions{})
	if err := rolloutConditions.validate(); err != nil {
		return nil, err
	}

	matching, err := s.repository.findMatchingTargetIDs(ctx, newRollout.TargetFilterQuery, ds.TypeID)
	if err != nil {
		return nil, err
	}
	if len(matching) == 0 {
		return nil, errdef.NewBadRequest("no targets match the filter %q", newRollout.TargetFilterQuery)
	}

	rollout := &model.Rollout{
		Name:              newRollout.Name,
		Description:       newRollout.Description,
		TargetFilterQuery: newRollout.TargetFilterQuery,
		DistributionSetID: ds.ID,
		Status:            model.RolloutStatusCreating,
		Type:              newRollout.Type,
		ForceTime:         newRollout.ForceTime,
		Weight:            newRollout.Weight,
		StartAt:           newRollout.StartAt,
		Dynamic:           newRollout.Dynamic,
	}

	taken := make(map[uint]bool, len(matching))
	var groupTargets [][]uint
	for i, newGroup := range newRollout.groups() {
		conditions := newGroup.Conditions.withDefaults(rolloutConditions)
		if err := conditions.validate(); err != nil {
			return nil, err
		}

		candidates := matching
		if newGroup.TargetFilterQuery != "" {
			filter := "(" + newRollout.TargetFilterQuery + ");(" + newGroup.TargetFilterQuery + ")"
			candidates, err = s.repository.findMatchingTargetIDs(ctx, filter, ds.TypeID)
			if err != nil {
				return nil, err
			}
		}
		targets := takeTargets(candidates, taken, newGroup.TargetPercentage)

		name := newGroup.Name
		if name == "" {
			name = fmt.Sprintf("group-%d", i+1)
		}
		confirmationRequired := newGroup.ConfirmationRequired
		if confirmationRequired == nil {
			confirmationRequired = newRollout.ConfirmationRequired
		}

		group := model.RolloutGroup{
			Name:                 name,
			Description:          newGroup.Description,
			Status:               model.RolloutGroupStatusReady,
			TargetPercentage:     newGroup.TargetPercentage,
			TargetFilterQuery:    newGroup.TargetFilterQuery,
			TotalTargets:         int64(len(targets)),
			ConfirmationRequired: confirmationRequired == nil || *confirmationRequired,
		}
		conditions.apply(&group)

		rollout.Groups = append(rollout.Groups, group)
		groupTargets = append(groupTargets, targets)
		rollout.TotalTargets += group.TotalTargets
	}

	if rollout.TotalTargets < int64(len(matching)) {
		return nil, errdef.NewBadRequest("the groups only contain %d of the %d targets matching the filter", rollout.TotalTargets, len(matching))
	}

	approval, err := s.tenantConfigService.Bool(ctx, tenantconfig.RolloutApprovalEnabled)
	if err != nil {
		return nil, err
	}
	rollout.Status = model.RolloutStatusReady
	if approval {
		rollout.Status = model.RolloutStatusWaitingForApproval
	}

	err = s.repository.create(ctx, rollout, groupTargets)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Created rollout", "rolloutId", rollout.ID, "groups", len(rollout.Groups), "targets", rollout.TotalTargets)
	return s.repository.find(ctx, rollout.ID)
}

// takeTargets takes percentage of the candidates not taken by a previous group. The result keeps
// the order of candidates.
func takeTargets(candidates []uint, taken map[uint]bool, percentage float64) []uint {
	available := make([]uint, 0, len(candidates))
	for _, id := range candidates {
		if !taken[id] {
			available = append(available, id)
		}
	}

	size := int(math.Ceil(float64(len(available)) * percentage / 100))
	if size > len(available) {
		size = len(available)
	}
	for _, id := range available[:size] {
		taken[id] = true
	}
	return available[:size]
}

type Update struct {
	Name        *string
	Description *string
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, errdef.NewBadRequest("rollout name is required")
		}
		rollout.Name = *update.Name
	}
	if update.Description != nil {
		rollout.Description = *update.Description
	}

	err = s.repository.save(ctx, rollout)
	if err != nil {
		return nil, err
	}
	return rollout, nil
}

// Delete stops the rollout and deletes it. Rollouts which created actions are only marked deleted.
func (s service) Delete(ctx context.Context, id uint) error {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return err
	}

	if !isFinal(rollout.Status) {
		if err := s.stop(ctx, rollout); err != nil {
			return err
		}
	}

	hasActions, err := s.repository.hasActions(ctx, id)
	if err != nil {
		return err
	}
	if !hasActions {
		return s.repository.delete(ctx, rollout)
	}

	rollout.Status = model.RolloutStatusDeleted
	rollout.Deleted = true
	return s.repository.save(ctx, rollout)
}

func (s service) transition(ctx context.Context, id uint, from, to model.RolloutStatus) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rollout.Status != from {
		return nil, errdef.NewBadRequest("rollout %d must be %s but is %s", id, from, rollout.Status)
	}

	rollout.Status = to
	err = s.repository.save(ctx, rollout)
	if err != nil {
		return nil, err
	}
	return rollout, nil
}

// Approval is the decision on a rollout waiting for approval.
type Approval struct {
	Approved bool
	Remark   string
}

func (s service) Approve(ctx context.Context, id uint, approval Approval) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rollout.Status != model.RolloutStatusWaitingForApproval {
		return nil, errdef.NewBadRequest("rollout %d isn't waiting for approval", id)
	}

	rollout.Status = model.RolloutStatusApprovalDenied
	if approval.Approved {
		rollout.Status = model.RolloutStatusReady
	}
	rollout.ApprovalRemark = approval.Remark
	if user, ok := model.GetUserFromContext(ctx); ok {
		rollout.ApprovalDecidedBy = user.Username
	}

	err = s.repository.save(ctx, rollout)
	if err != nil {
		return nil, err
	}
	return rollout, nil
}

// Start marks a ready rollout to be started. Its first group is started by the executor.
func (s service) Start(ctx context.Context, id uint) (*model.Rollout, error) {
	return s.transition(ctx, id, model.RolloutStatusReady, model.RolloutStatusStarting)
}

func (s service) Pause(ctx context.Context, id uint) (*model.Rollout, error) {
	return s.transition(ctx, id, model.RolloutStatusRunning, model.RolloutStatusPaused)
}

// Resume continues a paused rollout. A group which paused the rollout on success starts its
// successor.
func (s service) Resume(ctx context.Context, id uint) (*model.Rollout, error) {
	rollout, err := s.transition(ctx, id, model.RolloutStatusPaused, model.RolloutStatusRunning)
	if err != nil {
		return nil, err
	}

	for i, group := range rollout.Groups {
		if group.SuccessAction != model.ActionPause || !isStarted(group.Status) {
			continue
		}
		next := successor(rollout, i)
		if next == nil {
			continue
		}
		progress, err := s.progress(ctx, rollout.ID, group.ID)
		if err != nil {
			return nil, err
		}
		if progress.succeeded(group) {
			if err := s.startGroup(ctx, rollout, next); err != nil {
				return nil, err
			}
		}
	}
	return s.repository.find(ctx, id)
}

// TriggerNextGroup starts the next scheduled group of a running rollout regardless of the
// conditions of the running groups.
func (s service) TriggerNextGroup(ctx context.Context, id uint) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rollout.Status != model.RolloutStatusRunning {
		return nil, errdef.NewBadRequest("rollout %d must be running but is %s", id, rollout.Status)
	}

	next := firstScheduled(rollout)
	if next == nil {
		return nil, errdef.NewBadRequest("rollout %d has no scheduled group left", id)
	}

	err = s.startGroup(ctx, rollout, next)
	if err != nil {
		return nil, err
	}
	return s.repository.find(ctx, id)
}

// Stop cancels the active actions of the rollout and stops it.
func (s service) Stop(ctx context.Context, id uint) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if isFinal(rollout.Status) {
		return nil, errdef.NewBadRequest("rollout %d is %s and can't be stopped", id, rollout.Status)
	}

	err = s.stop(ctx, rollout)
	if err != nil {
		return nil, err
	}
	return rollout, nil
}

func (s service) stop(ctx context.Context, rollout *model.Rollout) error {
	ids, err := s.repository.findActiveActionIDs(ctx, rollout.ID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, err := s.deploymentService.Cancel(ctx, id, false)
		if err != nil && !errdef.IsBadRequest(err) {
			return err
		}
	}

	for i := range rollout.Groups {
		group := &rollout.Groups[i]
		if group.Status == model.RolloutGroupStatusFinished || group.Status == model.RolloutGroupStatusError {
			continue
		}
		group.Status = model.RolloutGroupStatusFinished
		if err := s.repository.saveGroup(ctx, group); err != nil {
			return err
		}
	}

	rollout.Status = model.RolloutStatusStopped
	err = s.repository.save(ctx, rollout)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Stopped rollout", "rolloutId", rollout.ID, "canceledActions", len(ids))
	return nil
}

// StopAll stops the rollouts of the distribution set which aren't final yet.
func (s service) StopAll(ctx context.Context, distributionSetID uint) (int, error) {
	rollouts, err := s.repository.findActiveOfDistributionSet(ctx, distributionSetID)
	if err != nil {
		return 0, err
	}

	for i := range rollouts {
		if err := s.stop(ctx, &rollouts[i]); err != nil {
			return 0, err
		}
	}
	return len(rollouts), nil
}

// Retry creates a rollout of the same distribution set over the targets the finished rollout
// failed on.
func (s service) Retry(ctx context.Context, id uint) (*model.Rollout, error) {
	rollout, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rollout.Status != model.RolloutStatusFinished {
		return nil, errdef.NewBadRequest("only finished rollouts can be retried but rollout %d is %s", id, rollout.Status)
	}

	return s.Create(ctx, NewRollout{
		Name:              rollout.Name + retrySuffix,
		Description:       rollout.Description,
		TargetFilterQuery: fmt.Sprintf("%s==%d", failedRolloutFilterField, rollout.ID),
		DistributionSetID: rollout.DistributionSetID,
		Type:              rollout.Type,
		ForceTime:         rollout.ForceTime,
		Weight:            rollout.Weight,
		AmountGroups:      1,
	})
}

// Target counts of a rollout or group by the status of their actions.
const (
	TargetsRunning    = "running"
	TargetsNotStarted = "notstarted"
	TargetsScheduled  = "scheduled"
	TargetsCancelled  = "cancelled"
	TargetsFinished   = "finished"
	TargetsError      = "error"
)

// TotalTargetsPerStatus counts the targets of the rollout, or of one of its groups if groupID
// isn't nil, by the status of their action. Targets without an action are not started.
func (s service) TotalTargetsPerStatus(ctx context.Context, rolloutID uint, groupID *uint, totalTargets int64) (map[string]int64, error) {
	counts, err := s.repository.countActions(ctx, rolloutID, groupID)
	if err != nil {
		return nil, err
	}

	totals := map[string]int64{
		TargetsRunning:    0,
		TargetsNotStarted: 0,
		TargetsScheduled:  0,
		TargetsCancelled:  0,
		TargetsFinished:   0,
		TargetsError:      0,
	}
	var actions int64
	for _, count := range counts {
		actions += count.Count
		switch {
		case count.Status == model.ActionStatusFinished:
			totals[TargetsFinished] += count.Count
		case count.Status == model.ActionStatusError:
			totals[TargetsError] += count.Count
		case count.Status == model.ActionStatusScheduled && !count.Active:
			totals[TargetsScheduled] += count.Count
		case count.Active:
			totals[TargetsRunning] += count.Count
		default:
			totals[TargetsCancelled] += count.Count
		}
	}
	if totalTargets > actions {
		totals[TargetsNotStarted] = totalTargets - actions
	}
	return totals, nil
}

// groupProgress counts the actions of a started group.
type groupProgress struct {
	total    int64
	active   int64
	finished int64
	errored  int64
}

func (s service) progress(ctx context.Context, rolloutID, groupID uint) (groupProgress, error) {
	counts, err := s.repository.countActions(ctx, rolloutID, &groupID)
	if err != nil {
		return groupProgress{}, err
	}

	var progress groupProgress
	for _, count := range counts {
		progress.total += count.Count
		if count.Active {
			progress.active += count.Count
		}
		switch count.Status {
		case model.ActionStatusFinished:
			progress.finished += count.Count
		case model.ActionStatusError:
			progress.errored += count.Count
		}
	}
	return progress, nil
}

// succeeded returns true if the share of finished actions reached the success threshold of the
// group. Groups without actions succeed immediately.
func (p groupProgress) succeeded(group model.RolloutGroup) bool {
	if p.total == 0 {
		return true
	}
	value, err := threshold(group.SuccessConditionExp)
	if err != nil {
		return false
	}
	return float64(p.finished)*100/float64(p.total) >= value
}

// failed returns true if the share of errored actions exceeds the error threshold of the group.
func (p groupProgress) failed(group model.RolloutGroup) bool {
	if group.ErrorCondition == "" || p.total == 0 {
		return false
	}
	value, err := threshold(group.ErrorConditionExp)
	if err != nil {
		return false
	}
	return float64(p.errored)*100/float64(p.total) > value
}

func isStarted(status model.RolloutGroupStatus) bool {
	return status == model.RolloutGroupStatusRunning || status == model.RolloutGroupStatusFinished || status == model.RolloutGroupStatusError
}

func firstScheduled(rollout *model.Rollout) *model.RolloutGroup {
	for i := range rollout.Groups {
		if rollout.Groups[i].Status == model.RolloutGroupStatusScheduled {
			return &rollout.Groups[i]
		}
	}
	return nil
}

// successor returns the group following the group at index i if it is still scheduled.
func successor(rollout *model.Rollout, i int) *model.RolloutGroup {
	if i+1 >= len(rollout.Groups) || rollout.Groups[i+1].Status != model.RolloutGroupStatusScheduled {
		return nil
	}
	return &rollout.Groups[i+1]
}

// startGroup creates the actions of the group's targets.
func (s service) startGroup(ctx context.Context, rollout *model.Rollout, group *model.RolloutGroup) error {
	targetIDs, err := s.repository.findGroupTargetIDs(ctx, group.ID)
	if err != nil {
		return err
	}

	if len(targetIDs) > 0 {
		requests := make([]deployment.Request, 0, len(targetIDs))
		for _, targetID := range targetIDs {
			confirmationRequired := group.ConfirmationRequired
			requests = append(requests, deployment.Request{
				TargetID:             targetID,
				DistributionSetID:    rollout.DistributionSetID,
				Type:                 rollout.Type,
				ForceTime:            rollout.ForceTime,
				Weight:               rollout.Weight,
				ConfirmationRequired: &confirmationRequired,
				RolloutID:            &rollout.ID,
				RolloutGroupID:       &group.ID,
			})
		}
		result, err := s.deploymentService.Assign(ctx, requests)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "Started rollout group", "rolloutId", rollout.ID, "groupId", group.ID, "assigned", result.Assigned, "alreadyAssigned", result.AlreadyAssigned)
	}

	group.Status = model.RolloutGroupStatusRunning
	return s.repository.saveGroup(ctx, group)
}
