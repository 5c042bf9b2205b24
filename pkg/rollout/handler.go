package rollout

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service rolloutService, targets targetPageWriter) Handler {
	return Handler{service: service, targets: targets}
}

type rolloutService interface {
	Find(ctx context.Context, id uint) (*model.Rollout, error)
	FindAll(ctx context.Context, params query.Params) ([]model.Rollout, int64, error)
	Create(ctx context.Context, newRollout NewRollout) (*model.Rollout, error)
	Update(ctx context.Context, id uint, update Update) (*model.Rollout, error)
	Delete(ctx context.Context, id uint) error
	Approve(ctx context.Context, id uint, approval Approval) (*model.Rollout, error)
	Start(ctx context.Context, id uint) (*model.Rollout, error)
	Pause(ctx context.Context, id uint) (*model.Rollout, error)
	Resume(ctx context.Context, id uint) (*model.Rollout, error)
	Stop(ctx context.Context, id uint) (*model.Rollout, error)
	TriggerNextGroup(ctx context.Context, id uint) (*model.Rollout, error)
	Retry(ctx context.Context, id uint) (*model.Rollout, error)
	TotalTargetsPerStatus(ctx context.Context, rolloutID uint, groupID *uint, totalTargets int64) (map[string]int64, error)
	FindGroups(ctx context.Context, id uint, params query.Params) ([]model.RolloutGroup, int64, error)
	FindGroup(ctx context.Context, id, groupID uint) (*model.RolloutGroup, error)
	FindGroupTargets(ctx context.Context, id, groupID uint, params query.Params) ([]model.Target, int64, error)
}

// targetPageWriter renders targets the way the targets collection does.
type targetPageWriter interface {
	WritePage(c *gin.Context, targets []model.Target, total int64)
}

type Handler struct {
	service rolloutService
	targets targetPageWriter
}

type Response struct {
	ID                    uint             `json:"id"`
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	TargetFilterQuery     string           `json:"targetFilterQuery"`
	DistributionSetID     uint             `json:"distributionSetId"`
	Status                string           `json:"status"`
	Type                  string           `json:"type"`
	ForceTime             int64            `json:"forcetime,omitempty"`
	Weight                *int             `json:"weight,omitempty"`
	StartAt               *int64           `json:"startAt,omitempty"`
	Dynamic               bool             `json:"dynamic"`
	TotalTargets          int64            `json:"totalTargets"`
	TotalTargetsPerStatus map[string]int64 `json:"totalTargetsPerStatus,omitempty"`
	TotalGroups           int              `json:"totalGroups"`
	ApprovalRemark        string           `json:"approvalRemark,omitempty"`
	ApproveDecidedBy      string           `json:"approveDecidedBy,omitempty"`
	Deleted               bool             `json:"deleted"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func toResponse(c *gin.Context, rollout model.Rollout) Response {
	links := handler.SelfLink(c, "rollouts", rollout.ID)
	for _, relation := range []string{"start", "pause", "resume", "triggerNextGroup", "approve", "deny"} {
		links[relation] = handler.Link{Href: handler.Href(c, "rollouts", rollout.ID, relation)}
	}
	links["groups"] = handler.Link{Href: handler.Href(c, "rollouts", rollout.ID, "deploygroups") + "?offset=0&limit=50"}
	links["distributionset"] = handler.Link{Href: handler.Href(c, "distributionsets", rollout.DistributionSetID)}
	if rollout.DistributionSet != nil {
		links["distributionset"] = handler.Link{
			Href: handler.Href(c, "distributionsets", rollout.DistributionSetID),
			Name: rollout.DistributionSet.Name + ":" + rollout.DistributionSet.Version,
		}
	}

	return Response{
		ID:                rollout.ID,
		Name:              rollout.Name,
		Description:       rollout.Description,
		TargetFilterQuery: rollout.TargetFilterQuery,
		DistributionSetID: rollout.DistributionSetID,
		Status:            string(rollout.Status),
		Type:              string(rollout.Type),
		ForceTime:         rollout.ForceTime,
		Weight:            rollout.Weight,
		StartAt:           model.MillisPtr(rollout.StartAt),
		Dynamic:           rollout.Dynamic,
		TotalTargets:      rollout.TotalTargets,
		TotalGroups:       len(rollout.Groups),
		ApprovalRemark:    rollout.ApprovalRemark,
		ApproveDecidedBy:  rollout.ApprovalDecidedBy,
		Deleted:           rollout.Deleted,
		Audit:             handler.NewAudit(rollout.Base),
		Links:             links,
	}
}

// fullResponse adds the target counts per status to the response.
func (h Handler) fullResponse(c *gin.Context, rollout model.Rollout) (Response, error) {
	response := toResponse(c, rollout)
	totals, err := h.service.TotalTargetsPerStatus(c.Request.Context(), rollout.ID, nil, rollout.TotalTargets)
	if err != nil {
		return Response{}, err
	}
	response.TotalTargetsPerStatus = totals
	return response, nil
}

func (h Handler) respond(c *gin.Context, status int, rollout *model.Rollout) {
	response, err := h.fullResponse(c, *rollout)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(status, response)
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /rollouts findAllRollouts
	//
	// Find rollouts
	//
	// Find rollouts which are not deleted, paged and filterable by id, name, description, status and
	// distribution set. With representation=full the target counts per status are included.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: RolloutPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rollouts, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	full := strings.EqualFold(c.Query("representation"), "full")
	responses := make([]Response, 0, len(rollouts))
	for _, rollout := range rollouts {
		if !full {
			responses = append(responses, toResponse(c, rollout))
			continue
		}
		response, err := h.fullResponse(c, rollout)
		if err != nil {
			_ = c.Error(err)
			return
		}
		responses = append(responses, response)
	}

	c.JSON(http.StatusOK, handler.NewPagedList(responses, total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /rollouts/{rolloutId} findRollout
	//
	// Find rollout
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	rollout, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusOK, rollout)
}

type ConditionRequest struct {
	Condition  string `json:"condition" binding:"required,oneof=THRESHOLD"`
	Expression string `json:"expression"`
}

type ActionRequest struct {
	Action     string `json:"action" binding:"required,oneof=NEXTGROUP PAUSE"`
	Expression string `json:"expression"`
}

type ConditionsRequest struct {
	SuccessCondition *ConditionRequest `json:"successCondition"`
	SuccessAction    *ActionRequest    `json:"successAction"`
	ErrorCondition   *ConditionRequest `json:"errorCondition"`
	ErrorAction      *ActionRequest    `json:"errorAction"`
}

func (r ConditionsRequest) conditions() Conditions {
	var conditions Conditions
	if r.SuccessCondition != nil {
		conditions.SuccessCondition = &Trigger{Name: r.SuccessCondition.Condition, Expression: r.SuccessCondition.Expression}
	}
	if r.SuccessAction != nil {
		conditions.SuccessAction = &Trigger{Name: r.SuccessAction.Action, Expression: r.SuccessAction.Expression}
	}
	if r.ErrorCondition != nil {
		conditions.ErrorCondition = &Trigger{Name: r.ErrorCondition.Condition, Expression: r.ErrorCondition.Expression}
	}
	if r.ErrorAction != nil {
		conditions.ErrorAction = &Trigger{Name: r.ErrorAction.Action, Expression: r.ErrorAction.Expression}
	}
	return conditions
}

type GroupRequest struct {
	Name                 string  `json:"name" binding:"required,max=128"`
	Description          string  `json:"description" binding:"max=512"`
	TargetFilterQuery    string  `json:"targetFilterQuery" binding:"max=1024"`
	TargetPercentage     float64 `json:"targetPercentage"`
	ConfirmationRequired *bool   `json:"confirmationRequired"`
	ConditionsRequest
}

type CreateRequest struct {
	Name                 string         `json:"name" binding:"required,max=128"`
	Description          string         `json:"description" binding:"max=512"`
	TargetFilterQuery    string         `json:"targetFilterQuery" binding:"max=1024"`
	DistributionSetID    uint           `json:"distributionSetId" binding:"required"`
	AmountGroups         int            `json:"amountGroups"`
	Groups               []GroupRequest `json:"groups" binding:"dive"`
	Type                 string         `json:"type" binding:"omitempty,oneof=forced soft timeforced downloadonly"`
	ForceTime            int64          `json:"forcetime"`
	Weight               *int           `json:"weight" binding:"omitempty,min=0,max=1000"`
	StartAt              *int64         `json:"startAt"`
	Dynamic              bool           `json:"dynamic"`
	ConfirmationRequired *bool          `json:"confirmationRequired"`
	ConditionsRequest
}

func (r CreateRequest) newRollout() (NewRollout, error) {
	actionType, ok := model.ParseActionType(r.Type)
	if !ok {
		return NewRollout{}, errdef.NewBadRequest("invalid action type %q", r.Type)
	}

	newRollout := NewRollout{
		Name:                 r.Name,
		Description:          r.Description,
		TargetFilterQuery:    r.TargetFilterQuery,
		DistributionSetID:    r.DistributionSetID,
		Type:                 actionType,
		ForceTime:            r.ForceTime,
		Weight:               r.Weight,
		Dynamic:              r.Dynamic,
		AmountGroups:         r.AmountGroups,
		Conditions:           r.conditions(),
		ConfirmationRequired: r.ConfirmationRequired,
	}
	if r.StartAt != nil {
		startAt := time.UnixMilli(*r.StartAt)
		newRollout.StartAt = &startAt
	}
	for _, group := range r.Groups {
		newRollout.Groups = append(newRollout.Groups, NewGroup{
			Name:                 group.Name,
			Description:          group.Description,
			TargetFilterQuery:    group.TargetFilterQuery,
			TargetPercentage:     group.TargetPercentage,
			Conditions:           group.conditions(),
			ConfirmationRequired: group.ConfirmationRequired,
		})
	}
	return newRollout, nil
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /rollouts createRollout
	//
	// Create rollout
	//
	// Create a rollout of a distribution set to the targets matching the filter. The targets are
	// either split into amountGroups equally sized groups or into the given groups which take their
	// percentage of the targets not taken by a previous group.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	var request CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	newRollout, err := request.newRollout()
	if err != nil {
		_ = c.Error(err)
		return
	}

	rollout, err := h.service.Create(c.Request.Context(), newRollout)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusCreated, rollout)
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=512"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /rollouts/{rolloutId} updateRollout
	//
	// Update rollout
	//
	// Only name and description of a rollout can be changed.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	rollout, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusOK, rollout)
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /rollouts/{rolloutId} deleteRollout
	//
	// Delete rollout
	//
	// The rollout is stopped first. Rollouts which created actions are marked as deleted instead.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   204:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h Handler) approve(c *gin.Context, approved bool) {
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	rollout, err := h.service.Approve(c.Request.Context(), id, Approval{Approved: approved, Remark: c.Query("remark")})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusOK, rollout)
}

func (h Handler) Approve(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/approve approveRollout
	//
	// Approve rollout
	//
	// Approve a rollout waiting for approval. An optional remark is given as query parameter.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.approve(c, true)
}

func (h Handler) Deny(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/deny denyRollout
	//
	// Deny rollout
	//
	// Deny a rollout waiting for approval. An optional remark is given as query parameter.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.approve(c, false)
}

func (h Handler) handle(c *gin.Context, status int, f func(ctx context.Context, id uint) (*model.Rollout, error)) {
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	rollout, err := f(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, status, rollout)
}

func (h Handler) Start(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/start startRollout
	//
	// Start rollout
	//
	// Start a ready rollout. Its first group is started asynchronously.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.handle(c, http.StatusOK, h.service.Start)
}

func (h Handler) Pause(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/pause pauseRollout
	//
	// Pause rollout
	//
	// Pause a running rollout. Running actions are not affected but no further group is started.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.handle(c, http.StatusOK, h.service.Pause)
}

func (h Handler) Resume(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/resume resumeRollout
	//
	// Resume rollout
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.handle(c, http.StatusOK, h.service.Resume)
}

func (h Handler) Stop(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/stop stopRollout
	//
	// Stop rollout
	//
	// Stop a rollout and cancel its active actions.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.handle(c, http.StatusOK, h.service.Stop)
}

func (h Handler) TriggerNextGroup(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/triggerNextGroup triggerNextRolloutGroup
	//
	// Trigger next group
	//
	// Start the next scheduled group of a running rollout regardless of the success condition of
	// the running group.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.handle(c, http.StatusOK, h.service.TriggerNextGroup)
}

func (h Handler) Retry(c *gin.Context) {
	// swagger:route POST /rollouts/{rolloutId}/retry retryRollout
	//
	// Retry rollout
	//
	// Create a rollout named <name>_retry of the finished rollout's distribution set to the
	// targets its actions failed on.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: Rollout
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	h.handle(c, http.StatusCreated, h.service.Retry)
}

type TriggerResponse struct {
	Condition  string `json:"condition,omitempty"`
	Action     string `json:"action,omitempty"`
	Expression string `json:"expression"`
}

type GroupResponse struct {
	ID                    uint             `json:"id"`
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Status                string           `json:"status"`
	TargetPercentage      float64          `json:"targetPercentage"`
	TargetFilterQuery     string           `json:"targetFilterQuery"`
	TotalTargets          int64            `json:"totalTargets"`
	TotalTargetsPerStatus map[string]int64 `json:"totalTargetsPerStatus,omitempty"`
	SuccessCondition      *TriggerResponse `json:"successCondition"`
	SuccessAction         *TriggerResponse `json:"successAction"`
	ErrorCondition        *TriggerResponse `json:"errorCondition,omitempty"`
	ErrorAction           *TriggerResponse `json:"errorAction,omitempty"`
	ConfirmationRequired  bool             `json:"confirmationRequired"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func toGroupResponse(c *gin.Context, group model.RolloutGroup) GroupResponse {
	links := handler.SelfLink(c, "rollouts", group.RolloutID, "deploygroups", group.ID)
	links["targets"] = handler.Link{Href: handler.Href(c, "rollouts", group.RolloutID, "deploygroups", group.ID, "targets") + "?offset=0&limit=50"}
	links["rollout"] = handler.Link{Href: handler.Href(c, "rollouts", group.RolloutID)}

	response := GroupResponse{
		ID:                   group.ID,
		Name:                 group.Name,
		Description:          group.Description,
		Status:               string(group.Status),
		TargetPercentage:     group.TargetPercentage,
		TargetFilterQuery:    group.TargetFilterQuery,
		TotalTargets:         group.TotalTargets,
		SuccessCondition:     &TriggerResponse{Condition: group.SuccessCondition, Expression: group.SuccessConditionExp},
		SuccessAction:        &TriggerResponse{Action: group.SuccessAction, Expression: group.SuccessActionExp},
		ConfirmationRequired: group.ConfirmationRequired,
		Audit:                handler.NewAudit(group.Base),
		Links:                links,
	}
	if group.ErrorCondition != "" {
		response.ErrorCondition = &TriggerResponse{Condition: group.ErrorCondition, Expression: group.ErrorConditionExp}
		response.ErrorAction = &TriggerResponse{Action: group.ErrorAction, Expression: group.ErrorActionExp}
	}
	return response
}

func (h Handler) FindGroups(c *gin.Context) {
	// swagger:route GET /rollouts/{rolloutId}/deploygroups findRolloutGroups
	//
	// Find rollout groups
	//
	// Find the groups of a rollout, paged and filterable by id, name, description and status.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: RolloutGroupPage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	groups, total, err := h.service.FindGroups(c.Request.Context(), id, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, toGroupResponse(c, group))
	}
	c.JSON(http.StatusOK, handler.NewPagedList(responses, total))
}

func (h Handler) FindGroup(c *gin.Context) {
	// swagger:route GET /rollouts/{rolloutId}/deploygroups/{groupId} findRolloutGroup
	//
	// Find rollout group
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: RolloutGroup
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}
	groupID, ok := handler.GetPathParameter(c, "groupId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	group, err := h.service.FindGroup(ctx, id, groupID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	totals, err := h.service.TotalTargetsPerStatus(ctx, id, &group.ID, group.TotalTargets)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response := toGroupResponse(c, *group)
	response.TotalTargetsPerStatus = totals
	c.JSON(http.StatusOK, response)
}

func (h Handler) FindGroupTargets(c *gin.Context) {
	// swagger:route GET /rollouts/{rolloutId}/deploygroups/{groupId}/targets findRolloutGroupTargets
	//
	// Find targets of rollout group
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetPage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "rolloutId")
	if !ok {
		return
	}
	groupID, ok := handler.GetPathParameter(c, "groupId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	targets, total, err := h.service.FindGroupTargets(c.Request.Context(), id, groupID, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.targets.WritePage(c, targets, total)
}
