package target

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/action"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/distributionset"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/tag"
	"github.com/gin-gonic/gin"
)

func NewHandler(service targetService) Handler {
	return Handler{service: service}
}

type targetService interface {
	Find(ctx context.Context, controllerID string) (*model.Target, error)
	FindAll(ctx context.Context, params query.Params) ([]model.Target, int64, error)
	FindAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.Target, int64, error)
	FindAllByDistributionSet(ctx context.Context, distributionSetID uint, installed bool, params query.Params) ([]model.Target, int64, error)
	Create(ctx context.Context, newTargets []NewTarget) ([]model.Target, error)
	Update(ctx context.Context, controllerID string, update Update) (*model.Target, error)
	Delete(ctx context.Context, controllerID string) error
	AssignType(ctx context.Context, controllerID string, targetTypeID uint) (*model.Target, error)
	UnassignType(ctx context.Context, controllerID string) (*model.Target, error)
	FindTags(ctx context.Context, controllerID string) ([]model.Tag, error)
	AssignTag(ctx context.Context, tagID uint, controllerIDs ...string) error
	UnassignTag(ctx context.Context, tagID uint, controllerIDs ...string) error
	FindDistributionSet(ctx context.Context, controllerID string, installed bool) (*model.DistributionSet, error)
	Assign(ctx context.Context, assignments []Assignment, offline bool) (*deployment.Result, error)
	ConfirmationFlowEnabled(ctx context.Context) (bool, error)
	PollingTimes(ctx context.Context) (time.Duration, time.Duration, error)
	ActivateAutoConfirm(ctx context.Context, controllerID, initiator, remark string) (*model.Target, error)
	DeactivateAutoConfirm(ctx context.Context, controllerID string) error
}

type Handler struct {
	service targetService
}

// ResolveTarget resolves the target of the request path for its metadata.
func (h Handler) ResolveTarget(c *gin.Context) (uint, bool) {
	target, err := h.service.Find(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return 0, false
	}
	return target.ID, true
}

type PollStatus struct {
	LastRequestAt         int64 `json:"lastRequestAt"`
	NextExpectedRequestAt int64 `json:"nextExpectedRequestAt"`
	Overdue               bool  `json:"overdue"`
}

type Response struct {
	ControllerID            string      `json:"controllerId"`
	Name                    string      `json:"name"`
	Description             string      `json:"description"`
	Address                 string      `json:"address,omitempty"`
	IPAddress               string      `json:"ipAddress,omitempty"`
	SecurityToken           string      `json:"securityToken"`
	RequestAttributes       bool        `json:"requestAttributes"`
	UpdateStatus            string      `json:"updateStatus"`
	InstalledAt             *int64      `json:"installedAt,omitempty"`
	LastControllerRequestAt *int64      `json:"lastControllerRequestAt,omitempty"`
	PollStatus              *PollStatus `json:"pollStatus,omitempty"`
	TargetType              *uint       `json:"targetType,omitempty"`
	TargetTypeName          string      `json:"targetTypeName,omitempty"`
	Group                   string      `json:"group,omitempty"`
	AutoConfirmActive       *bool       `json:"autoConfirmActive,omitempty"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

// view holds the tenant settings shaping target responses.
type view struct {
	pollingInterval  time.Duration
	pollingOverdue   time.Duration
	confirmationFlow bool
	now              time.Time
}

func (h Handler) view(c *gin.Context) (view, bool) {
	ctx := c.Request.Context()
	interval, overdue, err := h.service.PollingTimes(ctx)
	if err != nil {
		_ = c.Error(err)
		return view{}, false
	}

	confirmationFlow, err := h.service.ConfirmationFlowEnabled(ctx)
	if err != nil {
		_ = c.Error(err)
		return view{}, false
	}

	return view{
		pollingInterval:  interval,
		pollingOverdue:   overdue,
		confirmationFlow: confirmationFlow,
		now:              time.Now(),
	}, true
}

// pollStatus is nil for targets which never polled.
func (v view) pollStatus(target model.Target) *PollStatus {
	if target.LastControllerRequestAt == nil {
		return nil
	}

	last := *target.LastControllerRequestAt
	next := last.Add(v.pollingInterval)
	return &PollStatus{
		LastRequestAt:         model.Millis(last),
		NextExpectedRequestAt: model.Millis(next),
		Overdue:               v.now.After(next.Add(v.pollingOverdue)),
	}
}

func ipAddress(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (v view) toResponse(c *gin.Context, target model.Target) Response {
	links := handler.SelfLink(c, "targets", target.ControllerID)
	links["assignedDS"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "assignedDS")}
	links["installedDS"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "installedDS")}
	links["attributes"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "attributes")}
	links["actions"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "actions") + "?offset=0&limit=50&sort=id:DESC"}
	links["metadata"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "metadata") + "?offset=0&limit=50"}
	links["autoConfirm"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "autoConfirm")}

	response := Response{
		ControllerID:            target.ControllerID,
		Name:                    target.Name,
		Description:             target.Description,
		Address:                 target.Address,
		IPAddress:               ipAddress(target.Address),
		SecurityToken:           target.SecurityToken,
		RequestAttributes:       target.RequestAttributes,
		UpdateStatus:            string(target.UpdateStatus),
		InstalledAt:             model.MillisPtr(target.InstalledAt),
		LastControllerRequestAt: model.MillisPtr(target.LastControllerRequestAt),
		PollStatus:              v.pollStatus(target),
		TargetType:              target.TargetTypeID,
		Group:                   target.Group,
		Audit:                   handler.NewAudit(target.Base),
		Links:                   links,
	}
	if target.TargetType != nil {
		response.TargetTypeName = target.TargetType.Name
		links["targetType"] = handler.Link{Href: handler.Href(c, "targettypes", target.TargetType.ID), Name: target.TargetType.Name}
	}
	if v.confirmationFlow {
		active := target.AutoConfirmActive()
		response.AutoConfirmActive = &active
	}
	return response
}

func (v view) toResponses(c *gin.Context, targets []model.Target) []Response {
	responses := make([]Response, 0, len(targets))
	for _, target := range targets {
		responses = append(responses, v.toResponse(c, target))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /targets findAllTargets
	//
	// Find targets
	//
	// Find targets paged and filterable by controller id, name, description, update status, address,
	// tags, target type, assigned and installed distribution set, attributes and metadata.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.page(c, func(ctx context.Context) ([]model.Target, int64, error) {
		return h.service.FindAll(ctx, params)
	})
}

func (h Handler) page(c *gin.Context, find func(ctx context.Context) ([]model.Target, int64, error)) {
	targets, total, err := find(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	v, ok := h.view(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(v.toResponses(c, targets), total))
}

// WritePage responds with a page of targets found through another collection like a rollout group.
func (h Handler) WritePage(c *gin.Context, targets []model.Target, total int64) {
	h.page(c, func(context.Context) ([]model.Target, int64, error) {
		return targets, total, nil
	})
}

func (h Handler) respond(c *gin.Context, status int, target model.Target) {
	v, ok := h.view(c)
	if !ok {
		return
	}

	c.JSON(status, v.toResponse(c, target))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /targets/{targetId} findTarget
	//
	// Find target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Target
	//   401: Error
	//   403: Error
	//   404: Error
	target, err := h.service.Find(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusOK, *target)
}

type CreateRequest struct {
	ControllerID  string `json:"controllerId" binding:"required,max=256,controllerId"`
	Name          string `json:"name" binding:"max=128"`
	Description   string `json:"description" binding:"max=512"`
	Address       string `json:"address" binding:"max=512"`
	SecurityToken string `json:"securityToken" binding:"max=128"`
	Group         string `json:"group" binding:"max=256"`
	TargetType    *uint  `json:"targetType"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /targets createTargets
	//
	// Create targets
	//
	// Create one or more targets. A security token is generated for targets created without one.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: TargetList
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	var request []CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	newTargets := make([]NewTarget, 0, len(request))
	for _, r := range request {
		newTargets = append(newTargets, NewTarget{
			Target: model.Target{
				ControllerID:  r.ControllerID,
				Name:          r.Name,
				Description:   r.Description,
				Address:       r.Address,
				SecurityToken: r.SecurityToken,
				Group:         r.Group,
			},
			TargetTypeID: r.TargetType,
		})
	}

	targets, err := h.service.Create(c.Request.Context(), newTargets)
	if err != nil {
		_ = c.Error(err)
		return
	}

	v, ok := h.view(c)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, v.toResponses(c, targets))
}

type UpdateRequest struct {
	Name              *string `json:"name" binding:"omitempty,min=1,max=128"`
	Description       *string `json:"description" binding:"omitempty,max=512"`
	Address           *string `json:"address" binding:"omitempty,max=512"`
	SecurityToken     *string `json:"securityToken" binding:"omitempty,max=128"`
	RequestAttributes *bool   `json:"requestAttributes"`
	// TargetType -1 removes the type of the target
	TargetType *int64 `json:"targetType"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /targets/{targetId} updateTarget
	//
	// Update target
	//
	// Fields missing from the request are left unchanged. A targetType of -1 removes the type of the
	// target. requestAttributes can only be set to true which asks the target to report its
	// attributes.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Target
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	target, err := h.service.Update(c.Request.Context(), c.Param("targetId"), Update{
		Name:              request.Name,
		Description:       request.Description,
		Address:           request.Address,
		SecurityToken:     request.SecurityToken,
		RequestAttributes: request.RequestAttributes,
		TargetTypeID:      request.TargetType,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respond(c, http.StatusOK, *target)
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /targets/{targetId} deleteTarget
	//
	// Delete target
	//
	// Delete the target including its actions and metadata.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   401: Error
	//   403: Error
	//   404: Error
	err := h.service.Delete(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

type TargetTypeReference struct {
	ID uint `json:"id" binding:"required"`
}

func (h Handler) AssignType(c *gin.Context) {
	// swagger:route POST /targets/{targetId}/targettype assignTargetType
	//
	// Assign target type
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	var request TargetTypeReference
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	_, err := h.service.AssignType(c.Request.Context(), c.Param("targetId"), request.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) UnassignType(c *gin.Context) {
	// swagger:route DELETE /targets/{targetId}/targettype unassignTargetType
	//
	// Unassign target type
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   401: Error
	//   403: Error
	//   404: Error
	_, err := h.service.UnassignType(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) FindAttributes(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/attributes findTargetAttributes
	//
	// Find target attributes
	//
	// Find the attributes last reported by the target.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetAttributes
	//   204:
	//   401: Error
	//   403: Error
	//   404: Error
	target, err := h.service.Find(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if len(target.Attributes) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, target.Attributes)
}

func (h Handler) FindTags(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/tags findTargetTags
	//
	// Find tags of target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TagList
	//   401: Error
	//   403: Error
	//   404: Error
	tags, err := h.service.FindTags(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tag.ToResponses(c, tags))
}

func (h Handler) findDistributionSet(c *gin.Context, installed bool) {
	ds, err := h.service.FindDistributionSet(c.Request.Context(), c.Param("targetId"), installed)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if ds == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, distributionset.ToResponse(c, *ds))
}

func (h Handler) FindAssignedDistributionSet(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/assignedDS findAssignedDistributionSet
	//
	// Find assigned distribution set
	//
	// Find the distribution set last assigned to the target.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSet
	//   204:
	//   401: Error
	//   403: Error
	//   404: Error
	h.findDistributionSet(c, false)
}

func (h Handler) FindInstalledDistributionSet(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/installedDS findInstalledDistributionSet
	//
	// Find installed distribution set
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSet
	//   204:
	//   401: Error
	//   403: Error
	//   404: Error
	h.findDistributionSet(c, true)
}

// AssignmentRequest assigns the distribution set with given id to a target.
type AssignmentRequest struct {
	ID                   uint                      `json:"id" binding:"required"`
	Type                 string                    `json:"type" binding:"omitempty,oneof=forced soft timeforced downloadonly"`
	ForceTime            int64                     `json:"forcetime"`
	Weight               *int                      `json:"weight" binding:"omitempty,min=0,max=1000"`
	ConfirmationRequired *bool                     `json:"confirmationRequired"`
	MaintenanceWindow    *action.MaintenanceWindow `json:"maintenanceWindow"`
}

func (r AssignmentRequest) request() (deployment.Request, error) {
	actionType, ok := model.ParseActionType(r.Type)
	if !ok {
		return deployment.Request{}, errdef.NewBadRequest("invalid action type %q", r.Type)
	}

	request := deployment.Request{
		DistributionSetID:    r.ID,
		Type:                 actionType,
		ForceTime:            r.ForceTime,
		Weight:               r.Weight,
		ConfirmationRequired: r.ConfirmationRequired,
	}
	if r.MaintenanceWindow != nil {
		request.Maintenance = deployment.Maintenance(*r.MaintenanceWindow)
	}
	return request, nil
}

// TargetAssignmentRequest assigns a distribution set to the target with controller id ID.
type TargetAssignmentRequest struct {
	ID                   string                    `json:"id" binding:"required"`
	Type                 string                    `json:"type" binding:"omitempty,oneof=forced soft timeforced downloadonly"`
	ForceTime            int64                     `json:"forcetime"`
	Weight               *int                      `json:"weight" binding:"omitempty,min=0,max=1000"`
	ConfirmationRequired *bool                     `json:"confirmationRequired"`
	MaintenanceWindow    *action.MaintenanceWindow `json:"maintenanceWindow"`
}

type ActionReference struct {
	ID    uint          `json:"id"`
	Links handler.Links `json:"_links"`
}

type AssignmentResponse struct {
	Assigned        int               `json:"assigned"`
	AlreadyAssigned int               `json:"alreadyAssigned"`
	Total           int               `json:"total"`
	AssignedActions []ActionReference `json:"assignedActions"`
}

func toAssignmentResponse(c *gin.Context, result *deployment.Result) AssignmentResponse {
	references := make([]ActionReference, 0, len(result.Actions))
	for _, a := range result.Actions {
		links := handler.SelfLink(c, "actions", a.ID)
		if a.Target != nil {
			links = handler.SelfLink(c, "targets", a.Target.ControllerID, "actions", a.ID)
		}
		references = append(references, ActionReference{ID: a.ID, Links: links})
	}

	return AssignmentResponse{
		Assigned:        result.Assigned,
		AlreadyAssigned: result.AlreadyAssigned,
		Total:           result.Total(),
		AssignedActions: references,
	}
}

func (h Handler) assign(c *gin.Context, assignments []Assignment) {
	offline, ok := handler.GetBoolQueryParameter(c, "offline")
	if !ok {
		return
	}

	result, err := h.service.Assign(c.Request.Context(), assignments, offline)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toAssignmentResponse(c, result))
}

func (h Handler) AssignDistributionSets(c *gin.Context) {
	// swagger:route POST /targets/{targetId}/assignedDS assignDistributionSets
	//
	// Assign distribution sets
	//
	// Assign distribution sets to the target. Assigning cancels other active actions of the target
	// unless multi assignments are enabled. With offline=true the distribution sets are recorded as
	// installed without notifying the target.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Assignment
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	var request []AssignmentRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}
	if len(request) == 0 {
		_ = c.Error(errdef.NewBadRequest("at least one distribution set is required"))
		return
	}

	controllerID := c.Param("targetId")
	assignments := make([]Assignment, 0, len(request))
	for _, r := range request {
		deploymentRequest, err := r.request()
		if err != nil {
			_ = c.Error(err)
			return
		}
		assignments = append(assignments, Assignment{ControllerID: controllerID, Request: deploymentRequest})
	}

	h.assign(c, assignments)
}

func (h Handler) AssignTargets(c *gin.Context) {
	// swagger:route POST /distributionsets/{distributionSetId}/assignedTargets assignTargets
	//
	// Assign targets
	//
	// Assign the distribution set to targets identified by their controller ids. With offline=true
	// the distribution set is recorded as installed without notifying the targets.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Assignment
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	dsID, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	var request []TargetAssignmentRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}
	if len(request) == 0 {
		_ = c.Error(errdef.NewBadRequest("at least one target is required"))
		return
	}

	assignments := make([]Assignment, 0, len(request))
	for _, r := range request {
		deploymentRequest, err := AssignmentRequest{
			ID:                   dsID,
			Type:                 r.Type,
			ForceTime:            r.ForceTime,
			Weight:               r.Weight,
			ConfirmationRequired: r.ConfirmationRequired,
			MaintenanceWindow:    r.MaintenanceWindow,
		}.request()
		if err != nil {
			_ = c.Error(err)
			return
		}
		assignments = append(assignments, Assignment{ControllerID: r.ID, Request: deploymentRequest})
	}

	h.assign(c, assignments)
}

func (h Handler) findAllByDistributionSet(c *gin.Context, installed bool) {
	dsID, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.page(c, func(ctx context.Context) ([]model.Target, int64, error) {
		return h.service.FindAllByDistributionSet(ctx, dsID, installed, params)
	})
}

func (h Handler) FindAssignedTargets(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/assignedTargets findAssignedTargets
	//
	// Find assigned targets
	//
	// Find the targets the distribution set is assigned to.
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
	h.findAllByDistributionSet(c, false)
}

func (h Handler) FindInstalledTargets(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/installedTargets findInstalledTargets
	//
	// Find installed targets
	//
	// Find the targets the distribution set is installed on.
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
	h.findAllByDistributionSet(c, true)
}

type AutoConfirmResponse struct {
	Active      bool          `json:"active"`
	Initiator   string        `json:"initiator,omitempty"`
	Remark      string        `json:"remark,omitempty"`
	ActivatedAt *int64        `json:"activatedAt,omitempty"`
	Links       handler.Links `json:"_links"`
}

func (h Handler) FindAutoConfirm(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/autoConfirm findAutoConfirm
	//
	// Find auto confirmation state
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: AutoConfirm
	//   401: Error
	//   403: Error
	//   404: Error
	target, err := h.service.Find(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	response := AutoConfirmResponse{
		Active:      target.AutoConfirmActive(),
		Initiator:   target.AutoConfirmInitiator,
		Remark:      target.AutoConfirmRemark,
		ActivatedAt: model.MillisPtr(target.AutoConfirmActivatedAt),
		Links:       handler.Links{},
	}
	if response.Active {
		response.Links["deactivate"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "autoConfirm", "deactivate")}
	} else {
		response.Links["activate"] = handler.Link{Href: handler.Href(c, "targets", target.ControllerID, "autoConfirm", "activate")}
	}
	c.JSON(http.StatusOK, response)
}

type ActivateAutoConfirmRequest struct {
	Initiator string `json:"initiator" binding:"max=64"`
	Remark    string `json:"remark" binding:"max=512"`
}

func (h Handler) ActivateAutoConfirm(c *gin.Context) {
	// swagger:route POST /targets/{targetId}/autoConfirm/activate activateAutoConfirm
	//
	// Activate auto confirmation
	//
	// Confirm all actions waiting for confirmation and all future actions of the target. The
	// initiator defaults to the current user.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	var request ActivateAutoConfirmRequest
	if c.Request.ContentLength != 0 {
		if err := handler.DataBinder(c, &request); err != nil {
			_ = c.Error(err)
			return
		}
	}

	_, err := h.service.ActivateAutoConfirm(c.Request.Context(), c.Param("targetId"), request.Initiator, request.Remark)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) DeactivateAutoConfirm(c *gin.Context) {
	// swagger:route POST /targets/{targetId}/autoConfirm/deactivate deactivateAutoConfirm
	//
	// Deactivate auto confirmation
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   401: Error
	//   403: Error
	//   404: Error
	err := h.service.DeactivateAutoConfirm(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) FindAllByTag(c *gin.Context) {
	// swagger:route GET /targettags/{tagId}/assigned findTaggedTargets
	//
	// Find tagged targets
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
	tagID, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.page(c, func(ctx context.Context) ([]model.Target, int64, error) {
		return h.service.FindAllByTag(ctx, tagID, params)
	})
}

func (h Handler) toggleTag(c *gin.Context, assign bool, controllerIDs []string) {
	tagID, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	var err error
	if assign {
		err = h.service.AssignTag(c.Request.Context(), tagID, controllerIDs...)
	} else {
		err = h.service.UnassignTag(c.Request.Context(), tagID, controllerIDs...)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) bindControllerIDs(c *gin.Context) ([]string, bool) {
	var controllerIDs []string
	if err := handler.DataBinder(c, &controllerIDs); err != nil {
		_ = c.Error(err)
		return nil, false
	}
	if len(controllerIDs) == 0 {
		_ = c.Error(errdef.NewBadRequest("at least one controller id is required"))
		return nil, false
	}
	return controllerIDs, true
}

func (h Handler) AssignTag(c *gin.Context) {
	// swagger:route POST /targettags/{tagId}/assigned assignTargetTag
	//
	// Assign tag to targets
	//
	// The request body is a list of controller ids.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	controllerIDs, ok := h.bindControllerIDs(c)
	if !ok {
		return
	}
	h.toggleTag(c, true, controllerIDs)
}

func (h Handler) UnassignTag(c *gin.Context) {
	// swagger:route DELETE /targettags/{tagId}/assigned unassignTargetTag
	//
	// Unassign tag from targets
	//
	// The request body is a list of controller ids.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	controllerIDs, ok := h.bindControllerIDs(c)
	if !ok {
		return
	}
	h.toggleTag(c, false, controllerIDs)
}

func (h Handler) AssignTagTo(c *gin.Context) {
	// swagger:route POST /targettags/{tagId}/assigned/{targetId} assignTargetTagTo
	//
	// Assign tag to target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.toggleTag(c, true, []string{c.Param("targetId")})
}

func (h Handler) UnassignTagFrom(c *gin.Context) {
	// swagger:route DELETE /targettags/{tagId}/assigned/{targetId} unassignTargetTagFrom
	//
	// Unassign tag from target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.toggleTag(c, false, []string{c.Param("targetId")})
}
