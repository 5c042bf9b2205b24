package action

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service actionService) Handler {
	return Handler{service: service}
}

type actionService interface {
	Find(ctx context.Context, id uint) (*model.Action, error)
	FindAll(ctx context.Context, params query.Params) ([]model.Action, int64, error)
	FindAllOfTarget(ctx context.Context, controllerID string, params query.Params) ([]model.Action, int64, error)
	FindOfTarget(ctx context.Context, controllerID string, actionID uint) (*model.Action, error)
	FindStatuses(ctx context.Context, controllerID string, actionID uint, params query.Params) ([]model.ActionStatus, int64, error)
	Cancel(ctx context.Context, controllerID string, actionID uint, force bool) error
	Force(ctx context.Context, controllerID string, actionID uint) (*model.Action, error)
	Confirm(ctx context.Context, controllerID string, actionID uint, confirmation deployment.Confirmation) error
	Delete(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context, filter string, ids []uint) (int64, error)
}

type Handler struct {
	service actionService
}

type MaintenanceWindow struct {
	Schedule string `json:"schedule"`
	Duration string `json:"duration" binding:"omitempty,duration"`
	TimeZone string `json:"timezone" binding:"omitempty,timezone"`
}

type Response struct {
	ID uint `json:"id"`
	// Type is either update or cancel
	Type string `json:"type"`
	// Status is pending for active actions and finished otherwise
	Status            string             `json:"status"`
	DetailStatus      string             `json:"detailStatus"`
	Active            bool               `json:"active"`
	ForceType         string             `json:"forceType"`
	ForceTime         int64              `json:"forceTime,omitempty"`
	Weight            *int               `json:"weight,omitempty"`
	Rollout           *uint              `json:"rollout,omitempty"`
	RolloutName       string             `json:"rolloutName,omitempty"`
	LastStatusCode    *int               `json:"lastStatusCode,omitempty"`
	ExternalRef       string             `json:"externalRef,omitempty"`
	MaintenanceWindow *MaintenanceWindow `json:"maintenanceWindow,omitempty"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

// ToResponse maps the action. Links are relative to the target of the action if targetScoped is
// set. Full responses name the target and the distribution set of the action in their links.
func ToResponse(c *gin.Context, action model.Action, targetScoped, full bool) Response {
	var links handler.Links
	controllerID := ""
	if action.Target != nil {
		controllerID = action.Target.ControllerID
	}
	if targetScoped {
		links = handler.SelfLink(c, "targets", controllerID, "actions", action.ID)
		links["status"] = handler.Link{Href: handler.Href(c, "targets", controllerID, "actions", action.ID, "status") + "?offset=0&limit=50&sort=id:DESC"}
	} else {
		links = handler.SelfLink(c, "actions", action.ID)
	}

	target := handler.Link{Href: handler.Href(c, "targets", controllerID)}
	ds := handler.Link{Href: handler.Href(c, "distributionsets", action.DistributionSetID)}
	if full {
		if action.Target != nil {
			target.Name = action.Target.Name
		}
		if action.DistributionSet != nil {
			ds.Name = action.DistributionSet.Name + ":" + action.DistributionSet.Version
		}
	}
	links["target"] = target
	links["distributionset"] = ds

	response := Response{
		ID:             action.ID,
		Type:           "update",
		Status:         "finished",
		DetailStatus:   string(action.Status),
		Active:         action.Active,
		ForceType:      string(action.Type),
		ForceTime:      action.ForceTime,
		Weight:         action.Weight,
		Rollout:        action.RolloutID,
		LastStatusCode: action.LastStatusCode,
		ExternalRef:    action.ExternalRef,
		Audit:          handler.NewAudit(action.Base),
		Links:          links,
	}
	if action.IsCancelingOrCanceled() {
		response.Type = "cancel"
	}
	if action.Active {
		response.Status = "pending"
	}
	if action.RolloutID != nil {
		links["rollout"] = handler.Link{Href: handler.Href(c, "rollouts", *action.RolloutID)}
		if action.Rollout != nil {
			response.RolloutName = action.Rollout.Name
		}
	}
	if action.HasMaintenanceWindow() {
		response.MaintenanceWindow = &MaintenanceWindow{
			Schedule: action.MaintenanceSchedule,
			Duration: action.MaintenanceDuration,
			TimeZone: action.MaintenanceTimeZone,
		}
	}
	return response
}

func ToResponses(c *gin.Context, actions []model.Action, targetScoped, full bool) []Response {
	responses := make([]Response, 0, len(actions))
	for _, action := range actions {
		responses = append(responses, ToResponse(c, action, targetScoped, full))
	}
	return responses
}

func isFull(c *gin.Context) bool {
	return strings.EqualFold(c.Query("representation"), "full")
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /actions findAllActions
	//
	// Find actions
	//
	// Find actions of all targets, paged and filterable by id, status, detailstatus, weight,
	// laststatuscode, externalref, target.*, distributionset.* and rollout.*. The full
	// representation names target and distribution set of each action.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: ActionPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actions, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, actions, false, isFull(c)), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /actions/{actionId} findAction
	//
	// Find action
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Action
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	action, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *action, false, true))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /actions/{actionId} deleteAction
	//
	// Delete action
	//
	// Delete an inactive action alongside its status history.
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
	//   409: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h Handler) DeleteAll(c *gin.Context) {
	// swagger:route DELETE /actions deleteActions
	//
	// Delete actions
	//
	// Delete the inactive actions either matching the filter q or listed in actionIds. Active
	// actions are skipped.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   204:
	//   400: Error
	//   401: Error
	//   403: Error
	ids, err := parseIDs(c.Query("actionIds"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.service.DeleteAll(c.Request.Context(), c.Query("q"), ids); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseIDs(s string) ([]uint, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var ids []uint
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, errdef.NewBadRequest("invalid action id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (h Handler) FindAllOfTarget(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/actions findAllActionsOfTarget
	//
	// Find actions of target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: ActionPage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	actions, total, err := h.service.FindAllOfTarget(c.Request.Context(), c.Param("targetId"), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, actions, true, isFull(c)), total))
}

func (h Handler) FindOfTarget(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/actions/{actionId} findActionOfTarget
	//
	// Find action of target
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Action
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	action, err := h.service.FindOfTarget(c.Request.Context(), c.Param("targetId"), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *action, true, true))
}

func (h Handler) Cancel(c *gin.Context) {
	// swagger:route DELETE /targets/{targetId}/actions/{actionId} cancelAction
	//
	// Cancel action
	//
	// Request the cancellation of an active action. With force=true an action which is already
	// canceling is closed without waiting for the target.
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
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	force, ok := handler.GetBoolQueryParameter(c, "force")
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), c.Param("targetId"), id, force); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type UpdateRequest struct {
	ForceType string `json:"forceType" binding:"required"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /targets/{targetId}/actions/{actionId} updateAction
	//
	// Update action
	//
	// Only switching an action to forced is supported.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Action
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	if model.ActionType(request.ForceType) != model.ActionTypeForced {
		_ = c.Error(errdef.NewBadRequest("only the forceType %q is supported", model.ActionTypeForced))
		return
	}

	action, err := h.service.Force(c.Request.Context(), c.Param("targetId"), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *action, true, true))
}

type ConfirmationRequest struct {
	// Confirmation is either confirmed or denied
	Confirmation string   `json:"confirmation" binding:"required,oneof=confirmed denied"`
	Code         *int     `json:"code"`
	Details      []string `json:"details"`
}

func (h Handler) Confirm(c *gin.Context) {
	// swagger:route PUT /targets/{targetId}/actions/{actionId}/confirmation confirmAction
	//
	// Confirm action
	//
	// Confirm or deny an action waiting for confirmation on behalf of the target.
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
	//   415: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	var request ConfirmationRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	confirmation := deployment.Confirmation{
		Confirmed: request.Confirmation == "confirmed",
		Code:      request.Code,
		Details:   request.Details,
	}
	if err := h.service.Confirm(c.Request.Context(), c.Param("targetId"), id, confirmation); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type StatusResponse struct {
	ID uint `json:"id"`
	// Type is the status of the action reported by the entry
	Type       string   `json:"type"`
	Messages   []string `json:"messages"`
	ReportedAt int64    `json:"reportedAt"`
	Timestamp  int64    `json:"timestamp"`
	Code       *int     `json:"code,omitempty"`
}

func (h Handler) FindStatuses(c *gin.Context) {
	// swagger:route GET /targets/{targetId}/actions/{actionId}/status findActionStatuses
	//
	// Find status history of action
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: ActionStatusPage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "actionId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	statuses, total, err := h.service.FindStatuses(c.Request.Context(), c.Param("targetId"), id, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]StatusResponse, 0, len(statuses))
	for _, status := range statuses {
		messages := status.Messages
		if messages == nil {
			messages = []string{}
		}
		responses = append(responses, StatusResponse{
			ID:         status.ID,
			Type:       string(status.Status),
			Messages:   messages,
			ReportedAt: model.Millis(status.CreatedAt),
			Timestamp:  model.Millis(status.OccurredAt),
			Code:       status.Code,
		})
	}

	c.JSON(http.StatusOK, handler.NewPagedList(responses, total))
}
