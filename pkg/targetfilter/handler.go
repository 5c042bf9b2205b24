package targetfilter

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/distributionset"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service filterService) Handler {
	return Handler{service: service}
}

type filterService interface {
	Find(ctx context.Context, id uint) (*model.TargetFilterQuery, error)
	FindAll(ctx context.Context, params query.Params) ([]model.TargetFilterQuery, int64, error)
	FindAllByDistributionSet(ctx context.Context, distributionSetID uint, params query.Params) ([]model.TargetFilterQuery, int64, error)
	Create(ctx context.Context, name, filter string) (*model.TargetFilterQuery, error)
	Update(ctx context.Context, id uint, update Update) (*model.TargetFilterQuery, error)
	Delete(ctx context.Context, id uint) error
	FindDistributionSet(ctx context.Context, id uint) (*model.DistributionSet, error)
	AssignDistributionSet(ctx context.Context, id uint, autoAssign AutoAssign) (*model.TargetFilterQuery, error)
	UnassignDistributionSet(ctx context.Context, id uint) error
}

type Handler struct {
	service filterService
}

type Response struct {
	ID                        uint             `json:"id"`
	Name                      string           `json:"name"`
	Query                     string           `json:"query"`
	AutoAssignDistributionSet *uint            `json:"autoAssignDistributionSet,omitempty"`
	AutoAssignActionType      model.ActionType `json:"autoAssignActionType,omitempty"`
	AutoAssignWeight          *int             `json:"autoAssignWeight,omitempty"`
	ConfirmationRequired      *bool            `json:"confirmationRequired,omitempty"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func toResponse(c *gin.Context, filter model.TargetFilterQuery) Response {
	links := handler.SelfLink(c, "targetfilters", filter.ID)
	links["autoAssignDS"] = handler.Link{Href: handler.Href(c, "targetfilters", filter.ID, "autoAssignDS")}

	response := Response{
		ID:                        filter.ID,
		Name:                      filter.Name,
		Query:                     filter.Query,
		AutoAssignDistributionSet: filter.AutoAssignDistributionSetID,
		Audit:                     handler.NewAudit(filter.Base),
		Links:                     links,
	}
	if filter.AutoAssignDistributionSetID != nil {
		confirmationRequired := filter.ConfirmationRequired
		response.AutoAssignActionType = filter.AutoAssignActionType
		response.AutoAssignWeight = filter.AutoAssignWeight
		response.ConfirmationRequired = &confirmationRequired
	}
	return response
}

func toResponses(c *gin.Context, filters []model.TargetFilterQuery) []Response {
	responses := make([]Response, 0, len(filters))
	for _, filter := range filters {
		responses = append(responses, toResponse(c, filter))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /targetfilters findAllTargetFilters
	//
	// Find target filters
	//
	// Find target filters paged and filterable by id, name, query and the name and version of the
	// automatically assigned distribution set.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetFilterPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	filters, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(toResponses(c, filters), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /targetfilters/{targetFilterId} findTargetFilter
	//
	// Find target filter
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetFilter
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	filter, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponse(c, *filter))
}

type CreateRequest struct {
	Name  string `json:"name" binding:"required,max=128"`
	Query string `json:"query" binding:"required,max=1024"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /targetfilters createTargetFilter
	//
	// Create target filter
	//
	// The query must be a valid target filter and the name unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: TargetFilter
	//   400: Error
	//   401: Error
	//   403: Error
	//   409: Error
	//   415: Error
	var request CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	filter, err := h.service.Create(c.Request.Context(), request.Name, request.Query)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(c, *filter))
}

type UpdateRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=128"`
	Query *string `json:"query" binding:"omitempty,max=1024"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /targetfilters/{targetFilterId} updateTargetFilter
	//
	// Update target filter
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetFilter
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	filter, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponse(c, *filter))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /targetfilters/{targetFilterId} deleteTargetFilter
	//
	// Delete target filter
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
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) FindDistributionSet(c *gin.Context) {
	// swagger:route GET /targetfilters/{targetFilterId}/autoAssignDS findTargetFilterDistributionSet
	//
	// Find automatically assigned distribution set
	//
	// No content is returned if the filter doesn't assign a distribution set.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSet
	//   204:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	ds, err := h.service.FindDistributionSet(c.Request.Context(), id)
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

type AutoAssignRequest struct {
	ID                   uint   `json:"id" binding:"required"`
	Type                 string `json:"type" binding:"omitempty,oneof=forced soft downloadonly"`
	Weight               *int   `json:"weight" binding:"omitempty,min=0,max=1000"`
	ConfirmationRequired *bool  `json:"confirmationRequired"`
}

func (h Handler) AssignDistributionSet(c *gin.Context) {
	// swagger:route POST /targetfilters/{targetFilterId}/autoAssignDS assignTargetFilterDistributionSet
	//
	// Assign distribution set automatically
	//
	// Targets matching the filter get the distribution set assigned unless they ever had an action
	// of it. The distribution set must be complete and valid.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetFilter
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	var request AutoAssignRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	filter, err := h.service.AssignDistributionSet(c.Request.Context(), id, AutoAssign{
		DistributionSetID:    request.ID,
		Type:                 model.ActionType(request.Type),
		Weight:               request.Weight,
		ConfirmationRequired: request.ConfirmationRequired,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponse(c, *filter))
}

func (h Handler) UnassignDistributionSet(c *gin.Context) {
	// swagger:route DELETE /targetfilters/{targetFilterId}/autoAssignDS unassignTargetFilterDistributionSet
	//
	// Stop assigning distribution set automatically
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
	id, ok := handler.GetPathParameter(c, "targetFilterId")
	if !ok {
		return
	}

	err := h.service.UnassignDistributionSet(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h Handler) FindAllByDistributionSet(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/autoAssignTargetFilters findDistributionSetTargetFilters
	//
	// Find target filters assigning distribution set
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetFilterPage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	dsID, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	filters, total, err := h.service.FindAllByDistributionSet(c.Request.Context(), dsID, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(toResponses(c, filters), total))
}
