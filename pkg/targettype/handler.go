package targettype

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service targetTypeService) Handler {
	return Handler{service: service}
}

type targetTypeService interface {
	Find(ctx context.Context, id uint) (*model.TargetType, error)
	FindAll(ctx context.Context, params query.Params) ([]model.TargetType, int64, error)
	Create(ctx context.Context, newTypes []NewType) ([]model.TargetType, error)
	Update(ctx context.Context, id uint, update Update) (*model.TargetType, error)
	Delete(ctx context.Context, id uint) error
	AddCompatible(ctx context.Context, id uint, dsTypeIDs []uint) (*model.TargetType, error)
	RemoveCompatible(ctx context.Context, id, dsTypeID uint) error
}

type Handler struct {
	service targetTypeService
}

type Response struct {
	ID          uint   `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Colour      string `json:"colour"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func ToResponse(c *gin.Context, targetType model.TargetType) Response {
	links := handler.SelfLink(c, "targettypes", targetType.ID)
	links["compatibledistributionsettypes"] = handler.Link{Href: handler.Href(c, "targettypes", targetType.ID, "compatibledistributionsettypes")}

	return Response{
		ID:          targetType.ID,
		Key:         targetType.Key,
		Name:        targetType.Name,
		Description: targetType.Description,
		Colour:      targetType.Colour,
		Audit:       handler.NewAudit(targetType.Base),
		Links:       links,
	}
}

func toResponses(c *gin.Context, types []model.TargetType) []Response {
	responses := make([]Response, 0, len(types))
	for _, targetType := range types {
		responses = append(responses, ToResponse(c, targetType))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /targettypes findAllTargetTypes
	//
	// Find target types
	//
	// Find target types paged and filterable by id, key, name, description and colour.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetTypePage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	types, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(toResponses(c, types), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /targettypes/{targetTypeId} findTargetType
	//
	// Find target type
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "targetTypeId")
	if !ok {
		return
	}

	targetType, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *targetType))
}

type DistributionSetTypeReference struct {
	ID uint `json:"id" binding:"required"`
}

func ids(references []DistributionSetTypeReference) []uint {
	ids := make([]uint, 0, len(references))
	for _, reference := range references {
		ids = append(ids, reference.ID)
	}
	return ids
}

type CreateRequest struct {
	Key                            string                         `json:"key" binding:"required,max=64"`
	Name                           string                         `json:"name" binding:"required,max=128"`
	Description                    string                         `json:"description" binding:"max=512"`
	Colour                         string                         `json:"colour" binding:"max=16"`
	CompatibleDistributionSetTypes []DistributionSetTypeReference `json:"compatibledistributionsettypes" binding:"dive"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /targettypes createTargetTypes
	//
	// Create target types
	//
	// Create one or more target types. Keys and names must be unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: TargetTypeList
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

	newTypes := make([]NewType, 0, len(request))
	for _, r := range request {
		newTypes = append(newTypes, NewType{
			Type: model.TargetType{
				Key:         r.Key,
				Name:        r.Name,
				Description: r.Description,
				Colour:      r.Colour,
			},
			CompatibleDistributionSetTypes: ids(r.CompatibleDistributionSetTypes),
		})
	}

	created, err := h.service.Create(c.Request.Context(), newTypes)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toResponses(c, created))
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=128"`
	Description *string `json:"description" binding:"omitempty,max=512"`
	Colour      *string `json:"colour" binding:"omitempty,max=16"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /targettypes/{targetTypeId} updateTargetType
	//
	// Update target type
	//
	// The key of a target type can't be changed.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "targetTypeId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	targetType, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *targetType))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /targettypes/{targetTypeId} deleteTargetType
	//
	// Delete target type
	//
	// Types assigned to targets can't be deleted.
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
	id, ok := handler.GetPathParameter(c, "targetTypeId")
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

func (h Handler) FindCompatible(c *gin.Context) {
	// swagger:route GET /targettypes/{targetTypeId}/compatibledistributionsettypes findCompatibleDistributionSetTypes
	//
	// Find compatible distribution set types
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetTypeList
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "targetTypeId")
	if !ok {
		return
	}

	targetType, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, distributionsettype.ToResponses(c, targetType.DistributionSetTypes))
}

func (h Handler) AddCompatible(c *gin.Context) {
	// swagger:route POST /targettypes/{targetTypeId}/compatibledistributionsettypes addCompatibleDistributionSetTypes
	//
	// Add compatible distribution set types
	//
	// Distribution sets of compatible types can be assigned to targets of the type.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TargetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "targetTypeId")
	if !ok {
		return
	}

	var request []DistributionSetTypeReference
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	targetType, err := h.service.AddCompatible(c.Request.Context(), id, ids(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *targetType))
}

func (h Handler) RemoveCompatible(c *gin.Context) {
	// swagger:route DELETE /targettypes/{targetTypeId}/compatibledistributionsettypes/{distributionSetTypeId} removeCompatibleDistributionSetType
	//
	// Remove compatible distribution set type
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
	id, ok := handler.GetPathParameter(c, "targetTypeId")
	if !ok {
		return
	}

	dsTypeID, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	err := h.service.RemoveCompatible(c.Request.Context(), id, dsTypeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
