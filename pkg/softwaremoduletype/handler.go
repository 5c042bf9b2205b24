package softwaremoduletype

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service softwareModuleTypeService) Handler {
	return Handler{service: service}
}

type softwareModuleTypeService interface {
	Find(ctx context.Context, id uint) (*model.SoftwareModuleType, error)
	FindAll(ctx context.Context, params query.Params) ([]model.SoftwareModuleType, int64, error)
	Create(ctx context.Context, types []model.SoftwareModuleType) ([]model.SoftwareModuleType, error)
	Update(ctx context.Context, id uint, update Update) (*model.SoftwareModuleType, error)
	Delete(ctx context.Context, id uint) error
}

type Handler struct {
	service softwareModuleTypeService
}

type Response struct {
	ID             uint   `json:"id"`
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Colour         string `json:"colour"`
	MaxAssignments int    `json:"maxAssignments"`
	Deleted        bool   `json:"deleted"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func ToResponse(c *gin.Context, smType model.SoftwareModuleType) Response {
	return Response{
		ID:             smType.ID,
		Key:            smType.Key,
		Name:           smType.Name,
		Description:    smType.Description,
		Colour:         smType.Colour,
		MaxAssignments: smType.MaxAssignments,
		Deleted:        smType.Deleted,
		Audit:          handler.NewAudit(smType.Base),
		Links:          handler.SelfLink(c, "softwaremoduletypes", smType.ID),
	}
}

func ToResponses(c *gin.Context, types []model.SoftwareModuleType) []Response {
	responses := make([]Response, 0, len(types))
	for _, smType := range types {
		responses = append(responses, ToResponse(c, smType))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /softwaremoduletypes findAllSoftwareModuleTypes
	//
	// Find software module types
	//
	// Find software module types which are not deleted, paged and filterable by id, key, name,
	// description, colour and maxAssignments.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModuleTypePage
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

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, types), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /softwaremoduletypes/{softwareModuleTypeId} findSoftwareModuleType
	//
	// Find software module type
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModuleType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleTypeId")
	if !ok {
		return
	}

	smType, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *smType))
}

type CreateRequest struct {
	Key            string `json:"key" binding:"required,max=64"`
	Name           string `json:"name" binding:"required,max=128"`
	Description    string `json:"description" binding:"max=512"`
	Colour         string `json:"colour" binding:"max=16"`
	MaxAssignments int    `json:"maxAssignments" binding:"omitempty,min=1"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /softwaremoduletypes createSoftwareModuleTypes
	//
	// Create software module types
	//
	// Create one or more software module types. Keys and names must be unique. maxAssignments
	// defaults to 1.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: SoftwareModuleTypeList
	//   400: Error
	//   401: Error
	//   403: Error
	//   409: Error
	//   415: Error
	var request []CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	types := make([]model.SoftwareModuleType, 0, len(request))
	for _, r := range request {
		types = append(types, model.SoftwareModuleType{
			Key:            r.Key,
			Name:           r.Name,
			Description:    r.Description,
			Colour:         r.Colour,
			MaxAssignments: r.MaxAssignments,
		})
	}

	created, err := h.service.Create(c.Request.Context(), types)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToResponses(c, created))
}

type UpdateRequest struct {
	Description *string `json:"description" binding:"omitempty,max=512"`
	Colour      *string `json:"colour" binding:"omitempty,max=16"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /softwaremoduletypes/{softwareModuleTypeId} updateSoftwareModuleType
	//
	// Update software module type
	//
	// Only description and colour of a type can be changed.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModuleType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleTypeId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	smType, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *smType))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /softwaremoduletypes/{softwareModuleTypeId} deleteSoftwareModuleType
	//
	// Delete software module type
	//
	// Types in use by software modules or distribution set types are marked as deleted instead.
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
	id, ok := handler.GetPathParameter(c, "softwareModuleTypeId")
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
