package distributionsettype

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/gin-gonic/gin"
)

func NewHandler(service distributionSetTypeService) Handler {
	return Handler{service: service}
}

type distributionSetTypeService interface {
	Find(ctx context.Context, id uint) (*model.DistributionSetType, error)
	FindAll(ctx context.Context, params query.Params) ([]model.DistributionSetType, int64, error)
	Create(ctx context.Context, newTypes []NewType) ([]model.DistributionSetType, error)
	Update(ctx context.Context, id uint, update Update) (*model.DistributionSetType, error)
	Delete(ctx context.Context, id uint) error
	FindModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) (*model.SoftwareModuleType, error)
	AddModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) (*model.DistributionSetType, error)
	RemoveModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) error
}

type Handler struct {
	service distributionSetTypeService
}

type Response struct {
	ID          uint   `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Colour      string `json:"colour"`
	Deleted     bool   `json:"deleted"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func ToResponse(c *gin.Context, dsType model.DistributionSetType) Response {
	links := handler.SelfLink(c, "distributionsettypes", dsType.ID)
	links["mandatorymodules"] = handler.Link{Href: handler.Href(c, "distributionsettypes", dsType.ID, "mandatorymoduletypes")}
	links["optionalmodules"] = handler.Link{Href: handler.Href(c, "distributionsettypes", dsType.ID, "optionalmoduletypes")}

	return Response{
		ID:          dsType.ID,
		Key:         dsType.Key,
		Name:        dsType.Name,
		Description: dsType.Description,
		Colour:      dsType.Colour,
		Deleted:     dsType.Deleted,
		Audit:       handler.NewAudit(dsType.Base),
		Links:       links,
	}
}

func ToResponses(c *gin.Context, types []model.DistributionSetType) []Response {
	responses := make([]Response, 0, len(types))
	for _, dsType := range types {
		responses = append(responses, ToResponse(c, dsType))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /distributionsettypes findAllDistributionSetTypes
	//
	// Find distribution set types
	//
	// Find distribution set types which are not deleted, paged and filterable by id, key, name,
	// description and colour.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetTypePage
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
	// swagger:route GET /distributionsettypes/{distributionSetTypeId} findDistributionSetType
	//
	// Find distribution set type
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	dsType, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *dsType))
}

type ModuleTypeReference struct {
	ID uint `json:"id" binding:"required"`
}

type CreateRequest struct {
	Key              string                `json:"key" binding:"required,max=64"`
	Name             string                `json:"name" binding:"required,max=128"`
	Description      string                `json:"description" binding:"max=512"`
	Colour           string                `json:"colour" binding:"max=16"`
	MandatoryModules []ModuleTypeReference `json:"mandatorymodules" binding:"dive"`
	OptionalModules  []ModuleTypeReference `json:"optionalmodules" binding:"dive"`
}

func ids(references []ModuleTypeReference) []uint {
	ids := make([]uint, 0, len(references))
	for _, reference := range references {
		ids = append(ids, reference.ID)
	}
	return ids
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /distributionsettypes createDistributionSetTypes
	//
	// Create distribution set types
	//
	// Create one or more distribution set types together with their mandatory and optional software
	// module types. Keys and names must be unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: DistributionSetTypeList
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
			Type: model.DistributionSetType{
				Key:         r.Key,
				Name:        r.Name,
				Description: r.Description,
				Colour:      r.Colour,
			},
			Mandatory: ids(r.MandatoryModules),
			Optional:  ids(r.OptionalModules),
		})
	}

	created, err := h.service.Create(c.Request.Context(), newTypes)
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
	// swagger:route PUT /distributionsettypes/{distributionSetTypeId} updateDistributionSetType
	//
	// Update distribution set type
	//
	// Only description and colour of a type can be changed.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	dsType, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *dsType))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /distributionsettypes/{distributionSetTypeId} deleteDistributionSetType
	//
	// Delete distribution set type
	//
	// Types of existing distribution sets are marked as deleted instead.
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
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
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

func (h Handler) FindMandatoryModuleTypes(c *gin.Context) {
	// swagger:route GET /distributionsettypes/{distributionSetTypeId}/mandatorymoduletypes findMandatoryModuleTypes
	//
	// Find mandatory software module types
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModuleTypeList
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.findModuleTypes(c, true)
}

func (h Handler) FindOptionalModuleTypes(c *gin.Context) {
	// swagger:route GET /distributionsettypes/{distributionSetTypeId}/optionalmoduletypes findOptionalModuleTypes
	//
	// Find optional software module types
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModuleTypeList
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.findModuleTypes(c, false)
}

func (h Handler) findModuleTypes(c *gin.Context, mandatory bool) {
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	dsType, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, softwaremoduletype.ToResponses(c, dsType.ModuleTypes(mandatory)))
}

func (h Handler) FindMandatoryModuleType(c *gin.Context) {
	// swagger:route GET /distributionsettypes/{distributionSetTypeId}/mandatorymoduletypes/{softwareModuleTypeId} findMandatoryModuleType
	//
	// Find mandatory software module type
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
	h.findModuleType(c, true)
}

func (h Handler) FindOptionalModuleType(c *gin.Context) {
	// swagger:route GET /distributionsettypes/{distributionSetTypeId}/optionalmoduletypes/{softwareModuleTypeId} findOptionalModuleType
	//
	// Find optional software module type
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
	h.findModuleType(c, false)
}

func (h Handler) findModuleType(c *gin.Context, mandatory bool) {
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	smTypeID, ok := handler.GetPathParameter(c, "softwareModuleTypeId")
	if !ok {
		return
	}

	smType, err := h.service.FindModuleType(c.Request.Context(), id, smTypeID, mandatory)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, softwaremoduletype.ToResponse(c, *smType))
}

func (h Handler) AddMandatoryModuleType(c *gin.Context) {
	// swagger:route POST /distributionsettypes/{distributionSetTypeId}/mandatorymoduletypes addMandatoryModuleType
	//
	// Add mandatory software module type
	//
	// Module types can't be changed once distribution sets of the type exist.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	h.addModuleType(c, true)
}

func (h Handler) AddOptionalModuleType(c *gin.Context) {
	// swagger:route POST /distributionsettypes/{distributionSetTypeId}/optionalmoduletypes addOptionalModuleType
	//
	// Add optional software module type
	//
	// Module types can't be changed once distribution sets of the type exist.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetType
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	h.addModuleType(c, false)
}

func (h Handler) addModuleType(c *gin.Context, mandatory bool) {
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	var request ModuleTypeReference
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	dsType, err := h.service.AddModuleType(c.Request.Context(), id, request.ID, mandatory)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *dsType))
}

func (h Handler) RemoveMandatoryModuleType(c *gin.Context) {
	// swagger:route DELETE /distributionsettypes/{distributionSetTypeId}/mandatorymoduletypes/{softwareModuleTypeId} removeMandatoryModuleType
	//
	// Remove mandatory software module type
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
	h.removeModuleType(c, true)
}

func (h Handler) RemoveOptionalModuleType(c *gin.Context) {
	// swagger:route DELETE /distributionsettypes/{distributionSetTypeId}/optionalmoduletypes/{softwareModuleTypeId} removeOptionalModuleType
	//
	// Remove optional software module type
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
	h.removeModuleType(c, false)
}

func (h Handler) removeModuleType(c *gin.Context, mandatory bool) {
	id, ok := handler.GetPathParameter(c, "distributionSetTypeId")
	if !ok {
		return
	}

	smTypeID, ok := handler.GetPathParameter(c, "softwareModuleTypeId")
	if !ok {
		return
	}

	err := h.service.RemoveModuleType(c.Request.Context(), id, smTypeID, mandatory)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
