package metadata

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

// OwnerResolver returns the id of the owner identified by the request path. It adds an error to c
// and returns false if the owner can't be found.
type OwnerResolver func(c *gin.Context) (uint, bool)

// NewHandler creates a handler of the metadata of owners of given kind. Handlers of different
// owners only differ in how the owner is resolved.
func NewHandler(service metadataService, owner model.MetadataOwner, resolve OwnerResolver) Handler {
	return Handler{
		service: service,
		owner:   owner,
		resolve: resolve,
	}
}

type metadataService interface {
	FindAll(ctx context.Context, owner model.MetadataOwner, ownerID uint, params query.Params) ([]model.Metadata, int64, error)
	Find(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) (*model.Metadata, error)
	Create(ctx context.Context, owner model.MetadataOwner, ownerID uint, metadata []model.Metadata) ([]model.Metadata, error)
	Update(ctx context.Context, owner model.MetadataOwner, ownerID uint, key, value string, targetVisible *bool) (*model.Metadata, error)
	Delete(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) error
}

type Handler struct {
	service metadataService
	owner   model.MetadataOwner
	resolve OwnerResolver
}

type Response struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	// TargetVisible is only present on software module metadata.
	TargetVisible *bool `json:"targetVisible,omitempty"`
}

func (h Handler) toResponse(metadata model.Metadata) Response {
	response := Response{Key: metadata.Key, Value: metadata.Value}
	if h.owner == model.SoftwareModuleMetadata {
		visible := metadata.TargetVisible
		response.TargetVisible = &visible
	}
	return response
}

func (h Handler) toResponses(metadata []model.Metadata) []Response {
	responses := make([]Response, 0, len(metadata))
	for _, m := range metadata {
		responses = append(responses, h.toResponse(m))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	ownerID, ok := h.resolve(c)
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	metadata, total, err := h.service.FindAll(c.Request.Context(), h.owner, ownerID, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(h.toResponses(metadata), total))
}

func (h Handler) Find(c *gin.Context) {
	ownerID, ok := h.resolve(c)
	if !ok {
		return
	}

	metadata, err := h.service.Find(c.Request.Context(), h.owner, ownerID, c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(*metadata))
}

type CreateRequest struct {
	Key           string `json:"key" binding:"required,max=128"`
	Value         string `json:"value" binding:"max=4000"`
	TargetVisible bool   `json:"targetVisible"`
}

func (h Handler) Create(c *gin.Context) {
	ownerID, ok := h.resolve(c)
	if !ok {
		return
	}

	var request []CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	metadata := make([]model.Metadata, 0, len(request))
	for _, r := range request {
		metadata = append(metadata, model.Metadata{Key: r.Key, Value: r.Value, TargetVisible: r.TargetVisible})
	}

	created, err := h.service.Create(c.Request.Context(), h.owner, ownerID, metadata)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponses(created))
}

type UpdateRequest struct {
	Value         string `json:"value" binding:"max=4000"`
	TargetVisible *bool  `json:"targetVisible"`
}

func (h Handler) Update(c *gin.Context) {
	ownerID, ok := h.resolve(c)
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	metadata, err := h.service.Update(c.Request.Context(), h.owner, ownerID, c.Param("key"), request.Value, request.TargetVisible)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(*metadata))
}

func (h Handler) Delete(c *gin.Context) {
	ownerID, ok := h.resolve(c)
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), h.owner, ownerID, c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
