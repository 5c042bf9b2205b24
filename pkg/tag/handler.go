package tag

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

// NewHandler creates a handler of the tags of given kind.
func NewHandler(service tagService, kind model.TagKind) Handler {
	return Handler{service: service, kind: kind}
}

type tagService interface {
	Find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error)
	FindAll(ctx context.Context, kind model.TagKind, params query.Params) ([]model.Tag, int64, error)
	Create(ctx context.Context, kind model.TagKind, tags []model.Tag) ([]model.Tag, error)
	Update(ctx context.Context, kind model.TagKind, id uint, update Update) (*model.Tag, error)
	Delete(ctx context.Context, kind model.TagKind, id uint) error
}

type Handler struct {
	service tagService
	kind    model.TagKind
}

// Response is the representation of target and distribution set tags.
type Response struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Colour      string `json:"colour"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

// Collection returns the path of the tags of given kind.
func Collection(kind model.TagKind) string {
	if kind == model.DistributionSetTagKind {
		return "distributionsettags"
	}
	return "targettags"
}

// ToResponse maps a tag to its representation.
func ToResponse(c *gin.Context, tag model.Tag) Response {
	links := handler.SelfLink(c, Collection(tag.Kind), tag.ID)
	if tag.Kind == model.DistributionSetTagKind {
		links["assignedDistributionSets"] = handler.Link{Href: handler.Href(c, Collection(tag.Kind), tag.ID, "assigned")}
	} else {
		links["assignedTargets"] = handler.Link{Href: handler.Href(c, Collection(tag.Kind), tag.ID, "assigned")}
	}

	return Response{
		ID:          tag.ID,
		Name:        tag.Name,
		Description: tag.Description,
		Colour:      tag.Colour,
		Audit:       handler.NewAudit(tag.Base),
		Links:       links,
	}
}

// ToResponses maps tags to their representation.
func ToResponses(c *gin.Context, tags []model.Tag) []Response {
	responses := make([]Response, 0, len(tags))
	for _, tag := range tags {
		responses = append(responses, ToResponse(c, tag))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /targettags findAllTargetTags
	//
	// Find target tags
	//
	// Find target tags, paged and filterable by id, name, description and colour.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TagPage
	//   400: Error
	//   401: Error
	//   403: Error

	// swagger:route GET /distributionsettags findAllDistributionSetTags
	//
	// Find distribution set tags
	//
	// Find distribution set tags, paged and filterable by id, name, description and colour.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TagPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	tags, total, err := h.service.FindAll(c.Request.Context(), h.kind, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, tags), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /targettags/{tagId} findTargetTag
	//
	// Find target tag
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Tag
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error

	// swagger:route GET /distributionsettags/{tagId} findDistributionSetTag
	//
	// Find distribution set tag
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Tag
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	tag, err := h.service.Find(c.Request.Context(), h.kind, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *tag))
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	Description string `json:"description" binding:"max=512"`
	Colour      string `json:"colour" binding:"max=16"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /targettags createTargetTags
	//
	// Create target tags
	//
	// Create one or more target tags. Names must be unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: TagList
	//   400: Error
	//   401: Error
	//   403: Error
	//   409: Error
	//   415: Error

	// swagger:route POST /distributionsettags createDistributionSetTags
	//
	// Create distribution set tags
	//
	// Create one or more distribution set tags. Names must be unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: TagList
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

	tags := make([]model.Tag, 0, len(request))
	for _, r := range request {
		tags = append(tags, model.Tag{Name: r.Name, Description: r.Description, Colour: r.Colour})
	}

	created, err := h.service.Create(c.Request.Context(), h.kind, tags)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToResponses(c, created))
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=64"`
	Description *string `json:"description" binding:"omitempty,max=512"`
	Colour      *string `json:"colour" binding:"omitempty,max=16"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /targettags/{tagId} updateTargetTag
	//
	// Update target tag
	//
	// Update the name, description or colour of a target tag. Omitted fields are left unchanged.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Tag
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error

	// swagger:route PUT /distributionsettags/{tagId} updateDistributionSetTag
	//
	// Update distribution set tag
	//
	// Update the name, description or colour of a distribution set tag. Omitted fields are left
	// unchanged.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Tag
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	tag, err := h.service.Update(c.Request.Context(), h.kind, id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *tag))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /targettags/{tagId} deleteTargetTag
	//
	// Delete target tag
	//
	// Delete a target tag. The tag is removed from all targets.
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

	// swagger:route DELETE /distributionsettags/{tagId} deleteDistributionSetTag
	//
	// Delete distribution set tag
	//
	// Delete a distribution set tag. The tag is removed from all distribution sets.
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
	id, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	err := h.service.Delete(c.Request.Context(), h.kind, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
