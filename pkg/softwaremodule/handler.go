package softwaremodule

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

func NewHandler(service softwareModuleService) Handler {
	return Handler{service: service}
}

type softwareModuleService interface {
	Find(ctx context.Context, id uint) (*model.SoftwareModule, error)
	FindAll(ctx context.Context, params query.Params) ([]model.SoftwareModule, int64, error)
	Create(ctx context.Context, newModules []NewModule) ([]model.SoftwareModule, error)
	Update(ctx context.Context, id uint, update Update) (*model.SoftwareModule, error)
	Delete(ctx context.Context, id uint) error
	Upload(ctx context.Context, moduleID uint, filename string, body io.ReadSeeker, expected Hashes) (*model.Artifact, error)
	FindArtifacts(ctx context.Context, moduleID uint) ([]model.Artifact, error)
	FindArtifact(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, error)
	Download(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, io.ReadCloser, int64, error)
	DeleteArtifact(ctx context.Context, moduleID, artifactID uint) error
}

type Handler struct {
	service softwareModuleService
}

// ResolveModule resolves the software module of the request path. It is used to mount the
// metadata routes of software modules.
func (h Handler) ResolveModule(c *gin.Context) (uint, bool) {
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return 0, false
	}

	if _, err := h.service.Find(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return 0, false
	}
	return id, true
}

type Response struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Type        string `json:"type"`
	TypeName    string `json:"typeName"`
	Vendor      string `json:"vendor"`
	Description string `json:"description"`
	Encrypted   bool   `json:"encrypted"`
	Locked      bool   `json:"locked"`
	Deleted     bool   `json:"deleted"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func ToResponse(c *gin.Context, module model.SoftwareModule) Response {
	links := handler.SelfLink(c, "softwaremodules", module.ID)
	links["type"] = handler.Link{Href: handler.Href(c, "softwaremoduletypes", module.TypeID)}
	links["artifacts"] = handler.Link{Href: handler.Href(c, "softwaremodules", module.ID, "artifacts")}
	links["metadata"] = handler.Link{Href: handler.Href(c, "softwaremodules", module.ID, "metadata") + "?offset=0&limit=50"}

	return Response{
		ID:          module.ID,
		Name:        module.Name,
		Version:     module.Version,
		Type:        module.Type.Key,
		TypeName:    module.Type.Name,
		Vendor:      module.Vendor,
		Description: module.Description,
		Encrypted:   module.Encrypted,
		Locked:      module.Locked,
		Deleted:     module.Deleted,
		Audit:       handler.NewAudit(module.Base),
		Links:       links,
	}
}

func ToResponses(c *gin.Context, modules []model.SoftwareModule) []Response {
	responses := make([]Response, 0, len(modules))
	for _, module := range modules {
		responses = append(responses, ToResponse(c, module))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /softwaremodules findAllSoftwareModules
	//
	// Find software modules
	//
	// Find software modules which are not deleted, paged and filterable by id, name, version, type,
	// vendor, description and metadata.<key>.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModulePage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	modules, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, modules), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /softwaremodules/{softwareModuleId} findSoftwareModule
	//
	// Find software module
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModule
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return
	}

	module, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *module))
}

type CreateRequest struct {
	Name    string `json:"name" binding:"required,max=128"`
	Version string `json:"version" binding:"required,max=64"`
	// Key of the software module type
	Type        string `json:"type" binding:"required"`
	Vendor      string `json:"vendor" binding:"max=256"`
	Description string `json:"description" binding:"max=512"`
	Encrypted   bool   `json:"encrypted"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /softwaremodules createSoftwareModules
	//
	// Create software modules
	//
	// Create one or more software modules. Name, version and type must be unique.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: SoftwareModuleList
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

	newModules := make([]NewModule, 0, len(request))
	for _, r := range request {
		newModules = append(newModules, NewModule{
			Module: model.SoftwareModule{
				Name:        r.Name,
				Version:     r.Version,
				Vendor:      r.Vendor,
				Description: r.Description,
				Encrypted:   r.Encrypted,
			},
			Type: r.Type,
		})
	}

	created, err := h.service.Create(c.Request.Context(), newModules)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToResponses(c, created))
}

type UpdateRequest struct {
	Description *string `json:"description" binding:"omitempty,max=512"`
	Vendor      *string `json:"vendor" binding:"omitempty,max=256"`
	Locked      *bool   `json:"locked"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /softwaremodules/{softwareModuleId} updateSoftwareModule
	//
	// Update software module
	//
	// Description and vendor can be changed. A module can be locked but not unlocked.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModule
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	module, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *module))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /softwaremodules/{softwareModuleId} deleteSoftwareModule
	//
	// Delete software module
	//
	// Modules of distribution sets are marked as deleted instead.
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
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
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

type ArtifactHashes struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

type ArtifactResponse struct {
	ID               uint           `json:"id"`
	ProvidedFilename string         `json:"providedFilename"`
	Size             int64          `json:"size"`
	Hashes           ArtifactHashes `json:"hashes"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func toArtifactResponse(c *gin.Context, artifact model.Artifact) ArtifactResponse {
	links := handler.SelfLink(c, "softwaremodules", artifact.SoftwareModuleID, "artifacts", artifact.ID)
	links["download"] = handler.Link{Href: handler.Href(c, "softwaremodules", artifact.SoftwareModuleID, "artifacts", artifact.ID, "download")}

	return ArtifactResponse{
		ID:               artifact.ID,
		ProvidedFilename: artifact.Filename,
		Size:             artifact.Size,
		Hashes: ArtifactHashes{
			MD5:    artifact.MD5,
			SHA1:   artifact.SHA1,
			SHA256: artifact.SHA256,
		},
		Audit: handler.NewAudit(artifact.Base),
		Links: links,
	}
}

type UploadRequest struct {
	File      *multipart.FileHeader `form:"file" binding:"required"`
	Filename  string                `form:"filename" binding:"max=256"`
	MD5Sum    string                `form:"md5sum"`
	SHA1Sum   string                `form:"sha1sum"`
	SHA256Sum string                `form:"sha256sum"`
}

func (h Handler) Upload(c *gin.Context) {
	// swagger:route POST /softwaremodules/{softwareModuleId}/artifacts uploadArtifact
	//
	// Upload artifact
	//
	// Upload a file as artifact of the software module. The filename defaults to the name of the
	// uploaded file. Given checksums are verified against the uploaded file.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: Artifact
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	//   423: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return
	}

	var request UploadRequest
	if err := handler.FormBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	filename := request.Filename
	if filename == "" {
		filename = request.File.Filename
	}

	file, err := request.File.Open()
	if err != nil {
		_ = c.Error(errdef.NewBadRequest("failed to open uploaded file: %v", err))
		return
	}
	defer func(file multipart.File) {
		_ = file.Close()
	}(file)

	expected := Hashes{MD5: request.MD5Sum, SHA1: request.SHA1Sum, SHA256: request.SHA256Sum}
	artifact, err := h.service.Upload(c.Request.Context(), id, filename, file, expected)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, toArtifactResponse(c, *artifact))
}

func (h Handler) FindArtifacts(c *gin.Context) {
	// swagger:route GET /softwaremodules/{softwareModuleId}/artifacts findArtifacts
	//
	// Find artifacts
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: ArtifactList
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return
	}

	artifacts, err := h.service.FindArtifacts(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]ArtifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		responses = append(responses, toArtifactResponse(c, artifact))
	}
	c.JSON(http.StatusOK, responses)
}

func (h Handler) FindArtifact(c *gin.Context) {
	// swagger:route GET /softwaremodules/{softwareModuleId}/artifacts/{artifactId} findArtifact
	//
	// Find artifact
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Artifact
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, artifactID, ok := artifactPathParameters(c)
	if !ok {
		return
	}

	artifact, err := h.service.FindArtifact(c.Request.Context(), id, artifactID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toArtifactResponse(c, *artifact))
}

func (h Handler) Download(c *gin.Context) {
	// swagger:route GET /softwaremodules/{softwareModuleId}/artifacts/{artifactId}/download downloadArtifact
	//
	// Download artifact
	//
	// produces:
	// - application/octet-stream
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DownloadArtifactResponse
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, artifactID, ok := artifactPathParameters(c)
	if !ok {
		return
	}

	artifact, body, size, err := h.service.Download(c.Request.Context(), id, artifactID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(body)

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", artifact.Filename),
		"ETag":                fmt.Sprintf("%q", artifact.SHA1),
	}
	c.DataFromReader(http.StatusOK, size, "application/octet-stream", body, headers)
}

func (h Handler) DeleteArtifact(c *gin.Context) {
	// swagger:route DELETE /softwaremodules/{softwareModuleId}/artifacts/{artifactId} deleteArtifact
	//
	// Delete artifact
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
	//   423: Error
	id, artifactID, ok := artifactPathParameters(c)
	if !ok {
		return
	}

	err := h.service.DeleteArtifact(c.Request.Context(), id, artifactID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func artifactPathParameters(c *gin.Context) (uint, uint, bool) {
	id, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return 0, 0, false
	}

	artifactID, ok := handler.GetPathParameter(c, "artifactId")
	if !ok {
		return 0, 0, false
	}
	return id, artifactID, true
}
