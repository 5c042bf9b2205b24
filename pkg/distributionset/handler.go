package distributionset

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/softwaremodule"
	"github.com/gin-gonic/gin"
)

func NewHandler(service distributionSetService) Handler {
	return Handler{service: service}
}

type distributionSetService interface {
	Find(ctx context.Context, id uint) (*model.DistributionSet, error)
	FindAll(ctx context.Context, params query.Params) ([]model.DistributionSet, int64, error)
	FindAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.DistributionSet, int64, error)
	Create(ctx context.Context, newSets []NewSet) ([]model.DistributionSet, error)
	Update(ctx context.Context, id uint, update Update) (*model.DistributionSet, error)
	Delete(ctx context.Context, id uint) error
	FindModules(ctx context.Context, id uint, params query.Params) ([]model.SoftwareModule, int64, error)
	AssignModules(ctx context.Context, id uint, moduleIDs []uint) (*model.DistributionSet, error)
	UnassignModule(ctx context.Context, id, moduleID uint) error
	Invalidate(ctx context.Context, id uint, invalidation Invalidation) error
	Statistics(ctx context.Context, id uint) (Statistics, error)
	AssignTag(ctx context.Context, tagID uint, ids ...uint) error
	UnassignTag(ctx context.Context, tagID uint, ids ...uint) error
}

type Handler struct {
	service distributionSetService
}

// ResolveSet resolves the distribution set of the request path. It is used to mount the metadata
// routes of distribution sets.
func (h Handler) ResolveSet(c *gin.Context) (uint, bool) {
	id, ok := handler.GetPathParameter(c, "distributionSetId")
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
	ID                    uint                      `json:"id"`
	Name                  string                    `json:"name"`
	Version               string                    `json:"version"`
	Type                  string                    `json:"type"`
	TypeName              string                    `json:"typeName"`
	Description           string                    `json:"description"`
	RequiredMigrationStep bool                      `json:"requiredMigrationStep"`
	Complete              bool                      `json:"complete"`
	Locked                bool                      `json:"locked"`
	Valid                 bool                      `json:"valid"`
	Deleted               bool                      `json:"deleted"`
	Modules               []softwaremodule.Response `json:"modules"`
	handler.Audit
	Links handler.Links `json:"_links"`
}

func ToResponse(c *gin.Context, ds model.DistributionSet) Response {
	links := handler.SelfLink(c, "distributionsets", ds.ID)
	links["type"] = handler.Link{Href: handler.Href(c, "distributionsettypes", ds.TypeID)}
	links["modules"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "assignedSM") + "?offset=0&limit=50"}
	links["metadata"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "metadata") + "?offset=0&limit=50"}
	links["assignedTargets"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "assignedTargets") + "?offset=0&limit=50"}
	links["installedTargets"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "installedTargets") + "?offset=0&limit=50"}
	links["autoAssignTargetFilters"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "autoAssignTargetFilters") + "?offset=0&limit=50"}
	links["statistics"] = handler.Link{Href: handler.Href(c, "distributionsets", ds.ID, "statistics")}

	return Response{
		ID:                    ds.ID,
		Name:                  ds.Name,
		Version:               ds.Version,
		Type:                  ds.Type.Key,
		TypeName:              ds.Type.Name,
		Description:           ds.Description,
		RequiredMigrationStep: ds.RequiredMigrationStep,
		Complete:              ds.Complete,
		Locked:                ds.Locked,
		Valid:                 ds.Valid,
		Deleted:               ds.Deleted,
		Modules:               softwaremodule.ToResponses(c, ds.Modules),
		Audit:                 handler.NewAudit(ds.Base),
		Links:                 links,
	}
}

func ToResponses(c *gin.Context, sets []model.DistributionSet) []Response {
	responses := make([]Response, 0, len(sets))
	for _, ds := range sets {
		responses = append(responses, ToResponse(c, ds))
	}
	return responses
}

func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /distributionsets findAllDistributionSets
	//
	// Find distribution sets
	//
	// Find distribution sets which are not deleted, paged and filterable by id, name, version,
	// description, complete, valid, locked, type, tag, module and metadata.<key>.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetPage
	//   400: Error
	//   401: Error
	//   403: Error
	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sets, total, err := h.service.FindAll(c.Request.Context(), params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, sets), total))
}

func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId} findDistributionSet
	//
	// Find distribution set
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSet
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	ds, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *ds))
}

type ModuleReference struct {
	ID uint `json:"id" binding:"required"`
}

func moduleIDs(references []ModuleReference) []uint {
	ids := make([]uint, 0, len(references))
	for _, reference := range references {
		ids = append(ids, reference.ID)
	}
	return ids
}

type CreateRequest struct {
	Name    string `json:"name" binding:"required,max=128"`
	Version string `json:"version" binding:"required,max=64"`
	// Key of the distribution set type
	Type                  string            `json:"type" binding:"required"`
	Description           string            `json:"description" binding:"max=512"`
	RequiredMigrationStep bool              `json:"requiredMigrationStep"`
	Modules               []ModuleReference `json:"modules" binding:"dive"`
}

func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /distributionsets createDistributionSets
	//
	// Create distribution sets
	//
	// Create one or more distribution sets. Name and version must be unique. Modules are
	// optional, a set is complete once it contains a module of every mandatory module type.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: DistributionSetList
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

	newSets := make([]NewSet, 0, len(request))
	for _, r := range request {
		newSets = append(newSets, NewSet{
			Set: model.DistributionSet{
				Name:                  r.Name,
				Version:               r.Version,
				Description:           r.Description,
				RequiredMigrationStep: r.RequiredMigrationStep,
			},
			Type:      r.Type,
			ModuleIDs: moduleIDs(r.Modules),
		})
	}

	sets, err := h.service.Create(c.Request.Context(), newSets)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, ToResponses(c, sets))
}

type UpdateRequest struct {
	Name                  *string `json:"name" binding:"omitempty,min=1,max=128"`
	Version               *string `json:"version" binding:"omitempty,min=1,max=64"`
	Description           *string `json:"description" binding:"omitempty,max=512"`
	RequiredMigrationStep *bool   `json:"requiredMigrationStep"`
	Locked                *bool   `json:"locked"`
}

func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /distributionsets/{distributionSetId} updateDistributionSet
	//
	// Update distribution set
	//
	// Fields which are not given keep their value. A locked set can't be unlocked.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSet
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	//   415: Error
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	var request UpdateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	ds, err := h.service.Update(c.Request.Context(), id, Update(request))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ToResponse(c, *ds))
}

func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /distributionsets/{distributionSetId} deleteDistributionSet
	//
	// Delete distribution set
	//
	// Distribution sets which were assigned are marked as deleted instead.
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
	id, ok := handler.GetPathParameter(c, "distributionSetId")
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

func (h Handler) FindModules(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/assignedSM findDistributionSetModules
	//
	// Find software modules of distribution set
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: SoftwareModulePage
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	params, err := handler.GetQueryParams(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	modules, total, err := h.service.FindModules(c.Request.Context(), id, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(softwaremodule.ToResponses(c, modules), total))
}

func (h Handler) AssignModules(c *gin.Context) {
	// swagger:route POST /distributionsets/{distributionSetId}/assignedSM assignDistributionSetModules
	//
	// Assign software modules to distribution set
	//
	// The type of each module must be part of the distribution set type and the number of modules
	// per type is limited by its max assignments. Locked sets can't be changed.
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
	//   423: Error
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	var request []ModuleReference
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}
	if len(request) == 0 {
		_ = c.Error(errdef.NewBadRequest("at least one software module is required"))
		return
	}

	if _, err := h.service.AssignModules(c.Request.Context(), id, moduleIDs(request)); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) UnassignModule(c *gin.Context) {
	// swagger:route DELETE /distributionsets/{distributionSetId}/assignedSM/{softwareModuleId} unassignDistributionSetModule
	//
	// Remove software module from distribution set
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
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	moduleID, ok := handler.GetPathParameter(c, "softwareModuleId")
	if !ok {
		return
	}

	if err := h.service.UnassignModule(c.Request.Context(), id, moduleID); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

type InvalidateRequest struct {
	ActionCancelationType CancelationType `json:"actionCancelationType" binding:"required,oneof=none soft force"`
	CancelRollouts        bool            `json:"cancelRollouts"`
}

func (h Handler) Invalidate(c *gin.Context) {
	// swagger:route POST /distributionsets/{distributionSetId}/invalidate invalidateDistributionSet
	//
	// Invalidate distribution set
	//
	// An invalid set can no longer be assigned and is removed from auto assignments. Its actions
	// are canceled soft or forced depending on actionCancelationType, in which case its rollouts
	// are stopped as well.
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
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	var request InvalidateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	err := h.service.Invalidate(c.Request.Context(), id, Invalidation{
		CancelationType: request.ActionCancelationType,
		CancelRollouts:  request.CancelRollouts,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

type StatisticsResponse struct {
	TotalActionsPerStatus  map[string]int64 `json:"totalActionsPerStatus,omitempty"`
	TotalRolloutsPerStatus map[string]int64 `json:"totalRolloutsPerStatus,omitempty"`
	TotalAutoAssignments   *int64           `json:"totalAutoAssignments,omitempty"`
}

// withTotal adds the sum of counts as total. Empty counts are omitted.
func withTotal(counts map[string]int64) map[string]int64 {
	if len(counts) == 0 {
		return nil
	}

	var total int64
	for _, count := range counts {
		total += count
	}
	counts["total"] = total
	return counts
}

func (h Handler) statistics(c *gin.Context, f func(Statistics) StatisticsResponse) {
	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	statistics, err := h.service.Statistics(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, f(statistics))
}

func (h Handler) Statistics(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/statistics findDistributionSetStatistics
	//
	// Find statistics of distribution set
	//
	// Count actions and rollouts of the distribution set per status and its auto assignments.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetStatistics
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.statistics(c, func(s Statistics) StatisticsResponse {
		return StatisticsResponse{
			TotalActionsPerStatus:  withTotal(s.Actions),
			TotalRolloutsPerStatus: withTotal(s.Rollouts),
			TotalAutoAssignments:   &s.AutoAssignments,
		}
	})
}

func (h Handler) ActionStatistics(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/statistics/actions findDistributionSetActionStatistics
	//
	// Count actions of distribution set per status
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetStatistics
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.statistics(c, func(s Statistics) StatisticsResponse {
		return StatisticsResponse{TotalActionsPerStatus: withTotal(s.Actions)}
	})
}

func (h Handler) RolloutStatistics(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/statistics/rollouts findDistributionSetRolloutStatistics
	//
	// Count rollouts of distribution set per status
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetStatistics
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.statistics(c, func(s Statistics) StatisticsResponse {
		return StatisticsResponse{TotalRolloutsPerStatus: withTotal(s.Rollouts)}
	})
}

func (h Handler) AutoAssignmentStatistics(c *gin.Context) {
	// swagger:route GET /distributionsets/{distributionSetId}/statistics/autoassignments findDistributionSetAutoAssignmentStatistics
	//
	// Count auto assignments of distribution set
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetStatistics
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	h.statistics(c, func(s Statistics) StatisticsResponse {
		return StatisticsResponse{TotalAutoAssignments: &s.AutoAssignments}
	})
}

func (h Handler) FindAllByTag(c *gin.Context) {
	// swagger:route GET /distributionsettags/{tagId}/assigned findDistributionSetsByTag
	//
	// Find distribution sets of tag
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: DistributionSetPage
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

	sets, total, err := h.service.FindAllByTag(c.Request.Context(), tagID, params)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewPagedList(ToResponses(c, sets), total))
}

func (h Handler) AssignTag(c *gin.Context) {
	// swagger:route POST /distributionsettags/{tagId}/assigned assignDistributionSetTag
	//
	// Assign tag to distribution sets
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
	tagID, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	var ids []uint
	if err := handler.DataBinder(c, &ids); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.AssignTag(c.Request.Context(), tagID, ids...); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) AssignTagTo(c *gin.Context) {
	// swagger:route POST /distributionsettags/{tagId}/assigned/{distributionSetId} assignDistributionSetTagTo
	//
	// Assign tag to distribution set
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
	h.toggleTag(c, true)
}

func (h Handler) UnassignTagFrom(c *gin.Context) {
	// swagger:route DELETE /distributionsettags/{tagId}/assigned/{distributionSetId} unassignDistributionSetTagFrom
	//
	// Remove tag from distribution set
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
	h.toggleTag(c, false)
}

func (h Handler) UnassignTag(c *gin.Context) {
	// swagger:route DELETE /distributionsettags/{tagId}/assigned unassignDistributionSetTag
	//
	// Remove tag from distribution sets
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
	tagID, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	var ids []uint
	if err := handler.DataBinder(c, &ids); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.UnassignTag(c.Request.Context(), tagID, ids...); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}

func (h Handler) toggleTag(c *gin.Context, assign bool) {
	tagID, ok := handler.GetPathParameter(c, "tagId")
	if !ok {
		return
	}

	id, ok := handler.GetPathParameter(c, "distributionSetId")
	if !ok {
		return
	}

	var err error
	if assign {
		err = h.service.AssignTag(c.Request.Context(), tagID, id)
	} else {
		err = h.service.UnassignTag(c.Request.Context(), tagID, id)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
