package distributionset

import (
	"context"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"golang.org/x/sync/errgroup"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(
	logger *slog.Logger,
	repository distributionSetRepository,
	distributionSetTypeService distributionSetTypeService,
	softwareModuleService softwareModuleService,
	tagService tagService,
	deploymentService deploymentService,
) *service {
	return &service{
		logger:                     logger,
		repository:                 repository,
		distributionSetTypeService: distributionSetTypeService,
		softwareModuleService:      softwareModuleService,
		tagService:                 tagService,
		deploymentService:          deploymentService,
	}
}

type distributionSetRepository interface {
	find(ctx context.Context, id uint) (*model.DistributionSet, error)
	findAll(ctx context.Context, params query.Params) ([]model.DistributionSet, int64, error)
	findAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.DistributionSet, int64, error)
	findModules(ctx context.Context, id uint, params query.Params) ([]model.SoftwareModule, int64, error)
	create(ctx context.Context, sets []model.DistributionSet) error
	save(ctx context.Context, ds *model.DistributionSet) error
	addModules(ctx context.Context, ds *model.DistributionSet, modules []model.SoftwareModule) error
	removeModule(ctx context.Context, ds *model.DistributionSet, moduleID uint) error
	assigned(ctx context.Context, id uint) (bool, error)
	delete(ctx context.Context, ds *model.DistributionSet) error
	invalidate(ctx context.Context, ds *model.DistributionSet) error
	countActionsByStatus(ctx context.Context, id uint) (map[string]int64, error)
	countRolloutsByStatus(ctx context.Context, id uint) (map[string]int64, error)
	countAutoAssignments(ctx context.Context, id uint) (int64, error)
}

type distributionSetTypeService interface {
	FindByKey(ctx context.Context, key string) (*model.DistributionSetType, error)
}

type softwareModuleService interface {
	FindByIDs(ctx context.Context, ids []uint) ([]model.SoftwareModule, error)
}

type tagService interface {
	Find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error)
	Assign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error
	Unassign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error
}

type deploymentService interface {
	CancelActionsOf(ctx context.Context, distributionSetID uint, force bool) (int, error)
}

// RolloutStopper stops the rollouts of a distribution set. Rollouts are managed outside of this
// package which is why it's set after construction.
type RolloutStopper interface {
	StopAll(ctx context.Context, distributionSetID uint) (int, error)
}

type service struct {
	logger                     *slog.Logger
	repository                 distributionSetRepository
	distributionSetTypeService distributionSetTypeService
	softwareModuleService      softwareModuleService
	tagService                 tagService
	deploymentService          deploymentService
	rolloutStopper             RolloutStopper
}

// SetRolloutStopper sets the stopper used by Invalidate to stop rollouts.
func (s *service) SetRolloutStopper(stopper RolloutStopper) {
	s.rolloutStopper = stopper
}

func (s service) Find(ctx context.Context, id uint) (*model.DistributionSet, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.DistributionSet, int64, error) {
	return s.repository.findAll(ctx, params)
}

func (s service) FindAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.DistributionSet, int64, error) {
	if _, err := s.tagService.Find(ctx, model.DistributionSetTagKind, tagID); err != nil {
		return nil, 0, err
	}
	return s.repository.findAllByTag(ctx, tagID, params)
}

// NewSet is a distribution set to create with the key of its type and the ids of its modules.
type NewSet struct {
	Set       model.DistributionSet
	Type      string
	ModuleIDs []uint
}

func (s service) Create(ctx context.Context, newSets []NewSet) ([]model.DistributionSet, error) {
	sets := make([]model.DistributionSet, 0, len(newSets))
	for _, newSet := range newSets {
		dsType, err := s.distributionSetTypeService.FindByKey(ctx, newSet.Type)
		if err != nil {
			return nil, err
		}
		if dsType.Deleted {
			return nil, errdef.NewBadRequest("distribution set type %q is deleted", dsType.Key)
		}

		ds := newSet.Set
		ds.TypeID = dsType.ID
		ds.Type = *dsType
		ds.Valid = true

		if len(newSet.ModuleIDs) > 0 {
			modules, err := s.softwareModuleService.FindByIDs(ctx, newSet.ModuleIDs)
			if err != nil {
				return nil, err
			}
			if err := validateModules(ds, nil, modules); err != nil {
				return nil, err
			}
			ds.Modules = modules
		}
		ds.Complete = ds.Type.IsComplete(ds.Modules)

		sets = append(sets, ds)
	}

	err := s.repository.create(ctx, sets)
	if err != nil {
		return nil, err
	}

	created := make([]model.DistributionSet, 0, len(sets))
	for _, ds := range sets {
		found, err := s.repository.find(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		created = append(created, *found)
	}
	return created, nil
}

// validateModules checks that the distribution set accepts modules in addition to assigned.
func validateModules(ds model.DistributionSet, assigned, modules []model.SoftwareModule) error {
	perType := make(map[uint]int)
	for _, module := range assigned {
		perType[module.TypeID]++
	}

	for _, module := range modules {
		if module.Deleted {
			return errdef.NewBadRequest("software module %d is deleted", module.ID)
		}
		if !ds.Type.AllowsModuleType(module.TypeID) {
			return errdef.NewBadRequest("software module %d of type %q can't be part of distribution sets of type %q", module.ID, module.Type.Key, ds.Type.Key)
		}

		perType[module.TypeID]++
		if perType[module.TypeID] > module.Type.MaxAssignments {
			return errdef.NewBadRequest("distribution set can contain at most %d software modules of type %q", module.Type.MaxAssignments, module.Type.Key)
		}
	}
	return nil
}

type Update struct {
	Name                  *string
	Version               *string
	Description           *string
	RequiredMigrationStep *bool
	Locked                *bool
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.DistributionSet, error) {
	ds, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.Deleted {
		return nil, errdef.NewNotFound("distribution set %d doesn't exist", id)
	}

	if update.Locked != nil {
		if !*update.Locked && ds.Locked {
			return nil, errdef.NewBadRequest("distribution set %d can't be unlocked", id)
		}
		ds.Locked = *update.Locked
	}
	if update.Name != nil {
		ds.Name = *update.Name
	}
	if update.Version != nil {
		ds.Version = *update.Version
	}
	if update.Description != nil {
		ds.Description = *update.Description
	}
	if update.RequiredMigrationStep != nil {
		ds.RequiredMigrationStep = *update.RequiredMigrationStep
	}

	err = s.repository.save(ctx, ds)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Delete deletes the distribution set. Sets which were ever assigned are only marked deleted.
func (s service) Delete(ctx context.Context, id uint) error {
	ds, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	assigned, err := s.repository.assigned(ctx, id)
	if err != nil {
		return err
	}

	if assigned {
		ds.Deleted = true
		return s.repository.save(ctx, ds)
	}
	return s.repository.delete(ctx, ds)
}

func (s service) FindModules(ctx context.Context, id uint, params query.Params) ([]model.SoftwareModule, int64, error) {
	if _, err := s.repository.find(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.repository.findModules(ctx, id, params)
}

func (s service) modifiable(ctx context.Context, id uint) (*model.DistributionSet, error) {
	ds, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.Deleted {
		return nil, errdef.NewNotFound("distribution set %d doesn't exist", id)
	}
	if ds.Locked {
		return nil, errdef.NewLocked("distribution set %d is locked", id)
	}
	return ds, nil
}

// AssignModules adds the modules to the distribution set. Modules already part of the set are
// skipped.
func (s service) AssignModules(ctx context.Context, id uint, moduleIDs []uint) (*model.DistributionSet, error) {
	ds, err := s.modifiable(ctx, id)
	if err != nil {
		return nil, err
	}

	modules, err := s.softwareModuleService.FindByIDs(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}

	assigned := make(map[uint]bool, len(ds.Modules))
	for _, module := range ds.Modules {
		assigned[module.ID] = true
	}
	var added []model.SoftwareModule
	for _, module := range modules {
		if !assigned[module.ID] {
			added = append(added, module)
		}
	}
	if len(added) == 0 {
		return ds, nil
	}

	if err := validateModules(*ds, ds.Modules, added); err != nil {
		return nil, err
	}

	ds.Complete = ds.Type.IsComplete(append(ds.Modules, added...))
	err = s.repository.addModules(ctx, ds, added)
	if err != nil {
		return nil, err
	}
	return s.repository.find(ctx, id)
}

func (s service) UnassignModule(ctx context.Context, id, moduleID uint) error {
	ds, err := s.modifiable(ctx, id)
	if err != nil {
		return err
	}

	var remaining []model.SoftwareModule
	found := false
	for _, module := range ds.Modules {
		if module.ID == moduleID {
			found = true
			continue
		}
		remaining = append(remaining, module)
	}
	if !found {
		return errdef.NewNotFound("software module %d is not part of distribution set %d", moduleID, id)
	}

	ds.Complete = ds.Type.IsComplete(remaining)
	return s.repository.removeModule(ctx, ds, moduleID)
}

type CancelationType string

const (
	CancelationNone  CancelationType = "none"
	CancelationSoft  CancelationType = "soft"
	CancelationForce CancelationType = "force"
)

// Invalidation describes how the actions and rollouts of a distribution set are handled when it's
// invalidated. Rollouts are always stopped if actions are canceled.
type Invalidation struct {
	CancelationType CancelationType
	CancelRollouts  bool
}

// Invalidate marks the distribution set invalid so it can no longer be assigned. Its auto
// assignments are removed.
func (s service) Invalidate(ctx context.Context, id uint, invalidation Invalidation) error {
	ds, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}
	if !ds.Valid {
		return errdef.NewBadRequest("distribution set %d is already invalid", id)
	}

	err = s.repository.invalidate(ctx, ds)
	if err != nil {
		return err
	}

	stopRollouts := invalidation.CancelRollouts || invalidation.CancelationType != CancelationNone
	if stopRollouts && s.rolloutStopper != nil {
		stopped, err := s.rolloutStopper.StopAll(ctx, id)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "Stopped rollouts of invalidated distribution set", "distributionSetId", id, "count", stopped)
	}

	if invalidation.CancelationType != CancelationNone {
		canceled, err := s.deploymentService.CancelActionsOf(ctx, id, invalidation.CancelationType == CancelationForce)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "Canceled actions of invalidated distribution set", "distributionSetId", id, "count", canceled)
	}
	return nil
}

type Statistics struct {
	Actions         map[string]int64
	Rollouts        map[string]int64
	AutoAssignments int64
}

// Statistics counts the actions and rollouts of the distribution set by status alongside the
// number of target filters assigning it automatically.
func (s service) Statistics(ctx context.Context, id uint) (Statistics, error) {
	if _, err := s.repository.find(ctx, id); err != nil {
		return Statistics{}, err
	}

	var statistics Statistics
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statistics.Actions, err = s.repository.countActionsByStatus(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		statistics.Rollouts, err = s.repository.countRolloutsByStatus(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		statistics.AutoAssignments, err = s.repository.countAutoAssignments(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}
	return statistics, nil
}

func (s service) AssignTag(ctx context.Context, tagID uint, ids ...uint) error {
	if err := s.exist(ctx, ids); err != nil {
		return err
	}
	return s.tagService.Assign(ctx, model.DistributionSetTagKind, tagID, ids...)
}

func (s service) UnassignTag(ctx context.Context, tagID uint, ids ...uint) error {
	return s.tagService.Unassign(ctx, model.DistributionSetTagKind, tagID, ids...)
}

func (s service) exist(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		if _, err := s.repository.find(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
