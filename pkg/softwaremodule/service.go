package softwaremodule

import (
	"context"
	"io"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(logger *slog.Logger, repository softwareModuleRepository, softwareModuleTypeService softwareModuleTypeService, store artifactStore) *service {
	return &service{
		logger:                    logger,
		repository:                repository,
		softwareModuleTypeService: softwareModuleTypeService,
		store:                     store,
	}
}

type softwareModuleRepository interface {
	find(ctx context.Context, id uint) (*model.SoftwareModule, error)
	findByIDs(ctx context.Context, ids []uint) ([]model.SoftwareModule, error)
	findAll(ctx context.Context, params query.Params) ([]model.SoftwareModule, int64, error)
	create(ctx context.Context, modules []model.SoftwareModule) error
	save(ctx context.Context, module *model.SoftwareModule) error
	assigned(ctx context.Context, id uint) (bool, error)
	delete(ctx context.Context, module *model.SoftwareModule) error
	findArtifact(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, error)
	createArtifact(ctx context.Context, artifact *model.Artifact) error
	deleteArtifact(ctx context.Context, artifact *model.Artifact) error
	countObjectReferences(ctx context.Context, key string) (int64, error)
}

type softwareModuleTypeService interface {
	FindByKey(ctx context.Context, key string) (*model.SoftwareModuleType, error)
}

// artifactStore keeps the binaries of artifacts.
type artifactStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	logger                    *slog.Logger
	repository                softwareModuleRepository
	softwareModuleTypeService softwareModuleTypeService
	store                     artifactStore
}

func (s service) Find(ctx context.Context, id uint) (*model.SoftwareModule, error) {
	return s.repository.find(ctx, id)
}

// FindByIDs returns the modules with given ids. A missing module results in a not found error.
func (s service) FindByIDs(ctx context.Context, ids []uint) ([]model.SoftwareModule, error) {
	modules, err := s.repository.findByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[uint]bool, len(modules))
	for _, module := range modules {
		found[module.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errdef.NewNotFound("software module %d doesn't exist", id)
		}
	}
	return modules, nil
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.SoftwareModule, int64, error) {
	return s.repository.findAll(ctx, params)
}

// NewModule is a software module to create with the key of its type.
type NewModule struct {
	Module model.SoftwareModule
	Type   string
}

func (s service) Create(ctx context.Context, newModules []NewModule) ([]model.SoftwareModule, error) {
	modules := make([]model.SoftwareModule, 0, len(newModules))
	for _, newModule := range newModules {
		smType, err := s.softwareModuleTypeService.FindByKey(ctx, newModule.Type)
		if err != nil {
			return nil, err
		}
		if smType.Deleted {
			return nil, errdef.NewBadRequest("software module type %q is deleted", smType.Key)
		}

		module := newModule.Module
		module.TypeID = smType.ID
		module.Type = *smType
		modules = append(modules, module)
	}

	err := s.repository.create(ctx, modules)
	if err != nil {
		return nil, err
	}
	return modules, nil
}

type Update struct {
	Description *string
	Vendor      *string
	Locked      *bool
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.SoftwareModule, error) {
	module, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		module.Description = *update.Description
	}
	if update.Vendor != nil {
		module.Vendor = *update.Vendor
	}
	if update.Locked != nil {
		if module.Locked && !*update.Locked {
			return nil, errdef.NewBadRequest("software module %d can't be unlocked", id)
		}
		module.Locked = *update.Locked
	}

	err = s.repository.save(ctx, module)
	if err != nil {
		return nil, err
	}
	return module, nil
}

// Delete removes the module and its artifacts. Modules of distribution sets are only marked as
// deleted and keep their artifacts.
func (s service) Delete(ctx context.Context, id uint) error {
	module, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	assigned, err := s.repository.assigned(ctx, id)
	if err != nil {
		return err
	}
	if assigned {
		module.Deleted = true
		return s.repository.save(ctx, module)
	}

	err = s.repository.delete(ctx, module)
	if err != nil {
		return err
	}

	for _, artifact := range module.Artifacts {
		s.deleteObject(ctx, artifact.ObjectKey)
	}
	return nil
}
