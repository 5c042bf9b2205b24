package softwaremoduletype

import (
	"context"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(repository softwareModuleTypeRepository) *service {
	return &service{repository: repository}
}

type softwareModuleTypeRepository interface {
	find(ctx context.Context, id uint) (*model.SoftwareModuleType, error)
	findByKey(ctx context.Context, key string) (*model.SoftwareModuleType, error)
	findAll(ctx context.Context, params query.Params) ([]model.SoftwareModuleType, int64, error)
	create(ctx context.Context, types []model.SoftwareModuleType) error
	save(ctx context.Context, smType *model.SoftwareModuleType) error
	inUse(ctx context.Context, id uint) (bool, error)
	delete(ctx context.Context, smType *model.SoftwareModuleType) error
}

type service struct {
	repository softwareModuleTypeRepository
}

func (s service) Find(ctx context.Context, id uint) (*model.SoftwareModuleType, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindByKey(ctx context.Context, key string) (*model.SoftwareModuleType, error) {
	return s.repository.findByKey(ctx, key)
}

// FindAll returns the types which are not deleted.
func (s service) FindAll(ctx context.Context, params query.Params) ([]model.SoftwareModuleType, int64, error) {
	return s.repository.findAll(ctx, params)
}

func (s service) Create(ctx context.Context, types []model.SoftwareModuleType) ([]model.SoftwareModuleType, error) {
	for i := range types {
		if types[i].MaxAssignments == 0 {
			types[i].MaxAssignments = 1
		}
		if types[i].MaxAssignments < 1 {
			return nil, errdef.NewBadRequest("maxAssignments of software module type %q must be at least 1", types[i].Key)
		}
	}

	err := s.repository.create(ctx, types)
	if err != nil {
		return nil, err
	}
	return types, nil
}

type Update struct {
	Description *string
	Colour      *string
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.SoftwareModuleType, error) {
	smType, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		smType.Description = *update.Description
	}
	if update.Colour != nil {
		smType.Colour = *update.Colour
	}

	err = s.repository.save(ctx, smType)
	if err != nil {
		return nil, err
	}
	return smType, nil
}

// Delete removes the type. Types still referenced by software modules or distribution set types
// are only marked as deleted.
func (s service) Delete(ctx context.Context, id uint) error {
	smType, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	inUse, err := s.repository.inUse(ctx, id)
	if err != nil {
		return err
	}

	if inUse {
		smType.Deleted = true
		return s.repository.save(ctx, smType)
	}
	return s.repository.delete(ctx, smType)
}
