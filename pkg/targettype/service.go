package targettype

import (
	"context"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(repository targetTypeRepository, distributionSetTypeService distributionSetTypeService) *service {
	return &service{
		repository:                 repository,
		distributionSetTypeService: distributionSetTypeService,
	}
}

type targetTypeRepository interface {
	find(ctx context.Context, id uint) (*model.TargetType, error)
	findAll(ctx context.Context, params query.Params) ([]model.TargetType, int64, error)
	create(ctx context.Context, types []model.TargetType) error
	save(ctx context.Context, targetType *model.TargetType) error
	addCompatible(ctx context.Context, id uint, dsTypes []model.DistributionSetType) error
	removeCompatible(ctx context.Context, id, dsTypeID uint) error
	countTargets(ctx context.Context, id uint) (int64, error)
	delete(ctx context.Context, id uint) error
}

type distributionSetTypeService interface {
	FindByIDs(ctx context.Context, ids []uint) ([]model.DistributionSetType, error)
}

type service struct {
	repository                 targetTypeRepository
	distributionSetTypeService distributionSetTypeService
}

func (s service) Find(ctx context.Context, id uint) (*model.TargetType, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.TargetType, int64, error) {
	return s.repository.findAll(ctx, params)
}

// NewType is a target type to create together with the ids of its compatible distribution set
// types.
type NewType struct {
	Type                           model.TargetType
	CompatibleDistributionSetTypes []uint
}

func (s service) Create(ctx context.Context, newTypes []NewType) ([]model.TargetType, error) {
	types := make([]model.TargetType, 0, len(newTypes))
	for _, newType := range newTypes {
		targetType := newType.Type
		if len(newType.CompatibleDistributionSetTypes) > 0 {
			dsTypes, err := s.distributionSetTypeService.FindByIDs(ctx, newType.CompatibleDistributionSetTypes)
			if err != nil {
				return nil, err
			}
			targetType.DistributionSetTypes = dsTypes
		}
		types = append(types, targetType)
	}

	err := s.repository.create(ctx, types)
	if err != nil {
		return nil, err
	}
	return types, nil
}

// Update holds the changeable fields of a target type. The key of a type is immutable.
type Update struct {
	Name        *string
	Description *string
	Colour      *string
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.TargetType, error) {
	targetType, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		targetType.Name = *update.Name
	}
	if update.Description != nil {
		targetType.Description = *update.Description
	}
	if update.Colour != nil {
		targetType.Colour = *update.Colour
	}

	err = s.repository.save(ctx, targetType)
	if err != nil {
		return nil, err
	}
	return targetType, nil
}

func (s service) Delete(ctx context.Context, id uint) error {
	targetType, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repository.countTargets(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errdef.NewConflict("target type %q is in use by %d targets", targetType.Key, count)
	}

	return s.repository.delete(ctx, id)
}

func (s service) AddCompatible(ctx context.Context, id uint, dsTypeIDs []uint) (*model.TargetType, error) {
	if _, err := s.repository.find(ctx, id); err != nil {
		return nil, err
	}

	dsTypes, err := s.distributionSetTypeService.FindByIDs(ctx, dsTypeIDs)
	if err != nil {
		return nil, err
	}

	err = s.repository.addCompatible(ctx, id, dsTypes)
	if err != nil {
		return nil, err
	}
	return s.repository.find(ctx, id)
}

func (s service) RemoveCompatible(ctx context.Context, id, dsTypeID uint) error {
	targetType, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	if !targetType.IsCompatible(dsTypeID) {
		return errdef.NewNotFound("distribution set type %d isn't compatible with target type %d", dsTypeID, id)
	}

	return s.repository.removeCompatible(ctx, id, dsTypeID)
}
