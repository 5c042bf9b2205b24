package distributionsettype

import (
	"context"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(repository distributionSetTypeRepository, softwareModuleTypeService softwareModuleTypeService) *service {
	return &service{
		repository:                repository,
		softwareModuleTypeService: softwareModuleTypeService,
	}
}

type distributionSetTypeRepository interface {
	find(ctx context.Context, id uint) (*model.DistributionSetType, error)
	findByKey(ctx context.Context, key string) (*model.DistributionSetType, error)
	findByIDs(ctx context.Context, ids []uint) ([]model.DistributionSetType, error)
	findAll(ctx context.Context, params query.Params) ([]model.DistributionSetType, int64, error)
	create(ctx context.Context, types []model.DistributionSetType) error
	save(ctx context.Context, dsType *model.DistributionSetType) error
	addElement(ctx context.Context, element model.DistributionSetTypeElement) error
	removeElement(ctx context.Context, element model.DistributionSetTypeElement) error
	inUse(ctx context.Context, id uint) (bool, error)
	delete(ctx context.Context, dsType *model.DistributionSetType) error
}

type softwareModuleTypeService interface {
	Find(ctx context.Context, id uint) (*model.SoftwareModuleType, error)
}

type service struct {
	repository                distributionSetTypeRepository
	softwareModuleTypeService softwareModuleTypeService
}

func (s service) Find(ctx context.Context, id uint) (*model.DistributionSetType, error) {
	return s.repository.find(ctx, id)
}

func (s service) FindByKey(ctx context.Context, key string) (*model.DistributionSetType, error) {
	return s.repository.findByKey(ctx, key)
}

// FindByIDs returns the types with given ids. A missing type results in a not found error.
func (s service) FindByIDs(ctx context.Context, ids []uint) ([]model.DistributionSetType, error) {
	types, err := s.repository.findByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[uint]bool, len(types))
	for _, t := range types {
		found[t.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errdef.NewNotFound("distribution set type %d doesn't exist", id)
		}
	}
	return types, nil
}

func (s service) FindAll(ctx context.Context, params query.Params) ([]model.DistributionSetType, int64, error) {
	return s.repository.findAll(ctx, params)
}

// NewType is a distribution set type to create together with the ids of its mandatory and optional
// software module types.
type NewType struct {
	Type      model.DistributionSetType
	Mandatory []uint
	Optional  []uint
}

func (s service) Create(ctx context.Context, newTypes []NewType) ([]model.DistributionSetType, error) {
	types := make([]model.DistributionSetType, 0, len(newTypes))
	for _, newType := range newTypes {
		dsType := newType.Type
		elements, err := s.elements(ctx, newType.Mandatory, newType.Optional)
		if err != nil {
			return nil, err
		}
		dsType.Elements = elements
		types = append(types, dsType)
	}

	err := s.repository.create(ctx, types)
	if err != nil {
		return nil, err
	}

	for i := range types {
		dsType, err := s.repository.find(ctx, types[i].ID)
		if err != nil {
			return nil, err
		}
		types[i] = *dsType
	}
	return types, nil
}

func (s service) elements(ctx context.Context, mandatory, optional []uint) ([]model.DistributionSetTypeElement, error) {
	seen := make(map[uint]bool)
	var elements []model.DistributionSetTypeElement
	add := func(ids []uint, isMandatory bool) error {
		for _, id := range ids {
			if seen[id] {
				return errdef.NewBadRequest("software module type %d is given more than once", id)
			}
			seen[id] = true

			smType, err := s.softwareModuleTypeService.Find(ctx, id)
			if err != nil {
				return err
			}
			elements = append(elements, model.DistributionSetTypeElement{SoftwareModuleTypeID: smType.ID, Mandatory: isMandatory})
		}
		return nil
	}

	if err := add(mandatory, true); err != nil {
		return nil, err
	}
	if err := add(optional, false); err != nil {
		return nil, err
	}
	return elements, nil
}

type Update struct {
	Description *string
	Colour      *string
}

func (s service) Update(ctx context.Context, id uint, update Update) (*model.DistributionSetType, error) {
	dsType, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		dsType.Description = *update.Description
	}
	if update.Colour != nil {
		dsType.Colour = *update.Colour
	}

	err = s.repository.save(ctx, dsType)
	if err != nil {
		return nil, err
	}
	return dsType, nil
}

// Delete removes the type. Types of existing distribution sets are only marked as deleted.
func (s service) Delete(ctx context.Context, id uint) error {
	dsType, err := s.repository.find(ctx, id)
	if err != nil {
		return err
	}

	inUse, err := s.repository.inUse(ctx, id)
	if err != nil {
		return err
	}

	if inUse {
		dsType.Deleted = true
		return s.repository.save(ctx, dsType)
	}
	return s.repository.delete(ctx, dsType)
}

// FindModuleType returns the mandatory or optional software module type of the distribution set
// type.
func (s service) FindModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) (*model.SoftwareModuleType, error) {
	dsType, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, smType := range dsType.ModuleTypes(mandatory) {
		if smType.ID == softwareModuleTypeID {
			return &smType, nil
		}
	}
	return nil, errdef.NewNotFound("software module type %d isn't part of distribution set type %d", softwareModuleTypeID, id)
}

// AddModuleType adds a mandatory or optional software module type. The module types of a type can't
// be changed once distribution sets of the type exist.
func (s service) AddModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) (*model.DistributionSetType, error) {
	dsType, err := s.modifiable(ctx, id)
	if err != nil {
		return nil, err
	}

	smType, err := s.softwareModuleTypeService.Find(ctx, softwareModuleTypeID)
	if err != nil {
		return nil, err
	}

	err = s.repository.addElement(ctx, model.DistributionSetTypeElement{
		DistributionSetTypeID: dsType.ID,
		SoftwareModuleTypeID:  smType.ID,
		Mandatory:             mandatory,
	})
	if err != nil {
		return nil, err
	}
	return s.repository.find(ctx, id)
}

func (s service) RemoveModuleType(ctx context.Context, id, softwareModuleTypeID uint, mandatory bool) error {
	if _, err := s.FindModuleType(ctx, id, softwareModuleTypeID, mandatory); err != nil {
		return err
	}

	if _, err := s.modifiable(ctx, id); err != nil {
		return err
	}

	return s.repository.removeElement(ctx, model.DistributionSetTypeElement{
		DistributionSetTypeID: id,
		SoftwareModuleTypeID:  softwareModuleTypeID,
	})
}

func (s service) modifiable(ctx context.Context, id uint) (*model.DistributionSetType, error) {
	dsType, err := s.repository.find(ctx, id)
	if err != nil {
		return nil, err
	}

	inUse, err := s.repository.inUse(ctx, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, errdef.NewConflict("module types of distribution set type %q can't be changed as it is in use", dsType.Key)
	}
	return dsType, nil
}
