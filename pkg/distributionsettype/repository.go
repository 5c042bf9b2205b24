package distributionsettype

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

const preloadElements = "Elements.SoftwareModuleType"

func (r repository) find(ctx context.Context, id uint) (*model.DistributionSetType, error) {
	var dsType *model.DistributionSetType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload(preloadElements).
		First(&dsType, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("distribution set type %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find distribution set type %d: %v", id, err)
	}

	return dsType, nil
}

func (r repository) findByKey(ctx context.Context, key string) (*model.DistributionSetType, error) {
	var dsType *model.DistributionSetType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload(preloadElements).
		Where("key = ?", key).
		First(&dsType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("distribution set type %q doesn't exist", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find distribution set type %q: %v", key, err)
	}

	return dsType, nil
}

func (r repository) findByIDs(ctx context.Context, ids []uint) ([]model.DistributionSetType, error) {
	var types []model.DistributionSetType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("id IN ?", ids).
		Find(&types).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find distribution set types: %v", err)
	}
	return types, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.DistributionSetType, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("NOT deleted")

	types, total, err := query.Page[model.DistributionSetType](db, params, query.DistributionSetTypeFields, preloadElements)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find distribution set types: %v", err)
	}
	return types, total, err
}

func (r repository) create(ctx context.Context, types []model.DistributionSetType) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit("Elements").Create(&types).Error
		if err != nil {
			return err
		}

		var elements []model.DistributionSetTypeElement
		for i := range types {
			for j := range types[i].Elements {
				types[i].Elements[j].DistributionSetTypeID = types[i].ID
				elements = append(elements, types[i].Elements[j])
			}
		}
		if len(elements) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&elements).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("distribution set type with given key or name already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create distribution set types: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, dsType *model.DistributionSetType) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(dsType).Error
	if err != nil {
		return fmt.Errorf("failed to update distribution set type %d: %v", dsType.ID, err)
	}
	return nil
}

func (r repository) addElement(ctx context.Context, element model.DistributionSetTypeElement) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&element).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("software module type %d is already part of distribution set type %d", element.SoftwareModuleTypeID, element.DistributionSetTypeID)
	}
	if err != nil {
		return fmt.Errorf("failed to add software module type to distribution set type: %v", err)
	}
	return nil
}

func (r repository) removeElement(ctx context.Context, element model.DistributionSetTypeElement) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.
		WithContext(ctx).
		Where("distribution_set_type_id = ? AND software_module_type_id = ?", element.DistributionSetTypeID, element.SoftwareModuleTypeID).
		Delete(&model.DistributionSetTypeElement{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove software module type from distribution set type: %v", err)
	}
	return nil
}

// inUse returns true if distribution sets of the type exist.
func (r repository) inUse(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.
		WithContext(ctx).
		Model(&model.DistributionSet{}).
		Where("type_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count distribution sets of type %d: %v", id, err)
	}
	return count > 0, nil
}

func (r repository) delete(ctx context.Context, dsType *model.DistributionSetType) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("distribution_set_type_id = ?", dsType.ID).Delete(&model.DistributionSetTypeElement{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete module types of distribution set type %d: %v", dsType.ID, err)
		}

		err = tx.Exec("DELETE FROM target_type_distribution_set_types WHERE distribution_set_type_id = ?", dsType.ID).Error
		if err != nil {
			return fmt.Errorf("failed to remove distribution set type %d from target types: %v", dsType.ID, err)
		}

		err = tx.Omit(clause.Associations).Delete(dsType).Error
		if err != nil {
			return fmt.Errorf("failed to delete distribution set type %d: %v", dsType.ID, err)
		}
		return nil
	})
}
