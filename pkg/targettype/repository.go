package targettype

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

const compatibleTable = "target_type_distribution_set_types"

func (r repository) find(ctx context.Context, id uint) (*model.TargetType, error) {
	var targetType *model.TargetType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("DistributionSetTypes").
		First(&targetType, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("target type %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find target type %d: %v", id, err)
	}

	return targetType, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.TargetType, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx))

	types, total, err := query.Page[model.TargetType](db, params, query.TargetTypeFields)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find target types: %v", err)
	}
	return types, total, err
}

func (r repository) create(ctx context.Context, types []model.TargetType) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Create(&types).Error
		if err != nil {
			return err
		}

		for _, targetType := range types {
			err := addCompatible(tx, targetType.ID, targetType.DistributionSetTypes)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("target type with given key or name already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create target types: %v", err)
	}
	return nil
}

func addCompatible(tx *gorm.DB, id uint, dsTypes []model.DistributionSetType) error {
	if len(dsTypes) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(dsTypes))
	for _, dsType := range dsTypes {
		rows = append(rows, map[string]any{"target_type_id": id, "distribution_set_type_id": dsType.ID})
	}
	return tx.Table(compatibleTable).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r repository) save(ctx context.Context, targetType *model.TargetType) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(targetType).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("target type named %q already exists", targetType.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update target type %d: %v", targetType.ID, err)
	}
	return nil
}

func (r repository) addCompatible(ctx context.Context, id uint, dsTypes []model.DistributionSetType) error {
	ctx = context.WithoutCancel(ctx)

	err := addCompatible(r.db.WithContext(ctx), id, dsTypes)
	if err != nil {
		return fmt.Errorf("failed to add compatible distribution set types to target type %d: %v", id, err)
	}
	return nil
}

func (r repository) removeCompatible(ctx context.Context, id, dsTypeID uint) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.
		WithContext(ctx).
		Exec("DELETE FROM "+compatibleTable+" WHERE target_type_id = ? AND distribution_set_type_id = ?", id, dsTypeID).Error
	if err != nil {
		return fmt.Errorf("failed to remove compatible distribution set type %d from target type %d: %v", dsTypeID, id, err)
	}
	return nil
}

// countTargets returns the number of targets of the type.
func (r repository) countTargets(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.
		WithContext(ctx).
		Model(&model.Target{}).
		Where("target_type_id = ?", id).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count targets of type %d: %v", id, err)
	}
	return count, nil
}

func (r repository) delete(ctx context.Context, id uint) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec("DELETE FROM "+compatibleTable+" WHERE target_type_id = ?", id).Error
		if err != nil {
			return fmt.Errorf("failed to remove compatible distribution set types of target type %d: %v", id, err)
		}

		db := tx.Scopes(model.TenantScope(ctx)).Delete(&model.TargetType{}, id)
		if db.Error != nil {
			return fmt.Errorf("failed to delete target type %d: %v", id, db.Error)
		}
		if db.RowsAffected == 0 {
			return errdef.NewNotFound("target type %d doesn't exist", id)
		}
		return nil
	})
}
