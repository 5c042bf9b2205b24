package softwaremoduletype

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"gorm.io/gorm"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db: db}
}

type repository struct {
	db *gorm.DB
}

func (r repository) find(ctx context.Context, id uint) (*model.SoftwareModuleType, error) {
	var smType *model.SoftwareModuleType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		First(&smType, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("software module type %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find software module type %d: %v", id, err)
	}

	return smType, nil
}

func (r repository) findByKey(ctx context.Context, key string) (*model.SoftwareModuleType, error) {
	var smType *model.SoftwareModuleType
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("key = ?", key).
		First(&smType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("software module type %q doesn't exist", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find software module type %q: %v", key, err)
	}

	return smType, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.SoftwareModuleType, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("NOT deleted")

	types, total, err := query.Page[model.SoftwareModuleType](db, params, query.SoftwareModuleTypeFields)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find software module types: %v", err)
	}
	return types, total, err
}

func (r repository) create(ctx context.Context, types []model.SoftwareModuleType) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Create(&types).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("software module type with given key or name already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create software module types: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, smType *model.SoftwareModuleType) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Save(smType).Error
	if err != nil {
		return fmt.Errorf("failed to update software module type %d: %v", smType.ID, err)
	}
	return nil
}

// inUse returns true if software modules or distribution set types refer to the type.
func (r repository) inUse(ctx context.Context, id uint) (bool, error) {
	var modules int64
	err := r.db.
		WithContext(ctx).
		Model(&model.SoftwareModule{}).
		Where("type_id = ?", id).
		Count(&modules).Error
	if err != nil {
		return false, fmt.Errorf("failed to count software modules of type %d: %v", id, err)
	}
	if modules > 0 {
		return true, nil
	}

	var elements int64
	err = r.db.
		WithContext(ctx).
		Model(&model.DistributionSetTypeElement{}).
		Where("software_module_type_id = ?", id).
		Count(&elements).Error
	if err != nil {
		return false, fmt.Errorf("failed to count distribution set types using software module type %d: %v", id, err)
	}
	return elements > 0, nil
}

func (r repository) delete(ctx context.Context, smType *model.SoftwareModuleType) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Delete(smType).Error
	if err != nil {
		return fmt.Errorf("failed to delete software module type %d: %v", smType.ID, err)
	}
	return nil
}
