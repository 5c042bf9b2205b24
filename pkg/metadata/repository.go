package metadata

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

func (r repository) owned(ctx context.Context, owner model.MetadataOwner, ownerID uint) *gorm.DB {
	return r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("owner_kind = ? AND owner_id = ?", owner, ownerID)
}

func (r repository) findAll(ctx context.Context, owner model.MetadataOwner, ownerID uint, params query.Params) ([]model.Metadata, int64, error) {
	metadata, total, err := query.Page[model.Metadata](r.owned(ctx, owner, ownerID), params, query.MetadataFields)
	if err != nil {
		if errdef.IsBadRequest(err) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("failed to find metadata: %v", err)
	}
	return metadata, total, nil
}

func (r repository) find(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) (*model.Metadata, error) {
	var metadata *model.Metadata
	err := r.owned(ctx, owner, ownerID).
		Where("key = ?", key).
		First(&metadata).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("metadata %q doesn't exist", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find metadata %q: %v", key, err)
	}

	return metadata, nil
}

func (r repository) findTargetVisible(ctx context.Context, moduleIDs []uint) ([]model.Metadata, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}

	var metadata []model.Metadata
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("owner_kind = ? AND owner_id IN ? AND target_visible", model.SoftwareModuleMetadata, moduleIDs).
		Order("key").
		Find(&metadata).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find target visible metadata: %v", err)
	}
	return metadata, nil
}

func (r repository) create(ctx context.Context, metadata []model.Metadata) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Create(&metadata).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("metadata with given key already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create metadata: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, metadata *model.Metadata) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Save(metadata).Error
	if err != nil {
		return fmt.Errorf("failed to update metadata %q: %v", metadata.Key, err)
	}
	return nil
}

func (r repository) delete(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) error {
	ctx = context.WithoutCancel(ctx)

	result := r.owned(ctx, owner, ownerID).
		Where("key = ?", key).
		Delete(&model.Metadata{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete metadata %q: %v", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return errdef.NewNotFound("metadata %q doesn't exist", key)
	}
	return nil
}

// DeleteAll deletes the metadata of an owner using tx so it can be part of the owners deletion.
func DeleteAll(ctx context.Context, tx *gorm.DB, owner model.MetadataOwner, ownerIDs ...uint) error {
	if len(ownerIDs) == 0 {
		return nil
	}

	err := tx.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("owner_kind = ? AND owner_id IN ?", owner, ownerIDs).
		Delete(&model.Metadata{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %v", err)
	}
	return nil
}
