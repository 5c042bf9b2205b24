package softwaremodule

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
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

func (r repository) find(ctx context.Context, id uint) (*model.SoftwareModule, error) {
	var module *model.SoftwareModule
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Type").
		Preload("Artifacts", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		First(&module, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("software module %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find software module %d: %v", id, err)
	}

	return module, nil
}

func (r repository) findByIDs(ctx context.Context, ids []uint) ([]model.SoftwareModule, error) {
	var modules []model.SoftwareModule
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Type").
		Where("id IN ?", ids).
		Order("id").
		Find(&modules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find software modules: %v", err)
	}
	return modules, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.SoftwareModule, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("NOT deleted")

	modules, total, err := query.Page[model.SoftwareModule](db, params, query.SoftwareModuleFields, "Type")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find software modules: %v", err)
	}
	return modules, total, err
}

func (r repository) create(ctx context.Context, modules []model.SoftwareModule) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&modules).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("software module with given name, version and type already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create software modules: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, module *model.SoftwareModule) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(module).Error
	if err != nil {
		return fmt.Errorf("failed to update software module %d: %v", module.ID, err)
	}
	return nil
}

// assigned returns true if the module is part of a distribution set.
func (r repository) assigned(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.
		WithContext(ctx).
		Table("distribution_set_modules").
		Where("software_module_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count distribution sets of software module %d: %v", id, err)
	}
	return count > 0, nil
}

func (r repository) delete(ctx context.Context, module *model.SoftwareModule) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := metadata.DeleteAll(ctx, tx, model.SoftwareModuleMetadata, module.ID)
		if err != nil {
			return err
		}

		err = tx.Where("software_module_id = ?", module.ID).Delete(&model.Artifact{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete artifacts of software module %d: %v", module.ID, err)
		}

		err = tx.Omit(clause.Associations).Delete(module).Error
		if err != nil {
			return fmt.Errorf("failed to delete software module %d: %v", module.ID, err)
		}
		return nil
	})
}

func (r repository) findArtifact(ctx context.Context, moduleID, artifactID uint) (*model.Artifact, error) {
	var artifact *model.Artifact
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("software_module_id = ?", moduleID).
		First(&artifact, artifactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("artifact %d of software module %d doesn't exist", artifactID, moduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find artifact %d: %v", artifactID, err)
	}

	return artifact, nil
}

func (r repository) createArtifact(ctx context.Context, artifact *model.Artifact) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Create(artifact).Error
	if err != nil {
		return fmt.Errorf("failed to create artifact %q: %v", artifact.Filename, err)
	}
	return nil
}

func (r repository) deleteArtifact(ctx context.Context, artifact *model.Artifact) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Delete(artifact).Error
	if err != nil {
		return fmt.Errorf("failed to delete artifact %d: %v", artifact.ID, err)
	}
	return nil
}

// countObjectReferences returns the number of artifacts stored under given object key.
func (r repository) countObjectReferences(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.db.
		WithContext(ctx).
		Model(&model.Artifact{}).
		Where("object_key = ?", key).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count artifacts stored as %q: %v", key, err)
	}
	return count, nil
}
