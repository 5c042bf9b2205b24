package distributionset

import (
	"context"
	"errors"
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/dhis2-sre/update-manager/pkg/tag"
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

func (r repository) find(ctx context.Context, id uint) (*model.DistributionSet, error) {
	var ds *model.DistributionSet
	err := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Preload("Type.Elements.SoftwareModuleType").
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("software_modules.id")
		}).
		Preload("Modules.Type").
		First(&ds, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("distribution set %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find distribution set %d: %v", id, err)
	}
	return ds, nil
}

func (r repository) findAll(ctx context.Context, params query.Params) ([]model.DistributionSet, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("NOT deleted")

	return r.page(db, params)
}

func (r repository) findAllByTag(ctx context.Context, tagID uint, params query.Params) ([]model.DistributionSet, int64, error) {
	condition, args := tag.MembersOf(model.DistributionSetTagKind, tagID)
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where(condition, args...)

	return r.page(db, params)
}

func (r repository) page(db *gorm.DB, params query.Params) ([]model.DistributionSet, int64, error) {
	sets, total, err := query.Page[model.DistributionSet](db, params, query.DistributionSetFields, "Type", "Modules.Type")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find distribution sets: %v", err)
	}
	return sets, total, err
}

// findModules returns the modules of the distribution set paged and filtered by params.
func (r repository) findModules(ctx context.Context, id uint, params query.Params) ([]model.SoftwareModule, int64, error) {
	db := r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("id IN (SELECT software_module_id FROM distribution_set_modules WHERE distribution_set_id = ?)", id)

	modules, total, err := query.Page[model.SoftwareModule](db, params, query.SoftwareModuleFields, "Type")
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find software modules of distribution set %d: %v", id, err)
	}
	return modules, total, err
}

// create creates the distribution sets together with the links to their modules.
func (r repository) create(ctx context.Context, sets []model.DistributionSet) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Create(&sets).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errdef.NewDuplicated("distribution set with given name and version already exists")
		}
		if err != nil {
			return fmt.Errorf("failed to create distribution sets: %v", err)
		}

		for _, ds := range sets {
			if err := addModules(tx, ds.ID, ds.Modules); err != nil {
				return err
			}
		}
		return nil
	})
}

func addModules(tx *gorm.DB, id uint, modules []model.SoftwareModule) error {
	if len(modules) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(modules))
	for _, module := range modules {
		rows = append(rows, map[string]any{"distribution_set_id": id, "software_module_id": module.ID})
	}

	err := tx.
		Table("distribution_set_modules").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to assign software modules to distribution set %d: %v", id, err)
	}
	return nil
}

func (r repository) save(ctx context.Context, ds *model.DistributionSet) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(ds).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("distribution set with given name and version already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to update distribution set %d: %v", ds.ID, err)
	}
	return nil
}

// addModules links the modules to the distribution set and saves its completeness.
func (r repository) addModules(ctx context.Context, ds *model.DistributionSet, modules []model.SoftwareModule) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := addModules(tx, ds.ID, modules)
		if err != nil {
			return err
		}
		return saveComplete(tx, ds)
	})
}

func (r repository) removeModule(ctx context.Context, ds *model.DistributionSet, moduleID uint) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec("DELETE FROM distribution_set_modules WHERE distribution_set_id = ? AND software_module_id = ?", ds.ID, moduleID).Error
		if err != nil {
			return fmt.Errorf("failed to remove software module %d from distribution set %d: %v", moduleID, ds.ID, err)
		}
		return saveComplete(tx, ds)
	})
}

func saveComplete(tx *gorm.DB, ds *model.DistributionSet) error {
	err := tx.Model(ds).Update("complete", ds.Complete).Error
	if err != nil {
		return fmt.Errorf("failed to update distribution set %d: %v", ds.ID, err)
	}
	return nil
}

// assigned returns true if an action, a target or a rollout refers to the distribution set.
func (r repository) assigned(ctx context.Context, id uint) (bool, error) {
	var assigned bool
	err := r.db.
		WithContext(ctx).
		Raw(`SELECT EXISTS (SELECT 1 FROM actions WHERE distribution_set_id = @id)
			OR EXISTS (SELECT 1 FROM targets WHERE assigned_distribution_set_id = @id OR installed_distribution_set_id = @id)
			OR EXISTS (SELECT 1 FROM rollouts WHERE distribution_set_id = @id)`, map[string]any{"id": id}).
		Scan(&assigned).Error
	if err != nil {
		return false, fmt.Errorf("failed to find usages of distribution set %d: %v", id, err)
	}
	return assigned, nil
}

func (r repository) delete(ctx context.Context, ds *model.DistributionSet) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := metadata.DeleteAll(ctx, tx, model.DistributionSetMetadata, ds.ID)
		if err != nil {
			return err
		}

		err = tx.Model(&model.TargetFilterQuery{}).
			Where("auto_assign_distribution_set_id = ?", ds.ID).
			Update("auto_assign_distribution_set_id", nil).Error
		if err != nil {
			return fmt.Errorf("failed to remove auto assignments of distribution set %d: %v", ds.ID, err)
		}

		err = tx.Omit(clause.Associations).Delete(ds).Error
		if err != nil {
			return fmt.Errorf("failed to delete distribution set %d: %v", ds.ID, err)
		}
		return nil
	})
}

// invalidate marks the distribution set invalid and removes it from the target filters assigning
// it automatically.
func (r repository) invalidate(ctx context.Context, ds *model.DistributionSet) error {
	ctx = context.WithoutCancel(ctx)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.TargetFilterQuery{}).
			Where("auto_assign_distribution_set_id = ?", ds.ID).
			Updates(map[string]any{"auto_assign_distribution_set_id": nil, "auto_assign_action_type": ""}).Error
		if err != nil {
			return fmt.Errorf("failed to remove auto assignments of distribution set %d: %v", ds.ID, err)
		}

		err = tx.Model(ds).Update("valid", false).Error
		if err != nil {
			return fmt.Errorf("failed to invalidate distribution set %d: %v", ds.ID, err)
		}
		return nil
	})
}

type statusCount struct {
	Status string
	Count  int64
}

func (r repository) countActionsByStatus(ctx context.Context, id uint) (map[string]int64, error) {
	return r.countByStatus(ctx, &model.Action{}, id)
}

func (r repository) countRolloutsByStatus(ctx context.Context, id uint) (map[string]int64, error) {
	return r.countByStatus(ctx, &model.Rollout{}, id)
}

func (r repository) countByStatus(ctx context.Context, value any, id uint) (map[string]int64, error) {
	var counts []statusCount
	err := r.db.
		WithContext(ctx).
		Model(value).
		Scopes(model.TenantScope(ctx)).
		Select("status, COUNT(*) AS count").
		Where("distribution_set_id = ?", id).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count by status for distribution set %d: %v", id, err)
	}

	byStatus := make(map[string]int64, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	return byStatus, nil
}

func (r repository) countAutoAssignments(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.
		WithContext(ctx).
		Model(&model.TargetFilterQuery{}).
		Scopes(model.TenantScope(ctx)).
		Where("auto_assign_distribution_set_id = ?", id).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count auto assignments of distribution set %d: %v", id, err)
	}
	return count, nil
}
