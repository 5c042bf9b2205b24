package tag

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

// assignments describes the join table linking tags of a kind to their members.
type assignments struct {
	table  string
	member string
}

var assignmentsOf = map[model.TagKind]assignments{
	model.TargetTagKind:          {table: "target_tag_assignments", member: "target_id"},
	model.DistributionSetTagKind: {table: "distribution_set_tag_assignments", member: "distribution_set_id"},
}

func (r repository) tags(ctx context.Context, kind model.TagKind) *gorm.DB {
	return r.db.
		WithContext(ctx).
		Scopes(model.TenantScope(ctx)).
		Where("kind = ?", kind)
}

func (r repository) find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error) {
	var tag *model.Tag
	err := r.tags(ctx, kind).First(&tag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errdef.NewNotFound("tag %d doesn't exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tag %d: %v", id, err)
	}

	return tag, nil
}

func (r repository) findAll(ctx context.Context, kind model.TagKind, params query.Params) ([]model.Tag, int64, error) {
	tags, total, err := query.Page[model.Tag](r.tags(ctx, kind), params, query.TagFields)
	if err != nil && !errdef.IsBadRequest(err) {
		return nil, 0, fmt.Errorf("failed to find tags: %v", err)
	}
	return tags, total, err
}

func (r repository) findByMember(ctx context.Context, kind model.TagKind, memberID uint) ([]model.Tag, error) {
	a := assignmentsOf[kind]
	var tags []model.Tag
	err := r.tags(ctx, kind).
		Where(fmt.Sprintf("id IN (SELECT tag_id FROM %s WHERE %s = ?)", a.table, a.member), memberID).
		Order("name").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tags: %v", err)
	}
	return tags, nil
}

func (r repository) create(ctx context.Context, tags []model.Tag) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Create(&tags).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("tag with given name already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create tags: %v", err)
	}
	return nil
}

func (r repository) save(ctx context.Context, tag *model.Tag) error {
	ctx = context.WithoutCancel(ctx)

	err := r.db.WithContext(ctx).Save(tag).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errdef.NewDuplicated("tag %q already exists", tag.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update tag %d: %v", tag.ID, err)
	}
	return nil
}

func (r repository) delete(ctx context.Context, tag *model.Tag) error {
	ctx = context.WithoutCancel(ctx)

	a := assignmentsOf[tag.Kind]
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec("DELETE FROM "+a.table+" WHERE tag_id = ?", tag.ID).Error
		if err != nil {
			return fmt.Errorf("failed to unassign tag %d: %v", tag.ID, err)
		}

		err = tx.Delete(tag).Error
		if err != nil {
			return fmt.Errorf("failed to delete tag %d: %v", tag.ID, err)
		}
		return nil
	})
}

func (r repository) assign(ctx context.Context, tag *model.Tag, memberIDs []uint) error {
	ctx = context.WithoutCancel(ctx)

	if len(memberIDs) == 0 {
		return nil
	}

	a := assignmentsOf[tag.Kind]
	rows := make([]map[string]any, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, map[string]any{"tag_id": tag.ID, a.member: id})
	}

	err := r.db.
		WithContext(ctx).
		Table(a.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to assign tag %d: %v", tag.ID, err)
	}
	return nil
}

func (r repository) unassign(ctx context.Context, tag *model.Tag, memberIDs []uint) error {
	ctx = context.WithoutCancel(ctx)

	if len(memberIDs) == 0 {
		return nil
	}

	a := assignmentsOf[tag.Kind]
	err := r.db.
		WithContext(ctx).
		Exec("DELETE FROM "+a.table+" WHERE tag_id = ? AND "+a.member+" IN ?", tag.ID, memberIDs).Error
	if err != nil {
		return fmt.Errorf("failed to unassign tag %d: %v", tag.ID, err)
	}
	return nil
}

// MembersOf returns a condition selecting the members of the tag. The member table is expected to
// have an id column.
func MembersOf(kind model.TagKind, tagID uint) (string, []any) {
	a := assignmentsOf[kind]
	return fmt.Sprintf("id IN (SELECT %s FROM %s WHERE tag_id = ?)", a.member, a.table), []any{tagID}
}
