package tag

import (
	"context"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(repository tagRepository) *service {
	return &service{repository: repository}
}

type tagRepository interface {
	find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error)
	findAll(ctx context.Context, kind model.TagKind, params query.Params) ([]model.Tag, int64, error)
	findByMember(ctx context.Context, kind model.TagKind, memberID uint) ([]model.Tag, error)
	create(ctx context.Context, tags []model.Tag) error
	save(ctx context.Context, tag *model.Tag) error
	delete(ctx context.Context, tag *model.Tag) error
	assign(ctx context.Context, tag *model.Tag, memberIDs []uint) error
	unassign(ctx context.Context, tag *model.Tag, memberIDs []uint) error
}

type service struct {
	repository tagRepository
}

func (s service) Find(ctx context.Context, kind model.TagKind, id uint) (*model.Tag, error) {
	return s.repository.find(ctx, kind, id)
}

func (s service) FindAll(ctx context.Context, kind model.TagKind, params query.Params) ([]model.Tag, int64, error) {
	return s.repository.findAll(ctx, kind, params)
}

// FindByMember returns the tags assigned to the target or distribution set with given id.
func (s service) FindByMember(ctx context.Context, kind model.TagKind, memberID uint) ([]model.Tag, error) {
	return s.repository.findByMember(ctx, kind, memberID)
}

func (s service) Create(ctx context.Context, kind model.TagKind, tags []model.Tag) ([]model.Tag, error) {
	for i := range tags {
		tags[i].Kind = kind
	}

	err := s.repository.create(ctx, tags)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

type Update struct {
	Name        *string
	Description *string
	Colour      *string
}

func (s service) Update(ctx context.Context, kind model.TagKind, id uint, update Update) (*model.Tag, error) {
	tag, err := s.repository.find(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		tag.Name = *update.Name
	}
	if update.Description != nil {
		tag.Description = *update.Description
	}
	if update.Colour != nil {
		tag.Colour = *update.Colour
	}

	err = s.repository.save(ctx, tag)
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (s service) Delete(ctx context.Context, kind model.TagKind, id uint) error {
	tag, err := s.repository.find(ctx, kind, id)
	if err != nil {
		return err
	}

	return s.repository.delete(ctx, tag)
}

// Assign assigns the tag to the members. Members already carrying the tag are skipped. The caller
// is responsible for the members to exist.
func (s service) Assign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error {
	tag, err := s.repository.find(ctx, kind, id)
	if err != nil {
		return err
	}

	return s.repository.assign(ctx, tag, memberIDs)
}

func (s service) Unassign(ctx context.Context, kind model.TagKind, id uint, memberIDs ...uint) error {
	tag, err := s.repository.find(ctx, kind, id)
	if err != nil {
		return err
	}

	return s.repository.unassign(ctx, tag, memberIDs)
}
