package metadata

import (
	"context"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/query"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(repository metadataRepository) *service {
	return &service{repository: repository}
}

type metadataRepository interface {
	findAll(ctx context.Context, owner model.MetadataOwner, ownerID uint, params query.Params) ([]model.Metadata, int64, error)
	find(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) (*model.Metadata, error)
	findTargetVisible(ctx context.Context, moduleIDs []uint) ([]model.Metadata, error)
	create(ctx context.Context, metadata []model.Metadata) error
	save(ctx context.Context, metadata *model.Metadata) error
	delete(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) error
}

type service struct {
	repository metadataRepository
}

func (s service) FindAll(ctx context.Context, owner model.MetadataOwner, ownerID uint, params query.Params) ([]model.Metadata, int64, error) {
	return s.repository.findAll(ctx, owner, ownerID, params)
}

func (s service) Find(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) (*model.Metadata, error) {
	return s.repository.find(ctx, owner, ownerID, key)
}

// FindTargetVisible returns the metadata of the software modules which is sent to targets keyed by
// module id.
func (s service) FindTargetVisible(ctx context.Context, moduleIDs []uint) (map[uint][]model.Metadata, error) {
	metadata, err := s.repository.findTargetVisible(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}

	byModule := make(map[uint][]model.Metadata)
	for _, m := range metadata {
		byModule[m.OwnerID] = append(byModule[m.OwnerID], m)
	}
	return byModule, nil
}

func (s service) Create(ctx context.Context, owner model.MetadataOwner, ownerID uint, metadata []model.Metadata) ([]model.Metadata, error) {
	keys := make(map[string]struct{}, len(metadata))
	for i := range metadata {
		if _, ok := keys[metadata[i].Key]; ok {
			return nil, errdef.NewBadRequest("metadata key %q is given more than once", metadata[i].Key)
		}
		keys[metadata[i].Key] = struct{}{}

		metadata[i].OwnerKind = owner
		metadata[i].OwnerID = ownerID
		if owner != model.SoftwareModuleMetadata {
			metadata[i].TargetVisible = false
		}
	}

	err := s.repository.create(ctx, metadata)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

// Update changes the value of the metadata. TargetVisible is only changed if given and the owner is
// a software module.
func (s service) Update(ctx context.Context, owner model.MetadataOwner, ownerID uint, key, value string, targetVisible *bool) (*model.Metadata, error) {
	metadata, err := s.repository.find(ctx, owner, ownerID, key)
	if err != nil {
		return nil, err
	}

	metadata.Value = value
	if targetVisible != nil && owner == model.SoftwareModuleMetadata {
		metadata.TargetVisible = *targetVisible
	}

	err = s.repository.save(ctx, metadata)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

func (s service) Delete(ctx context.Context, owner model.MetadataOwner, ownerID uint, key string) error {
	return s.repository.delete(ctx, owner, ownerID, key)
}
