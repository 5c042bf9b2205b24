package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsDocument []byte

type defaults struct {
	SoftwareModuleTypes  []softwareModuleType  `yaml:"softwareModuleTypes"`
	DistributionSetTypes []distributionSetType `yaml:"distributionSetTypes"`
}

type softwareModuleType struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	MaxAssignments int    `yaml:"maxAssignments"`
}

type distributionSetType struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Mandatory   []string `yaml:"mandatory"`
	Optional    []string `yaml:"optional"`
}

func parseDefaults(document []byte) (defaults, error) {
	var d defaults
	if err := yaml.Unmarshal(document, &d); err != nil {
		return defaults{}, fmt.Errorf("failed to parse default types: %v", err)
	}

	keys := make(map[string]bool, len(d.SoftwareModuleTypes))
	for _, smType := range d.SoftwareModuleTypes {
		keys[smType.Key] = true
	}
	for _, dsType := range d.DistributionSetTypes {
		for _, key := range append(dsType.Mandatory, dsType.Optional...) {
			if !keys[key] {
				return defaults{}, fmt.Errorf("distribution set type %q refers to unknown software module type %q", dsType.Key, key)
			}
		}
	}
	return d, nil
}

type SoftwareModuleTypeService interface {
	FindByKey(ctx context.Context, key string) (*model.SoftwareModuleType, error)
	Create(ctx context.Context, types []model.SoftwareModuleType) ([]model.SoftwareModuleType, error)
}

type DistributionSetTypeService interface {
	FindByKey(ctx context.Context, key string) (*model.DistributionSetType, error)
	Create(ctx context.Context, newTypes []distributionsettype.NewType) ([]model.DistributionSetType, error)
}

// LoadDefaultTypes creates the default software module and distribution set types of the tenant
// which don't exist yet. Existing types are left untouched.
func LoadDefaultTypes(ctx context.Context, logger *slog.Logger, tenant string, smTypeService SoftwareModuleTypeService, dsTypeService DistributionSetTypeService) error {
	d, err := parseDefaults(defaultsDocument)
	if err != nil {
		return err
	}

	ctx = model.NewSystemContext(ctx, tenant)

	smTypeIDs := make(map[string]uint, len(d.SoftwareModuleTypes))
	for _, smType := range d.SoftwareModuleTypes {
		existing, err := smTypeService.FindByKey(ctx, smType.Key)
		if err == nil {
			smTypeIDs[smType.Key] = existing.ID
			continue
		}
		if !errdef.IsNotFound(err) {
			return fmt.Errorf("failed to find software module type %q: %v", smType.Key, err)
		}

		created, err := smTypeService.Create(ctx, []model.SoftwareModuleType{{
			Key:            smType.Key,
			Name:           smType.Name,
			Description:    smType.Description,
			MaxAssignments: smType.MaxAssignments,
		}})
		if err != nil {
			return fmt.Errorf("failed to create software module type %q: %v", smType.Key, err)
		}
		smTypeIDs[smType.Key] = created[0].ID
		logger.InfoContext(ctx, "Software module type created", "tenant", tenant, "key", smType.Key)
	}

	ids := func(keys []string) []uint {
		ids := make([]uint, 0, len(keys))
		for _, key := range keys {
			ids = append(ids, smTypeIDs[key])
		}
		return ids
	}

	for _, dsType := range d.DistributionSetTypes {
		_, err := dsTypeService.FindByKey(ctx, dsType.Key)
		if err == nil {
			continue
		}
		if !errdef.IsNotFound(err) {
			return fmt.Errorf("failed to find distribution set type %q: %v", dsType.Key, err)
		}

		_, err = dsTypeService.Create(ctx, []distributionsettype.NewType{{
			Type: model.DistributionSetType{
				Key:         dsType.Key,
				Name:        dsType.Name,
				Description: dsType.Description,
			},
			Mandatory: ids(dsType.Mandatory),
			Optional:  ids(dsType.Optional),
		}})
		if err != nil {
			return fmt.Errorf("failed to create distribution set type %q: %v", dsType.Key, err)
		}
		logger.InfoContext(ctx, "Distribution set type created", "tenant", tenant, "key", dsType.Key)
	}

	return nil
}
