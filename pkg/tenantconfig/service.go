package tenantconfig

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewService(logger *slog.Logger, repository tenantConfigurationRepository, cache valueCache) (*service, error) {
	definitions, err := loadDefinitions(defaultsYAML)
	if err != nil {
		return nil, err
	}

	return &service{
		logger:      logger,
		repository:  repository,
		cache:       cache,
		definitions: definitions,
	}, nil
}

type tenantConfigurationRepository interface {
	find(ctx context.Context, key string) (*model.TenantConfiguration, error)
	findAll(ctx context.Context) ([]model.TenantConfiguration, error)
	findTenants(ctx context.Context, key, value string) ([]string, error)
	upsert(ctx context.Context, configurations []model.TenantConfiguration) error
	delete(ctx context.Context, key string) error
}

type valueCache interface {
	get(tenant, key string) (cacheEntry, bool, error)
	set(tenant, key string, entry cacheEntry) error
	invalidate(tenant string, keys ...string) error
}

type service struct {
	logger      *slog.Logger
	repository  tenantConfigurationRepository
	cache       valueCache
	definitions map[string]definition
}

// Value is the effective value of a configuration key. Global values are defaults the tenant did
// not override, Configuration is nil for them.
type Value struct {
	Key           string
	Value         any
	Global        bool
	Configuration *model.TenantConfiguration
}

func (s service) definition(key string) (definition, error) {
	d, ok := s.definitions[key]
	if !ok {
		return definition{}, errdef.NewNotFound("tenant configuration key %q doesn't exist", key)
	}
	return d, nil
}

// Keys returns the known configuration keys in lexical order.
func (s service) Keys() []string {
	return slices.Sorted(maps.Keys(s.definitions))
}

func (s service) Get(ctx context.Context, key string) (Value, error) {
	d, err := s.definition(key)
	if err != nil {
		return Value{}, err
	}

	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return Value{}, err
	}

	entry, ok, err := s.cache.get(tenant, key)
	if err != nil {
		s.logger.WarnContext(ctx, "Reading tenant configuration from cache failed", "key", key, "error", err)
	}
	if !ok {
		entry, err = s.load(ctx, key)
		if err != nil {
			return Value{}, err
		}
		if err := s.cache.set(tenant, key, entry); err != nil {
			s.logger.WarnContext(ctx, "Caching tenant configuration failed", "key", key, "error", err)
		}
	}

	return s.value(d, entry.Configuration)
}

func (s service) load(ctx context.Context, key string) (cacheEntry, error) {
	configuration, err := s.repository.find(ctx, key)
	if errdef.IsNotFound(err) {
		return cacheEntry{}, nil
	}
	if err != nil {
		return cacheEntry{}, err
	}
	return cacheEntry{Configuration: configuration}, nil
}

func (s service) value(d definition, configuration *model.TenantConfiguration) (Value, error) {
	if configuration == nil {
		value, err := d.parse(d.Default)
		if err != nil {
			return Value{}, err
		}
		return Value{Key: d.Key, Value: value, Global: true}, nil
	}

	value, err := d.parse(configuration.Value)
	if err != nil {
		return Value{}, fmt.Errorf("stored tenant configuration %q is invalid: %v", d.Key, err)
	}
	return Value{Key: d.Key, Value: value, Configuration: configuration}, nil
}

// GetAll returns the effective values of all known keys.
func (s service) GetAll(ctx context.Context) ([]Value, error) {
	configurations, err := s.repository.findAll(ctx)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]*model.TenantConfiguration, len(configurations))
	for i := range configurations {
		overrides[configurations[i].Key] = &configurations[i]
	}

	values := make([]Value, 0, len(s.definitions))
	for _, key := range s.Keys() {
		value, err := s.value(s.definitions[key], overrides[key])
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Set overrides the value of key for the tenant. The value must match the type of the key.
func (s service) Set(ctx context.Context, key string, value any) (Value, error) {
	values, err := s.SetMany(ctx, map[string]any{key: value})
	if err != nil {
		return Value{}, err
	}
	return values[0], nil
}

// SetMany overrides the values of all given keys. Either all values are valid and saved or none
// is.
func (s service) SetMany(ctx context.Context, values map[string]any) ([]Value, error) {
	if len(values) == 0 {
		return nil, errdef.NewBadRequest("no tenant configuration values given")
	}

	keys := slices.Sorted(maps.Keys(values))
	configurations := make([]model.TenantConfiguration, 0, len(keys))
	for _, key := range keys {
		d, err := s.definition(key)
		if err != nil {
			return nil, err
		}

		if values[key] == nil {
			return nil, errdef.NewBadRequest("value of %q is required", key)
		}

		stored, err := d.format(values[key])
		if err != nil {
			return nil, err
		}

		if err := s.assertChangeAllowed(ctx, key, stored); err != nil {
			return nil, err
		}

		configurations = append(configurations, model.TenantConfiguration{Key: key, Value: stored})
	}

	err := s.repository.upsert(ctx, configurations)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, keys...)

	result := make([]Value, 0, len(keys))
	for _, key := range keys {
		value, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	return result, nil
}

// assertChangeAllowed prevents disabling multi assignments once they were enabled as actions of
// multiple distribution sets might be active on the same target.
func (s service) assertChangeAllowed(ctx context.Context, key, stored string) error {
	if key != MultiAssignmentsEnabled || stored == "true" {
		return nil
	}

	enabled, err := s.Bool(ctx, MultiAssignmentsEnabled)
	if err != nil {
		return err
	}
	if enabled {
		return errdef.NewBadRequest("%q can't be disabled once it was enabled", MultiAssignmentsEnabled)
	}
	return nil
}

// Delete removes the tenants override of key so the default applies again.
func (s service) Delete(ctx context.Context, key string) error {
	if _, err := s.definition(key); err != nil {
		return err
	}

	if key == MultiAssignmentsEnabled {
		if err := s.assertChangeAllowed(ctx, key, "false"); err != nil {
			return err
		}
	}

	err := s.repository.delete(ctx, key)
	if err != nil {
		return err
	}

	s.invalidate(ctx, key)
	return nil
}

func (s service) invalidate(ctx context.Context, keys ...string) {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return
	}

	if err := s.cache.invalidate(tenant, keys...); err != nil {
		s.logger.ErrorContext(ctx, "Invalidating cached tenant configurations failed", "keys", keys, "error", err)
	}
}

// Tenants returns the tenants which overrode the default of key with value. It is used by jobs which
// only act on tenants opting in.
func (s service) Tenants(ctx context.Context, key string, value any) ([]string, error) {
	d, err := s.definition(key)
	if err != nil {
		return nil, err
	}

	stored, err := d.format(value)
	if err != nil {
		return nil, err
	}
	return s.repository.findTenants(ctx, key, stored)
}

func (s service) Bool(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}

	b, ok := value.Value.(bool)
	if !ok {
		return false, fmt.Errorf("tenant configuration %q is not of type %s", key, typeBool)
	}
	return b, nil
}

func (s service) Long(ctx context.Context, key string) (int64, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	l, ok := value.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("tenant configuration %q is not of type %s", key, typeLong)
	}
	return l, nil
}

func (s service) String(ctx context.Context, key string) (string, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}

	str, ok := value.Value.(string)
	if !ok {
		return "", fmt.Errorf("tenant configuration %q is not of type %s", key, typeString)
	}
	return str, nil
}

func (s service) Duration(ctx context.Context, key string) (time.Duration, error) {
	value, err := s.String(ctx, key)
	if err != nil {
		return 0, err
	}
	return ParseDuration(value)
}

// PollingTimes returns the polling interval and the time after which a target missing its poll is
// considered overdue.
func (s service) PollingTimes(ctx context.Context) (time.Duration, time.Duration, error) {
	interval, err := s.Duration(ctx, PollingTime)
	if err != nil {
		return 0, 0, err
	}

	overdue, err := s.Duration(ctx, PollingOverdueTime)
	if err != nil {
		return 0, 0, err
	}
	return interval, overdue, nil
}
