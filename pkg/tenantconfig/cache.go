package tenantconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/go-redis/redis"
)

// NewCache returns a cache of tenant configuration values backed by Redis. Entries expire after
// ttl so values changed by other instances are eventually picked up.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func NewCache(client *redis.Client, ttl time.Duration) *cache {
	return &cache{client: client, ttl: ttl}
}

type cache struct {
	client *redis.Client
	ttl    time.Duration
}

// cacheEntry is either the tenants override of a key or a marker that the tenant uses the
// default.
type cacheEntry struct {
	Configuration *model.TenantConfiguration `json:"configuration,omitempty"`
}

func cacheKey(tenant, key string) string {
	return fmt.Sprintf("tenantconfig:%s:%s", tenant, key)
}

func (c cache) get(tenant, key string) (cacheEntry, bool, error) {
	value, err := c.client.Get(cacheKey(tenant, key)).Result()
	if errors.Is(err, redis.Nil) {
		return cacheEntry{}, false, nil
	}
	if err != nil {
		return cacheEntry{}, false, fmt.Errorf("failed to get tenant configuration %q from cache: %v", key, err)
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return cacheEntry{}, false, fmt.Errorf("failed to decode cached tenant configuration %q: %v", key, err)
	}
	return entry, true, nil
}

func (c cache) set(tenant, key string, entry cacheEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	err = c.client.Set(cacheKey(tenant, key), value, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache tenant configuration %q: %v", key, err)
	}
	return nil
}

func (c cache) invalidate(tenant string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = cacheKey(tenant, key)
	}
	err := c.client.Del(cacheKeys...).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate cached tenant configurations: %v", err)
	}
	return nil
}
