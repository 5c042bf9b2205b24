package storage

import (
	"fmt"

	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/go-redis/redis"
)

// NewRedis connects to the Redis instance caching tenant configuration values. An error is
// returned if it isn't reachable.
func NewRedis(c config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Password: c.Password,
		DB:       c.DB,
	})

	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %v", client.Options().Addr, err)
	}

	return client, nil
}
