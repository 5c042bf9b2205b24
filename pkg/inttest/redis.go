package inttest

import (
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	"github.com/go-redis/redis"
	"github.com/orlangure/gnomock"
	gnomockRedis "github.com/orlangure/gnomock/preset/redis"
	"github.com/stretchr/testify/require"
)

// SetupRedis creates a Redis container and returns a client connected to it the way the service
// connects.
func SetupRedis(t *testing.T) *redis.Client {
	t.Helper()

	container, err := gnomock.Start(gnomockRedis.Preset())
	require.NoError(t, err, "failed to start Redis")
	t.Cleanup(func() { require.NoError(t, gnomock.Stop(container), "failed to stop Redis") })

	client, err := storage.NewRedis(config.Redis{
		Host: container.Host,
		Port: container.DefaultPort(),
		TTL:  time.Minute,
	})
	require.NoError(t, err, "failed to connect to Redis")
	t.Cleanup(func() { require.NoError(t, client.Close(), "failed to close Redis client") })
	return client
}
