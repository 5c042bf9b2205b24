package inttest

import (
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	minioContainer "github.com/testcontainers/testcontainers-go/modules/minio"
)

// SetupMinIO creates a MinIO container. The returned config can be used to connect to it.
func SetupMinIO(t *testing.T) config.MinIO {
	t.Helper()
	ctx := t.Context()

	container, err := minioContainer.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container), "failed to terminate MinIO")
	})
	require.NoError(t, err, "failed to start MinIO")

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get MinIO endpoint")

	return config.MinIO{
		Endpoint:  endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
		UseSSL:    false,
	}
}
