package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "artifacts"), 0o755))
	s3 := inttest.SetupS3(t, dir)

	client := storage.NewS3Client(inttest.Logger(), s3.Client, manager.NewUploader(s3.Client), "artifacts")

	testArtifactStore(t, client)
	assert.Equal(t, []byte("firmware"), s3.GetObject(t, "artifacts", "acme/fw-1-0/kept"))
}

func TestMinIOClient(t *testing.T) {
	t.Parallel()

	minIO := inttest.SetupMinIO(t)

	client, err := storage.NewMinIOClient(t.Context(), inttest.Logger(), minIO, "artifacts")
	require.NoError(t, err)

	testArtifactStore(t, client)
}

type artifactStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

func testArtifactStore(t *testing.T, store artifactStore) {
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		err := store.Put(ctx, "acme/fw-1-0/kept", strings.NewReader("firmware"), 8)
		require.NoError(t, err)

		body, size, err := store.Get(ctx, "acme/fw-1-0/kept")
		require.NoError(t, err)
		defer body.Close()
		content, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "firmware", string(content))
		assert.Equal(t, int64(8), size)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, _, err := store.Get(ctx, "acme/missing")

		require.Error(t, err)
		assert.True(t, errdef.IsNotFound(err))
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Put(ctx, "acme/fw-1-0/deleted", strings.NewReader("old"), 3)
		require.NoError(t, err)

		err = store.Delete(ctx, "acme/fw-1-0/deleted")
		require.NoError(t, err)

		_, _, err = store.Get(ctx, "acme/fw-1-0/deleted")
		assert.True(t, errdef.IsNotFound(err))
	})
}
