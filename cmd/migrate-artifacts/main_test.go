package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	objects map[string][]byte
	putErr  error
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, errdef.NewNotFound("artifact binary %q doesn't exist", key)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func artifact(id uint, key string, size int64) model.Artifact {
	a := model.Artifact{ObjectKey: key, Size: size}
	a.ID = id
	return a
}

func TestMigrate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	artifacts := []model.Artifact{
		artifact(1, "default/1/aaa", 3),
		artifact(2, "default/1/bbb", 4),
		artifact(3, "default/2/ccc", 2),
		artifact(4, "default/2/ddd", 5),
	}

	newStores := func() (*memoryStore, *memoryStore) {
		source := &memoryStore{objects: map[string][]byte{
			"default/1/aaa": []byte("abc"),
			"default/1/bbb": []byte("abcd"),
			"default/2/ccc": []byte("ab"),
		}}
		destination := &memoryStore{objects: map[string][]byte{
			"default/1/bbb": []byte("abcd"),
			// partial copy from an earlier run
			"default/2/ccc": []byte("a"),
		}}
		return source, destination
	}

	t.Run("CopiesMissingObjects", func(t *testing.T) {
		source, destination := newStores()

		result, err := migrate(context.Background(), logger, artifacts, source, destination, false)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Copied)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, []string{"default/2/ddd"}, result.Missing)
		assert.Equal(t, []byte("abc"), destination.objects["default/1/aaa"])
		assert.Equal(t, []byte("ab"), destination.objects["default/2/ccc"])
	})

	t.Run("DryRunDoesNotWrite", func(t *testing.T) {
		source, destination := newStores()

		result, err := migrate(context.Background(), logger, artifacts, source, destination, true)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Copied)
		assert.NotContains(t, destination.objects, "default/1/aaa")
		assert.Equal(t, []byte("a"), destination.objects["default/2/ccc"])
	})

	t.Run("StopsOnPutError", func(t *testing.T) {
		source, destination := newStores()
		destination.putErr = errors.New("bucket unavailable")

		result, err := migrate(context.Background(), logger, artifacts, source, destination, false)

		require.ErrorContains(t, err, "artifact 1: bucket unavailable")
		assert.Equal(t, 0, result.Copied)
	})

	t.Run("StopsWhenCanceled", func(t *testing.T) {
		source, destination := newStores()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := migrate(ctx, logger, artifacts, source, destination, false)

		require.ErrorIs(t, err, context.Canceled)
	})
}
