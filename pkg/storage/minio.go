package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIOClient creates an artifact store keeping objects in given MinIO bucket. The bucket is
// created if it does not exist.
func NewMinIOClient(ctx context.Context, logger *slog.Logger, c config.MinIO, bucket string) (*MinIOClient, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check MinIO bucket %q: %v", bucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO bucket %q: %v", bucket, err)
		}
		logger.InfoContext(ctx, "Created artifact bucket", "bucket", bucket)
	}

	return &MinIOClient{
		logger: logger,
		client: client,
		bucket: bucket,
	}, nil
}

type MinIOClient struct {
	logger *slog.Logger
	client *minio.Client
	bucket string
}

// Put stores body under key. Existing objects are overwritten.
func (m MinIOClient) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	// only use ctx for values (logging) and not cancellation signals for now
	ctx = context.WithoutCancel(ctx)

	m.logger.InfoContext(ctx, "Uploading artifact", "bucket", m.bucket, "key", key, "size", size)
	_, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("error uploading object to bucket %q using key %q: %s", m.bucket, key, err)
	}
	return nil
}

// Get returns the object stored under key and its size. The caller must close the returned reader.
func (m MinIOClient) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("error downloading object from bucket %q using key %q: %s", m.bucket, key, err)
	}

	// GetObject is lazy, Stat is the first call reaching MinIO
	info, err := object.Stat()
	if err != nil {
		_ = object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, errdef.NewNotFound("artifact binary %q doesn't exist", key)
		}
		return nil, 0, fmt.Errorf("error downloading object from bucket %q using key %q: %s", m.bucket, key, err)
	}

	return object, info.Size, nil
}

func (m MinIOClient) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("error deleting object from bucket %q using key %q: %s", m.bucket, key, err)
	}
	return nil
}
