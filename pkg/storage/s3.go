package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/config"
)

// NewAWSS3Client creates an S3 client using the default AWS credential chain. A configured endpoint
// is addressed path style.
func NewAWSS3Client(ctx context.Context, c config.S3) (*s3.Client, error) {
	cfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Client creates an artifact store keeping objects in given S3 bucket.
func NewS3Client(logger *slog.Logger, client AWSS3Client, uploader AWSS3Uploader, bucket string) *S3Client {
	return &S3Client{
		logger:   logger,
		client:   client,
		uploader: uploader,
		bucket:   bucket,
	}
}

type S3Client struct {
	logger   *slog.Logger
	client   AWSS3Client
	uploader AWSS3Uploader
	bucket   string
}

type AWSS3Client interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type AWSS3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Put stores body under key. Existing objects are overwritten.
func (s S3Client) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	// only use ctx for values (logging) and not cancellation signals for now. the artifact row is
	// written after the upload so an aborted upload would leave an orphaned object.
	ctx = context.WithoutCancel(ctx)

	s.logger.InfoContext(ctx, "Uploading artifact", "bucket", s.bucket, "key", key, "size", size)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
		ACL:    types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("error uploading object to bucket %q using key %q: %s", s.bucket, key, err)
	}
	return nil
}

// Get returns the object stored under key and its size. The caller must close the returned reader.
func (s S3Client) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, 0, errdef.NewNotFound("artifact binary %q doesn't exist", key)
		}
		return nil, 0, fmt.Errorf("error downloading object from bucket %q using key %q: %s", s.bucket, key, err)
	}

	return object.Body, aws.ToInt64(object.ContentLength), nil
}

func (s S3Client) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error deleting object from bucket %q using key %q: %s", s.bucket, key, err)
	}
	return nil
}
