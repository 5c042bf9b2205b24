package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	"gorm.io/gorm"
)

type objectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

type migrationResult struct {
	Copied  int
	Skipped int
	Missing []string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate-artifacts: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	dryRun := flag.Bool("dry-run", false, "show which artifacts would be copied without writing to the destination")
	flag.BoolVar(dryRun, "n", false, "short for -dry-run")
	from := flag.String("from", config.StorageS3, "store to copy artifacts from, s3 or minio")
	flag.Parse()

	if *from != config.StorageS3 && *from != config.StorageMinIO {
		return fmt.Errorf("-from must be %q or %q, got %q", config.StorageS3, config.StorageMinIO, *from)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	db, err := storage.NewDatabase(logger, cfg.Postgresql)
	if err != nil {
		return err
	}

	awsClient, err := storage.NewAWSS3Client(ctx, cfg.ArtifactStorage.S3)
	if err != nil {
		return err
	}
	s3Store := storage.NewS3Client(logger, awsClient, manager.NewUploader(awsClient), cfg.ArtifactStorage.Bucket)

	minioStore, err := storage.NewMinIOClient(ctx, logger, cfg.ArtifactStorage.MinIO, cfg.ArtifactStorage.Bucket)
	if err != nil {
		return err
	}

	var source, destination objectStore = s3Store, minioStore
	if *from == config.StorageMinIO {
		source, destination = minioStore, s3Store
	}

	artifacts, err := findArtifacts(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("Migrating artifacts", "from", *from, "artifacts", len(artifacts), "dryRun", *dryRun)

	result, err := migrate(ctx, logger, artifacts, source, destination, *dryRun)
	if err != nil {
		return err
	}

	for _, key := range result.Missing {
		logger.Warn("Artifact binary missing in source store", "key", key)
	}
	if *dryRun {
		logger.Info("dry run completed", "artifactsWouldBeCopied", result.Copied, "skipped", result.Skipped, "missing", len(result.Missing))
	} else {
		logger.Info("migration completed", "artifactsCopied", result.Copied, "skipped", result.Skipped, "missing", len(result.Missing))
	}
	return nil
}

func findArtifacts(ctx context.Context, db *gorm.DB) ([]model.Artifact, error) {
	var artifacts []model.Artifact
	err := db.WithContext(ctx).Order("id").Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("find artifacts: %w", err)
	}
	return artifacts, nil
}

// migrate copies the binary of every artifact not yet present in destination. Artifacts whose
// binary is missing in source are reported, not treated as failures.
func migrate(ctx context.Context, logger *slog.Logger, artifacts []model.Artifact, source, destination objectStore, dryRun bool) (migrationResult, error) {
	var result migrationResult
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		exists, err := present(ctx, destination, artifact)
		if err != nil {
			return result, fmt.Errorf("artifact %d: %w", artifact.ID, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		body, size, err := source.Get(ctx, artifact.ObjectKey)
		if err != nil {
			if errdef.IsNotFound(err) {
				result.Missing = append(result.Missing, artifact.ObjectKey)
				continue
			}
			return result, fmt.Errorf("artifact %d: %w", artifact.ID, err)
		}

		if dryRun {
			_ = body.Close()
			logger.Info("Would copy artifact", "id", artifact.ID, "key", artifact.ObjectKey, "size", size)
			result.Copied++
			continue
		}

		err = destination.Put(ctx, artifact.ObjectKey, body, size)
		_ = body.Close()
		if err != nil {
			return result, fmt.Errorf("artifact %d: %w", artifact.ID, err)
		}
		result.Copied++
	}
	return result, nil
}

// present reports whether destination already holds the binary of artifact with the expected size.
func present(ctx context.Context, destination objectStore, artifact model.Artifact) (bool, error) {
	body, size, err := destination.Get(ctx, artifact.ObjectKey)
	if err != nil {
		if errdef.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	_ = body.Close()
	return size == artifact.Size, nil
}
