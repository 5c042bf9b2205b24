// Package classification Update Manager Management Service.
//
// Management API of the Update Manager. It manages the software of devices (targets) by
// distributing software modules bundled into distribution sets, either directly or in staged
// rollouts.
//
// Terms Of Service:
//
// there are no TOS at this moment, use at your own risk we take no responsibility
//
//	Version: 0.1.0
//	Contact: <info@dhis2.org> https://github.com/dhis2-sre/update-manager
//
//	Consumes:
//	  - application/json
//
//	Produces:
//	  - application/json
//
//	SecurityDefinitions:
//	  oauth2:
//	    type: oauth2
//	    tokenUrl: /not-valid--tokens-are-issued-by-the-identity-provider
//	    refreshUrl: /not-valid--tokens-are-issued-by-the-identity-provider
//	    flow: password
//
// swagger:meta
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/internal/log"
	"github.com/dhis2-sre/update-manager/internal/middleware"
	"github.com/dhis2-sre/update-manager/internal/server"
	"github.com/dhis2-sre/update-manager/pkg/action"
	"github.com/dhis2-sre/update-manager/pkg/bootstrap"
	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/distributionset"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/dmf"
	"github.com/dhis2-sre/update-manager/pkg/event"
	"github.com/dhis2-sre/update-manager/pkg/health"
	"github.com/dhis2-sre/update-manager/pkg/inspector"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/rollout"
	"github.com/dhis2-sre/update-manager/pkg/softwaremodule"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	"github.com/dhis2-sre/update-manager/pkg/tag"
	"github.com/dhis2-sre/update-manager/pkg/target"
	"github.com/dhis2-sre/update-manager/pkg/targetfilter"
	"github.com/dhis2-sre/update-manager/pkg/targettype"
	"github.com/dhis2-sre/update-manager/pkg/telemetry"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
	"golang.org/x/sync/errgroup"
)

const serviceName = "update-manager"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger, err := log.NewLogger(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.Environment, cfg.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to shut down tracer", "error", err)
		}
	}()

	db, err := storage.NewDatabase(logger, cfg.Postgresql)
	if err != nil {
		return err
	}

	redis, err := storage.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Close()

	amqpConnection, channel, err := dmf.Connect(cfg.RabbitMQ.GetURL(), cfg.RabbitMQ.Exchange)
	if err != nil {
		return err
	}
	defer amqpConnection.Close()
	publisher := dmf.NewPublisher(logger, channel, cfg.RabbitMQ.Exchange, cfg.DMF.DownloadURL)

	store, err := newArtifactStore(ctx, logger, cfg.ArtifactStorage)
	if err != nil {
		return err
	}

	tenantConfigService, err := tenantconfig.NewService(logger, tenantconfig.NewRepository(db), tenantconfig.NewCache(redis, cfg.Redis.TTL))
	if err != nil {
		return err
	}

	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	dsTypeService := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)
	targetTypeService := targettype.NewService(targettype.NewRepository(db), dsTypeService)
	tagService := tag.NewService(tag.NewRepository(db))
	metadataService := metadata.NewService(metadata.NewRepository(db))
	smService := softwaremodule.NewService(logger, softwaremodule.NewRepository(db), smTypeService, store)
	eventBroker := event.NewEventBroker(logger)
	deploymentService := deployment.NewService(logger, deployment.NewRepository(db), tenantConfigService, metadataService, publisher)
	deploymentService.SetNotifier(eventBroker)
	dsService := distributionset.NewService(logger, distributionset.NewRepository(db), dsTypeService, smService, tagService, deploymentService)
	targetService := target.NewService(logger, target.NewRepository(db), targetTypeService, tagService, dsService, deploymentService, tenantConfigService, publisher)
	actionService := action.NewService(logger, action.NewRepository(db), deploymentService)
	rolloutService := rollout.NewService(logger, rollout.NewRepository(db), dsService, deploymentService, tenantConfigService)
	dsService.SetRolloutStopper(rolloutService)
	targetFilterService := targetfilter.NewService(logger, targetfilter.NewRepository(db), dsService, deploymentService)

	err = bootstrap.LoadDefaultTypes(ctx, logger, cfg.DefaultTenant, smTypeService, dsTypeService)
	if err != nil {
		return err
	}

	authentication := middleware.NewAuthentication(logger, cfg.Authentication.PublicKey, middleware.AdminCredentials{
		Username:     cfg.Authentication.AdminUsername,
		PasswordHash: cfg.Authentication.AdminPasswordHash,
		Tenant:       cfg.DefaultTenant,
	})
	authorization := middleware.NewAuthorization(logger)

	smHandler := softwaremodule.NewHandler(smService)
	dsHandler := distributionset.NewHandler(dsService)
	targetHandler := target.NewHandler(targetService)

	err = handler.RegisterValidation()
	if err != nil {
		return err
	}

	r := server.GetEngine(logger, cfg.BasePath)
	router := server.Group(r, cfg.BasePath)
	router.GET("/ready", health.NewReadiness(map[string]health.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(context.Context) error {
			return redis.Ping().Err()
		},
		"rabbitmq": func(context.Context) error {
			if amqpConnection.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	}).Ready)

	softwaremoduletype.Routes(router, authentication, authorization, softwaremoduletype.NewHandler(smTypeService))
	distributionsettype.Routes(router, authentication, authorization, distributionsettype.NewHandler(dsTypeService))
	targettype.Routes(router, authentication, authorization, targettype.NewHandler(targetTypeService))
	tag.Routes(router, authentication, authorization, tag.NewHandler(tagService, model.TargetTagKind))
	tag.Routes(router, authentication, authorization, tag.NewHandler(tagService, model.DistributionSetTagKind))
	softwaremodule.Routes(router, authentication, authorization, smHandler, metadata.NewHandler(metadataService, model.SoftwareModuleMetadata, smHandler.ResolveModule))
	distributionset.Routes(router, authentication, authorization, dsHandler, metadata.NewHandler(metadataService, model.DistributionSetMetadata, dsHandler.ResolveSet))
	target.Routes(router, authentication, authorization, targetHandler, metadata.NewHandler(metadataService, model.TargetMetadata, targetHandler.ResolveTarget))
	action.Routes(router, authentication, authorization, action.NewHandler(actionService))
	rollout.Routes(router, authentication, authorization, rollout.NewHandler(rolloutService, targetHandler))
	targetfilter.Routes(router, authentication, authorization, targetfilter.NewHandler(targetFilterService))
	tenantconfig.Routes(router, authentication, authorization, tenantconfig.NewHandler(tenantConfigService))
	event.Routes(router, authentication, authorization, event.NewHandler(eventBroker))

	rolloutInspector := inspector.NewInspector(logger, cfg.Scheduler.RolloutInterval, rollout.NewExecutor(logger, rolloutService))
	autoAssignInspector := inspector.NewInspector(logger, cfg.Scheduler.AutoAssignInterval, targetfilter.NewChecker(logger, targetFilterService))
	cleanupInspector := inspector.NewInspector(logger, cfg.Scheduler.CleanupInterval, inspector.NewActionCleanupHandler(logger, tenantConfigService, actionService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// ends event streams on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rolloutInspector.Inspect(ctx)
	})
	g.Go(func() error {
		return autoAssignInspector.Inspect(ctx)
	})
	g.Go(func() error {
		return cleanupInspector.Inspect(ctx)
	})
	g.Go(func() error {
		logger.Info("Listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type artifactStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

func newArtifactStore(ctx context.Context, logger *slog.Logger, c config.ArtifactStorage) (artifactStore, error) {
	if c.Backend == config.StorageMinIO {
		client, err := storage.NewMinIOClient(ctx, logger, c.MinIO, c.Bucket)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewAWSS3Client(ctx, c.S3)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Client(logger, client, manager.NewUploader(client), c.Bucket), nil
}
