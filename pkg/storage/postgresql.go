package storage

import (
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/dhis2-sre/update-manager/pkg/model"
	slogGorm "github.com/orandin/slog-gorm"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDatabase connects to PostgreSQL and migrates the schema. Queries are logged through logger
// and traced.
func NewDatabase(logger *slog.Logger, c config.Postgresql) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable", c.Host, c.Username, c.Password, c.DatabaseName, c.Port)

	databaseConfig := gorm.Config{
		Logger:         slogGorm.New(slogGorm.WithHandler(logger.Handler())),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(dsn), &databaseConfig)
	if err != nil {
		return nil, err
	}

	err = db.Use(otelgorm.NewPlugin())
	if err != nil {
		return nil, fmt.Errorf("failed to add tracing to database: %v", err)
	}

	err = db.AutoMigrate(
		&model.TenantConfiguration{},

		&model.SoftwareModuleType{},
		&model.DistributionSetType{},
		&model.DistributionSetTypeElement{},
		&model.TargetType{},

		&model.Tag{},
		&model.Metadata{},

		&model.SoftwareModule{},
		&model.Artifact{},
		&model.DistributionSet{},

		&model.Target{},
		&model.TargetFilterQuery{},

		&model.Rollout{},
		&model.RolloutGroup{},
		&model.RolloutGroupTarget{},

		&model.Action{},
		&model.ActionStatus{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
