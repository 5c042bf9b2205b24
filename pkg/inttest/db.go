package inttest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/config"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	_ "github.com/lib/pq" // postgres driver
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupDB creates a PostgreSQL container. Gorm is connected to the DB and runs the migrations.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	container, err := gnomock.Start(
		postgres.Preset(
			postgres.WithUser("updates", "updates"),
			postgres.WithDatabase("test_updates"),
		),
	)
	require.NoError(t, err, "failed to start DB")
	t.Cleanup(func() { require.NoError(t, gnomock.Stop(container), "failed to stop DB") })

	db, err := storage.NewDatabase(Logger(), config.Postgresql{
		Host:         container.Host,
		Port:         container.DefaultPort(),
		Username:     "updates",
		Password:     "updates",
		DatabaseName: "test_updates",
	})
	require.NoError(t, err, "failed to setup DB")
	return db
}

// Logger returns a logger discarding all records.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
