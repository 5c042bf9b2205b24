package telemetry_test

import (
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.InitTracer("update-manager", "test", "")

	require.NoError(t, err)
	assert.NoError(t, shutdown(t.Context()))
}

func TestInitTracer(t *testing.T) {
	shutdown, err := telemetry.InitTracer("update-manager", "test", "http://localhost:14268/api/traces")

	require.NoError(t, err)
	assert.NoError(t, shutdown(t.Context()))
}
