package tenantconfig

import (
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefinitions(t *testing.T) {
	definitions, err := loadDefinitions(defaultsYAML)
	require.NoError(t, err)

	assert.Len(t, definitions, 16)
	assert.Equal(t, definition{Key: PollingTime, Type: typeDuration, Default: "00:05:00"}, definitions[PollingTime])
	assert.Equal(t, typeBool, definitions[MultiAssignmentsEnabled].Type)
	assert.Equal(t, "2592000000", definitions[ActionCleanupExpiry].Default)

	_, err = loadDefinitions([]byte(`[{key: pollingTime, type: duration, default: "5m"}]`))
	assert.ErrorContains(t, err, "invalid default")
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("01:02:03")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, d)

	for _, invalid := range []string{"1:02:03", "01:60:00", "5m", ""} {
		_, err := ParseDuration(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestDefinitionFormat(t *testing.T) {
	tests := map[string]struct {
		definition definition
		value      any
		want       string
	}{
		"bool":     {definition: definition{Type: typeBool}, value: true, want: "true"},
		"long":     {definition: definition{Type: typeLong}, value: float64(1000), want: "1000"},
		"duration": {definition: definition{Type: typeDuration}, value: "00:00:40", want: "00:00:40"},
		"string":   {definition: definition{Type: typeString}, value: "canceled", want: "canceled"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			stored, err := test.definition.format(test.value)

			require.NoError(t, err)
			assert.Equal(t, test.want, stored)
		})
	}
}

func TestDefinitionFormatInvalid(t *testing.T) {
	tests := map[string]struct {
		definition definition
		value      any
	}{
		"string as bool":   {definition: definition{Type: typeBool}, value: "true"},
		"fraction as long": {definition: definition{Type: typeLong}, value: 1.5},
		"string as long":   {definition: definition{Type: typeLong}, value: "1"},
		"invalid duration": {definition: definition{Type: typeDuration}, value: "40s"},
		"number as string": {definition: definition{Type: typeString}, value: float64(1)},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := test.definition.format(test.value)

			require.Error(t, err)
			assert.True(t, errdef.IsBadRequest(err))
		})
	}
}

func TestDefinitionParse(t *testing.T) {
	value, err := definition{Type: typeBool}.parse("true")
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = definition{Type: typeLong}.parse("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	_, err = definition{Type: "float"}.parse("1.0")
	assert.Error(t, err)
}
