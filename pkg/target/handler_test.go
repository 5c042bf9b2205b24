package target

import (
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v := view{pollingInterval: 5 * time.Minute, pollingOverdue: 5 * time.Minute, now: now}

	t.Run("NeverPolled", func(t *testing.T) {
		assert.Nil(t, v.pollStatus(model.Target{}))
	})

	t.Run("OnTime", func(t *testing.T) {
		last := now.Add(-7 * time.Minute)

		status := v.pollStatus(model.Target{LastControllerRequestAt: &last})

		require.NotNil(t, status)
		assert.Equal(t, last.UnixMilli(), status.LastRequestAt)
		assert.Equal(t, now.Add(-2*time.Minute).UnixMilli(), status.NextExpectedRequestAt)
		assert.False(t, status.Overdue)
	})

	t.Run("Overdue", func(t *testing.T) {
		last := now.Add(-11 * time.Minute)

		status := v.pollStatus(model.Target{LastControllerRequestAt: &last})

		require.NotNil(t, status)
		assert.True(t, status.Overdue)
	})
}

func TestIPAddress(t *testing.T) {
	tests := map[string]struct {
		address string
		want    string
	}{
		"http":       {address: "http://192.168.0.10:8080/controller", want: "192.168.0.10"},
		"amqp":       {address: "amqp://broker/exchange", want: "broker"},
		"ipv6":       {address: "http://[::1]:80", want: "::1"},
		"empty":      {address: "", want: ""},
		"not an uri": {address: "::invalid", want: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, ipAddress(test.address))
		})
	}
}
