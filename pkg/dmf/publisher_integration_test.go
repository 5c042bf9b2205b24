package dmf_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/dmf"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher(t *testing.T) {
	t.Parallel()

	amqpClient := inttest.SetupRabbitMQ(t)
	deliveries := amqpClient.BindQueue(t, "dmf.exchange")

	conn, channel, err := dmf.Connect(amqpClient.URI(t), "dmf.exchange")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	publisher := dmf.NewPublisher(inttest.Logger(), channel, "dmf.exchange", "")

	target := model.Target{Tenant: "acme", ControllerID: "device-1", Address: "amqp://vhost"}
	err = publisher.Assign(context.Background(), dmf.Assignment{
		Target: target,
		Action: model.Action{Base: model.Base{ID: 42}, Type: model.ActionTypeDownloadOnly, Status: model.ActionStatusRunning},
	})
	require.NoError(t, err)

	delivery := inttest.Receive(t, deliveries, 10*time.Second)
	assert.Equal(t, "EVENT", delivery.Headers["type"])
	assert.Equal(t, "DOWNLOAD", delivery.Headers["topic"])
	assert.Equal(t, "device-1", delivery.Headers["thingId"])
	assert.Equal(t, "acme", delivery.Headers["tenant"])

	var request dmf.DownloadAndUpdateRequest
	require.NoError(t, json.Unmarshal(delivery.Body, &request))
	assert.Equal(t, uint(42), request.ActionID)
	assert.Empty(t, request.SoftwareModules)
}
