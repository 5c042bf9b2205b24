package dmf

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, msg: msg})
	return nil
}

func newTestPublisher(channel Channel, downloadURL string) *Publisher {
	return NewPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), channel, "dmf.exchange", downloadURL)
}

func TestTopicOf(t *testing.T) {
	tests := map[string]struct {
		action model.Action
		want   Topic
	}{
		"forced":       {action: model.Action{Type: model.ActionTypeForced, Status: model.ActionStatusRunning}, want: TopicDownloadAndInstall},
		"downloadonly": {action: model.Action{Type: model.ActionTypeDownloadOnly, Status: model.ActionStatusRunning}, want: TopicDownload},
		"confirmation": {action: model.Action{Type: model.ActionTypeSoft, Status: model.ActionStatusWaitForConfirmation}, want: TopicConfirm},
		"canceling":    {action: model.Action{Type: model.ActionTypeForced, Status: model.ActionStatusCanceling}, want: TopicCancelDownload},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, TopicOf(test.action))
		})
	}
}

func TestPublisherExchange(t *testing.T) {
	channel := &fakeChannel{}
	publisher := newTestPublisher(channel, "")

	tests := map[string]struct {
		address      string
		wantExchange string
	}{
		"default exchange": {address: "amqp://vhost", wantExchange: "dmf.exchange"},
		"named exchange":   {address: "amqp://vhost/device.exchange", wantExchange: "device.exchange"},
		"no address":       {address: ""},
		"http address":     {address: "http://192.168.0.1"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			exchange, ok := publisher.exchange(test.address)

			assert.Equal(t, test.wantExchange != "", ok)
			assert.Equal(t, test.wantExchange, exchange)
		})
	}
}

func TestPublisherAssign(t *testing.T) {
	channel := &fakeChannel{}
	publisher := newTestPublisher(channel, "https://updates.example.org/rest/v1/")
	target := model.Target{Tenant: "acme", ControllerID: "device-1", Address: "amqp://vhost", SecurityToken: "token"}
	module := model.SoftwareModule{
		Base:      model.Base{ID: 3},
		Type:      model.SoftwareModuleType{Key: "os"},
		Version:   "1.0",
		Encrypted: true,
		Artifacts: []model.Artifact{{Base: model.Base{ID: 7}, SoftwareModuleID: 3, Filename: "image.bin", Size: 10, SHA1: "sha1", MD5: "md5"}},
	}

	err := publisher.Assign(context.Background(), Assignment{
		Target:   target,
		Action:   model.Action{Base: model.Base{ID: 1}, Type: model.ActionTypeForced, Status: model.ActionStatusRunning},
		Modules:  []model.SoftwareModule{module},
		Metadata: map[uint][]model.Metadata{3: {{Key: "partition", Value: "a"}}},
	})

	require.NoError(t, err)
	require.Len(t, channel.published, 1)
	msg := channel.published[0].msg
	assert.Equal(t, "dmf.exchange", channel.published[0].exchange)
	assert.Equal(t, "EVENT", msg.Headers[HeaderType])
	assert.Equal(t, "DOWNLOAD_AND_INSTALL", msg.Headers[HeaderTopic])
	assert.Equal(t, "device-1", msg.Headers[HeaderThingID])
	assert.Equal(t, "acme", msg.Headers[HeaderTenant])

	var request DownloadAndUpdateRequest
	require.NoError(t, json.Unmarshal(msg.Body, &request))
	assert.Equal(t, uint(1), request.ActionID)
	assert.Equal(t, "token", request.TargetSecurityToken)
	require.Len(t, request.SoftwareModules, 1)
	sm := request.SoftwareModules[0]
	assert.Equal(t, "os", sm.ModuleType)
	require.NotNil(t, sm.Encrypted)
	assert.True(t, *sm.Encrypted)
	assert.Equal(t, []Metadata{{Key: "partition", Value: "a"}}, sm.Metadata)
	require.Len(t, sm.Artifacts, 1)
	assert.Equal(t, "https://updates.example.org/rest/v1/softwaremodules/3/artifacts/7/download", sm.Artifacts[0].URLs["HTTPS"])
}

func TestPublisherCancelAndDelete(t *testing.T) {
	channel := &fakeChannel{}
	publisher := newTestPublisher(channel, "")
	target := model.Target{Tenant: "acme", ControllerID: "device-1", Address: "amqp://vhost/device.exchange"}

	err := publisher.Assign(context.Background(), Assignment{
		Target: target,
		Action: model.Action{Base: model.Base{ID: 4}, Status: model.ActionStatusCanceling},
	})
	require.NoError(t, err)
	err = publisher.ThingDeleted(context.Background(), target)
	require.NoError(t, err)

	require.Len(t, channel.published, 2)
	cancel := channel.published[0].msg
	assert.Equal(t, "CANCEL_DOWNLOAD", cancel.Headers[HeaderTopic])
	assert.JSONEq(t, `{"actionId": 4}`, string(cancel.Body))

	deleted := channel.published[1].msg
	assert.Equal(t, "device.exchange", channel.published[1].exchange)
	assert.Equal(t, "THING_DELETED", deleted.Headers[HeaderType])
	assert.NotContains(t, deleted.Headers, HeaderTopic)
	assert.Empty(t, deleted.Body)
}

func TestPublisherSkipsTargetsWithoutAMQPAddress(t *testing.T) {
	channel := &fakeChannel{}
	publisher := newTestPublisher(channel, "")

	err := publisher.RequestAttributesUpdate(context.Background(), model.Target{ControllerID: "device-1", Address: "http://device"})

	require.NoError(t, err)
	assert.Empty(t, channel.published)
}

func TestPublisherCircuitBreaker(t *testing.T) {
	channel := &fakeChannel{err: errors.New("channel closed")}
	publisher := newTestPublisher(channel, "")
	target := model.Target{ControllerID: "device-1", Address: "amqp://vhost"}

	for range 5 {
		err := publisher.ThingDeleted(context.Background(), target)
		assert.ErrorContains(t, err, "channel closed")
	}

	err := publisher.ThingDeleted(context.Background(), target)
	assert.ErrorContains(t, err, "circuit breaker is open")
}
