package event

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroker() *Broker {
	return NewEventBroker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBroker_Subscribe(t *testing.T) {
	eventBroker := newBroker()

	id1, _ := eventBroker.Subscribe("tenant1")
	id2, _ := eventBroker.Subscribe("tenant1")
	_, _ = eventBroker.Subscribe("tenant2")

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, eventBroker.Subscribers("tenant1"))
	assert.Equal(t, 1, eventBroker.Subscribers("tenant2"))
}

func TestBroker_Unsubscribe(t *testing.T) {
	eventBroker := newBroker()
	id, events := eventBroker.Subscribe("tenant1")

	eventBroker.Unsubscribe(id)
	eventBroker.Unsubscribe(id)

	assert.Equal(t, 0, eventBroker.Subscribers("tenant1"))
	_, ok := <-events
	assert.False(t, ok, "channel should be closed")
}

func TestBroker_Send(t *testing.T) {
	eventBroker := newBroker()
	_, events1 := eventBroker.Subscribe("tenant1")
	_, events2 := eventBroker.Subscribe("tenant2")

	delivered := eventBroker.Send(context.Background(), Event{Type: ActionEventType, ActionID: 1, Tenant: "tenant1"})

	require.Equal(t, 1, delivered)
	event := <-events1
	assert.Equal(t, uint(1), event.ActionID)
	assert.Empty(t, events2)
}

func TestBroker_Send_DropsEventsOfFullSubscribers(t *testing.T) {
	eventBroker := newBroker()
	_, events := eventBroker.Subscribe("tenant1")

	for i := 0; i < subscriberBuffer; i++ {
		require.Equal(t, 1, eventBroker.Send(context.Background(), Event{Tenant: "tenant1"}))
	}
	delivered := eventBroker.Send(context.Background(), Event{Tenant: "tenant1"})

	assert.Equal(t, 0, delivered)
	assert.Len(t, events, subscriberBuffer)
}

func TestBroker_ActionChanged(t *testing.T) {
	eventBroker := newBroker()
	_, events := eventBroker.Subscribe("tenant1")
	rolloutID := uint(7)
	action := model.Action{
		Tenant:            "tenant1",
		TargetID:          2,
		DistributionSetID: 3,
		RolloutID:         &rolloutID,
		Status:            model.ActionStatusRunning,
		Active:            true,
	}
	action.ID = 1

	eventBroker.ActionChanged(context.Background(), action)

	event := <-events
	assert.Equal(t, Event{
		Type:              ActionEventType,
		ActionID:          1,
		TargetID:          2,
		DistributionSetID: 3,
		RolloutID:         &rolloutID,
		Status:            model.ActionStatusRunning,
		Active:            true,
		Tenant:            "tenant1",
	}, event)
}
