package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/google/uuid"
)

// subscriberBuffer is the number of events buffered per subscriber. Events sent to a subscriber
// with a full buffer are dropped.
const subscriberBuffer = 32

func NewEventBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[string]subscriber),
	}
}

const ActionEventType = "action"

// Event is a change of a management entity streamed to the subscribers of its tenant.
type Event struct {
	Type              string                 `json:"type"`
	ActionID          uint                   `json:"actionId"`
	TargetID          uint                   `json:"targetId"`
	DistributionSetID uint                   `json:"distributionSetId"`
	RolloutID         *uint                  `json:"rolloutId,omitempty"`
	Status            model.ActionStatusType `json:"status"`
	Active            bool                   `json:"active"`
	Tenant            string                 `json:"-"`
}

type subscriber struct {
	tenant  string
	channel chan Event
}

type Broker struct {
	logger      *slog.Logger
	subscribers map[string]subscriber
	lock        sync.RWMutex
}

// Subscribe registers a subscriber for the events of tenant. The returned channel is closed on
// Unsubscribe.
func (b *Broker) Subscribe(tenant string) (string, <-chan Event) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := uuid.NewString()
	channel := make(chan Event, subscriberBuffer)
	b.subscribers[id] = subscriber{
		tenant:  tenant,
		channel: channel,
	}
	return id, channel
}

// Unsubscribe removes the subscriber. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if s, ok := b.subscribers[id]; ok {
		close(s.channel)
		delete(b.subscribers, id)
	}
}

// Subscribers returns the number of subscribers of tenant.
func (b *Broker) Subscribers(tenant string) int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	count := 0
	for _, s := range b.subscribers {
		if s.tenant == tenant {
			count++
		}
	}
	return count
}

// Send delivers event to every subscriber of its tenant without blocking and returns the number
// of subscribers it was delivered to.
func (b *Broker) Send(ctx context.Context, event Event) int {
	b.lock.RLock()
	defer b.lock.RUnlock()

	delivered := 0
	for id, s := range b.subscribers {
		if s.tenant != event.Tenant {
			continue
		}
		select {
		case s.channel <- event:
			delivered++
		default:
			b.logger.WarnContext(ctx, "Dropped event of slow subscriber", "subscriber", id, "type", event.Type)
		}
	}
	return delivered
}

// ActionChanged streams the current state of action.
func (b *Broker) ActionChanged(ctx context.Context, action model.Action) {
	b.Send(ctx, Event{
		Type:              ActionEventType,
		ActionID:          action.ID,
		TargetID:          action.TargetID,
		DistributionSetID: action.DistributionSetID,
		RolloutID:         action.RolloutID,
		Status:            action.Status,
		Active:            action.Active,
		Tenant:            action.Tenant,
	})
}
