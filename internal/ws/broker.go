package ws

import (
	"sync"

	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
)

// subscriberBuffer bounds how far behind a stream consumer may fall
// before it is cut loose.
const subscriberBuffer = 256

// Subscription is one subscriber's buffered event feed.
type Subscription struct {
	events     chan types.Event
	instanceID string // Protected by the broker's mu; empty receives every instance
}

// Events returns the feed channel. It closes when the subscription is
// dropped or the broker shuts down.
func (s *Subscription) Events() <-chan types.Event {
	return s.events
}

// Broker fans instance lifecycle and console events out to stream
// subscribers. It satisfies the app manager's Publisher interface.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{} // Protected by mu
	closed bool
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a feed. A non-empty instanceID narrows it to one
// instance's events.
func (b *Broker) Subscribe(instanceID string) *Subscription {
	sub := &Subscription{
		events:     make(chan types.Event, subscriberBuffer),
		instanceID: instanceID,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.events)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// SetFilter narrows sub to one instance. Empty widens it back to all.
func (b *Broker) SetFilter(sub *Subscription, instanceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		sub.instanceID = instanceID
	}
}

// Unsubscribe removes the feed and closes its channel. Removing a feed
// twice is harmless.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}

// Publish implements app.Publisher. Delivery never blocks: a subscriber
// whose buffer is full is dropped rather than allowed to stall the
// instance lifecycle.
func (b *Broker) Publish(ev types.Event) {
	b.mu.RLock()
	var slow []*Subscription
	for sub := range b.subs {
		if sub.instanceID != "" && sub.instanceID != ev.InstanceID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.Unsubscribe(sub)
	}
}

// Len reports the number of active subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscription. Later publishes are discarded and
// later subscribes receive an already-closed feed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.events)
	}
	b.subs = make(map[*Subscription]struct{})
}
