package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event kinds published by the matching core.
const (
	KindRequestUpdated = "request_updated"
	KindMatchCreated   = "match_created"
	KindMatchAccepted  = "match_accepted"
	KindMatchRejected  = "match_rejected"
)

// Event is one state-change notification. Delivery is fire-and-forget and
// at-least-once; consumers dedupe on (RequestID, ProviderID, At).
type Event struct {
	Topic      string    `json:"topic"`
	Kind       string    `json:"kind"`
	RequestID  string    `json:"request_id"`
	ProviderID string    `json:"provider_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Score      int       `json:"score,omitempty"`
	At         time.Time `json:"at"`
}

// RequestTopic is the per-request notification channel.
func RequestTopic(requestID string) string { return "request:" + requestID }

// ProviderMatchesTopic carries new and updated matches for one provider.
func ProviderMatchesTopic(providerID string) string {
	return "provider:" + providerID + ":matches"
}

// Notifier publishes state-change events. Implementations must tolerate
// duplicate publishes; the core never rolls state back on a publish error.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type Handler func(Event)

// Bus is the in-process notifier: subscribers are fanned out to
// synchronously on publish. It backs the websocket subscription surface.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// function.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Topic]))
	for _, h := range b.subs[ev.Topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// Multi fans a publish out to several notifiers, typically the in-process
// bus plus the Kafka publisher. All notifiers are attempted even when one
// fails.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
