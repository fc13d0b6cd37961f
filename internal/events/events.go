// Package events publishes lifecycle notifications after a change has been
// committed. Publishing is best effort: callers log failures and move on.
package events

import (
	"context"
	"sync"
	"time"
)

// Routing keys used on the events exchange.
const (
	ShipmentStatusChanged = "shipment.status_changed"
	ShipmentCancelled     = "shipment.cancelled"
	PickupStatusChanged   = "pickup.status_changed"
	ManifestCreated       = "manifest.created"
	ManifestClosed        = "manifest.closed"
)

// Message is the JSON body of every published event.
type Message struct {
	EntityID   string         `json:"entityId"`
	Reference  string         `json:"reference,omitempty"` // AWB, pickup request id or manifest ref
	Status     string         `json:"status,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Details    map[string]any `json:"details,omitempty"`
}

// Publisher sends a message under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Close() error
}

// Nop discards every message. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Message) error { return nil }
func (Nop) Close() error                                   { return nil }

// Published is one message captured by a Recorder.
type Published struct {
	RoutingKey string
	Message    Message
}

// Recorder keeps published messages in memory. Err, when set, is returned
// from every Publish call after the message is recorded.
type Recorder struct {
	mu   sync.Mutex
	msgs []Published
	Err  error
}

func (r *Recorder) Publish(_ context.Context, routingKey string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Published{RoutingKey: routingKey, Message: msg})
	return r.Err
}

func (r *Recorder) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.msgs...)
}

// Keys returns the routing keys published so far, in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.RoutingKey
	}
	return out
}
