// Package realtime fans record-change events out to subscribed dashboard
// tabs. The services publish an event on every accepted write; subscribers
// use the stream to keep their client-side record caches current without
// polling.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// Event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// EventRecordChange is the only event type currently emitted.
const EventRecordChange = "record-change"

// Event describes one record mutation.
type Event struct {
	Type        string            `json:"type"`
	Action      string            `json:"action"`
	Kind        domain.RecordKind `json:"kind"`
	BackendID   string            `json:"backend_id"`
	BusinessKey string            `json:"business_key"`
	At          time.Time         `json:"at"`
}

type subscriber struct {
	id     int64
	stream chan Event
}

// Dispatcher is an office-wide fan-out of record events. Slow subscribers
// drop events rather than block publishers.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

// NewDispatcher returns a dispatcher with a small per-subscriber buffer.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a new stream. The returned cleanup runs when ctx is
// done as well, so abandoned connections cannot leak subscribers.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan Event, func()) {
	d.mu.Lock()
	d.nextID++
	sub := &subscriber{id: d.nextID, stream: make(chan Event, d.bufferSize)}
	d.subscribers[sub.id] = sub
	d.mu.Unlock()

	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, sub.id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers ev to every subscriber, dropping it for any whose
// buffer is full.
func (d *Dispatcher) Publish(ev Event) {
	if ev.Type == "" {
		ev.Type = EventRecordChange
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	d.mu.RLock()
	targets := make([]*subscriber, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		targets = append(targets, sub)
	}
	d.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.stream <- ev:
		default:
		}
	}
}

// SubscriberCount reports the current number of subscribers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	n := len(d.subscribers)
	d.mu.RUnlock()
	return n
}
