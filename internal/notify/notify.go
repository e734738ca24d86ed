// Package notify carries the events the service emits after state changes.
// Delivery is best-effort: a sink failure never undoes the change that
// produced the event.
package notify

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names an event type.
type Kind string

// Event kinds.
const (
	TaskAssigned Kind = "task.assigned"
	TaskPastDue  Kind = "task.past_due"
	DigestReady  Kind = "digest.ready"
)

// Event is a single notification.
type Event struct {
	Kind     Kind              `json:"kind"`
	ChurchID string            `json:"church_id"`
	EntityID string            `json:"entity_id,omitempty"`
	Message  string            `json:"message"`
	At       time.Time         `json:"at"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })

// Multi fans an event out to every sink and joins their errors.
func Multi(sinks ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, event Event) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Notify(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// ZapNotifier writes events to a zap logger.
type ZapNotifier struct {
	log *zap.Logger
}

// NewZapNotifier returns a notifier that logs at info level.
func NewZapNotifier(log *zap.Logger) *ZapNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapNotifier{log: log.Named("notify")}
}

// Notify logs the event.
func (n *ZapNotifier) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("church_id", event.ChurchID),
		zap.Time("at", event.At),
	}
	if event.EntityID != "" {
		fields = append(fields, zap.String("entity_id", event.EntityID))
	}
	for k, v := range event.Data {
		fields = append(fields, zap.String(k, v))
	}
	n.log.Info(event.Message, fields...)
	return nil
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify records event.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns recorded events, optionally restricted to the given kinds.
func (r *Recorder) Events(kinds ...Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if len(kinds) == 0 || slices.Contains(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
