package internal

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Lifecycle event names emitted by the server.
const (
	EventBeforeStart = "server.before_start"
	EventAfterStart  = "server.after_start"
	EventBeforeStop  = "server.before_stop"
	EventAfterStop   = "server.after_stop"
)

// Event is the value delivered to event handlers.
type Event struct {
	// Name is the event name the handler was subscribed to.
	Name string

	// Payload carries event-specific data, possibly nil.
	Payload any
}

// EventHandler handles a named event. Errors are logged by the bus and never
// abort dispatch to the remaining handlers.
type EventHandler func(ctx context.Context, e Event) error

// EventBus is a named-event pub/sub with sequential dispatch. Each server
// instance owns its own bus; there is no process-global emitter.
//
// Handlers for an event form an ordered set: subscribing the identical
// function twice is a no-op, and handlers run in subscription order.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	logger   *slog.Logger
}

// NewEventBus creates a bus. A nil logger disables failure logging.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = discardLogger()
	}
	return &EventBus{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
	}
}

// On subscribes a handler to an event. Subscribing the same function to the
// same event twice is a no-op.
func (b *EventBus) On(event string, h EventHandler) {
	if h == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ptr := reflect.ValueOf(h).Pointer()
	for _, existing := range b.handlers[event] {
		if reflect.ValueOf(existing).Pointer() == ptr {
			return
		}
	}
	b.handlers[event] = append(b.handlers[event], h)
}

// Off removes a handler from an event. Removing a handler that was never
// subscribed is a no-op.
func (b *EventBus) Off(event string, h EventHandler) {
	if h == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ptr := reflect.ValueOf(h).Pointer()
	hs := b.handlers[event]
	for i, existing := range hs {
		if reflect.ValueOf(existing).Pointer() == ptr {
			b.handlers[event] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of handlers subscribed to an event.
func (b *EventBus) HandlerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

// Emit dispatches the event synchronously to every handler in subscription
// order. Handler errors and panics are logged and swallowed so sibling
// handlers still run.
func (b *EventBus) Emit(event string, payload any) {
	_ = b.EmitContext(context.Background(), event, payload)
}

// EmitContext dispatches the event to every handler in subscription order,
// one at a time: the next handler does not start until the previous one has
// returned. Lifecycle handlers rely on their side effects completing in
// order.
//
// Handler errors and panics are logged and swallowed; the sequence never
// aborts on a handler failure. The only early exit is context cancellation
// between handlers, in which case ctx.Err() is returned. There is no
// per-handler timeout: a hung handler hangs the phase.
func (b *EventBus) EmitContext(ctx context.Context, event string, payload any) error {
	b.mu.RLock()
	hs := append([]EventHandler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	e := Event{Name: event, Payload: payload}
	for _, h := range hs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.invoke(ctx, h, e); err != nil {
			b.logger.Error("event handler failed",
				slog.String("event", event),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// invoke runs a single handler, converting a panic into an error.
func (b *EventBus) invoke(ctx context.Context, h EventHandler, e Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("event handler panicked: %v", rec)
		}
	}()
	return h(ctx, e)
}
