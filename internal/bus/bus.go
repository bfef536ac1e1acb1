package bus

import (
	"context"
	"log/slog"
	"sync"

	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/services"
)

// Handler consumes one event. Handlers run on the publisher's goroutine.
type Handler interface {
	HandleEvent(ctx context.Context, env events.Envelope)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env events.Envelope)

func (f HandlerFunc) HandleEvent(ctx context.Context, env events.Envelope) { f(ctx, env) }

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events synchronously to handlers keyed by event type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   uint64
	logger   *slog.Logger
}

// New constructs an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logging.NewComponentLogger(logger, "bus"),
	}
}

// Subscribe registers h for eventType. The returned function removes it.
func (b *Bus) Subscribe(eventType string, h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[eventType]
			for i, sub := range subs {
				if sub.id == id {
					b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish invokes every handler subscribed to env.EventType in registration
// order and returns how many ran. A panicking handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, env events.Envelope) int {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[env.EventType]...)
	b.mu.RUnlock()

	ctx = services.WithEventType(ctx, env.EventType)
	for _, sub := range subs {
		b.dispatch(ctx, sub.handler, env)
	}
	if len(subs) == 0 {
		logging.WithContext(ctx, b.logger).Debug("no handlers for event")
	}
	return len(subs)
}

// Handlers returns the number of handlers registered for eventType.
func (b *Bus) Handlers(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *Bus) dispatch(ctx context.Context, h Handler, env events.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logging.WithContext(ctx, b.logger), "event handler panicked", "handler_panic",
				logging.Panic(r),
			)
		}
	}()
	h.HandleEvent(ctx, env)
}
