package bus_test

import (
	"context"
	"testing"

	"cloudpush/internal/bus"
	"cloudpush/internal/events"
	"cloudpush/internal/services"
)

func TestPublishRunsHandlersInOrder(t *testing.T) {
	b := bus.New(nil)
	var order []string
	b.Subscribe(events.TypeNotification, bus.HandlerFunc(func(ctx context.Context, env events.Envelope) {
		order = append(order, "first")
		if et, ok := services.EventTypeFromContext(ctx); !ok || et != events.TypeNotification {
			t.Errorf("expected event type on context, got %q", et)
		}
	}))
	b.Subscribe(events.TypeNotification, bus.HandlerFunc(func(context.Context, events.Envelope) {
		order = append(order, "second")
	}))
	b.Subscribe(events.TypePluginAction, bus.HandlerFunc(func(context.Context, events.Envelope) {
		order = append(order, "other")
	}))

	n := b.Publish(context.Background(), events.Envelope{EventType: events.TypeNotification})
	if n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	b := bus.New(nil)
	reached := false
	b.Subscribe("x", bus.HandlerFunc(func(context.Context, events.Envelope) { panic("boom") }))
	b.Subscribe("x", bus.HandlerFunc(func(context.Context, events.Envelope) { reached = true }))

	if n := b.Publish(context.Background(), events.Envelope{EventType: "x"}); n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	if !reached {
		t.Fatal("expected handler after the panicking one to run")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := bus.New(nil)
	calls := 0
	unsubscribe := b.Subscribe("x", bus.HandlerFunc(func(context.Context, events.Envelope) { calls++ }))
	b.Subscribe("x", bus.HandlerFunc(func(context.Context, events.Envelope) {}))

	unsubscribe()
	unsubscribe()

	if b.Handlers("x") != 1 {
		t.Fatalf("expected one remaining handler, got %d", b.Handlers("x"))
	}
	b.Publish(context.Background(), events.Envelope{EventType: "x"})
	if calls != 0 {
		t.Fatalf("expected removed handler not to run, got %d calls", calls)
	}
	if n := b.Publish(context.Background(), events.Envelope{EventType: "unknown"}); n != 0 {
		t.Fatalf("expected no handlers, got %d", n)
	}
}
