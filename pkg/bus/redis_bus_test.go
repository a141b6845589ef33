package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"kreatorboard/pkg/domain"
)

func TestRedisBusDeliversPublishedEvents(t *testing.T) {
	srv := miniredis.RunT(t)
	pub, err := NewRedisBus(RedisBusConfig{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()
	sub, err := NewRedisBus(RedisBusConfig{Addr: srv.Addr()})
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	sub.Subscribe(ctx, func(e Event) {
		received <- e
	})

	event := Event{
		Type: EventMessageCreated,
		Message: domain.Message{
			ID:         "msg-1",
			SenderID:   "a",
			ReceiverID: "b",
			Message:    "hello",
			CreatedAt:  time.Now().UTC(),
		},
	}

	deadline := time.After(2 * time.Second)
	for {
		if err := pub.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got := <-received:
			if got.Type != EventMessageCreated || got.Message.ID != "msg-1" || got.Message.Message != "hello" {
				t.Fatalf("unexpected event: %+v", got)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for event")
		case <-time.After(50 * time.Millisecond):
			// Subscription may not be established yet; publish again.
		}
	}
}

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus()
	ctx := context.Background()

	var first, second []Event
	b.Subscribe(ctx, func(e Event) { first = append(first, e) })
	b.Subscribe(ctx, func(e Event) { second = append(second, e) })

	if err := b.Publish(ctx, Event{Type: EventMessageCreated, Message: domain.Message{ID: "m1"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both subscribers to receive event, got %d and %d", len(first), len(second))
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Publish(ctx, Event{Type: EventMessageCreated}); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected no delivery after close, got %d", len(first))
	}
}
