package bus

import (
	"context"
	"testing"
	"time"

	"capsule-server/internal/event"
)

func TestMemoryBus_FIFOPerChannel(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, UserChannel("u1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := b.Publish(ctx, UserChannel("u1"), event.Event{"type": "e1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, UserChannel("u1"), event.Event{"type": "e2"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	first, err := sub.Next(ctx)
	if err != nil || first.Type() != "e1" {
		t.Fatalf("expected e1, got %v (%v)", first, err)
	}
	second, err := sub.Next(ctx)
	if err != nil || second.Type() != "e2" {
		t.Fatalf("expected e2, got %v (%v)", second, err)
	}
}

func TestMemoryBus_PublishWithoutSubscriber(t *testing.T) {
	b := NewMemory()
	if err := b.Publish(context.Background(), UserChannel("nobody"), event.Pong()); err != nil {
		t.Fatalf("expected silent drop, got %v", err)
	}
}

func TestMemoryBus_NextHonorsContext(t *testing.T) {
	b := NewMemory()
	sub, err := b.Subscribe(context.Background(), UserChannel("u1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := sub.Next(ctx); err == nil {
		t.Fatalf("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Next did not return promptly after cancellation")
	}
}

func TestMemoryBus_CloseStopsDelivery(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, UserChannel("u1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_ = b.Publish(ctx, UserChannel("u1"), event.Pong())
	if _, err := sub.Next(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
