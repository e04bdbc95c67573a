package bus

import (
	"context"
	"errors"

	"capsule-server/internal/event"
)

// Bus is a best-effort, at-most-once pub/sub transport. Nothing is queued
// or replayed: a publish with no live subscriber is silently lost, durable
// history belongs to the chat store, not here.
type Bus interface {
	Publish(ctx context.Context, channel string, evt event.Event) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a handle to one channel. Next blocks until a message
// arrives, the context is cancelled, or the subscription is closed.
type Subscription interface {
	Next(ctx context.Context) (event.Event, error)
	Close() error
}

var ErrClosed = errors.New("subscription closed")

// UserChannel names the per-user channel. All event types for a user
// multiplex onto this one channel.
func UserChannel(userID string) string {
	return "user:" + userID
}
