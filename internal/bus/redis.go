package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"capsule-server/internal/event"
)

// RedisBus carries events over Redis pub/sub so that any process holding a
// live session for the target user receives them, not just the publisher's.
type RedisBus struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, evt event.Event) error {
	data, err := evt.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Force the subscription onto the wire before returning so a publish
	// issued right after Subscribe is not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	return &redisSubscription{ps: ps, ch: ps.Channel()}, nil
}

type redisSubscription struct {
	ps *redis.PubSub
	ch <-chan *redis.Message
}

func (s *redisSubscription) Next(ctx context.Context) (event.Event, error) {
	for {
		select {
		case msg, ok := <-s.ch:
			if !ok {
				return nil, ErrClosed
			}
			evt, err := event.Decode([]byte(msg.Payload))
			if err != nil {
				// Garbage on the channel is dropped, not fatal.
				continue
			}
			return evt, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
