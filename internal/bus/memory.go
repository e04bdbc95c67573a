package bus

import (
	"context"
	"sync"

	"capsule-server/internal/event"
)

const subscriptionBuffer = 64

// MemoryBus is an in-process Bus. It backs single-process deployments that
// run without Redis, and the test suites of everything above the bus.
type MemoryBus struct {
	mu       sync.RWMutex
	channels map[string]map[*memorySubscription]struct{}
}

func NewMemory() *MemoryBus {
	return &MemoryBus{channels: make(map[string]map[*memorySubscription]struct{})}
}

type memorySubscription struct {
	bus     *MemoryBus
	channel string
	ch      chan event.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, evt event.Event) error {
	b.mu.RLock()
	subs := make([]*memorySubscription, 0, len(b.channels[channel]))
	for s := range b.channels[channel] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			// Subscriber is not keeping up; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	s := &memorySubscription{
		bus:     b,
		channel: channel,
		ch:      make(chan event.Event, subscriptionBuffer),
		closed:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*memorySubscription]struct{})
	}
	b.channels[channel][s] = struct{}{}
	b.mu.Unlock()

	return s, nil
}

func (s *memorySubscription) Next(ctx context.Context) (event.Event, error) {
	select {
	case evt := <-s.ch:
		return evt, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		set := s.bus.channels[s.channel]
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.channels, s.channel)
		}
		s.bus.mu.Unlock()
		close(s.closed)
	})
	return nil
}
