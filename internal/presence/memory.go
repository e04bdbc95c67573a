package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process fallback used when no Redis URL is
// configured, and the store the tests run against.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *MemoryStore {
	return NewMemoryWithNow(ttl, time.Now)
}

func NewMemoryWithNow(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: make(map[string]time.Time), ttl: ttl, now: now}
}

func (s *MemoryStore) MarkOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) MarkOffline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *MemoryStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.entries[userID]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.entries, userID)
		return false, nil
	}
	return true, nil
}
