// Package presence tracks which users are online across the whole fleet.
// The store is an eventually-consistent cache of registry state: refreshed
// when a user connects, cleared when their last local session disconnects,
// and bounded by a TTL so a crashed process cannot leave users online
// forever.
package presence

import (
	"context"
	"time"
)

const DefaultTTL = 300 * time.Second

type Store interface {
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	// IsOnline fails closed: on store errors callers get (false, err) and
	// should treat the user as offline rather than propagate.
	IsOnline(ctx context.Context, userID string) (bool, error)
}
