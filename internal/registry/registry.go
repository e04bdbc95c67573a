// Package registry tracks which users hold live sessions in this process
// and drives the presence side effects of connect and disconnect.
package registry

import (
	"context"
	"hash/fnv"
	"log"
	"sync"

	"capsule-server/internal/bus"
	"capsule-server/internal/event"
	"capsule-server/internal/presence"
)

const shardCount = 16

// FriendResolver supplies the friend ids a status change is broadcast to.
// Friend-list storage is the social graph's concern, not the registry's.
type FriendResolver interface {
	ResolveFriendIDs(userID string) []string
}

// Registry maps user id to the set of live sessions in this process. A
// user's first session subscribes their bus channel, marks them online and
// broadcasts the status change to friends; removing their last session
// undoes all three. Locking is sharded by user so unrelated users never
// contend.
type Registry struct {
	bus      bus.Bus
	presence presence.Store
	friends  FriendResolver

	shards [shardCount]shard
}

type shard struct {
	mu    sync.RWMutex
	users map[string]*userEntry
}

type userEntry struct {
	sessions map[*Session]struct{}
	sub      bus.Subscription
	cancel   context.CancelFunc
}

func New(b bus.Bus, p presence.Store, friends FriendResolver) *Registry {
	r := &Registry{bus: b, presence: p, friends: friends}
	for i := range r.shards {
		r.shards[i].users = make(map[string]*userEntry)
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()%shardCount]
}

// Register adds the session to its user's set. The first session for a
// user subscribes the user's channel and starts the forward loop that fans
// bus messages in to every local session. Bus or presence failures degrade
// to local-only delivery; they never fail the registration.
func (r *Registry) Register(ctx context.Context, sess *Session) {
	sh := r.shardFor(sess.UserID)

	sh.mu.Lock()
	entry := sh.users[sess.UserID]
	first := entry == nil
	if first {
		entry = &userEntry{sessions: make(map[*Session]struct{})}
		sh.users[sess.UserID] = entry

		loopCtx, cancel := context.WithCancel(context.Background())
		entry.cancel = cancel
		sub, err := r.bus.Subscribe(ctx, bus.UserChannel(sess.UserID))
		if err != nil {
			log.Printf("registry: subscribe failed for user %s, local-only delivery: %v", sess.UserID, err)
		} else {
			entry.sub = sub
			go r.forward(loopCtx, sess.UserID, sub)
		}
	}
	entry.sessions[sess] = struct{}{}
	sh.mu.Unlock()

	if first {
		if err := r.presence.MarkOnline(ctx, sess.UserID); err != nil {
			log.Printf("registry: mark online %s: %v", sess.UserID, err)
		}
		r.broadcastStatus(ctx, sess.UserID, true)
	}
}

// Unregister removes the session. Removing an already-absent session is a
// no-op. When the user's last local session goes, the forward loop is
// cancelled and the channel unsubscribed; presence is cleared and the
// offline status broadcast only after re-checking that no new session
// registered in the meantime.
func (r *Registry) Unregister(ctx context.Context, sess *Session) {
	sh := r.shardFor(sess.UserID)

	sh.mu.Lock()
	entry := sh.users[sess.UserID]
	if entry == nil {
		sh.mu.Unlock()
		return
	}
	if _, ok := entry.sessions[sess]; !ok {
		sh.mu.Unlock()
		return
	}
	delete(entry.sessions, sess)
	last := len(entry.sessions) == 0
	var sub bus.Subscription
	if last {
		delete(sh.users, sess.UserID)
		entry.cancel()
		sub = entry.sub
	}
	sh.mu.Unlock()

	if !last {
		return
	}
	if sub != nil {
		_ = sub.Close()
	}

	// Re-check before clearing presence: a new session may have registered
	// between the removal above and here, and it already refreshed the
	// online mark we would otherwise delete.
	if r.IsOnline(sess.UserID) {
		return
	}
	if err := r.presence.MarkOffline(ctx, sess.UserID); err != nil {
		log.Printf("registry: mark offline %s: %v", sess.UserID, err)
	}
	r.broadcastStatus(ctx, sess.UserID, false)
}

// IsOnline reports whether the user has a live session in this process.
// Cross-process truth lives in the presence store.
func (r *Registry) IsOnline(userID string) bool {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	entry := sh.users[userID]
	return entry != nil && len(entry.sessions) > 0
}

// ListOnlineLocal snapshots the user ids with at least one local session.
func (r *Registry) ListOnlineLocal() []string {
	var users []string
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for userID := range sh.users {
			users = append(users, userID)
		}
		sh.mu.RUnlock()
	}
	return users
}

func (r *Registry) forward(ctx context.Context, userID string, sub bus.Subscription) {
	for {
		evt, err := sub.Next(ctx)
		if err != nil {
			return
		}
		r.deliverLocal(userID, evt)
	}
}

func (r *Registry) deliverLocal(userID string, evt event.Event) {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	entry := sh.users[userID]
	sessions := make([]*Session, 0, 2)
	if entry != nil {
		for s := range entry.sessions {
			sessions = append(sessions, s)
		}
	}
	sh.mu.RUnlock()

	for _, s := range sessions {
		s.Send(evt)
	}
}

func (r *Registry) broadcastStatus(ctx context.Context, userID string, online bool) {
	evt := event.UserStatus(userID, online)
	for _, friendID := range r.friends.ResolveFriendIDs(userID) {
		if err := r.bus.Publish(ctx, bus.UserChannel(friendID), evt); err != nil {
			log.Printf("registry: status broadcast to %s: %v", friendID, err)
		}
	}
}
