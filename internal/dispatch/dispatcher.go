// Package dispatch routes logical events to target users by publishing on
// their per-user channels. It never queues and never retries: whichever
// processes hold live sessions for a target pick the event up from the bus.
package dispatch

import (
	"context"
	"log"

	"capsule-server/internal/bus"
	"capsule-server/internal/event"
)

type Dispatcher struct {
	bus bus.Bus
}

func New(b bus.Bus) *Dispatcher {
	return &Dispatcher{bus: b}
}

// SendToUser publishes the event on the user's channel. A user with no
// subscriber anywhere simply does not receive it.
func (d *Dispatcher) SendToUser(ctx context.Context, userID string, evt event.Event) error {
	return d.bus.Publish(ctx, bus.UserChannel(userID), evt)
}

// SendToConversation fans the event out to every participant except
// excludeUserID. Each publish is independent: a failure is logged and the
// remaining participants still get theirs.
func (d *Dispatcher) SendToConversation(ctx context.Context, participantIDs []string, evt event.Event, excludeUserID string) {
	for _, id := range participantIDs {
		if id == excludeUserID {
			continue
		}
		if err := d.SendToUser(ctx, id, evt); err != nil {
			log.Printf("dispatch: send %s to %s: %v", evt.Type(), id, err)
		}
	}
}

// BroadcastToFriends fans the event out over a caller-resolved friend list,
// with the same per-target error isolation as SendToConversation.
func (d *Dispatcher) BroadcastToFriends(ctx context.Context, userID string, evt event.Event, friendIDs []string) {
	for _, id := range friendIDs {
		if id == userID {
			continue
		}
		if err := d.SendToUser(ctx, id, evt); err != nil {
			log.Printf("dispatch: broadcast %s to %s: %v", evt.Type(), id, err)
		}
	}
}
