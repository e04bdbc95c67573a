package registry

import (
	"github.com/google/uuid"
	"capsule-server/internal/event"
)

const sessionBuffer = 64

// Session is one live transport connection bound to an authenticated user.
// The registry owns it from Register to Unregister; the websocket handler
// drains Outbound and writes frames to the socket.
type Session struct {
	ID     string
	UserID string
	send   chan event.Event
}

func NewSession(userID string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan event.Event, sessionBuffer),
	}
}

func (s *Session) Outbound() <-chan event.Event {
	return s.send
}

// Send queues an event for the session's outbound loop without blocking.
func (s *Session) Send(evt event.Event) {
	select {
	case s.send <- evt:
	default:
		// Slow consumer; delivery is best-effort, drop instead of blocking
		// the user's forward loop.
	}
}
