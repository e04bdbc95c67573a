package event

import (
	"encoding/json"
	"errors"
	"time"
)

// Wire event types. Clients demultiplex on the "type" field; all event
// types for a user travel over the same per-user channel.
const (
	TypePong                  = "pong"
	TypeTypingIndicator       = "typing_indicator"
	TypeUserStatus            = "user_status"
	TypeNewMessage            = "new_message"
	TypeFriendRequest         = "friend_request"
	TypeFriendRequestResponse = "friend_request_response"
	TypeCapsuleShared         = "capsule_shared"
)

// Event is a flat JSON envelope with at least a "type" field. Events are
// immutable once published; constructors below build the known shapes.
type Event map[string]any

func (e Event) Type() string {
	t, _ := e["type"].(string)
	return t
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(e))
}

var ErrMalformed = errors.New("malformed event")

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, ErrMalformed
	}
	if e.Type() == "" {
		return nil, ErrMalformed
	}
	return e, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func Pong() Event {
	return Event{"type": TypePong}
}

func TypingIndicator(userID, conversationID string, isTyping bool) Event {
	return Event{
		"type":            TypeTypingIndicator,
		"user_id":         userID,
		"conversation_id": conversationID,
		"is_typing":       isTyping,
	}
}

func UserStatus(userID string, isOnline bool) Event {
	return Event{
		"type":      TypeUserStatus,
		"user_id":   userID,
		"is_online": isOnline,
		"timestamp": timestamp(),
	}
}

func NewMessage(message any) Event {
	return Event{
		"type":      TypeNewMessage,
		"message":   message,
		"timestamp": timestamp(),
	}
}

func FriendRequest(requester any, message, friendshipID string) Event {
	return Event{
		"type":          TypeFriendRequest,
		"requester":     requester,
		"message":       message,
		"friendship_id": friendshipID,
		"timestamp":     timestamp(),
	}
}

func FriendRequestResponse(accepted bool, responder any) Event {
	return Event{
		"type":      TypeFriendRequestResponse,
		"accepted":  accepted,
		"responder": responder,
		"timestamp": timestamp(),
	}
}

func CapsuleShared(capsule any, ownerID, message string) Event {
	return Event{
		"type":      TypeCapsuleShared,
		"capsule":   capsule,
		"owner_id":  ownerID,
		"message":   message,
		"timestamp": timestamp(),
	}
}
