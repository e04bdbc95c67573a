package model

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}

// Profile is the public slice of a user embedded in events and friend
// listings.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, FullName: u.FullName}
}

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipDeclined = "declined"
)

type Friendship struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	AddresseeID string `json:"addressee_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

type Conversation struct {
	ID               string   `json:"id"`
	Participants     []string `json:"participants"`
	ConversationType string   `json:"conversation_type"`
	Title            string   `json:"title,omitempty"`
	CreatedAt        int64    `json:"created_at"`
	LastMessageAt    int64    `json:"last_message_at"`
}

const (
	MessageSent = "sent"
	MessageRead = "read"
)

type ChatMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id,omitempty"`
	MessageType    string `json:"message_type"`
	Content        string `json:"content"`
	ReplyTo        string `json:"reply_to,omitempty"`
	Status         string `json:"status"`
	Timestamp      int64  `json:"timestamp"`
}

const (
	CapsuleLocked   = "locked"
	CapsuleUnlocked = "unlocked"
)

// Capsule is a time-locked content item. Content stays hidden until the
// unlock date has passed and the capsule has been flipped to unlocked.
type Capsule struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	UnlockDate int64  `json:"unlock_date"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

type CapsulePermission struct {
	ID               string `json:"id"`
	CapsuleID        string `json:"capsule_id"`
	OwnerID          string `json:"owner_id"`
	SharedWithUserID string `json:"shared_with_user_id"`
	PermissionLevel  string `json:"permission_level"`
	GrantedAt        int64  `json:"granted_at"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`
	IsActive         bool   `json:"is_active"`
}

type Notification struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	NotificationType string `json:"notification_type"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	Read             bool   `json:"read"`
	CreatedAt        int64  `json:"created_at"`
}
