package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"capsule-server/internal/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrFriendshipExists = errors.New("friendship already exists")
	ErrAccessDenied     = errors.New("access denied")
)

// Store is the in-memory persistence layer for the social domain. All
// mutation goes through its methods; everything is rebuilt from zero on
// restart.
type Store struct {
	mu sync.RWMutex

	usersByID        map[string]model.User
	userIDByUsername map[string]string

	friendshipsByID map[string]model.Friendship

	conversationsByID      map[string]model.Conversation
	messagesByConversation map[string][]model.ChatMessage

	capsulesByID    map[string]model.Capsule
	permissionsByID map[string]model.CapsulePermission

	notificationsByUser map[string][]model.Notification

	accountSettingsByUserID map[string]accountSettings
}

type accountSettings struct {
	Settings *string
	Version  int
}

func New() *Store {
	return &Store{
		usersByID:               make(map[string]model.User),
		userIDByUsername:        make(map[string]string),
		friendshipsByID:         make(map[string]model.Friendship),
		conversationsByID:       make(map[string]model.Conversation),
		messagesByConversation:  make(map[string][]model.ChatMessage),
		capsulesByID:            make(map[string]model.Capsule),
		permissionsByID:         make(map[string]model.CapsulePermission),
		notificationsByUser:     make(map[string][]model.Notification),
		accountSettingsByUserID: make(map[string]accountSettings),
	}
}

func (s *Store) CreateUser(username, fullName, passwordHash string, now int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.userIDByUsername[key]; exists {
		return model.User{}, ErrUsernameTaken
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	s.usersByID[user.ID] = user
	s.userIDByUsername[key] = user.ID
	return user, nil
}

func (s *Store) UserByID(id string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[id]
	return user, ok
}

func (s *Store) UserByUsername(username string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIDByUsername[strings.ToLower(username)]
	if !ok {
		return model.User{}, false
	}
	user, ok := s.usersByID[id]
	return user, ok
}

func (s *Store) SearchUsers(prefix string, limit int) []model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	var profiles []model.Profile
	for _, user := range s.usersByID {
		if strings.HasPrefix(strings.ToLower(user.Username), prefix) {
			profiles = append(profiles, user.Profile())
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Username < profiles[j].Username })
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles
}

func (s *Store) GetAccountSettings(userID string) (*string, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.accountSettingsByUserID[userID]
	return entry.Settings, entry.Version
}

// UpdateAccountSettings applies optimistic concurrency: the write only
// lands when expectedVersion matches the current version.
func (s *Store) UpdateAccountSettings(userID string, expectedVersion int, settings string) (bool, int, *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.accountSettingsByUserID[userID]
	if entry.Version != expectedVersion {
		return false, entry.Version, entry.Settings
	}
	entry.Settings = &settings
	entry.Version++
	s.accountSettingsByUserID[userID] = entry
	return true, entry.Version, entry.Settings
}
