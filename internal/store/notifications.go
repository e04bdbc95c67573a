package store

import (
	"github.com/google/uuid"
	"capsule-server/internal/model"
)

func (s *Store) AddNotification(userID, notificationType, title, message string, now int64) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification := model.Notification{
		ID:               uuid.NewString(),
		UserID:           userID,
		NotificationType: notificationType,
		Title:            title,
		Message:          message,
		CreatedAt:        now,
	}
	s.notificationsByUser[userID] = append(s.notificationsByUser[userID], notification)
	return notification
}

// NotificationsForUser returns newest first.
func (s *Store) NotificationsForUser(userID string) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.notificationsByUser[userID]
	notifications := make([]model.Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		notifications = append(notifications, stored[i])
	}
	return notifications
}

func (s *Store) MarkNotificationRead(userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notifications := s.notificationsByUser[userID]
	for i := range notifications {
		if notifications[i].ID == notificationID {
			notifications[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}
