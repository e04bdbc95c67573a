package store

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"capsule-server/internal/model"
)

var ErrCapsuleUnlocked = errors.New("cannot update an unlocked capsule")

func (s *Store) CreateCapsule(userID, title, content string, unlockDate, now int64) model.Capsule {
	s.mu.Lock()
	defer s.mu.Unlock()

	capsule := model.Capsule{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Content:    content,
		Status:     model.CapsuleLocked,
		UnlockDate: unlockDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.capsulesByID[capsule.ID] = capsule
	return capsule
}

func (s *Store) CapsulesForUser(userID string) []model.Capsule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var capsules []model.Capsule
	for _, c := range s.capsulesByID {
		if c.UserID == userID {
			capsules = append(capsules, c)
		}
	}
	sort.Slice(capsules, func(i, j int) bool { return capsules[i].CreatedAt > capsules[j].CreatedAt })
	return capsules
}

// CapsuleForViewer fetches a capsule the viewer owns or has an active share
// on. Content is withheld while the capsule is still locked.
func (s *Store) CapsuleForViewer(capsuleID, viewerID string, now int64) (model.Capsule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	capsule, ok := s.capsulesByID[capsuleID]
	if !ok {
		return model.Capsule{}, ErrNotFound
	}
	if capsule.UserID != viewerID && s.permissionLevelLocked(viewerID, capsuleID, now) == "" {
		return model.Capsule{}, ErrAccessDenied
	}
	if capsule.Status == model.CapsuleLocked && capsule.UnlockDate > now {
		capsule.Content = ""
	}
	return capsule, nil
}

// UnlockDueCapsules flips the owner's locked capsules whose unlock date has
// passed and returns them.
func (s *Store) UnlockDueCapsules(userID string, now int64) []model.Capsule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unlocked []model.Capsule
	for id, c := range s.capsulesByID {
		if c.UserID == userID && c.Status == model.CapsuleLocked && c.UnlockDate <= now {
			c.Status = model.CapsuleUnlocked
			c.UpdatedAt = now
			s.capsulesByID[id] = c
			unlocked = append(unlocked, c)
		}
	}
	return unlocked
}

func (s *Store) UpdateCapsule(capsuleID, userID, title, content string, unlockDate, now int64) (model.Capsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capsule, ok := s.capsulesByID[capsuleID]
	if !ok || capsule.UserID != userID {
		return model.Capsule{}, ErrNotFound
	}
	if capsule.Status == model.CapsuleUnlocked {
		return model.Capsule{}, ErrCapsuleUnlocked
	}

	capsule.Title = title
	capsule.Content = content
	capsule.UnlockDate = unlockDate
	capsule.UpdatedAt = now
	s.capsulesByID[capsuleID] = capsule
	return capsule, nil
}

func (s *Store) DeleteCapsule(capsuleID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	capsule, ok := s.capsulesByID[capsuleID]
	if !ok || capsule.UserID != userID {
		return ErrNotFound
	}
	delete(s.capsulesByID, capsuleID)
	for id, p := range s.permissionsByID {
		if p.CapsuleID == capsuleID {
			delete(s.permissionsByID, id)
		}
	}
	return nil
}

// ShareCapsule grants or refreshes a share on an owned capsule. expiresAt
// of zero means the share does not expire.
func (s *Store) ShareCapsule(ownerID, capsuleID, targetUserID, level string, expiresAt, now int64) (model.CapsulePermission, model.Capsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capsule, ok := s.capsulesByID[capsuleID]
	if !ok || capsule.UserID != ownerID {
		return model.CapsulePermission{}, model.Capsule{}, ErrNotFound
	}

	for id, p := range s.permissionsByID {
		if p.CapsuleID == capsuleID && p.SharedWithUserID == targetUserID {
			p.PermissionLevel = level
			p.ExpiresAt = expiresAt
			p.IsActive = true
			p.GrantedAt = now
			s.permissionsByID[id] = p
			return p, capsule, nil
		}
	}

	permission := model.CapsulePermission{
		ID:               uuid.NewString(),
		CapsuleID:        capsuleID,
		OwnerID:          ownerID,
		SharedWithUserID: targetUserID,
		PermissionLevel:  level,
		GrantedAt:        now,
		ExpiresAt:        expiresAt,
		IsActive:         true,
	}
	s.permissionsByID[permission.ID] = permission
	return permission, capsule, nil
}

func (s *Store) SharedCapsulesFor(userID string, now int64) []model.Capsule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var capsules []model.Capsule
	for _, p := range s.permissionsByID {
		if p.SharedWithUserID != userID || !p.IsActive {
			continue
		}
		if p.ExpiresAt != 0 && p.ExpiresAt <= now {
			continue
		}
		capsule, ok := s.capsulesByID[p.CapsuleID]
		if !ok {
			continue
		}
		if capsule.Status == model.CapsuleLocked && capsule.UnlockDate > now {
			capsule.Content = ""
		}
		capsules = append(capsules, capsule)
	}
	return capsules
}

// CapsulePermissionLevel reports the viewer's active share level, or "" if
// none.
func (s *Store) CapsulePermissionLevel(userID, capsuleID string, now int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissionLevelLocked(userID, capsuleID, now)
}

func (s *Store) permissionLevelLocked(userID, capsuleID string, now int64) string {
	for _, p := range s.permissionsByID {
		if p.CapsuleID != capsuleID || p.SharedWithUserID != userID || !p.IsActive {
			continue
		}
		if p.ExpiresAt != 0 && p.ExpiresAt <= now {
			continue
		}
		return p.PermissionLevel
	}
	return ""
}

func (s *Store) RevokeCapsuleShare(ownerID, capsuleID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.permissionsByID {
		if p.CapsuleID == capsuleID && p.OwnerID == ownerID && p.SharedWithUserID == userID && p.IsActive {
			p.IsActive = false
			s.permissionsByID[id] = p
			return nil
		}
	}
	return ErrNotFound
}
