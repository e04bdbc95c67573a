package store

import (
	"github.com/google/uuid"
	"capsule-server/internal/model"
)

// CreateFriendship records a pending request. At most one friendship edge
// exists per user pair, regardless of direction.
func (s *Store) CreateFriendship(requesterID, addresseeID string, now int64) (model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.friendshipsByID {
		if (f.RequesterID == requesterID && f.AddresseeID == addresseeID) ||
			(f.RequesterID == addresseeID && f.AddresseeID == requesterID) {
			if f.Status == model.FriendshipDeclined {
				continue
			}
			return model.Friendship{}, ErrFriendshipExists
		}
	}

	friendship := model.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      model.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.friendshipsByID[friendship.ID] = friendship
	return friendship, nil
}

// RespondFriendship resolves a pending request. Only the addressee may
// respond, and only while the request is still pending.
func (s *Store) RespondFriendship(friendshipID, addresseeID string, accept bool, now int64) (model.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	friendship, ok := s.friendshipsByID[friendshipID]
	if !ok || friendship.AddresseeID != addresseeID || friendship.Status != model.FriendshipPending {
		return model.Friendship{}, ErrNotFound
	}

	if accept {
		friendship.Status = model.FriendshipAccepted
	} else {
		friendship.Status = model.FriendshipDeclined
	}
	friendship.UpdatedAt = now
	s.friendshipsByID[friendshipID] = friendship
	return friendship, nil
}

func (s *Store) PendingFriendRequests(addresseeID string) []model.Friendship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []model.Friendship
	for _, f := range s.friendshipsByID {
		if f.AddresseeID == addresseeID && f.Status == model.FriendshipPending {
			pending = append(pending, f)
		}
	}
	return pending
}

// ResolveFriendIDs returns the accepted friends of a user. This is the
// resolver the registry and dispatcher fan status changes out over.
func (s *Store) ResolveFriendIDs(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var friends []string
	for _, f := range s.friendshipsByID {
		if f.Status != model.FriendshipAccepted {
			continue
		}
		switch userID {
		case f.RequesterID:
			friends = append(friends, f.AddresseeID)
		case f.AddresseeID:
			friends = append(friends, f.RequesterID)
		}
	}
	return friends
}
