package store

import (
	"sort"

	"github.com/google/uuid"
	"capsule-server/internal/model"
)

// GetOrCreatePrivateConversation reuses the existing private conversation
// between the two users if one exists.
func (s *Store) GetOrCreatePrivateConversation(userA, userB string, now int64) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conv := range s.conversationsByID {
		if conv.ConversationType != "private" || len(conv.Participants) != 2 {
			continue
		}
		if (conv.Participants[0] == userA && conv.Participants[1] == userB) ||
			(conv.Participants[0] == userB && conv.Participants[1] == userA) {
			return conv
		}
	}

	conv := model.Conversation{
		ID:               uuid.NewString(),
		Participants:     []string{userA, userB},
		ConversationType: "private",
		CreatedAt:        now,
		LastMessageAt:    now,
	}
	s.conversationsByID[conv.ID] = conv
	return conv
}

func (s *Store) ConversationsForUser(userID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversations []model.Conversation
	for _, conv := range s.conversationsByID {
		for _, p := range conv.Participants {
			if p == userID {
				conversations = append(conversations, conv)
				break
			}
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})
	return conversations
}

// ResolveConversationParticipants returns the participant ids the
// dispatcher fans a conversation event out to.
func (s *Store) ResolveConversationParticipants(conversationID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversationsByID[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	participants := make([]string, len(conv.Participants))
	copy(participants, conv.Participants)
	return participants, nil
}

// AppendMessage stores a message from a conversation participant and bumps
// the conversation's last-message time.
func (s *Store) AppendMessage(conversationID, senderID, receiverID, messageType, content, replyTo string, now int64) (model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversationsByID[conversationID]
	if !ok {
		return model.ChatMessage{}, ErrNotFound
	}
	if !contains(conv.Participants, senderID) {
		return model.ChatMessage{}, ErrAccessDenied
	}

	msg := model.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		MessageType:    messageType,
		Content:        content,
		ReplyTo:        replyTo,
		Status:         model.MessageSent,
		Timestamp:      now,
	}
	s.messagesByConversation[conversationID] = append(s.messagesByConversation[conversationID], msg)

	conv.LastMessageAt = now
	s.conversationsByID[conversationID] = conv
	return msg, nil
}

// MessagesForConversation returns newest-first pages; the caller must be a
// participant.
func (s *Store) MessagesForConversation(conversationID, userID string, limit, offset int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversationsByID[conversationID]
	if !ok || !contains(conv.Participants, userID) {
		return nil, ErrNotFound
	}

	msgs := s.messagesByConversation[conversationID]
	result := make([]model.ChatMessage, 0, limit)
	for i := len(msgs) - 1 - offset; i >= 0; i-- {
		result = append(result, msgs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MarkMessagesRead flips every message not sent by the reader to read.
func (s *Store) MarkMessagesRead(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messagesByConversation[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != userID {
			msgs[i].Status = model.MessageRead
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
