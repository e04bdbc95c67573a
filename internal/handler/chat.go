package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/event"
	"capsule-server/internal/middleware"
	"capsule-server/internal/registry"
	"capsule-server/internal/store"
)

type ChatHandler struct {
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Registry   *registry.Registry
}

type sendMessageBody struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ReceiverID     string `json:"receiver_id,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	Content        string `json:"content"`
	ReplyTo        string `json:"reply_to,omitempty"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	now := time.Now().UnixMilli()
	conversationID := body.ConversationID
	if conversationID == "" {
		if body.ReceiverID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing conversation or receiver"})
			return
		}
		conversationID = h.Store.GetOrCreatePrivateConversation(userID, body.ReceiverID, now).ID
	}

	messageType := body.MessageType
	if messageType == "" {
		messageType = "text"
	}

	msg, err := h.Store.AppendMessage(conversationID, userID, body.ReceiverID, messageType, body.Content, body.ReplyTo, now)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	// Real-time fan-out; history is already persisted, so delivery is
	// best-effort.
	if participants, err := h.Store.ResolveConversationParticipants(conversationID); err == nil {
		h.Dispatcher.SendToConversation(c.Request.Context(), participants, event.NewMessage(msg), userID)
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *ChatHandler) Conversations(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": h.Store.ConversationsForUser(userID)})
}

func (h *ChatHandler) Messages(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.Store.MessagesForConversation(c.Param("id"), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	h.Store.MarkMessagesRead(c.Param("id"), userID)
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// OnlineUsers snapshots the users with a live session in this process.
func (h *ChatHandler) OnlineUsers(c *gin.Context) {
	users := h.Registry.ListOnlineLocal()
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"online_users": users})
}
