package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/event"
	"capsule-server/internal/middleware"
	"capsule-server/internal/presence"
	"capsule-server/internal/store"
)

type FriendsHandler struct {
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Presence   presence.Store
}

type friendRequestBody struct {
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

func (h *FriendsHandler) Request(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body friendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	target, found := h.Store.UserByUsername(body.Username)
	if !found || target.ID == userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	friendship, err := h.Store.CreateFriendship(userID, target.ID, time.Now().UnixMilli())
	if errors.Is(err, store.ErrFriendshipExists) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Friendship request already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
		return
	}

	requester, _ := h.Store.UserByID(userID)
	h.Store.AddNotification(target.ID, "friend_request", "New friend request",
		requester.Username+" sent you a friend request", time.Now().UnixMilli())

	evt := event.FriendRequest(requester.Profile(), body.Message, friendship.ID)
	if err := h.Dispatcher.SendToUser(c.Request.Context(), target.ID, evt); err != nil {
		log.Printf("friends: notify %s: %v", target.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"friendship": friendship})
}

type friendRespondBody struct {
	Accept bool `json:"accept"`
}

func (h *FriendsHandler) Respond(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body friendRespondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	friendship, err := h.Store.RespondFriendship(c.Param("id"), userID, body.Accept, time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Friend request not found"})
		return
	}

	responder, _ := h.Store.UserByID(userID)
	evt := event.FriendRequestResponse(body.Accept, responder.Profile())
	if err := h.Dispatcher.SendToUser(c.Request.Context(), friendship.RequesterID, evt); err != nil {
		log.Printf("friends: notify %s: %v", friendship.RequesterID, err)
	}

	status := "declined"
	if body.Accept {
		status = "accepted"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *FriendsHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	friends := make([]gin.H, 0)
	for _, friendID := range h.Store.ResolveFriendIDs(userID) {
		friend, found := h.Store.UserByID(friendID)
		if !found {
			continue
		}
		// Fleet-wide truth comes from the presence store; errors degrade
		// to offline rather than failing the listing.
		online, err := h.Presence.IsOnline(c.Request.Context(), friendID)
		if err != nil {
			online = false
		}
		friends = append(friends, gin.H{
			"id":        friend.ID,
			"username":  friend.Username,
			"full_name": friend.FullName,
			"is_online": online,
		})
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *FriendsHandler) Requests(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	requests := make([]gin.H, 0)
	for _, f := range h.Store.PendingFriendRequests(userID) {
		requester, found := h.Store.UserByID(f.RequesterID)
		if !found {
			continue
		}
		requests = append(requests, gin.H{
			"friendship_id": f.ID,
			"requester":     requester.Profile(),
			"created_at":    f.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"friend_requests": requests})
}
