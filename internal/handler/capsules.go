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
	"capsule-server/internal/store"
)

type CapsulesHandler struct {
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
}

type capsuleBody struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	UnlockDate int64  `json:"unlock_date"`
}

func (h *CapsulesHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body capsuleBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" || body.UnlockDate <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	capsule := h.Store.CreateCapsule(userID, body.Title, body.Content, body.UnlockDate, time.Now().UnixMilli())
	c.JSON(http.StatusCreated, gin.H{"capsule": capsule})
}

func (h *CapsulesHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capsules": h.Store.CapsulesForUser(userID)})
}

// Unlockable flips the caller's due capsules to unlocked and returns them.
func (h *CapsulesHandler) Unlockable(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	unlocked := h.Store.UnlockDueCapsules(userID, time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"unlocked": unlocked})
}

func (h *CapsulesHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	capsule, err := h.Store.CapsuleForViewer(c.Param("id"), userID, time.Now().UnixMilli())
	if errors.Is(err, store.ErrAccessDenied) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capsule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capsule": capsule})
}

func (h *CapsulesHandler) Update(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body capsuleBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" || body.UnlockDate <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	capsule, err := h.Store.UpdateCapsule(c.Param("id"), userID, body.Title, body.Content, body.UnlockDate, time.Now().UnixMilli())
	if errors.Is(err, store.ErrCapsuleUnlocked) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot update an unlocked capsule"})
		return
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capsule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"capsule": capsule})
}

func (h *CapsulesHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Store.DeleteCapsule(c.Param("id"), userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capsule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type shareBody struct {
	Username        string `json:"username"`
	PermissionLevel string `json:"permission_level,omitempty"`
	ExpiresInDays   int    `json:"expires_in_days,omitempty"`
	Message         string `json:"message,omitempty"`
}

func (h *CapsulesHandler) Share(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body shareBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	target, found := h.Store.UserByUsername(body.Username)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	level := body.PermissionLevel
	if level == "" {
		level = "view"
	}
	now := time.Now().UnixMilli()
	var expiresAt int64
	if body.ExpiresInDays > 0 {
		expiresAt = now + int64(body.ExpiresInDays)*24*time.Hour.Milliseconds()
	}

	permission, capsule, err := h.Store.ShareCapsule(userID, c.Param("id"), target.ID, level, expiresAt, now)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Capsule not found"})
		return
	}

	h.Store.AddNotification(target.ID, "capsule_shared", "Capsule shared with you", capsule.Title, now)

	evt := event.CapsuleShared(gin.H{
		"id":               capsule.ID,
		"title":            capsule.Title,
		"permission_level": permission.PermissionLevel,
	}, userID, body.Message)
	if err := h.Dispatcher.SendToUser(c.Request.Context(), target.ID, evt); err != nil {
		log.Printf("capsules: notify %s: %v", target.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "shared", "permission": permission})
}

func (h *CapsulesHandler) Shared(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shared_capsules": h.Store.SharedCapsulesFor(userID, time.Now().UnixMilli())})
}

func (h *CapsulesHandler) Access(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	level := h.Store.CapsulePermissionLevel(userID, c.Param("id"), time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"permission_level": level, "has_access": level != ""})
}

func (h *CapsulesHandler) Revoke(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Store.RevokeCapsuleShare(userID, c.Param("id"), c.Param("userId")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Share not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
