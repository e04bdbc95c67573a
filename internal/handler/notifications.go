package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/middleware"
	"capsule-server/internal/store"
)

type NotificationsHandler struct {
	Store *store.Store
}

func (h *NotificationsHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": h.Store.NotificationsForUser(userID)})
}

func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	if err := h.Store.MarkNotificationRead(userID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
