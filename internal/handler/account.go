package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/middleware"
	"capsule-server/internal/store"
)

type AccountHandler struct {
	Store *store.Store
}

func (h *AccountHandler) Settings(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	settings, version := h.Store.GetAccountSettings(userID)
	c.JSON(http.StatusOK, gin.H{"settings": settings, "settingsVersion": version})
}

type updateSettingsBody struct {
	Settings        string `json:"settings"`
	ExpectedVersion int    `json:"expectedVersion"`
}

func (h *AccountHandler) UpdateSettings(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body updateSettingsBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Settings == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	applied, currentVersion, currentSettings := h.Store.UpdateAccountSettings(userID, body.ExpectedVersion, body.Settings)
	if !applied {
		c.JSON(http.StatusOK, gin.H{
			"success":         false,
			"error":           "version-mismatch",
			"currentVersion":  currentVersion,
			"currentSettings": currentSettings,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settingsVersion": currentVersion})
}
