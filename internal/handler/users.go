package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/presence"
	"capsule-server/internal/store"
)

type UsersHandler struct {
	Store    *store.Store
	Presence presence.Store
}

func (h *UsersHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"users": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	profiles := h.Store.SearchUsers(query, limit)
	if profiles == nil {
		c.JSON(http.StatusOK, gin.H{"users": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles})
}

func (h *UsersHandler) Get(c *gin.Context) {
	user, found := h.Store.UserByID(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	online, err := h.Presence.IsOnline(c.Request.Context(), user.ID)
	if err != nil {
		online = false
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"full_name": user.FullName,
		"is_online": online,
	})
}
