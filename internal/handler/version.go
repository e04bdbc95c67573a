package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const serverVersion = "1.0.0"

type VersionHandler struct{}

func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": serverVersion})
}
