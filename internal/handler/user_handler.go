package handler

import (
	"net/http"
	"strconv"

	"carechat/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	presence *service.PresenceService
}

func NewUserHandler(presence *service.PresenceService) *UserHandler {
	return &UserHandler{presence: presence}
}

func (h *UserHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, h.presence.Online())
}

func (h *UserHandler) Sessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := h.presence.Sessions(c.Request.Context(), c.Param("userId"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}
