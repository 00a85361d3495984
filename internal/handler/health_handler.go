package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type counter interface {
	Count() int
}

type clientCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	online counter
	conns  clientCounter
}

func NewHealthHandler(online counter, conns clientCounter) *HealthHandler {
	return &HealthHandler{online: online, conns: conns}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"onlineUsers": h.online.Count(),
		"connections": h.conns.ClientCount(),
	})
}
