package handler

import (
	"net/http"

	"carechat/internal/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	delivery    *service.DeliveryService
	reads       *service.ReadStateService
	unread      *service.UnreadCounter
	recentLimit int
}

func NewMessageHandler(delivery *service.DeliveryService, reads *service.ReadStateService, unread *service.UnreadCounter, recentLimit int) *MessageHandler {
	return &MessageHandler{delivery: delivery, reads: reads, unread: unread, recentLimit: recentLimit}
}

// List returns the latest messages, newest first.
func (h *MessageHandler) List(c *gin.Context) {
	list, err := h.delivery.Recent(c.Request.Context(), h.recentLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessageHandler) Unread(c *gin.Context) {
	list, err := h.delivery.Queue(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unread messages"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	counts, err := h.unread.CountsFor(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unread counts"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"messageIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.reads.MarkMessagesRead(c.Request.Context(), req.MessageIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// Queue returns the messages waiting for the user, oldest first.
func (h *MessageHandler) Queue(c *gin.Context) {
	list, err := h.delivery.Queue(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch queued messages"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// ClearQueue marks the user's whole queue read; nothing is deleted.
func (h *MessageHandler) ClearQueue(c *gin.Context) {
	n, err := h.reads.ClearQueue(c.Request.Context(), c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear message queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}
