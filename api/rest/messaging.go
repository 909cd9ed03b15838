package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soundmates/server/messaging"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/social"
)

// MessagingHandler handles direct-message REST endpoints.
type MessagingHandler struct {
	msg *messaging.Service
	soc *social.Service
}

// NewMessagingHandler creates a new MessagingHandler.
func NewMessagingHandler(msg *messaging.Service, soc *social.Service) *MessagingHandler {
	return &MessagingHandler{msg: msg, soc: soc}
}

func messagingStatus(err error) int {
	switch {
	case errors.Is(err, messaging.ErrThreadNotFound):
		return http.StatusNotFound
	case errors.Is(err, messaging.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, messaging.ErrNotParticipant):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// GetDirectThread handles GET /api/messages/direct/:id.
// Resolves the thread shared with the given user.
func (h *MessagingHandler) GetDirectThread(c *gin.Context) {
	userID := mw.GetUserID(c)
	threadID, err := h.msg.DirectThreadID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(messagingStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": threadID})
}

// ListMessages handles GET /api/messages/threads/:id.
func (h *MessagingHandler) ListMessages(c *gin.Context) {
	userID := mw.GetUserID(c)
	threadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	low, high, err := h.msg.Participants(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(messagingStatus(err), gin.H{"error": err.Error()})
		return
	}
	if userID != low && userID != high {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a thread participant"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	msgs, err := h.msg.List(c.Request.Context(), threadID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /api/messages/threads/:id.
// Delivery is suppressed while a block exists in either direction.
func (h *MessagingHandler) PostMessage(c *gin.Context) {
	userID := mw.GetUserID(c)
	threadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required,max=4096"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	low, high, err := h.msg.Participants(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(messagingStatus(err), gin.H{"error": err.Error()})
		return
	}
	peer := low
	if userID == low {
		peer = high
	}
	blocked, err := h.soc.BlockedEither(c.Request.Context(), userID, peer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if blocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "messaging blocked"})
		return
	}

	msg, err := h.msg.Append(c.Request.Context(), threadID, userID, req.Content)
	if err != nil {
		c.JSON(messagingStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DeleteMessage handles DELETE /api/messages/threads/:id/:msg_id.
// Only the author's own messages match; deleting a missing message succeeds.
func (h *MessagingHandler) DeleteMessage(c *gin.Context) {
	userID := mw.GetUserID(c)
	threadID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}
	msgID, err := strconv.ParseInt(c.Param("msg_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.msg.Remove(c.Request.Context(), threadID, msgID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
