package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundmates/server/audit"
	"github.com/soundmates/server/config"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/social"
)

// SocialHandler handles friend-request, friendship, block and discovery REST
// endpoints.
type SocialHandler struct {
	svc *social.Service
	aud *audit.Service
	cfg config.SocialConfig
}

// NewSocialHandler creates a new SocialHandler.
func NewSocialHandler(svc *social.Service, aud *audit.Service, cfg config.SocialConfig) *SocialHandler {
	return &SocialHandler{svc: svc, aud: aud, cfg: cfg}
}

// socialStatus maps service sentinels to HTTP status codes.
func socialStatus(err error) int {
	switch {
	case errors.Is(err, social.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, social.ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, social.ErrAlreadyFriends),
		errors.Is(err, social.ErrDuplicateRequest),
		errors.Is(err, social.ErrAllocationConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *SocialHandler) logAction(c *gin.Context, action string, req, resp interface{}, err error, started time.Time) {
	userID := mw.GetUserID(c)
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.aud.Log(entry)
}

// SendRequest handles POST /api/social/requests.
func (h *SocialHandler) SendRequest(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)

	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.SendRequest(c.Request.Context(), userID, req.ReceiverID)
	h.logAction(c, "friend.request", req, nil, err, started)
	if err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "request sent"})
}

// WithdrawRequest handles DELETE /api/social/requests/:id.
// The path id is the receiver of the request being withdrawn.
func (h *SocialHandler) WithdrawRequest(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.WithdrawRequest(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "withdrawn"})
}

// ListIncoming handles GET /api/social/requests/incoming.
func (h *SocialHandler) ListIncoming(c *gin.Context) {
	reqs, err := h.svc.ListIncoming(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// ListOutgoing handles GET /api/social/requests/outgoing.
func (h *SocialHandler) ListOutgoing(c *gin.Context) {
	reqs, err := h.svc.ListOutgoing(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// AcceptRequest handles POST /api/social/requests/:id/accept.
// The path id is the sender whose request is being accepted.
func (h *SocialHandler) AcceptRequest(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)
	sender := c.Param("id")

	threadID, err := h.svc.AcceptRequest(c.Request.Context(), userID, sender)
	h.logAction(c, "friend.accept", gin.H{"sender": sender}, gin.H{"thread_id": threadID}, err, started)
	if err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "accepted", "thread_id": threadID})
}

// DeclineRequest handles POST /api/social/requests/:id/decline.
func (h *SocialHandler) DeclineRequest(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.DeclineRequest(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "declined"})
}

// ListFriends handles GET /api/social/friends.
func (h *SocialHandler) ListFriends(c *gin.Context) {
	friends, err := h.svc.ListFriends(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// Unfriend handles DELETE /api/social/friends/:id.
func (h *SocialHandler) Unfriend(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)
	target := c.Param("id")

	err := h.svc.Unfriend(c.Request.Context(), userID, target)
	h.logAction(c, "friend.remove", gin.H{"target": target}, nil, err, started)
	if err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unfriended"})
}

// Block handles POST /api/social/block/:id.
func (h *SocialHandler) Block(c *gin.Context) {
	started := time.Now()
	userID := mw.GetUserID(c)
	target := c.Param("id")

	err := h.svc.Block(c.Request.Context(), userID, target)
	h.logAction(c, "user.block", gin.H{"target": target}, nil, err, started)
	if err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "blocked"})
}

// Unblock handles DELETE /api/social/block/:id.
func (h *SocialHandler) Unblock(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.Unblock(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(socialStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unblocked"})
}

// Discover handles GET /api/social/discover.
func (h *SocialHandler) Discover(c *gin.Context) {
	limit := h.cfg.DiscoverLimit
	if limit <= 0 {
		limit = 50
	}
	users, err := h.svc.Discover(c.Request.Context(), mw.GetUserID(c), limit)
	if err != nil {
		c.JSON(socialStatus(err), gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
