package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/soundmates/server/config"
	"github.com/soundmates/server/events"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/model"
)

// EventsHandler handles concert REST endpoints.
type EventsHandler struct {
	svc *events.Service
	cfg config.EventsConfig
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(svc *events.Service, cfg config.EventsConfig) *EventsHandler {
	return &EventsHandler{svc: svc, cfg: cfg}
}

func eventsStatus(err error) int {
	switch {
	case errors.Is(err, events.ErrConcertNotFound):
		return http.StatusNotFound
	case errors.Is(err, events.ErrInvalidConcert):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Ingest handles POST /api/events/ingest.
// Accepts a batch from the upstream feed; existing concerts are skipped.
func (h *EventsHandler) Ingest(c *gin.Context) {
	var req struct {
		Concerts []model.Concert `json:"concerts" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := h.svc.Ingest(c.Request.Context(), req.Concerts)
	if err != nil {
		c.JSON(eventsStatus(err), gin.H{"error": err.Error(), "stored": stored})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored})
}

// Search handles GET /api/events/search?q=...
func (h *EventsHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit <= 0 || limit > h.cfg.SearchLimit*10 {
		limit = h.cfg.SearchLimit
	}
	concerts, err := h.svc.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concerts": concerts})
}

// Get handles GET /api/events/:id.
func (h *EventsHandler) Get(c *gin.Context) {
	concert, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(eventsStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concert": concert})
}

// Attend handles POST /api/events/:id/attend.
func (h *EventsHandler) Attend(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.Attend(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(eventsStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attending"})
}

// Leave handles DELETE /api/events/:id/attend.
func (h *EventsHandler) Leave(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(eventsStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left"})
}

// Attendees handles GET /api/events/:id/attendees.
func (h *EventsHandler) Attendees(c *gin.Context) {
	users, err := h.svc.Attendees(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendees": users})
}

// Recommend handles GET /api/events/recommend.
func (h *EventsHandler) Recommend(c *gin.Context) {
	userID := mw.GetUserID(c)
	concerts, err := h.svc.Recommend(c.Request.Context(), userID, h.cfg.RecommendLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concerts": concerts})
}

// Trending handles GET /api/events/trending.
func (h *EventsHandler) Trending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	ids, err := h.svc.Trending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"concert_ids": ids})
}
