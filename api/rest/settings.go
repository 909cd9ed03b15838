package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/model"
	"gorm.io/gorm"
)

// SettingsHandler handles per-user settings REST endpoints.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// settingsColumns maps toggle names from the API to their columns.
var settingsColumns = map[string]string{
	"options":           "options",
	"dark_mode":         "dark_mode",
	"friend_message":    "friend_message",
	"friend_visibility": "friend_visibility",
	"friend_request":    "friend_request",
	"playlist_update":   "playlist_update",
	"new_events":        "new_events",
	"event_reminder":    "event_reminder",
}

// getOrCreate loads the user's settings row, creating the all-enabled default
// row on first access.
func (h *SettingsHandler) getOrCreate(userID string) (*model.Settings, error) {
	var s model.Settings
	err := h.db.Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = model.Settings{
			UserID:           userID,
			Options:          true,
			DarkMode:         true,
			FriendMessage:    true,
			FriendVisibility: true,
			FriendRequest:    true,
			PlaylistUpdate:   true,
			NewEvents:        true,
			EventReminder:    true,
		}
		if createErr := h.db.Create(&s).Error; createErr != nil && !isUniqueViolation(createErr) {
			return nil, createErr
		}
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSettings handles GET /api/settings.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	s, err := h.getOrCreate(mw.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": s})
}

// UpdateSetting handles PUT /api/settings/:name.
// Toggles are set individually by name.
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	userID := mw.GetUserID(c)

	column, ok := settingsColumns[c.Param("name")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting"})
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.getOrCreate(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	err := h.db.Model(&model.Settings{}).
		Where("user_id = ?", userID).
		Update(column, *req.Enabled).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}
