package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mw "github.com/soundmates/server/middleware"
	"github.com/soundmates/server/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserHandler handles profile, music-token and listening-vector REST
// endpoints.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetProfile handles GET /api/users/me and GET /api/users/:id.
func (h *UserHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		id = mw.GetUserID(c)
	}
	var user model.User
	err := h.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// profilePatch carries optional profile fields. Pointers distinguish "field
// absent" from "set to empty"; bio may be explicitly nulled.
type profilePatch struct {
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	Location          *string    `json:"location"`
	DOB               *time.Time `json:"dob"`
	Bio               *string    `json:"bio"`
	Email             *string    `json:"email"`
	Gender            *string    `json:"gender"`
	ProfilePic        *string    `json:"profile_pic"`
	FavouritePlaylist *string    `json:"favourite_playlist"`
}

// UpdateProfile handles PATCH /api/users/me.
// Only fields present in the body are written.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID := mw.GetUserID(c)

	var patch profilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if patch.FirstName != nil {
		updates["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		updates["last_name"] = *patch.LastName
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.DOB != nil {
		updates["dob"] = *patch.DOB
	}
	if patch.Bio != nil {
		updates["bio"] = *patch.Bio
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Gender != nil {
		updates["gender"] = *patch.Gender
	}
	if patch.ProfilePic != nil {
		updates["profile_pic"] = *patch.ProfilePic
	}
	if patch.FavouritePlaylist != nil {
		updates["favourite_playlist"] = *patch.FavouritePlaylist
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.Model(&model.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// LinkMusicToken handles PUT /api/users/me/music-token.
// Relinking replaces the stored token pair.
func (h *UserHandler) LinkMusicToken(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req struct {
		AccessToken  string `json:"access_token" binding:"required"`
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := model.MusicToken{
		UserID:       userID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "updated_at"}),
	}).Create(&token).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "linked"})
}

// UnlinkMusicToken handles DELETE /api/users/me/music-token. Idempotent.
func (h *UserHandler) UnlinkMusicToken(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.db.Where("user_id = ?", userID).Delete(&model.MusicToken{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unlinked"})
}

// UpsertListeningVector handles PUT /api/users/me/listening-vector.
// The feature payload is stored opaquely for the external recommendation
// pipeline.
func (h *UserHandler) UpsertListeningVector(c *gin.Context) {
	userID := mw.GetUserID(c)

	var features map[string]float64
	if err := c.ShouldBindJSON(&features); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := json.Marshal(features)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
		return
	}

	vector := model.ListeningVector{
		UserID:   userID,
		Features: datatypes.JSON(payload),
	}
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"features", "updated_at"}),
	}).Create(&vector).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stored"})
}

// GetListeningVector handles GET /api/users/:id/listening-vector.
func (h *UserHandler) GetListeningVector(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		id = mw.GetUserID(c)
	}
	var vector model.ListeningVector
	err := h.db.Where("user_id = ?", id).First(&vector).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "vector not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vector": vector})
}
