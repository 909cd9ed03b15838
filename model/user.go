package model

import (
	"time"

	"gorm.io/datatypes"
)

// User is a registered account plus its public profile.
// The ID is the external identity key (e.g. a music-platform user id) and is
// supplied by the client at registration, never generated here.
type User struct {
	ID                 string     `gorm:"primaryKey;size:64" json:"user_id"`
	Username           string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash       string     `gorm:"size:64;not null" json:"-"`
	FirstName          string     `gorm:"size:64" json:"first_name"`
	LastName           string     `gorm:"size:64" json:"last_name"`
	Location           string     `gorm:"size:128" json:"location"`
	DOB                *time.Time `json:"dob"`
	Bio                *string    `gorm:"type:text" json:"bio"` // null is a legal value, distinct from ""
	Email              string     `gorm:"size:128" json:"email"`
	Gender             string     `gorm:"size:16" json:"gender"`
	ProfilePic         string     `gorm:"size:256" json:"profile_pic"`
	FavouritePlaylist  string     `gorm:"size:128" json:"favourite_playlist"`
	Status             int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at"`
	LastLoginIP        string     `gorm:"size:45" json:"last_login_ip"`
}

// MusicToken stores the linked music-platform token pair for a user.
// At most one row per user; relinking replaces the previous pair.
type MusicToken struct {
	UserID       string    `gorm:"primaryKey;size:64" json:"user_id"`
	AccessToken  string    `gorm:"size:512;not null" json:"-"`
	RefreshToken string    `gorm:"size:512;not null" json:"-"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListeningVector is the per-user listening-feature vector used by the
// external recommendation pipeline. Stored opaquely; never scored here.
type ListeningVector struct {
	UserID    string         `gorm:"primaryKey;size:64" json:"user_id"`
	Features  datatypes.JSON `json:"features"` // {popularity, danceability, energy, ...}
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
