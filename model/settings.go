package model

import "time"

// Settings holds per-user notification and display toggles.
// All default to enabled on creation.
type Settings struct {
	UserID           string    `gorm:"primaryKey;size:64" json:"user_id"`
	Options          bool      `gorm:"default:true" json:"options"`
	DarkMode         bool      `gorm:"default:true" json:"dark_mode"`
	FriendMessage    bool      `gorm:"default:true" json:"friend_message"`
	FriendVisibility bool      `gorm:"default:true" json:"friend_visibility"`
	FriendRequest    bool      `gorm:"default:true" json:"friend_request"`
	PlaylistUpdate   bool      `gorm:"default:true" json:"playlist_update"`
	NewEvents        bool      `gorm:"default:true" json:"new_events"`
	EventReminder    bool      `gorm:"default:true" json:"event_reminder"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
