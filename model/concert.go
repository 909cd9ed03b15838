package model

import "time"

// Concert is an ingested upcoming event.
type Concert struct {
	ID             string    `gorm:"primaryKey;size:64" json:"concert_id"`
	Name           string    `gorm:"index:idx_concert_name;size:160;not null" json:"name"`
	Location       string    `gorm:"size:128" json:"location"`
	Venue          string    `gorm:"size:128" json:"venue"`
	Genre          string    `gorm:"size:64" json:"genre"`
	URL            string    `gorm:"size:256" json:"url"`
	Image          string    `gorm:"size:256" json:"image"`
	Date           time.Time `gorm:"index:idx_concert_date" json:"date"`
	PopularityRank int       `json:"popularity_rank"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ConcertAttendance marks a user as attending a concert.
type ConcertAttendance struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	ConcertID string    `gorm:"primaryKey;size:64" json:"concert_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
