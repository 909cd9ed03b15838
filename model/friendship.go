package model

import "time"

// FriendRequest is a directed pending request from Sender to Receiver.
// The composite primary key enforces at most one request per ordered pair;
// the reciprocal direction may coexist until one side accepts.
type FriendRequest struct {
	Sender    string    `gorm:"primaryKey;size:64" json:"sender"`
	Receiver  string    `gorm:"primaryKey;size:64" json:"receiver"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FriendEdge is the canonical undirected friendship fact.
// UserLow < UserHigh always; the composite primary key is the
// serialization point for concurrent accepts of the same pair.
type FriendEdge struct {
	UserLow   string    `gorm:"primaryKey;size:64" json:"user_low"`
	UserHigh  string    `gorm:"primaryKey;size:64" json:"user_high"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Block is a directed block record. Independent of FriendEdge: blocking
// does not unfriend, and unfriending does not unblock.
type Block struct {
	Blocker   string    `gorm:"primaryKey;size:64" json:"blocker"`
	Blocked   string    `gorm:"primaryKey;size:64" json:"blocked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
