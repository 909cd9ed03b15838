package model

import "time"

// Thread is a message thread. ThreadID is allocated from max+1 inside the
// accept transaction, not auto-incremented, so allocation and the writes
// that consume the id commit together.
type Thread struct {
	ThreadID  int64     `gorm:"primaryKey;autoIncrement:false" json:"thread_id"`
	Name      string    `gorm:"size:160" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DirectThread links a canonical user pair to its private thread.
// Exactly one row per friend edge ever created; it outlives the edge when
// the pair unfriends, preserving message history.
type DirectThread struct {
	UserLow  string `gorm:"primaryKey;size:64" json:"user_low"`
	UserHigh string `gorm:"primaryKey;size:64" json:"user_high"`
	ThreadID int64  `gorm:"uniqueIndex;not null" json:"thread_id"`
}

// Message is one message in a thread. Append-only except for deletion by id.
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"message_id"`
	ThreadID  int64     `gorm:"index:idx_message_thread;not null" json:"thread_id"`
	AuthorID  string    `gorm:"size:64;not null" json:"author_id"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_message_created;autoCreateTime:milli" json:"created_at"`
}
