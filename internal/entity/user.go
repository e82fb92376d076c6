package entity

import (
	"time"
)

// User rows are owned by the marketplace back-office; the chat core only
// reads them to guard durable status writes for unknown users.
type User struct {
	ID        string    `gorm:"primaryKey"`
	Username  string    `gorm:"uniqueIndex"`
	Email     string    `gorm:"uniqueIndex"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// UserStatus mirrors the in-memory presence registry for cross-process and
// historical queries. Upserted best-effort on every presence transition.
type UserStatus struct {
	UserID     string `gorm:"primaryKey"`
	IsOnline   bool   `gorm:"not null"`
	LastSeenAt time.Time
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TypingIndicator is durable but highly transient, keyed by
// (conversation, user). Deleted on typing=false; best-effort only.
type TypingIndicator struct {
	ConversationID string    `gorm:"primaryKey"`
	UserID         string    `gorm:"primaryKey"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}
