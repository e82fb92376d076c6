package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups messages between a fixed pair of participants.
// Participants are fixed at creation; UpdatedAt is touched on every new message
// so chat lists can be sorted by recency.
type Conversation struct {
	ID        uuid.UUID `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null"`
}

type ConversationParticipant struct {
	ID             int64     `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index:idx_participant,unique"`
	UserID         string    `gorm:"not null;index:idx_participant,unique"`
	JoinedAt       time.Time `gorm:"autoCreateTime"`
}
