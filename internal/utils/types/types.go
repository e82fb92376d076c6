package types

import (
	"time"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
)

// BroadcastMessagePayload is carried by broadcast jobs from the REST write
// path to the worker pool, which replays them through the websocket hub.
type BroadcastMessagePayload struct {
	MessageID      string              `json:"message_id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	ReceiverID     string              `json:"receiver_id"`
	Content        string              `json:"content,omitempty"`
	Kind           string              `json:"kind"`
	Attachments    []entity.Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}
