package chat_dto

import (
	"time"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
)

type CreateConversationResponse struct {
	ConversationID string    `json:"conversation_id"`
	Participants   []string  `json:"participants"`
	CreatedAt      time.Time `json:"created_at"`
}

type PostMessageResponse struct {
	MessageID      string              `json:"message_id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	ReceiverID     string              `json:"receiver_id"`
	Content        string              `json:"content,omitempty"`
	Kind           string              `json:"kind"`
	Attachments    []entity.Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

type ConversationSummary struct {
	ConversationID string          `json:"conversation_id"`
	Participants   []string        `json:"participants"`
	LastMessage    *entity.Message `json:"last_message,omitempty"`
	UnreadCount    int64           `json:"unread_count"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ListChatsResponse struct {
	Chats []ConversationSummary `json:"chats"`
}

type ListMessagesResponse struct {
	Messages   []*entity.Message `json:"messages"`
	NextCursor *string           `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}
