package client

import (
	"encoding/json"
	"time"
)

// Client-side copy of the wire contract. Kept free of server internals so the
// package can be vendored into other frontends.
const (
	eventJoinConversation  = "join_conversation"
	eventLeaveConversation = "leave_conversation"
	eventSendMessage       = "send_message"
	eventTyping            = "typing"
	eventUserOnline        = "user_online"
	eventUserOffline       = "user_offline"

	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventMessagesRead      = "messages_read"
	EventUserStatusChanged = "user_status_changed"
	EventNotification      = "notification"
	EventError             = "error"
)

type outboundEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"messageType,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

type inboundEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      int64           `json:"timestamp"`
}

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	ReceiverID     string        `json:"receiverId"`
	Content        string        `json:"content,omitempty"`
	Kind           string        `json:"kind"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	ReadReceipts   []ReadReceipt `json:"readReceipts,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type Attachment struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type TypingSignal struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type StatusChange struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type Notification struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversationId"`
	Message        *Message `json:"message"`
}

type ServerError struct {
	Message string `json:"message"`
}
