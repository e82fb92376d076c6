package ws

import (
	"github.com/khadka27/assignmentghar-chat/internal/entity"
)

// Client -> server event types.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
)

// Server -> client event types.
const (
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventMessagesRead      = "messages_read"
	EventUserStatusChanged = "user_status_changed"
	EventNotification      = "notification"
	EventError             = "error"
)

// IncomingEvent is the single envelope clients write to the socket. Fields
// not relevant to a given type are left empty.
type IncomingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"messageType,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

type OutgoingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Data           any    `json:"data,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type StatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type NotificationPayload struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Message        *entity.Message `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
