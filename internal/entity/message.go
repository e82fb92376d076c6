package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindSystem MessageKind = "SYSTEM"
	MessageKindFile   MessageKind = "FILE"
)

// Message is immutable once created. Attachments and read receipts are
// embedded in the document; receipts are appended with skip-duplicate
// semantics (at most one per user).
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string        `bson:"conversationId" json:"conversationId"`
	SenderID       string        `bson:"senderId" json:"senderId"`
	ReceiverID     string        `bson:"receiverId" json:"receiverId"`
	Content        string        `bson:"content,omitempty" json:"content,omitempty"`
	Kind           MessageKind   `bson:"kind" json:"kind"`
	Attachments    []Attachment  `bson:"attachments,omitempty" json:"attachments,omitempty"`
	ReadReceipts   []ReadReceipt `bson:"readReceipts,omitempty" json:"readReceipts,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
}

type Attachment struct {
	FileName string `bson:"fileName" json:"fileName"`
	URL      string `bson:"url" json:"url"`
	MimeType string `bson:"mimeType" json:"mimeType"`
	Size     int64  `bson:"size" json:"size"`
}

type ReadReceipt struct {
	UserID string    `bson:"userId" json:"userId"`
	ReadAt time.Time `bson:"readAt" json:"readAt"`
}
