package chat_repo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
)

// ChatRepoContract is the persistence gateway for the realtime core and the
// REST fallback path. Messages live in Mongo with embedded attachments and
// read receipts; conversations, participants, user status and typing
// indicators live in Postgres.
type ChatRepoContract interface {
	// Conversation side (Postgres).
	FindOrCreateConversation(ctx context.Context, senderID, receiverID string) (*entity.Conversation, *app_error.AppError)
	FindConversationByID(ctx context.Context, conversationID string) (*entity.Conversation, *app_error.AppError)
	FindParticipants(ctx context.Context, conversationID string) ([]string, *app_error.AppError)
	ListConversationIDs(ctx context.Context, userID string) ([]string, *app_error.AppError)
	TouchConversation(ctx context.Context, conversationID string) error

	// Message side (Mongo).
	CreateMessage(ctx context.Context, msg *entity.Message) (bson.ObjectID, *app_error.AppError)
	FindMessageByID(ctx context.Context, messageID string) (*entity.Message, *app_error.AppError)
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID *string) ([]*entity.Message, *app_error.AppError)
	FindLastMessage(ctx context.Context, conversationID string) (*entity.Message, error)

	// Read receipts (Mongo, skip-duplicate semantics).
	FindUnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]bson.ObjectID, error)
	CountUnread(ctx context.Context, conversationID, userID string) (int64, error)
	BulkInsertReceipts(ctx context.Context, messageIDs []bson.ObjectID, userID string, readAt time.Time) (int64, error)

	// Presence mirror + typing state (Postgres, best-effort callers).
	UpsertUserStatus(ctx context.Context, userID string, isOnline bool) error
	UpsertTypingIndicator(ctx context.Context, conversationID, userID string) error
	DeleteTypingIndicator(ctx context.Context, conversationID, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}
