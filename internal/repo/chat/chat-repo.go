package chat_repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
	"github.com/khadka27/assignmentghar-chat/state"
)

const messagesCollection = "messages"

type ChatRepo struct {
	AppState *state.AppState
}

func NewChatRepo(appState *state.AppState) ChatRepoContract {
	return &ChatRepo{
		AppState: appState,
	}
}

func (r *ChatRepo) messages() *mongo.Collection {
	return r.AppState.Mongo.Database(r.AppState.MongoDB).Collection(messagesCollection)
}

func (r *ChatRepo) FindOrCreateConversation(ctx context.Context, senderID, receiverID string) (*entity.Conversation, *app_error.AppError) {
	conv, err := r.findPrivateConversation(ctx, senderID, receiverID)
	if err == nil {
		return conv, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to query conversation", "db-error")
	}

	// not found, try to create
	newConv, appErr := r.createPrivateConversation(ctx, senderID, receiverID)
	if appErr != nil {
		// If creation failed due to duplicate (race condition), try find again
		if strings.Contains(appErr.Message, "duplicate") || strings.Contains(appErr.Message, "unique") {
			conv, err := r.findPrivateConversation(ctx, senderID, receiverID)
			if err == nil {
				return conv, nil
			}
		}
		return nil, appErr
	}

	return newConv, nil
}

func (r *ChatRepo) findPrivateConversation(ctx context.Context, senderID, receiverID string) (*entity.Conversation, error) {
	var conv entity.Conversation

	query := `
		SELECT c.* FROM conversations c
		WHERE c.id IN (
			SELECT cp1.conversation_id
			FROM conversation_participants cp1
			WHERE cp1.user_id = ?
			AND EXISTS (
				SELECT 1 FROM conversation_participants cp2
				WHERE cp2.conversation_id = cp1.conversation_id
				AND cp2.user_id = ?
			)
			AND (
				SELECT COUNT(*) FROM conversation_participants cp3
				WHERE cp3.conversation_id = cp1.conversation_id
			) = 2
		)
	`
	err := r.AppState.DB.WithContext(ctx).Raw(query, senderID, receiverID).First(&conv).Error
	return &conv, err
}

func (r *ChatRepo) createPrivateConversation(ctx context.Context, senderID, receiverID string) (*entity.Conversation, *app_error.AppError) {
	tx := r.AppState.DB.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	newConv := &entity.Conversation{
		ID:        uuid.New(),
		UpdatedAt: time.Now(),
	}

	if err := tx.Create(newConv).Error; err != nil {
		tx.Rollback()
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to create conversation: %v", err), "db-error")
	}

	participants := []entity.ConversationParticipant{
		{
			ConversationID: newConv.ID.String(),
			UserID:         senderID,
		},
		{
			ConversationID: newConv.ID.String(),
			UserID:         receiverID,
		},
	}

	if err := tx.Create(&participants).Error; err != nil {
		tx.Rollback()
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to add participants: %v", err), "db-error")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to commit conversation creation", "db-error")
	}

	return newConv, nil
}

func (r *ChatRepo) FindConversationByID(ctx context.Context, conversationID string) (*entity.Conversation, *app_error.AppError) {
	var conv entity.Conversation
	if err := r.AppState.DB.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "not-found")
		}
		log.Error().Err(err).Msgf("failed to fetch conversation: %v", err)
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to fetch conversation", "db-error")
	}
	return &conv, nil
}

func (r *ChatRepo) FindParticipants(ctx context.Context, conversationID string) ([]string, *app_error.AppError) {
	var userIDs []string
	if err := r.AppState.DB.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to fetch participants", "db-error")
	}
	return userIDs, nil
}

func (r *ChatRepo) ListConversationIDs(ctx context.Context, userID string) ([]string, *app_error.AppError) {
	var ids []string
	if err := r.AppState.DB.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Joins("JOIN conversations ON conversations.id::text = conversation_participants.conversation_id").
		Where("conversation_participants.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Pluck("conversation_participants.conversation_id", &ids).Error; err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to list conversations", "db-error")
	}
	return ids, nil
}

// TouchConversation bumps updated_at so chat lists sort by recency. Callers
// treat a failure here as metadata-only and never suppress the broadcast.
func (r *ChatRepo) TouchConversation(ctx context.Context, conversationID string) error {
	return r.AppState.DB.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now()).Error
}

func (r *ChatRepo) CreateMessage(ctx context.Context, msg *entity.Message) (bson.ObjectID, *app_error.AppError) {
	if msg.ID.IsZero() {
		msg.ID = bson.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if _, err := r.messages().InsertOne(ctx, msg); err != nil {
		return bson.NilObjectID, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to create message: %v", err), "mongo")
	}
	return msg.ID, nil
}

func (r *ChatRepo) FindMessageByID(ctx context.Context, messageID string) (*entity.Message, *app_error.AppError) {
	objID, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("invalid message ID: %v", err), "invalid-id")
	}
	var message entity.Message
	if err := r.messages().FindOne(ctx, bson.M{"_id": objID}).Decode(&message); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NewAppError(http.StatusNotFound, "message not found", "not-found")
		}
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch message: %v", err), "mongo")
	}

	return &message, nil
}

func (r *ChatRepo) ListMessages(ctx context.Context, conversationID string, limit int, beforeID *string) ([]*entity.Message, *app_error.AppError) {
	filter := bson.M{"conversationId": conversationID}

	// if beforeID is provided -> filter messages with ID < beforeID
	if beforeID != nil {
		objID, err := bson.ObjectIDFromHex(*beforeID)
		if err != nil {
			return nil, app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("error when trying to parse before_id: %v", err), "before-id")
		}
		filter["_id"] = bson.M{"$lt": objID}
	}

	cur, err := r.messages().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch messages: %v", err), "mongo")
	}

	defer cur.Close(ctx)

	var messages []*entity.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to decode messages: %v", err), "mongo")
	}

	// reverse messages to be in ascending order (oldest to newest)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *ChatRepo) FindLastMessage(ctx context.Context, conversationID string) (*entity.Message, error) {
	var message entity.Message
	err := r.messages().FindOne(ctx,
		bson.M{"conversationId": conversationID},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&message)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *ChatRepo) FindUnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]bson.ObjectID, error) {
	filter := bson.M{
		"conversationId":      conversationID,
		"receiverId":          userID,
		"readReceipts.userId": bson.M{"$ne": userID},
	}

	cur, err := r.messages().Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query unread messages: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode unread message ids: %w", err)
	}

	ids := make([]bson.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *ChatRepo) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	return r.messages().CountDocuments(ctx, bson.M{
		"conversationId":      conversationID,
		"receiverId":          userID,
		"readReceipts.userId": bson.M{"$ne": userID},
	})
}

// BulkInsertReceipts appends one receipt per message for userID. The filter
// excludes messages that already carry a receipt from this user, which gives
// the skip-duplicate semantics: re-running the backfill matches zero docs.
func (r *ChatRepo) BulkInsertReceipts(ctx context.Context, messageIDs []bson.ObjectID, userID string, readAt time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"_id":                 bson.M{"$in": messageIDs},
		"readReceipts.userId": bson.M{"$ne": userID},
	}
	update := bson.M{
		"$push": bson.M{
			"readReceipts": entity.ReadReceipt{UserID: userID, ReadAt: readAt},
		},
	}

	result, err := r.messages().UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to insert read receipts: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *ChatRepo) UpsertUserStatus(ctx context.Context, userID string, isOnline bool) error {
	status := entity.UserStatus{
		UserID:     userID,
		IsOnline:   isOnline,
		LastSeenAt: time.Now(),
	}
	return r.AppState.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen_at", "updated_at"}),
	}).Create(&status).Error
}

func (r *ChatRepo) UpsertTypingIndicator(ctx context.Context, conversationID, userID string) error {
	indicator := entity.TypingIndicator{
		ConversationID: conversationID,
		UserID:         userID,
	}
	return r.AppState.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&indicator).Error
}

func (r *ChatRepo) DeleteTypingIndicator(ctx context.Context, conversationID, userID string) error {
	return r.AppState.DB.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&entity.TypingIndicator{}).Error
}

func (r *ChatRepo) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := r.AppState.DB.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
