package chat_service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/khadka27/assignmentghar-chat/config"
	"github.com/khadka27/assignmentghar-chat/internal/dtos/chat_dto"
	"github.com/khadka27/assignmentghar-chat/internal/entity"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
	chat_repo "github.com/khadka27/assignmentghar-chat/internal/repo/chat"
	"github.com/khadka27/assignmentghar-chat/internal/utils"
	"github.com/khadka27/assignmentghar-chat/state"
)

const chatListCacheTTL = 30 * time.Second

type ChatService struct {
	AppState *state.AppState
	ChatRepo chat_repo.ChatRepoContract
}

func NewChatService(appState *state.AppState) ChatServiceContract {
	return &ChatService{
		AppState: appState,
		ChatRepo: chat_repo.NewChatRepo(appState),
	}
}

func (c *ChatService) ListChats(ctx context.Context, userID string) (*chat_dto.ListChatsResponse, *app_error.AppError) {
	cacheKey := fmt.Sprintf("chats:%s", userID)
	if cached, appErr := utils.GetCacheData[chat_dto.ListChatsResponse](ctx, c.AppState.Redis, cacheKey); appErr == nil && cached != nil {
		return cached, nil
	}

	convIDs, appErr := c.ChatRepo.ListConversationIDs(ctx, userID)
	if appErr != nil {
		return nil, appErr
	}

	// A single broken conversation must not take the whole chat list down;
	// failing lookups are skipped and logged.
	chats := make([]chat_dto.ConversationSummary, 0, len(convIDs))
	for _, convID := range convIDs {
		conv, appErr := c.ChatRepo.FindConversationByID(ctx, convID)
		if appErr != nil {
			log.Warn().Err(appErr).Str("conversationID", convID).Msg("skipping conversation in chat list")
			continue
		}

		participants, appErr := c.ChatRepo.FindParticipants(ctx, convID)
		if appErr != nil {
			log.Warn().Err(appErr).Str("conversationID", convID).Msg("skipping conversation in chat list")
			continue
		}

		lastMsg, err := c.ChatRepo.FindLastMessage(ctx, convID)
		if err != nil {
			log.Warn().Err(err).Str("conversationID", convID).Msg("skipping conversation in chat list")
			continue
		}

		unread, err := c.ChatRepo.CountUnread(ctx, convID, userID)
		if err != nil {
			log.Warn().Err(err).Str("conversationID", convID).Msg("skipping conversation in chat list")
			continue
		}

		chats = append(chats, chat_dto.ConversationSummary{
			ConversationID: convID,
			Participants:   participants,
			LastMessage:    lastMsg,
			UnreadCount:    unread,
			UpdatedAt:      conv.UpdatedAt,
		})
	}

	resp := &chat_dto.ListChatsResponse{Chats: chats}

	if err := utils.SetCacheData(ctx, c.AppState.Redis, cacheKey, resp, chatListCacheTTL); err != nil {
		log.Warn().Err(err).Str("userID", userID).Msg("failed to cache chat list")
	}

	return resp, nil
}

func (c *ChatService) CreateConversation(ctx context.Context, senderID, receiverID string) (*chat_dto.CreateConversationResponse, *app_error.AppError) {
	if senderID == receiverID {
		return nil, app_error.NewAppError(http.StatusBadRequest, "cannot start a conversation with yourself", "receiver-id")
	}

	conv, appErr := c.ChatRepo.FindOrCreateConversation(ctx, senderID, receiverID)
	if appErr != nil {
		return nil, appErr
	}

	return &chat_dto.CreateConversationResponse{
		ConversationID: conv.ID.String(),
		Participants:   []string{senderID, receiverID},
		CreatedAt:      conv.CreatedAt,
	}, nil
}

func (c *ChatService) ListMessages(ctx context.Context, req chat_dto.ListMessagesRequest, conversationID string) (*chat_dto.ListMessagesResponse, *app_error.AppError) {
	conv, appErr := c.ChatRepo.FindConversationByID(ctx, conversationID)
	if appErr != nil {
		return nil, appErr
	}

	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	messages, appErr := c.ChatRepo.ListMessages(ctx, conv.ID.String(), limit, req.BeforeID)
	if appErr != nil {
		return nil, appErr
	}

	var nextCursor *string
	if len(messages) > 0 {
		firstMsgID := messages[0].ID.Hex()
		nextCursor = &firstMsgID
	}

	hasMore := len(messages) == limit

	return &chat_dto.ListMessagesResponse{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// PostMessage is the durability fallback for clients whose socket is down.
// The broadcast for this write happens asynchronously via the job queue.
func (c *ChatService) PostMessage(ctx context.Context, req chat_dto.PostMessageRequest, senderID, conversationID string) (*chat_dto.PostMessageResponse, *app_error.AppError) {
	conv, appErr := c.ChatRepo.FindConversationByID(ctx, conversationID)
	if appErr != nil {
		return nil, appErr
	}

	if appErr := c.requireParticipant(ctx, conversationID, senderID); appErr != nil {
		return nil, appErr
	}

	kind := entity.MessageKind(req.Kind)
	if kind == "" {
		kind = entity.MessageKindText
	}

	msg := &entity.Message{
		ConversationID: conv.ID.String(),
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Kind:           kind,
		CreatedAt:      time.Now(),
	}

	msgID, appErr := c.ChatRepo.CreateMessage(ctx, msg)
	if appErr != nil {
		return nil, appErr
	}

	if err := c.ChatRepo.TouchConversation(ctx, conv.ID.String()); err != nil {
		log.Warn().Err(err).Str("conversationID", conv.ID.String()).Msg("failed to touch conversation")
	}

	c.invalidateChatList(ctx, senderID, req.ReceiverID)

	return &chat_dto.PostMessageResponse{
		MessageID:      msgID.Hex(),
		ConversationID: conv.ID.String(),
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		Kind:           string(kind),
		CreatedAt:      msg.CreatedAt,
	}, nil
}

// SaveAttachment stores the upload and creates the FILE-kind message carrying
// it in one flow, so an attachment never exists without its parent message.
func (c *ChatService) SaveAttachment(ctx context.Context, senderID, conversationID, fileName, mimeType string, size int64, src io.Reader) (*chat_dto.PostMessageResponse, *app_error.AppError) {
	conv, appErr := c.ChatRepo.FindConversationByID(ctx, conversationID)
	if appErr != nil {
		return nil, appErr
	}

	if appErr := c.requireParticipant(ctx, conversationID, senderID); appErr != nil {
		return nil, appErr
	}

	receiverID, appErr := c.otherParticipant(ctx, conversationID, senderID)
	if appErr != nil {
		return nil, appErr
	}

	storedName := uuid.New().String() + filepath.Ext(fileName)
	dir := config.Conf.UPLOADS.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to prepare upload directory", "storage")
	}

	dst, err := os.Create(filepath.Join(dir, storedName))
	if err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to store attachment", "storage")
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to store attachment", "storage")
	}
	if size == 0 {
		size = written
	}

	attachment := entity.Attachment{
		FileName: fileName,
		URL:      config.Conf.UPLOADS.BaseURL + "/" + storedName,
		MimeType: mimeType,
		Size:     size,
	}

	msg := &entity.Message{
		ConversationID: conv.ID.String(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Kind:           entity.MessageKindFile,
		Attachments:    []entity.Attachment{attachment},
		CreatedAt:      time.Now(),
	}

	msgID, appErr := c.ChatRepo.CreateMessage(ctx, msg)
	if appErr != nil {
		return nil, appErr
	}

	if err := c.ChatRepo.TouchConversation(ctx, conv.ID.String()); err != nil {
		log.Warn().Err(err).Str("conversationID", conv.ID.String()).Msg("failed to touch conversation")
	}

	c.invalidateChatList(ctx, senderID, receiverID)

	return &chat_dto.PostMessageResponse{
		MessageID:      msgID.Hex(),
		ConversationID: conv.ID.String(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Kind:           string(entity.MessageKindFile),
		Attachments:    msg.Attachments,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

func (c *ChatService) requireParticipant(ctx context.Context, conversationID, userID string) *app_error.AppError {
	participants, appErr := c.ChatRepo.FindParticipants(ctx, conversationID)
	if appErr != nil {
		return appErr
	}
	for _, p := range participants {
		if p == userID {
			return nil
		}
	}
	return app_error.NewAppError(http.StatusForbidden, "not a participant of this conversation", "participant")
}

func (c *ChatService) otherParticipant(ctx context.Context, conversationID, userID string) (string, *app_error.AppError) {
	participants, appErr := c.ChatRepo.FindParticipants(ctx, conversationID)
	if appErr != nil {
		return "", appErr
	}
	for _, p := range participants {
		if p != userID {
			return p, nil
		}
	}
	return "", app_error.NewAppError(http.StatusUnprocessableEntity, "conversation has no other participant", "participant")
}

func (c *ChatService) invalidateChatList(ctx context.Context, userIDs ...string) {
	for _, userID := range userIDs {
		if err := utils.DeleteCacheData(ctx, c.AppState.Redis, fmt.Sprintf("chats:%s", userID)); err != nil {
			log.Warn().Err(err).Str("userID", userID).Msg("failed to invalidate chat list cache")
		}
	}
}
