package chat_service

import (
	"context"
	"io"

	"github.com/khadka27/assignmentghar-chat/internal/dtos/chat_dto"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
)

type ChatServiceContract interface {
	ListChats(ctx context.Context, userID string) (*chat_dto.ListChatsResponse, *app_error.AppError)
	CreateConversation(ctx context.Context, senderID, receiverID string) (*chat_dto.CreateConversationResponse, *app_error.AppError)
	ListMessages(ctx context.Context, req chat_dto.ListMessagesRequest, conversationID string) (*chat_dto.ListMessagesResponse, *app_error.AppError)
	PostMessage(ctx context.Context, req chat_dto.PostMessageRequest, senderID, conversationID string) (*chat_dto.PostMessageResponse, *app_error.AppError)
	SaveAttachment(ctx context.Context, senderID, conversationID, fileName, mimeType string, size int64, src io.Reader) (*chat_dto.PostMessageResponse, *app_error.AppError)
}
