package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/khadka27/assignmentghar-chat/internal/handlers"
	chat_handler "github.com/khadka27/assignmentghar-chat/internal/handlers/chat-handler"
	"github.com/khadka27/assignmentghar-chat/internal/middleware"
	"github.com/khadka27/assignmentghar-chat/state"
)

func ChatRouter(r chi.Router, state *state.AppState) {
	chatHandler := chat_handler.NewChatHandler(state)
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.JWTAuth(state.JwtSecret.Public))
		protected.Get("/api/v1/chats", handlers.WrapHandler(chatHandler.ListChats))
		protected.Post("/api/v1/chats/{receiverId}", handlers.WrapHandler(chatHandler.CreateConversation))
		protected.Get("/api/v1/chats/{conversationId}/messages", handlers.WrapHandler(chatHandler.ListMessages))
		protected.Post("/api/v1/chats/{conversationId}/messages", handlers.WrapHandler(chatHandler.PostMessage))
		protected.Post("/api/v1/chats/{conversationId}/attachments", handlers.WrapHandler(chatHandler.UploadAttachment))
	})
}
