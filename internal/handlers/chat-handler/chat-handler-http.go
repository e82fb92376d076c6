package chat_handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/khadka27/assignmentghar-chat/internal/dtos/chat_dto"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
	"github.com/khadka27/assignmentghar-chat/internal/handlers"
	"github.com/khadka27/assignmentghar-chat/internal/middleware"
	"github.com/khadka27/assignmentghar-chat/internal/queue"
	chat_service "github.com/khadka27/assignmentghar-chat/internal/use-case/chat-case"
	"github.com/khadka27/assignmentghar-chat/state"
)

const maxUploadSize = 25 << 20 // 25 MB

type ChatHandler struct {
	State    *state.AppState
	Producer queue.Producer
	Validate *validator.Validate
	Service  chat_service.ChatServiceContract
}

func NewChatHandler(state *state.AppState) *ChatHandler {
	validate := validator.New()
	validate.RegisterValidation("objectID", chat_dto.ObjectIDValidator)
	return &ChatHandler{
		State:    state,
		Producer: queue.NewProducer(state.Redis),
		Validate: validate,
		Service:  chat_service.NewChatService(state),
	}
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, ok := r.Context().Value(middleware.UserClaimsKey).(string)
	if !ok || userID == "" {
		return app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}

	resp, err := h.Service.ListChats(r.Context(), userID)
	if err != nil {
		return err
	}

	writeResponse(w, r, "chats fetched successfully", *resp)
	return nil
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	receiverID := chi.URLParam(r, "receiverId")
	if receiverID == "" {
		return app_error.NewAppError(http.StatusBadRequest, "receiver id is required", "params")
	}

	userID, ok := r.Context().Value(middleware.UserClaimsKey).(string)
	if !ok || userID == "" {
		return app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}

	resp, err := h.Service.CreateConversation(r.Context(), userID, receiverID)
	if err != nil {
		return err
	}

	writeResponse(w, r, "conversation ready", *resp)
	return nil
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	conversationID := chi.URLParam(r, "conversationId")

	var req chat_dto.ListMessagesRequest
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return app_error.NewAppError(http.StatusBadRequest, "limit must be a number", "limit")
		}
		req.Limit = limit
	}
	if beforeID := r.URL.Query().Get("before_id"); beforeID != "" {
		req.BeforeID = &beforeID
	}

	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	resp, appErr := h.Service.ListMessages(r.Context(), req, conversationID)
	if appErr != nil {
		return appErr
	}

	writeResponse(w, r, "messages fetched successfully", *resp)
	return nil
}

func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	var req chat_dto.PostMessageRequest
	defer r.Body.Close()

	conversationID := chi.URLParam(r, "conversationId")
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, "Invalid JSON", "body")
	}

	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	userID, ok := r.Context().Value(middleware.UserClaimsKey).(string)
	if !ok || userID == "" {
		return app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}

	resp, appErr := h.Service.PostMessage(r.Context(), req, userID, conversationID)
	if appErr != nil {
		return appErr
	}

	writeResponse(w, r, "message sent successfully", *resp)

	// ws broadcast happens off the request path
	go func() {
		if err := h.enqueueBroadcast(resp); err != nil {
			log.Error().Err(err).Msg("failed to enqueue message broadcast")
		}
	}()

	return nil
}

func (h *ChatHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	conversationID := chi.URLParam(r, "conversationId")

	userID, ok := r.Context().Value(middleware.UserClaimsKey).(string)
	if !ok || userID == "" {
		return app_error.NewAppError(http.StatusUnauthorized, "user id is not found in context", "context")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, "invalid multipart form", "form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return app_error.NewAppError(http.StatusBadRequest, "file field is required", "file")
	}
	defer file.Close()

	resp, appErr := h.Service.SaveAttachment(
		r.Context(),
		userID,
		conversationID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if appErr != nil {
		return appErr
	}

	writeResponse(w, r, "attachment uploaded successfully", *resp)

	go func() {
		if err := h.enqueueBroadcast(resp); err != nil {
			log.Error().Err(err).Msg("failed to enqueue attachment broadcast")
		}
	}()

	return nil
}

func writeResponse[T any](w http.ResponseWriter, r *http.Request, message string, data T) {
	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse(message, data, reqID))
}
