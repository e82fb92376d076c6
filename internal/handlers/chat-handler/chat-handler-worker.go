package chat_handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/khadka27/assignmentghar-chat/internal/dtos/chat_dto"
	"github.com/khadka27/assignmentghar-chat/internal/queue"
	"github.com/khadka27/assignmentghar-chat/internal/utils/types"
	worker_handler "github.com/khadka27/assignmentghar-chat/internal/worker/worker-handler"
)

// enqueueBroadcast hands a freshly persisted REST-path message to the worker
// pool for websocket fanout. The row is durable already; a broadcast job that
// expires unserved costs nothing but latency.
func (h *ChatHandler) enqueueBroadcast(resp *chat_dto.PostMessageResponse) error {
	jobPayload := &types.BroadcastMessagePayload{
		MessageID:      resp.MessageID,
		ConversationID: resp.ConversationID,
		SenderID:       resp.SenderID,
		ReceiverID:     resp.ReceiverID,
		Content:        resp.Content,
		Kind:           resp.Kind,
		Attachments:    resp.Attachments,
		CreatedAt:      resp.CreatedAt,
	}

	job := queue.Job{
		ID:        uuid.New().String(),
		Type:      worker_handler.JobBroadcastNewMessage,
		Payload:   queue.MustMarshal(jobPayload),
		Priority:  2,
		Retry:     0,
		MaxRetry:  3,
		CreatedAt: time.Now().Unix(),
		ExpireAt:  time.Now().Add(1 * time.Minute).Unix(),
	}

	if err := h.Producer.Enqueue(h.State.Ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue job")
		return err
	}

	log.Info().Str("job_id", job.ID).Str("message_id", resp.MessageID).Msg("Broadcast job enqueued successfully")
	return nil
}
