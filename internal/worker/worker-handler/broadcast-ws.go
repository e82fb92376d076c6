package worker_handler

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
	"github.com/khadka27/assignmentghar-chat/internal/utils/types"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
)

// HandleBroadcastNewMessage replays a message persisted by the REST fallback
// path: room fanout plus the direct notification to the receiver. The row is
// already durable, so a broadcast that reaches nobody is fine.
func (wh *WorkerHandler) HandleBroadcastNewMessage(raw json.RawMessage) error {
	var payload types.BroadcastMessagePayload

	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid broadcast payload: %w", err)
	}

	msgID, err := bson.ObjectIDFromHex(payload.MessageID)
	if err != nil {
		return fmt.Errorf("invalid message id in broadcast payload: %w", err)
	}

	msg := &entity.Message{
		ID:             msgID,
		ConversationID: payload.ConversationID,
		SenderID:       payload.SenderID,
		ReceiverID:     payload.ReceiverID,
		Content:        payload.Content,
		Kind:           entity.MessageKind(payload.Kind),
		Attachments:    payload.Attachments,
		CreatedAt:      payload.CreatedAt,
	}

	wh.Hub.BroadcastToRoom(payload.ConversationID, ws.OutgoingEvent{
		Type: ws.EventNewMessage,
		Data: msg,
	}, nil)

	wh.Hub.NotifyUser(payload.ReceiverID, ws.OutgoingEvent{
		Type:           ws.EventNotification,
		ConversationID: payload.ConversationID,
		Data: ws.NotificationPayload{
			Type:           ws.EventNewMessage,
			ConversationID: payload.ConversationID,
			Message:        msg,
		},
	})

	return nil
}
