package ws

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
)

// Route dispatches one inbound event. Called from the connection's read
// pump, so events from a single connection are handled in order; events from
// different connections run concurrently.
func (h *Hub) Route(c *Client, evt IncomingEvent) {
	h.updateStats(func(stats *HubStats) {
		stats.EventsRouted++
	})

	switch evt.Type {
	case EventJoinConversation:
		h.handleJoin(c, evt)
	case EventLeaveConversation:
		h.handleLeave(c, evt)
	case EventSendMessage:
		h.handleSendMessage(c, evt)
	case EventTyping:
		h.handleTyping(c, evt)
	case EventUserOnline:
		h.handlePresenceEvent(c, evt.UserID, true)
	case EventUserOffline:
		h.handlePresenceEvent(c, evt.UserID, false)
	default:
		log.Warn().Str("type", evt.Type).Str("clientID", c.ID).Msg("ws: unknown event type")
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "unknown event type: " + evt.Type}})
	}
}

// handleJoin adds the connection to the room, then backfills read receipts
// for every message addressed to the joiner that lacks one, and announces
// messages_read to the rest of the room.
func (h *Hub) handleJoin(c *Client, evt IncomingEvent) {
	if evt.ConversationID == "" {
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "conversationId is required"}})
		return
	}

	h.JoinRoom(c, evt.ConversationID)

	userID := evt.UserID
	if userID == "" {
		userID = c.UserID
	}
	if userID == "" {
		// anonymous read-only join, nothing to backfill
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, gatewayTimeout)
	defer cancel()

	unread, err := h.gateway.FindUnreadMessageIDs(ctx, evt.ConversationID, userID)
	if err != nil {
		log.Error().Err(err).Str("conversationID", evt.ConversationID).Str("userID", userID).Msg("ws: receipt backfill query failed")
		return
	}
	if len(unread) == 0 {
		return
	}

	inserted, err := h.gateway.BulkInsertReceipts(ctx, unread, userID, time.Now())
	if err != nil {
		log.Error().Err(err).Str("conversationID", evt.ConversationID).Str("userID", userID).Msg("ws: receipt backfill insert failed")
		return
	}

	log.Info().Str("conversationID", evt.ConversationID).Str("userID", userID).Int64("receipts", inserted).Msg("ws: read receipts backfilled")

	h.BroadcastToRoom(evt.ConversationID, OutgoingEvent{
		Type: EventMessagesRead,
		Data: MessagesReadPayload{ConversationID: evt.ConversationID, UserID: userID},
	}, c)
}

func (h *Hub) handleLeave(c *Client, evt IncomingEvent) {
	if evt.ConversationID == "" {
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "conversationId is required"}})
		return
	}
	h.LeaveRoom(c, evt.ConversationID)
}

// handleSendMessage persists first, broadcasts second. A persistence failure
// suppresses the broadcast and surfaces exactly once to the sender; the
// router never retries.
func (h *Hub) handleSendMessage(c *Client, evt IncomingEvent) {
	senderID := evt.SenderID
	if senderID == "" {
		senderID = c.UserID
	}

	if evt.ConversationID == "" || senderID == "" || evt.ReceiverID == "" {
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "conversationId, senderId and receiverId are required"}})
		return
	}

	// The sender must have joined the room it is posting to.
	if !c.InRoom(evt.ConversationID) {
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "join the conversation before sending messages"}})
		return
	}

	kind := entity.MessageKind(evt.MessageType)
	switch kind {
	case entity.MessageKindText, entity.MessageKindSystem, entity.MessageKindFile:
	default:
		kind = entity.MessageKindText
	}

	msg := &entity.Message{
		ConversationID: evt.ConversationID,
		SenderID:       senderID,
		ReceiverID:     evt.ReceiverID,
		Content:        evt.Content,
		Kind:           kind,
		CreatedAt:      time.Now(),
	}

	ctx, cancel := context.WithTimeout(h.ctx, gatewayTimeout)
	defer cancel()

	msgID, appErr := h.gateway.CreateMessage(ctx, msg)
	if appErr != nil {
		log.Error().Err(appErr).Str("conversationID", evt.ConversationID).Str("senderID", senderID).Msg("ws: message persist failed")
		c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "failed to send message"}})
		return
	}
	msg.ID = msgID

	if err := h.gateway.TouchConversation(ctx, evt.ConversationID); err != nil {
		log.Warn().Err(err).Str("conversationID", evt.ConversationID).Msg("ws: failed to touch conversation")
	}

	h.BroadcastToRoom(evt.ConversationID, OutgoingEvent{
		Type: EventNewMessage,
		Data: msg,
	}, nil)

	h.notifyReceiver(c, evt.ConversationID, evt.ReceiverID, msg)
}

// notifyReceiver sends a direct notification to the receiver's registered
// connection, covering receivers that are online but not in the room (e.g.
// sitting on the chat list).
func (h *Hub) notifyReceiver(sender *Client, conversationID, receiverID string, msg *entity.Message) {
	connID, ok := h.presence.ConnectionFor(receiverID)
	if !ok || connID == sender.ID {
		return
	}

	delivered := h.SendToConnection(connID, OutgoingEvent{
		Type:           EventNotification,
		ConversationID: conversationID,
		Data: NotificationPayload{
			Type:           EventNewMessage,
			ConversationID: conversationID,
			Message:        msg,
		},
	})

	if delivered {
		log.Debug().Str("receiverID", receiverID).Str("conversationID", conversationID).Msg("ws: direct notification sent")
	}
}

// handleTyping persists the indicator best-effort and relays the signal to
// the rest of the room. Staleness is bounded by the client-side debounce,
// not by any server timeout.
func (h *Hub) handleTyping(c *Client, evt IncomingEvent) {
	userID := evt.UserID
	if userID == "" {
		userID = c.UserID
	}
	if evt.ConversationID == "" || userID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, gatewayTimeout)
	defer cancel()

	if evt.IsTyping {
		if err := h.gateway.UpsertTypingIndicator(ctx, evt.ConversationID, userID); err != nil {
			log.Warn().Err(err).Str("conversationID", evt.ConversationID).Str("userID", userID).Msg("ws: failed to upsert typing indicator")
		}
	} else {
		if err := h.gateway.DeleteTypingIndicator(ctx, evt.ConversationID, userID); err != nil {
			log.Warn().Err(err).Str("conversationID", evt.ConversationID).Str("userID", userID).Msg("ws: failed to delete typing indicator")
		}
	}

	h.BroadcastToRoom(evt.ConversationID, OutgoingEvent{
		Type: EventUserTyping,
		Data: TypingPayload{ConversationID: evt.ConversationID, UserID: userID, IsTyping: evt.IsTyping},
	}, c)
}

// handlePresenceEvent is the explicit app-level variant of connect and
// disconnect. Idempotent; the in-memory update and global broadcast proceed
// even when the durable mirror fails or the user row is missing.
func (h *Hub) handlePresenceEvent(c *Client, userID string, isOnline bool) {
	if userID == "" {
		userID = c.UserID
	}
	if userID == "" {
		return
	}

	if isOnline {
		h.presence.SetOnline(userID, c.ID)
	} else {
		h.presence.SetOffline(userID)
	}

	h.mirrorStatus(userID, isOnline)
	h.broadcastStatus(userID, isOnline)
}
