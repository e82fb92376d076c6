// Package client implements the chat frontend's side of the realtime
// contract: it keeps a local message list per conversation that is fed only
// by broadcast echoes, deduplicated by message identity, so the server
// remains the single source of ordering truth.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const DefaultTypingDebounce = 2 * time.Second

// Option configures a Client before its read loop starts.
type Option func(*Client)

// WithTypingDebounce bounds how long a lost typing:false can keep the
// indicator alive; after this window the client emits it on its own.
func WithTypingDebounce(d time.Duration) Option {
	return func(c *Client) { c.typingDebounce = d }
}

func WithNotificationHandler(fn func(Notification)) Option {
	return func(c *Client) { c.onNotification = fn }
}

func WithTypingHandler(fn func(TypingSignal)) Option {
	return func(c *Client) { c.onTyping = fn }
}

func WithStatusHandler(fn func(StatusChange)) Option {
	return func(c *Client) { c.onStatus = fn }
}

func WithErrorHandler(fn func(ServerError)) Option {
	return func(c *Client) { c.onServerError = fn }
}

type Client struct {
	UserID string

	typingDebounce time.Duration

	onNotification func(Notification)
	onTyping       func(TypingSignal)
	onStatus       func(StatusChange)
	onServerError  func(ServerError)

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu           sync.Mutex
	messages     map[string][]Message
	seen         map[string]struct{}
	drafts       map[string]string
	typingTimers map[string]*time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint, presenting userID as the handshake
// identity. An empty userID yields a read-only connection.
func Dial(ctx context.Context, rawURL, userID string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	if userID != "" {
		q := u.Query()
		q.Set("user_id", userID)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	c := &Client{
		UserID:         userID,
		typingDebounce: DefaultTypingDebounce,
		conn:           conn,
		messages:       make(map[string][]Message),
		seen:           make(map[string]struct{}),
		drafts:         make(map[string]string),
		typingTimers:   make(map[string]*time.Timer),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Warn().Err(err).Msg("chat client: invalid inbound event")
			continue
		}

		c.handleInbound(evt)
	}
}

func (c *Client) handleInbound(evt inboundEvent) {
	switch evt.Type {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(evt.Data, &msg); err != nil {
			log.Warn().Err(err).Msg("chat client: malformed new_message")
			return
		}
		c.appendMessage(msg)

	case EventMessagesRead:
		var read MessagesRead
		if err := json.Unmarshal(evt.Data, &read); err != nil {
			return
		}
		c.mergeReceipts(read)

	case EventUserTyping:
		if c.onTyping == nil {
			return
		}
		var sig TypingSignal
		if err := json.Unmarshal(evt.Data, &sig); err != nil {
			return
		}
		c.onTyping(sig)

	case EventUserStatusChanged:
		if c.onStatus == nil {
			return
		}
		var status StatusChange
		if err := json.Unmarshal(evt.Data, &status); err != nil {
			return
		}
		c.onStatus(status)

	case EventNotification:
		if c.onNotification == nil {
			return
		}
		var notif Notification
		if err := json.Unmarshal(evt.Data, &notif); err != nil {
			return
		}
		c.onNotification(notif)

	case EventError:
		if c.onServerError == nil {
			return
		}
		var serverErr ServerError
		if err := json.Unmarshal(evt.Data, &serverErr); err != nil {
			return
		}
		c.onServerError(serverErr)
	}
}

// appendMessage appends the broadcast echo to the local list unless a message
// with the same identity was already seen. Duplicate deliveries (e.g. socket
// echo plus queued REST broadcast) collapse to one entry.
func (c *Client) appendMessage(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[msg.ID]; dup {
		return
	}
	c.seen[msg.ID] = struct{}{}
	c.messages[msg.ConversationID] = append(c.messages[msg.ConversationID], msg)
}

// mergeReceipts marks every message the reader received in the conversation
// as read, appending a receipt only when one for that user is absent.
func (c *Client) mergeReceipts(read MessagesRead) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.messages[read.ConversationID]
	for i := range msgs {
		if msgs[i].ReceiverID != read.UserID {
			continue
		}
		if hasReceipt(msgs[i].ReadReceipts, read.UserID) {
			continue
		}
		msgs[i].ReadReceipts = append(msgs[i].ReadReceipts, ReadReceipt{
			UserID: read.UserID,
			ReadAt: time.Now(),
		})
	}
}

func hasReceipt(receipts []ReadReceipt, userID string) bool {
	for _, r := range receipts {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Messages returns a snapshot of the local list for one conversation, in
// broadcast order.
func (c *Client) Messages(conversationID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func (c *Client) JoinConversation(conversationID string) error {
	return c.writeEvent(outboundEvent{
		Type:           eventJoinConversation,
		ConversationID: conversationID,
		UserID:         c.UserID,
	})
}

func (c *Client) LeaveConversation(conversationID string) error {
	return c.writeEvent(outboundEvent{
		Type:           eventLeaveConversation,
		ConversationID: conversationID,
	})
}

// SetDraft stages compose-box content for a conversation.
func (c *Client) SetDraft(conversationID, content string) {
	c.mu.Lock()
	c.drafts[conversationID] = content
	c.mu.Unlock()
}

func (c *Client) Draft(conversationID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drafts[conversationID]
}

// SendDraft sends the staged content. On success the draft is cleared and
// the message is NOT appended locally; the list waits for the broadcast
// echo. On failure the draft stays in place for user retry.
func (c *Client) SendDraft(conversationID, receiverID string) error {
	c.mu.Lock()
	content := c.drafts[conversationID]
	c.mu.Unlock()

	if content == "" {
		return fmt.Errorf("nothing to send")
	}

	err := c.writeEvent(outboundEvent{
		Type:           eventSendMessage,
		ConversationID: conversationID,
		SenderID:       c.UserID,
		ReceiverID:     receiverID,
		Content:        content,
		MessageType:    "TEXT",
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.drafts, conversationID)
	c.mu.Unlock()
	return nil
}

// Typing signals compose activity. A typing:true schedules the debounce
// timer that emits typing:false on its own, so a lost stop event cannot
// wedge the indicator beyond one debounce window.
func (c *Client) Typing(conversationID string, isTyping bool) error {
	c.mu.Lock()
	if timer, ok := c.typingTimers[conversationID]; ok {
		timer.Stop()
		delete(c.typingTimers, conversationID)
	}
	if isTyping {
		c.typingTimers[conversationID] = time.AfterFunc(c.typingDebounce, func() {
			_ = c.Typing(conversationID, false)
		})
	}
	c.mu.Unlock()

	return c.writeEvent(outboundEvent{
		Type:           eventTyping,
		ConversationID: conversationID,
		UserID:         c.UserID,
		IsTyping:       isTyping,
	})
}

func (c *Client) Online() error {
	return c.writeEvent(outboundEvent{Type: eventUserOnline, UserID: c.UserID})
}

func (c *Client) Offline() error {
	return c.writeEvent(outboundEvent{Type: eventUserOffline, UserID: c.UserID})
}

func (c *Client) writeEvent(evt outboundEvent) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(evt)
}

// Done is closed once the connection is gone, whichever side ended it.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, timer := range c.typingTimers {
			timer.Stop()
		}
		c.typingTimers = make(map[string]*time.Timer)
		c.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
	})
}
