package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB
	sendBufferSize = 256
)

// Client is one transport-level session. UserID is set once during the
// handshake and may be empty for unauthenticated read-only connections.
type Client struct {
	ID          string
	UserID      string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	hub    *Hub
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu       sync.Mutex
	rooms    map[string]struct{}
	lastSeen time.Time
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	return &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		hub:         hub,
		ctx:         ctx,
		cancel:      cancel,
		rooms:       make(map[string]struct{}),
		lastSeen:    time.Now(),
	}
}

func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) IsActive() bool {
	return c.ctx.Err() == nil
}

func (c *Client) InRoom(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}

func (c *Client) trackJoin(conversationID string) {
	c.mu.Lock()
	c.rooms[conversationID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) trackLeave(conversationID string) {
	c.mu.Lock()
	delete(c.rooms, conversationID)
	c.mu.Unlock()
}

func (c *Client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

func (c *Client) GetLastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Client) SendEvent(evt OutgoingEvent) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("type", evt.Type).Msg("ws: failed to marshal event")
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	if !c.IsActive() {
		return
	}
	select {
	case c.Send <- data:
	case <-c.ctx.Done():
	default:
		// Client buffer full - slow consumer
		log.Warn().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: slow consumer, dropping event")
		go c.Close()
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// writePump: take data from c.Send and send to socket + ping. The Send
// channel is never closed; the pump exits on ctx cancellation instead.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				_ = w.Close()
				return
			}
			_ = w.Close()

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump: decode inbound events and hand them to the router. Exits on any
// read error, which triggers the full disconnect path.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.hub.HandleDisconnect(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		c.touch()

		var evt IncomingEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			log.Warn().Err(err).Str("clientID", c.ID).Msg("ws: invalid event payload")
			c.SendEvent(OutgoingEvent{Type: EventError, Data: ErrorPayload{Message: "invalid event payload"}})
			continue
		}

		c.hub.Route(c, evt)
	}
}
