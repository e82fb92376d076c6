package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/khadka27/assignmentghar-chat/internal/entity"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
)

// Gateway is the slice of the persistence layer the realtime core needs.
// Satisfied by chat_repo.ChatRepoContract.
type Gateway interface {
	CreateMessage(ctx context.Context, msg *entity.Message) (bson.ObjectID, *app_error.AppError)
	TouchConversation(ctx context.Context, conversationID string) error
	FindUnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]bson.ObjectID, error)
	BulkInsertReceipts(ctx context.Context, messageIDs []bson.ObjectID, userID string, readAt time.Time) (int64, error)
	UpsertUserStatus(ctx context.Context, userID string, isOnline bool) error
	UpsertTypingIndicator(ctx context.Context, conversationID, userID string) error
	DeleteTypingIndicator(ctx context.Context, conversationID, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

const gatewayTimeout = 5 * time.Second

type Hub struct {
	// Room management
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex

	// Connection tracking
	clients map[*Client]struct{}
	byConn  map[string]*Client

	presence *PresenceRegistry
	gateway  Gateway

	// Serializes fanout so every room member observes broadcasts in the
	// order the router processed them.
	orderMu sync.Mutex

	// Hub lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	stats   HubStats
	statsMu sync.RWMutex

	// Cleanup
	cleanupTicker *time.Ticker
}

type HubStats struct {
	TotalRooms       int       `json:"total_rooms"`
	TotalClients     int       `json:"total_clients"`
	TotalConnections int64     `json:"total_connections"`
	EventsRouted     int64     `json:"events_routed"`
	BroadcastsSent   int64     `json:"broadcasts_sent"`
	LastReset        time.Time `json:"last_reset"`
}

func NewHub(presence *PresenceRegistry, gateway Gateway) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		byConn:   make(map[string]*Client),
		presence: presence,
		gateway:  gateway,
		ctx:      ctx,
		cancel:   cancel,
		stats: HubStats{
			LastReset: time.Now(),
		},
		cleanupTicker: time.NewTicker(1 * time.Minute),
	}

	go hub.cleanupRoutine()

	return hub
}

// Register tracks a new connection. Authenticated connections enter the
// presence registry, get mirrored to durable status and announced globally.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.byConn[c.ID] = c
	h.mu.Unlock()

	h.updateStats(func(stats *HubStats) {
		stats.TotalConnections++
	})

	if c.UserID != "" {
		h.presence.SetOnline(c.UserID, c.ID)
		h.mirrorStatus(c.UserID, true)
		h.broadcastStatus(c.UserID, true)
	}

	log.Info().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: client registered")
}

// HandleDisconnect is the terminal transition for a connection. Presence is
// only cleared (and offline announced) when this connection is still the one
// registered for the user; a newer device keeps the user online.
func (h *Hub) HandleDisconnect(c *Client) {
	h.mu.Lock()
	for _, roomID := range c.joinedRooms() {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.clients, c)
	delete(h.byConn, c.ID)
	h.mu.Unlock()

	if c.UserID != "" {
		if userID, ok := h.presence.RemoveByConnection(c.ID); ok {
			h.mirrorStatus(userID, false)
			h.broadcastStatus(userID, false)
		}
	}

	log.Info().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: client disconnected")
}

// JoinRoom is idempotent.
func (h *Hub) JoinRoom(c *Client, conversationID string) {
	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*Client]struct{})
	}
	h.rooms[conversationID][c] = struct{}{}
	roomSize := len(h.rooms[conversationID])
	h.mu.Unlock()

	c.trackJoin(conversationID)

	log.Info().Str("conversationID", conversationID).Str("clientID", c.ID).Str("userID", c.UserID).Int("roomSize", roomSize).Msg("ws: client joined room")
}

// LeaveRoom removes room membership only; presence is untouched.
func (h *Hub) LeaveRoom(c *Client, conversationID string) {
	h.mu.Lock()
	if members, ok := h.rooms[conversationID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	h.mu.Unlock()

	c.trackLeave(conversationID)

	log.Info().Str("conversationID", conversationID).Str("clientID", c.ID).Msg("ws: client left room")
}

// BroadcastToRoom delivers evt to every active member of the conversation
// room, minus except when non-nil. Fanout runs under the ordering mutex so
// two sequential broadcasts land in every member's Send queue in the same
// relative order.
func (h *Hub) BroadcastToRoom(conversationID string, evt OutgoingEvent, except *Client) {
	evt.ConversationID = conversationID
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("conversationID", conversationID).Msg("ws: failed to marshal broadcast event")
		return
	}

	h.orderMu.Lock()

	h.mu.RLock()
	var targets []*Client
	if members, ok := h.rooms[conversationID]; ok {
		targets = make([]*Client, 0, len(members))
		for c := range members {
			if except != nil && c == except {
				continue
			}
			if c.IsActive() {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}

	h.orderMu.Unlock()

	if len(targets) == 0 {
		return
	}

	h.updateStats(func(stats *HubStats) {
		stats.BroadcastsSent += int64(len(targets))
	})

	log.Debug().Str("conversationID", conversationID).Int("targets", len(targets)).Str("eventType", evt.Type).Msg("ws: broadcast completed")
}

// BroadcastAll delivers evt to every connection, regardless of rooms. Used
// for global presence fanout.
func (h *Hub) BroadcastAll(evt OutgoingEvent) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("eventType", evt.Type).Msg("ws: failed to marshal global event")
		return
	}

	h.orderMu.Lock()

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.IsActive() {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}

	h.orderMu.Unlock()

	if len(targets) == 0 {
		return
	}

	h.updateStats(func(stats *HubStats) {
		stats.BroadcastsSent += int64(len(targets))
	})
}

// SendToConnection delivers evt to one specific connection, the direct
// notification path for receivers that are online but not in the room.
func (h *Hub) SendToConnection(connectionID string, evt OutgoingEvent) bool {
	h.mu.RLock()
	c, ok := h.byConn[connectionID]
	h.mu.RUnlock()

	if !ok || !c.IsActive() {
		return false
	}
	c.SendEvent(evt)
	return true
}

// NotifyUser delivers evt to the user's registered connection, if any.
func (h *Hub) NotifyUser(userID string, evt OutgoingEvent) bool {
	connID, ok := h.presence.ConnectionFor(userID)
	if !ok {
		return false
	}
	return h.SendToConnection(connID, evt)
}

// mirrorStatus upserts the durable UserStatus row. Best-effort: unknown
// users are skipped and failures only logged, never surfaced to the
// realtime path.
func (h *Hub) mirrorStatus(userID string, isOnline bool) {
	ctx, cancel := context.WithTimeout(h.ctx, gatewayTimeout)
	defer cancel()

	exists, err := h.gateway.UserExists(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID).Msg("ws: user existence check failed, skipping status mirror")
		return
	}
	if !exists {
		log.Warn().Str("userID", userID).Msg("ws: skipping status mirror for unknown user")
		return
	}

	if err := h.gateway.UpsertUserStatus(ctx, userID, isOnline); err != nil {
		log.Warn().Err(err).Str("userID", userID).Bool("isOnline", isOnline).Msg("ws: failed to mirror user status")
	}
}

func (h *Hub) broadcastStatus(userID string, isOnline bool) {
	h.BroadcastAll(OutgoingEvent{
		Type: EventUserStatusChanged,
		Data: StatusPayload{UserID: userID, IsOnline: isOnline},
	})
}

// Utility methods

func (h *Hub) GetRoomClients(conversationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var clients []*Client
	if members, ok := h.rooms[conversationID]; ok {
		for c := range members {
			if c.IsActive() {
				clients = append(clients, c)
			}
		}
	}
	return clients
}

func (h *Hub) IsUserOnline(userID string) bool {
	_, ok := h.presence.ConnectionFor(userID)
	return ok
}

func (h *Hub) GetRoomStats(conversationID string) map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := map[string]any{
		"conversation_id": conversationID,
		"exists":          false,
	}

	if members, ok := h.rooms[conversationID]; ok {
		active := 0
		uniqueUsers := make(map[string]bool)
		for c := range members {
			if c.IsActive() {
				active++
				if c.UserID != "" {
					uniqueUsers[c.UserID] = true
				}
			}
		}
		stats["exists"] = true
		stats["total_connections"] = len(members)
		stats["active_connections"] = active
		stats["unique_users"] = len(uniqueUsers)
	}

	return stats
}

func (h *Hub) GetHubStats() HubStats {
	h.statsMu.RLock()
	stats := h.stats
	h.statsMu.RUnlock()

	h.mu.RLock()
	stats.TotalRooms = len(h.rooms)
	active := 0
	for c := range h.clients {
		if c.IsActive() {
			active++
		}
	}
	stats.TotalClients = active
	h.mu.RUnlock()

	return stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func (h *Hub) cleanupRoutine() {
	defer h.cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.cleanupTicker.C:
			h.performCleanup()
		}
	}
}

func (h *Hub) performCleanup() {
	now := time.Now()
	inactiveThreshold := 2 * time.Minute

	var toRemove []*Client

	h.mu.RLock()
	for c := range h.clients {
		if !c.IsActive() || now.Sub(c.GetLastSeen()) > inactiveThreshold {
			toRemove = append(toRemove, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range toRemove {
		log.Info().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: cleaning up inactive client")
		c.Close()
	}

	log.Debug().Int("cleaned", len(toRemove)).Msg("ws: cleanup routine completed")
}

// Close gracefully shuts down the hub and every connection.
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")

	h.cancel()

	h.mu.RLock()
	allClients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		allClients = append(allClients, c)
	}
	h.mu.RUnlock()

	for _, c := range allClients {
		c.Close()
	}

	log.Info().Int("clients", len(allClients)).Msg("ws: hub shutdown completed")
}
