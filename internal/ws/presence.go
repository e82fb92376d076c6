package ws

import (
	"sync"
)

// PresenceRegistry maps a user to its single registered connection. The value
// is one connection id, not a set: when a user connects from a second device
// the newest connection wins. Constructed once per process and injected into
// the hub.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connectionID
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]string),
	}
}

// SetOnline overwrites any prior mapping for the user (last-connect-wins).
func (p *PresenceRegistry) SetOnline(userID, connectionID string) {
	p.mu.Lock()
	p.byUser[userID] = connectionID
	p.mu.Unlock()
}

func (p *PresenceRegistry) SetOffline(userID string) {
	p.mu.Lock()
	delete(p.byUser, userID)
	p.mu.Unlock()
}

func (p *PresenceRegistry) ConnectionFor(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.byUser[userID]
	return connID, ok
}

// RemoveByConnection drops the entry owning connectionID and reports which
// user it belonged to. Linear scan over the registry; fine at this scale, a
// reverse index would make it O(1).
func (p *PresenceRegistry) RemoveByConnection(connectionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, connID := range p.byUser {
		if connID == connectionID {
			delete(p.byUser, userID)
			return userID, true
		}
	}
	return "", false
}

func (p *PresenceRegistry) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		users = append(users, userID)
	}
	return users
}

func (p *PresenceRegistry) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
