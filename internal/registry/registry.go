// Package registry tracks which WebSocket connections are live for which
// table, so the coordinator can broadcast frames without knowing anything
// about the transport. Grounded on the teacher's
// internal/server/game/bridge.go connection-map pattern.
package registry

import (
	"encoding/json"
	"sync"
)

// Registry is the in-process connection table: table id -> connected
// clients. It holds no game state of its own.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{clients: make(map[string]map[*Client]struct{})}
}

// Attach registers a client as connected to a table.
func (r *Registry) Attach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[c.TableID]
	if !ok {
		set = make(map[*Client]struct{})
		r.clients[c.TableID] = set
	}
	set[c] = struct{}{}
}

// Detach removes a client, closing its Send channel. Safe to call more than
// once for the same client.
func (r *Registry) Detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.clients[c.TableID]
	if !ok {
		return
	}
	if _, present := set[c]; !present {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(r.clients, c.TableID)
	}
}

// Send delivers a frame to every connection a specific user has open on a
// table (normally at most one, but a user may have reconnected from a
// second tab before the old socket timed out).
func (r *Registry) Send(tableID, userID string, frame interface{}) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients[tableID] {
		if c.UserID != userID {
			continue
		}
		select {
		case c.Send <- payload:
		default:
		}
	}
	return nil
}

// Broadcast delivers a frame to every connection on a table. A connection
// whose send buffer is full is detached.
func (r *Registry) Broadcast(tableID string, frame interface{}) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	var stalled []*Client
	r.mu.RLock()
	for c := range r.clients[tableID] {
		select {
		case c.Send <- payload:
		default:
			stalled = append(stalled, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range stalled {
		r.Detach(c)
	}
	return nil
}

// LiveUserIDs lists the distinct users currently connected to a table.
func (r *Registry) LiveUserIDs(tableID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for c := range r.clients[tableID] {
		seen[c.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// IsConnected reports whether a user has at least one live connection on a
// table.
func (r *Registry) IsConnected(tableID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients[tableID] {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// LiveCount returns how many connections are open on a table.
func (r *Registry) LiveCount(tableID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[tableID])
}

// CloseAll detaches every live connection on a table, closing each one's
// Send channel (which WritePump drains into a close frame). Used when a
// table is retired after a fatal coordinator error, so no client is left
// waiting on a table that will never update again.
func (r *Registry) CloseAll(tableID string) {
	r.mu.Lock()
	set := r.clients[tableID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		r.Detach(c)
	}
}
