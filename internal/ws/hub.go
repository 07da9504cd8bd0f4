// Package ws is the fan-out layer: it routes committed state changes to the
// live connections that should see them. Delivery is best-effort and
// at-most-once per connection; disconnected clients resync over REST.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/social-app/chat-service/internal/models"
)

// Hub tracks connections by socket, by user (one user may hold several
// devices) and by conversation subscription.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client // userID -> socketID -> client
	rooms map[string]map[string]*Client // conversationID -> socketID -> client
	log   *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		users: make(map[string]map[string]*Client),
		rooms: make(map[string]map[string]*Client),
		log:   log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[c.UserID]; !ok {
		h.users[c.UserID] = make(map[string]*Client)
	}
	h.users[c.UserID][c.SocketID] = c
}

// Unregister drops the client from the user map and every room it joined.
// It never waits on in-flight deliveries; those fail into the client's
// buffered channel or are dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if sockets, ok := h.users[c.UserID]; ok {
		delete(sockets, c.SocketID)
		if len(sockets) == 0 {
			delete(h.users, c.UserID)
		}
	}
	for convID, room := range h.rooms {
		delete(room, c.SocketID)
		if len(room) == 0 {
			delete(h.rooms, convID)
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Subscribe(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[string]*Client)
	}
	h.rooms[conversationID][c.SocketID] = c
}

func (h *Hub) Unsubscribe(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[conversationID]; ok {
		delete(room, c.SocketID)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
}

// ToConversation delivers to every connection subscribed to the topic.
func (h *Hub) ToConversation(conversationID string, ev models.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("event marshal failed", "type", ev.Type, "err", err)
		return
	}
	for _, c := range h.snapshotRoom(conversationID) {
		c.enqueue(b)
	}
}

// ToUser delivers to every live connection of one user, tagged with the
// queue name so clients can demux.
func (h *Hub) ToUser(userID, queue string, ev models.Event) {
	b, err := json.Marshal(queuedEvent{Type: ev.Type, Queue: queue, Payload: ev.Payload})
	if err != nil {
		h.log.Warnw("event marshal failed", "type", ev.Type, "err", err)
		return
	}
	h.mu.RLock()
	sockets := make([]*Client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		sockets = append(sockets, c)
	}
	h.mu.RUnlock()
	for _, c := range sockets {
		c.enqueue(b)
	}
}

// ToAll delivers to every connection; used for the presence status feed.
func (h *Hub) ToAll(ev models.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("event marshal failed", "type", ev.Type, "err", err)
		return
	}
	h.mu.RLock()
	all := make([]*Client, 0)
	for _, sockets := range h.users {
		for _, c := range sockets {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.enqueue(b)
	}
}

// snapshotRoom copies the recipient set so delivery happens without the
// lock; a recipient torn down mid-send only loses its own event.
func (h *Hub) snapshotRoom(conversationID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[conversationID]
	out := make([]*Client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

type queuedEvent struct {
	Type    string `json:"type"`
	Queue   string `json:"queue"`
	Payload any    `json:"payload"`
}
