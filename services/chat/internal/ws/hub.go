package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"kreatorboard/pkg/bus"
)

// Hub tracks connected websocket clients keyed by user id and routes chat
// events to the two participants of each message, never to anyone else.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

func (h *Hub) register(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[userID] == nil {
		h.rooms[userID] = make(map[*Client]struct{})
	}
	h.rooms[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.rooms[userID]
	if clients == nil {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, userID)
	}
}

// Deliver fans a chat event out to the sender's and receiver's connections.
func (h *Hub) Deliver(event bus.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal chat event", "err", err)
		return
	}
	seen := map[string]struct{}{}
	for _, userID := range []string{event.Message.SenderID, event.Message.ReceiverID} {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		h.deliverTo(userID, payload)
	}
}

func (h *Hub) deliverTo(userID string, payload []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[userID]))
	for c := range h.rooms[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		select {
		case <-c.done:
			// Closed while we held the snapshot; skip it.
		case c.send <- payload:
		default:
			// Slow consumer; drop the connection rather than block the hub.
			go c.Close()
		}
	}
}

// Connected reports how many connections a user currently has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
