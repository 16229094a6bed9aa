package ws

import (
	"log"
	"sync"
)

// Hub routes encoded broadcast envelopes to the websocket clients of this
// process. It implements broadcast.Deliverer.
type Hub struct {
	Rooms map[string]*Room
	mu    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Rooms: make(map[string]*Room),
	}
}

// Register subscribes c to topics.
func (h *Hub) Register(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		room, ok := h.Rooms[topic]
		if !ok {
			room = NewRoom(topic)
			h.Rooms[topic] = room
		}
		room.add(c)
		c.topics = append(c.topics, topic)
	}
	log.Printf("Hub.Register: player=%s game=%s topics=%v (rooms=%d)", c.PlayerID, c.GameID, topics, len(h.Rooms))
}

// Unregister removes c from every room it joined. Empty rooms are dropped.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range c.topics {
		room, ok := h.Rooms[topic]
		if !ok {
			continue
		}
		if room.remove(c) {
			delete(h.Rooms, topic)
		}
	}
	c.topics = nil
	log.Printf("Hub.Unregister: player=%s game=%s (rooms=%d)", c.PlayerID, c.GameID, len(h.Rooms))
}

func (h *Hub) Deliver(topic string, raw []byte) {
	h.mu.RLock()
	room, ok := h.Rooms[topic]
	h.mu.RUnlock()
	if !ok {
		return
	}
	room.broadcast(raw)
}

// Subscribers returns how many clients listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	room, ok := h.Rooms[topic]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return room.size()
}

// Shutdown closes every connection. Read pumps then unregister their clients.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	seen := make(map[*Client]struct{})
	for _, room := range h.Rooms {
		room.mu.RLock()
		for c := range room.Clients {
			seen[c] = struct{}{}
		}
		room.mu.RUnlock()
	}
	h.mu.RUnlock()

	for c := range seen {
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	}
	log.Printf("Hub.Shutdown: closed %d connections", len(seen))
}
