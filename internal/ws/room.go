package ws

import (
	"log"
	"sync"
	"time"
)

// Room is the set of connections subscribed to one topic: a game's event
// stream or the lobby.
type Room struct {
	ID      string
	Clients map[*Client]struct{}

	mu        sync.RWMutex
	createdAt time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		Clients:   make(map[*Client]struct{}),
		createdAt: time.Now(),
	}
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	r.Clients[c] = struct{}{}
	r.mu.Unlock()
}

// remove drops c and reports whether the room is now empty.
func (r *Room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Clients, c)
	return len(r.Clients) == 0
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients)
}

// broadcast queues raw for every client without blocking. A client whose
// buffer is full misses the message.
func (r *Room) broadcast(raw []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.Clients {
		select {
		case c.Send <- raw:
		default:
			log.Printf("Room.broadcast: room=%s player=%s send buffer full, dropping message", r.ID, c.PlayerID)
		}
	}
}
