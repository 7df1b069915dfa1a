// Package realtime pushes events to connected websocket clients grouped in
// rooms. Rooms are plain strings: one per order, one per user and one shared
// by every delivery partner.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PartnersRoom is joined by every connected delivery partner.
const PartnersRoom = "partners"

// OrderRoom is the room of everyone watching one order.
func OrderRoom(orderID uuid.UUID) string { return "order_" + orderID.String() }

// UserRoom is the private room of one user.
func UserRoom(userID uuid.UUID) string { return "user_" + userID.String() }

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent is an internal struct for routing events to a room
type roomEvent struct {
	Room  string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *roomEvent

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// client's send channel on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			closed := map[*Client]bool{}
			for _, clients := range h.rooms {
				for c := range clients {
					if !closed[c] {
						close(c.send)
						closed[c] = true
					}
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			for _, room := range client.rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			var slow []*Client
			for client := range h.rooms[event.Room] {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			// Client's send buffer is full, drop it from every room
			for _, c := range slow {
				h.removeLocked(c)
			}
			h.mu.Unlock()
		}
	}
}

// removeLocked drops c from all its rooms and closes its send channel once.
func (h *Hub) removeLocked(c *Client) {
	registered := false
	for _, room := range c.rooms {
		clients, ok := h.rooms[room]
		if !ok {
			continue
		}
		if _, exists := clients[c]; exists {
			registered = true
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	if registered {
		close(c.send)
	}
}

// Publish sends event with payload to every client in room. It never blocks:
// when the hub is saturated the event is dropped and logged.
func (h *Hub) Publish(room, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("marshal realtime payload", zap.String("event", event), zap.Error(err))
		return
	}
	h.publishRaw(room, Event{Type: event, Payload: raw})
}

func (h *Hub) publishRaw(room string, e Event) {
	select {
	case h.broadcast <- &roomEvent{Room: room, Event: e}:
	default:
		zap.L().Warn("realtime hub saturated, dropping event", zap.String("room", room), zap.String("event", e.Type))
	}
}

// RoomSize reports how many clients are currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
