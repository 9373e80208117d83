package chat

import (
	"encoding/json"
	"log"
	"sync"
)

// Emitter is the outbound side of the hub as seen by the presence registry,
// the message lifecycle, and the typing relay. Room emits are fire-and-forget:
// callers never block on recipient acknowledgment.
type Emitter interface {
	ToRoom(room, event string, data any)
	ToRoomExcept(room, exceptUserID, event string, data any)
	Broadcast(event string, data any)
}

// Hub tracks every live client and the rooms each has joined. All maps are
// guarded by mu; fan-out holds only the read lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister removes the client from the hub and from every room it joined,
// and closes its send channel to stop the write pump. Safe to call for a
// client that was never registered.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
}

// Join subscribes the client to a room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

func (h *Hub) ToRoom(room, event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		c.enqueue(payload)
	}
}

// ToRoomExcept emits to a room while skipping every connection owned by
// exceptUserID. Used by the typing relay so an actor never sees its own echo.
func (h *Hub) ToRoomExcept(room, exceptUserID, event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c.UserID == exceptUserID {
			continue
		}
		c.enqueue(payload)
	}
}

func (h *Hub) Broadcast(event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(payload)
	}
}

func marshalEvent(event string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
}
