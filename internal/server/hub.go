package server

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"coderoom/internal/event"
)

// conn is one client connection. Writes are serialized with a per-connection
// mutex; gorilla connections do not allow concurrent writers.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(frame event.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(frame); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

// Hub tracks live connections and group membership and implements
// event.Emitter over them. Delivery to a connection that is gone is a
// silent no-op; senders never learn about transport failures.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*conn
	groups map[string]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*conn),
		groups: make(map[string]map[string]bool),
	}
}

func (h *Hub) add(connID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = &conn{ws: ws}
}

// remove drops the connection and its group memberships.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for _, members := range h.groups {
		delete(members, connID)
	}
}

func (h *Hub) Emit(connID, eventName string, data any) {
	h.mu.Lock()
	c := h.conns[connID]
	h.mu.Unlock()
	if c == nil {
		return
	}
	c.send(makeFrame(eventName, data))
}

func (h *Hub) Broadcast(group, eventName string, data any) {
	h.mu.Lock()
	members := make([]*conn, 0, len(h.groups[group]))
	for connID := range h.groups[group] {
		if c := h.conns[connID]; c != nil {
			members = append(members, c)
		}
	}
	h.mu.Unlock()

	frame := makeFrame(eventName, data)
	for _, c := range members {
		c.send(frame)
	}
}

func (h *Hub) Join(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][connID] = true
}

func (h *Hub) Leave(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] != nil {
		delete(h.groups[group], connID)
	}
}

func makeFrame(eventName string, data any) event.Frame {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshaling %s payload: %v", eventName, err)
		raw = []byte("{}")
	}
	return event.Frame{Event: eventName, Data: raw}
}
