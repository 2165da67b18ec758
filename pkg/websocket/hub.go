// Package websocket owns the raw connection plumbing: one client per
// connection, a hub to look them up by id, and the read/write pumps.
package websocket

import (
	"sync"
)

type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Remove drops the client and closes its send channel, which stops the
// write pump.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

// SendToClient queues a message for one connection. A full send buffer
// counts as a failed delivery; a slow reader must not stall the caller.
func (h *Hub) SendToClient(id string, message []byte) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
