package ws

import (
	"sync"
)

// Hub is the connection registry: connection id -> live connection.
type Hub struct {
	conns sync.Map // connID -> *clientConn
	count sync.WaitGroup

	mu      sync.Mutex // orders register against CloseAll
	closing bool
}

func NewHub() *Hub { return &Hub{} }

// register adds c unless the hub is shutting down, in which case the caller
// must drop the connection.
func (h *Hub) register(c *clientConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.count.Add(1)
	h.conns.Store(c.id, c)
	return true
}

func (h *Hub) unregister(c *clientConn) {
	if _, loaded := h.conns.LoadAndDelete(c.id); loaded {
		h.count.Done()
	}
}

func (h *Hub) get(connID string) (*clientConn, bool) {
	v, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*clientConn), true
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll refuses further registrations, asks every connection to close and
// waits until their readers have unregistered them.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	h.conns.Range(func(_, v any) bool {
		v.(*clientConn).close()
		return true
	})
	h.count.Wait()
}
