package web

import (
	"sync"

	"github.com/codefionn/wterm/internal/logger"
)

// Hub maintains the set of active viewer connections and fans frames out
// to all of them. Viewers receive output for every session and filter by
// their attached set client-side; attachment only gates the history
// replay and viewer accounting.
//
// Fan-out happens synchronously under the hub lock, so a caller that
// holds its own stream state while broadcasting (the session manager's
// output path does) gets frames enqueued in lock step with that state.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	closed  bool
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(client.send)
		return
	}
	h.clients[client] = true
	logger.Debug("Client registered: %s", client.ID)
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Debug("Client unregistered: %s", client.ID)
	}
}

// Broadcast enqueues a frame to every connected client. Clients whose
// send queue is full are dropped rather than allowed to stall the rest.
func (h *Hub) Broadcast(frame any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Slow client, drop it
			delete(h.clients, client)
			close(client.send)
			logger.Warn("Client %s too slow, dropping", client.ID)
		}
	}
}

// Stop disconnects every client and refuses further registrations.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	logger.Info("WebSocket hub stopped")
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
