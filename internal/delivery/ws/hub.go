package ws

import (
	"sync"

	"github.com/rs/zerolog"
)

// delivery addresses one outbound frame. Empty userID and connID mean every
// client in the room; exceptConn skips one connection of a broadcast.
type delivery struct {
	data       []byte
	userID     string
	connID     string
	exceptConn string
}

// Hub is the broadcast hub of one room. A single goroutine owns delivery so
// frames reach every client in the order they were published.
type Hub struct {
	mu       sync.RWMutex
	code     string
	clients  map[string]*Client
	outbound chan delivery

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	log        zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(code string, log zerolog.Logger) *Hub {
	return &Hub{
		code:       code,
		clients:    make(map[string]*Client),
		outbound:   make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "hub").Str("room", code).Logger(),
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			// Check if client exists - prevent double unregister
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()

		case d := <-h.outbound:
			h.deliver(d)

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		if d.connID != "" && id != d.connID {
			continue
		}
		if d.userID != "" && client.UserID != d.userID {
			continue
		}
		if id == d.exceptConn {
			continue
		}
		select {
		case client.send <- d.data:
		default:
			// Client buffer full, close connection and remove client
			h.log.Warn().Str("conn", id).Msg("send buffer full, dropping client")
			close(client.send)
			delete(h.clients, id)
		}
	}
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbound <- d:
	case <-h.done:
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends a frame to every client in the room
func (h *Hub) Broadcast(data []byte) {
	h.enqueue(delivery{data: data})
}

// BroadcastExcept sends a frame to every client but connID
func (h *Hub) BroadcastExcept(connID string, data []byte) {
	h.enqueue(delivery{data: data, exceptConn: connID})
}

// SendToUser sends a frame to every connection of one participant
func (h *Hub) SendToUser(userID string, data []byte) {
	if userID == "" {
		return
	}
	h.enqueue(delivery{data: data, userID: userID})
}

// SendToConn sends a frame to a single connection
func (h *Hub) SendToConn(connID string, data []byte) {
	if connID == "" {
		return
	}
	h.enqueue(delivery{data: data, connID: connID})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Code returns the room code this hub serves
func (h *Hub) Code() string {
	return h.code
}

// Close stops the loop and closes every client's send channel
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed once the hub has been closed
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
