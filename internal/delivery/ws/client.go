package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second // Relaxed to 60s for mobile stability

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 1024
)

// Handler receives inbound events of a client
type Handler interface {
	Handle(c *Client, msg domain.Message)
	Detach(c *Client)
}

// Client represents a single websocket connection of one participant
type Client struct {
	ID          string
	UserID      string
	DisplayName string
	RoomCode    string

	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	handler        Handler
	maxMessageSize int64

	guessLimiter  *rate.Limiter
	strokeLimiter *rate.Limiter
}

// Limits are the per-connection event rates
type Limits struct {
	Guess          rate.Limit
	Stroke         rate.Limit
	MaxMessageSize int
}

// NewClient creates a new Client with a fresh connection id
func NewClient(hub *Hub, conn *websocket.Conn, handler Handler, p domain.Participant, limits Limits) *Client {
	if limits.MaxMessageSize <= 0 {
		limits.MaxMessageSize = domain.MaxMessageSize
	}
	if limits.Guess <= 0 {
		limits.Guess = domain.DefaultRateLimitGuess
	}
	if limits.Stroke <= 0 {
		limits.Stroke = domain.DefaultRateLimitStroke
	}
	return &Client{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		DisplayName:    p.DisplayName,
		RoomCode:       hub.Code(),
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		handler:        handler,
		maxMessageSize: int64(limits.MaxMessageSize),
		guessLimiter:   rate.NewLimiter(limits.Guess, max(1, int(limits.Guess)*2)),
		strokeLimiter:  rate.NewLimiter(limits.Stroke, max(1, int(limits.Stroke))),
	}
}

// ReadPump pumps messages from the websocket connection to the handler
func (c *Client) ReadPump() {
	defer func() {
		c.handler.Detach(c)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		msg, ok := c.decode(message)
		if !ok {
			c.SendError(domain.NewError(domain.CodeInvalidInput, "malformed message"))
			continue
		}
		c.handler.Handle(c, msg)
	}
}

// decode parses an inbound frame and stamps it with the sender's identity
func (c *Client) decode(raw []byte) (domain.Message, bool) {
	var incoming struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &incoming); err != nil || incoming.Type == "" {
		return domain.Message{}, false
	}

	// sender fields always come from the connection, never from the payload
	return domain.Message{
		ID:        uuid.NewString(),
		Type:      domain.MessageType(incoming.Type),
		FromID:    c.UserID,
		FromName:  c.DisplayName,
		Payload:   incoming.Payload,
		CreatedAt: time.Now(),
	}, true
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendError reports a rejected action to this connection only
func (c *Client) SendError(err error) {
	msg := domain.NewMessage(domain.MessageTypeError, domain.ErrorPayload{
		Code:    domain.CodeOf(err),
		Message: domain.MessageOf(err),
	})
	c.hub.SendToConn(c.ID, msg.Encode())
}

// AllowGuess consumes one guess token
func (c *Client) AllowGuess() bool {
	return c.guessLimiter.Allow()
}

// AllowStroke consumes one drawing token
func (c *Client) AllowStroke() bool {
	return c.strokeLimiter.Allow()
}
