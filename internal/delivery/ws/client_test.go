package ws

import (
	"encoding/json"
	"testing"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{}

func (nopHandler) Handle(*Client, domain.Message) {}
func (nopHandler) Detach(*Client)                 {}

func TestNewClient(t *testing.T) {
	hub := startHub(t)
	p := domain.Participant{UserID: "user-1", DisplayName: "Sketchy Otter"}

	c1 := NewClient(hub, nil, nopHandler{}, p, Limits{})
	c2 := NewClient(hub, nil, nopHandler{}, p, Limits{})

	assert.Equal(t, "user-1", c1.UserID)
	assert.Equal(t, "ABC123", c1.RoomCode)
	assert.NotEqual(t, c1.ID, c2.ID, "every connection gets its own id")
	assert.Equal(t, int64(domain.MaxMessageSize), c1.maxMessageSize)
}

func TestClient_DecodeStampsSender(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, nopHandler{}, domain.Participant{UserID: "user-1", DisplayName: "Bob"}, Limits{})

	msg, ok := c.decode([]byte(`{"type":"guess_word","from_id":"someone-else","payload":{"guess":"cat"}}`))
	require.True(t, ok)
	assert.Equal(t, domain.MessageTypeGuessWord, msg.Type)
	assert.Equal(t, "user-1", msg.FromID)
	assert.Equal(t, "Bob", msg.FromName)
	assert.NotEmpty(t, msg.ID)

	var p domain.GuessPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, "cat", p.Guess)

	_, ok = c.decode([]byte(`not json`))
	assert.False(t, ok)
	_, ok = c.decode([]byte(`{"payload":{}}`))
	assert.False(t, ok)
}

func TestClient_SendError(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, nopHandler{}, domain.Participant{UserID: "user-1"}, Limits{})
	hub.Register(c)

	c.SendError(domain.NewError(domain.CodeInvalidActor, "only the drawer can draw"))

	var msg domain.Message
	require.NoError(t, json.Unmarshal([]byte(recv(t, c)), &msg))
	assert.Equal(t, domain.MessageTypeError, msg.Type)

	var p domain.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, domain.CodeInvalidActor, p.Code)
	assert.Equal(t, "only the drawer can draw", p.Message)
}

func TestClient_GuessLimiter(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil, nopHandler{}, domain.Participant{UserID: "user-1"}, Limits{Guess: 1, Stroke: 1})

	assert.True(t, c.AllowGuess())
	assert.True(t, c.AllowGuess())
	assert.False(t, c.AllowGuess(), "burst is twice the rate")

	assert.True(t, c.AllowStroke())
	assert.False(t, c.AllowStroke())
}
