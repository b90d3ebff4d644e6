package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of event carried by a Message
type MessageType string

// Client to server events.
const (
	MessageTypeStartGame   MessageType = "start_game"
	MessageTypeSelectTopic MessageType = "select_topic"
	MessageTypeSelectWord  MessageType = "select_word"
	MessageTypeDrawingData MessageType = "drawing_data"
	MessageTypeClearCanvas MessageType = "clear_canvas"
	MessageTypeGuessWord   MessageType = "guess_word"
	MessageTypeEndRound    MessageType = "end_round"
	MessageTypeEndGame     MessageType = "end_game"
	MessageTypeChat        MessageType = "chat" // lobby chat, also echoed for wrong guesses
)

// Server to client events.
const (
	MessageTypeIdentity     MessageType = "identity"
	MessageTypeRoomState    MessageType = "room_state"
	MessageTypePlayerJoined MessageType = "player_joined"
	MessageTypePlayerLeft   MessageType = "player_left"
	MessageTypeHostChanged  MessageType = "host_changed"
	MessageTypeRoundStarted MessageType = "round_started"
	MessageTypeRoundEnded   MessageType = "round_ended"
	MessageTypeGameOver     MessageType = "game_over"
	MessageTypeWordOptions  MessageType = "word_options"
	MessageTypeDrawerWord   MessageType = "drawer_word"
	MessageTypeGuessResult  MessageType = "guess_result"
	MessageTypeCorrectGuess MessageType = "correct_guess"
	MessageTypeReaction     MessageType = "reaction"
	MessageTypeError        MessageType = "error"
)

// Message is the envelope for every event on the socket
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	FromID    string          `json:"from_id,omitempty"`
	FromName  string          `json:"from_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage wraps payload in a server-originated envelope.
func NewMessage(t MessageType, payload any) Message {
	raw, _ := json.Marshal(payload)
	return Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
}

// Encode marshals the envelope for the wire.
func (m Message) Encode() []byte {
	data, _ := json.Marshal(m)
	return data
}

// ==== Client payloads ====

// SelectTopicPayload asks the word source for options on a topic
type SelectTopicPayload struct {
	Topic string `json:"topic"`
}

// SelectWordPayload is the drawer's chosen word
type SelectWordPayload struct {
	Word  string `json:"word"`
	Topic string `json:"topic,omitempty"`
}

// GuessPayload carries a guess attempt
type GuessPayload struct {
	Guess string `json:"guess"`
}

// EndRoundPayload carries the round the client timer ended; zero means current
type EndRoundPayload struct {
	Round int `json:"round,omitempty"`
}

// ChatPayload is the payload for chat messages
type ChatPayload struct {
	Text string `json:"text"`
}

// StrokePhase marks where a point sits within a stroke
type StrokePhase string

const (
	StrokeStart    StrokePhase = "start"
	StrokeContinue StrokePhase = "continue"
	StrokeEnd      StrokePhase = "end"
)

// Valid reports whether p is one of the known phases
func (p StrokePhase) Valid() bool {
	switch p {
	case StrokeStart, StrokeContinue, StrokeEnd:
		return true
	}
	return false
}

// StrokeEvent is one drawing datum relayed from the drawer
type StrokeEvent struct {
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Color     string      `json:"color,omitempty"`
	LineWidth float64     `json:"line_width,omitempty"`
	IsDrawing StrokePhase `json:"is_drawing"`
	StrokeID  string      `json:"stroke_id,omitempty"`
}

// ==== Server payloads ====

// IdentityPayload tells a connection who it is
type IdentityPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	RoomCode    string `json:"room_code"`
}

// RoomStatePayload is the full sync sent on connect and after lifecycle changes
type RoomStatePayload struct {
	Session PublicSession `json:"session"`
	Strokes []StrokeEvent `json:"strokes,omitempty"`
}

// PlayerPayload announces a membership change
type PlayerPayload struct {
	Participant Participant   `json:"participant"`
	Session     PublicSession `json:"session"`
}

// HostChangedPayload announces a new host
type HostChangedPayload struct {
	HostUserID string `json:"host_user_id"`
	HostName   string `json:"host_name"`
}

// RoundStartedPayload is broadcast without the word itself
type RoundStartedPayload struct {
	Round              int       `json:"round"`
	TotalRounds        int       `json:"total_rounds"`
	DrawerUserID       string    `json:"drawer_user_id"`
	Topic              string    `json:"topic,omitempty"`
	WordLength         int       `json:"word_length"`
	GuessWindowSeconds int       `json:"guess_window_seconds"`
	EndsAt             time.Time `json:"ends_at"`
}

// RoundEndedPayload reveals the word of the finished round
type RoundEndedPayload struct {
	Round            RoundRecord   `json:"round"`
	Scores           []Participant `json:"scores"`
	NextDrawerUserID string        `json:"next_drawer_user_id,omitempty"`
}

// GameOverPayload carries the final result
type GameOverPayload struct {
	Result  *GameResult   `json:"result"`
	Rounds  []RoundRecord `json:"rounds"`
	Session PublicSession `json:"session"`
}

// WordOptionsPayload is sent only to the drawer
type WordOptionsPayload struct {
	Topic         string    `json:"topic"`
	AIWords       []string  `json:"ai_words"`
	FallbackWords []string  `json:"fallback_words"`
	Deadline      time.Time `json:"deadline"`
}

// DrawerWordPayload is sent only to the drawer's connections
type DrawerWordPayload struct {
	Round int    `json:"round"`
	Word  string `json:"word"`
	Topic string `json:"topic,omitempty"`
}

// GuessResultPayload is sent only to the guesser
type GuessResultPayload struct {
	Guess        string `json:"guess"`
	Correct      bool   `json:"correct"`
	ScoreAwarded int    `json:"score_awarded"`
	Close        bool   `json:"close"`
}

// CorrectGuessPayload is broadcast when someone scores
type CorrectGuessPayload struct {
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
	ScoreAwarded int    `json:"score_awarded"`
	TotalScore   int    `json:"total_score"`
}

// ReactionPayload is the word service's comment on a wrong guess
type ReactionPayload struct {
	Guess string `json:"guess"`
	Text  string `json:"text"`
}

// ErrorPayload reports a rejected action to its sender
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
