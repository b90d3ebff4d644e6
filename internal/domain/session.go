package domain

import (
	"time"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Phase is the round sub-state while a session is playing.
type Phase string

const (
	PhaseNone        Phase = ""
	PhaseWordPending Phase = "word_pending"
	PhaseDrawing     Phase = "drawing"
	// PhaseRoundEnding marks a round whose end transition holds the room guard.
	// Transitions commit atomically, so stored sessions never carry it.
	PhaseRoundEnding Phase = "round_ending"
)

// SessionConfig holds the host-chosen parameters of a room.
type SessionConfig struct {
	Capacity           int `json:"capacity"`
	GuessWindowSeconds int `json:"guess_window_seconds"`
	TotalRounds        int `json:"total_rounds"`
}

// WithDefaults fills zero fields with the package defaults.
func (c SessionConfig) WithDefaults() SessionConfig {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.GuessWindowSeconds == 0 {
		c.GuessWindowSeconds = DefaultGuessWindowSeconds
	}
	if c.TotalRounds == 0 {
		c.TotalRounds = DefaultTotalRounds
	}
	return c
}

func (c SessionConfig) Validate() error {
	if c.Capacity < MinCapacity || c.Capacity > MaxCapacity {
		return NewError(CodeInvalidConfig, "capacity must be between %d and %d", MinCapacity, MaxCapacity)
	}
	if c.GuessWindowSeconds < MinGuessWindowSeconds || c.GuessWindowSeconds > MaxGuessWindowSeconds {
		return NewError(CodeInvalidConfig, "guess window must be between %d and %d seconds", MinGuessWindowSeconds, MaxGuessWindowSeconds)
	}
	if c.TotalRounds < MinTotalRounds || c.TotalRounds > MaxTotalRounds {
		return NewError(CodeInvalidConfig, "total rounds must be between %d and %d", MinTotalRounds, MaxTotalRounds)
	}
	return nil
}

// RoundRecord is the history entry of one round. Completed records are never changed.
type RoundRecord struct {
	RoundNumber  int        `json:"round_number"`
	DrawerUserID string     `json:"drawer_user_id"`
	Word         string     `json:"word,omitempty"`
	Topic        string     `json:"topic,omitempty"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GameResult is computed once when a session finishes.
type GameResult struct {
	WinnerUserID  string        `json:"winner_user_id,omitempty"`
	WinnerUserIDs []string      `json:"winner_user_ids"`
	IsDraw        bool          `json:"is_draw"`
	FinalScores   []Participant `json:"final_scores"`
}

// Session is one room and its game.
type Session struct {
	ID                  string
	RoomCode            string
	Capacity            int
	GuessWindowSeconds  int
	TotalRounds         int
	CurrentRound        int
	Status              Status
	Phase               Phase
	HostUserID          string
	CurrentDrawerUserID string
	CurrentWord         string
	CurrentTopic        string
	WordLength          int
	CorrectGuesserIDs   map[string]bool
	Participants        []Participant
	Rounds              []RoundRecord
	Result              *GameResult
	CreatedAt           time.Time
	UpdatedAt           time.Time
	FinishedAt          *time.Time
}

// NewSession returns a waiting session for an already validated config.
func NewSession(id, code string, cfg SessionConfig, now time.Time) *Session {
	return &Session{
		ID:                 id,
		RoomCode:           code,
		Capacity:           cfg.Capacity,
		GuessWindowSeconds: cfg.GuessWindowSeconds,
		TotalRounds:        cfg.TotalRounds,
		Status:             StatusWaiting,
		CorrectGuesserIDs:  make(map[string]bool),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *Session) Config() SessionConfig {
	return SessionConfig{
		Capacity:           s.Capacity,
		GuessWindowSeconds: s.GuessWindowSeconds,
		TotalRounds:        s.TotalRounds,
	}
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	c := *s
	c.CorrectGuesserIDs = make(map[string]bool, len(s.CorrectGuesserIDs))
	for id, ok := range s.CorrectGuesserIDs {
		c.CorrectGuesserIDs[id] = ok
	}
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Rounds = make([]RoundRecord, len(s.Rounds))
	for i, r := range s.Rounds {
		if r.CompletedAt != nil {
			at := *r.CompletedAt
			r.CompletedAt = &at
		}
		c.Rounds[i] = r
	}
	if s.Result != nil {
		res := *s.Result
		res.WinnerUserIDs = append([]string(nil), s.Result.WinnerUserIDs...)
		res.FinalScores = append([]Participant(nil), s.Result.FinalScores...)
		c.Result = &res
	}
	if s.FinishedAt != nil {
		at := *s.FinishedAt
		c.FinishedAt = &at
	}
	return &c
}

// IndexOf returns the membership index of userID, or -1.
func (s *Session) IndexOf(userID string) int {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Participant returns a pointer into the membership list, or nil.
func (s *Session) Participant(userID string) *Participant {
	if i := s.IndexOf(userID); i >= 0 {
		return &s.Participants[i]
	}
	return nil
}

// ActiveParticipants lists active members in membership order.
func (s *Session) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// OpenRound returns the last round record if it has not completed yet.
func (s *Session) OpenRound() *RoundRecord {
	if n := len(s.Rounds); n > 0 && !s.Rounds[n-1].Completed {
		return &s.Rounds[n-1]
	}
	return nil
}

// AllGuessed reports whether every active non-drawer has guessed the word.
func (s *Session) AllGuessed() bool {
	guessers := 0
	for _, p := range s.Participants {
		if !p.IsActive || p.UserID == s.CurrentDrawerUserID {
			continue
		}
		guessers++
		if !s.CorrectGuesserIDs[p.UserID] {
			return false
		}
	}
	return guessers > 0
}

// Validate checks the structural invariants that every committed mutation must keep.
func (s *Session) Validate() error {
	if err := s.Config().Validate(); err != nil {
		return err
	}
	if len(s.Participants) > s.Capacity {
		return NewError(CodeInvalidState, "participants exceed capacity")
	}

	hosts := 0
	seen := make(map[string]bool, len(s.Participants))
	for _, p := range s.Participants {
		if seen[p.UserID] {
			return NewError(CodeInvalidState, "duplicate participant %s", p.UserID)
		}
		seen[p.UserID] = true
		if p.Score < 0 {
			return NewError(CodeInvalidState, "negative score for %s", p.UserID)
		}
		if p.IsHost {
			hosts++
			if p.UserID != s.HostUserID {
				return NewError(CodeInvalidState, "host flag does not match host id")
			}
		}
	}
	if len(s.Participants) > 0 && hosts != 1 {
		return NewError(CodeInvalidState, "exactly one host is required, found %d", hosts)
	}
	if len(s.Participants) == 0 && s.HostUserID != "" {
		return NewError(CodeInvalidState, "empty session cannot have a host")
	}

	if s.Status != StatusPlaying {
		return nil
	}
	if s.CurrentRound < 1 || s.CurrentRound > s.TotalRounds {
		return NewError(CodeInvalidState, "current round %d outside 1..%d", s.CurrentRound, s.TotalRounds)
	}
	drawer := s.Participant(s.CurrentDrawerUserID)
	if drawer == nil || !drawer.IsActive {
		return NewError(CodeInvalidState, "drawer must be an active participant")
	}
	for id := range s.CorrectGuesserIDs {
		if id == s.CurrentDrawerUserID {
			return NewError(CodeInvalidState, "drawer cannot be a correct guesser")
		}
		p := s.Participant(id)
		if p == nil || !p.IsActive {
			return NewError(CodeInvalidState, "correct guesser %s is not an active participant", id)
		}
	}
	return nil
}

// ComputeResult ranks participants by score. Ties share the win.
func ComputeResult(participants []Participant) *GameResult {
	res := &GameResult{
		WinnerUserIDs: []string{},
		FinalScores:   append([]Participant(nil), participants...),
	}
	if len(participants) == 0 {
		return res
	}
	top := participants[0].Score
	for _, p := range participants[1:] {
		if p.Score > top {
			top = p.Score
		}
	}
	for _, p := range participants {
		if p.Score == top {
			res.WinnerUserIDs = append(res.WinnerUserIDs, p.UserID)
		}
	}
	res.WinnerUserID = res.WinnerUserIDs[0]
	res.IsDraw = len(res.WinnerUserIDs) > 1
	return res
}

// PublicSession is the client view of a session. The current word is never included.
type PublicSession struct {
	RoomCode            string        `json:"room_code"`
	Capacity            int           `json:"capacity"`
	GuessWindowSeconds  int           `json:"guess_window_seconds"`
	TotalRounds         int           `json:"total_rounds"`
	CurrentRound        int           `json:"current_round"`
	Status              Status        `json:"status"`
	Phase               Phase         `json:"phase,omitempty"`
	HostUserID          string        `json:"host_user_id"`
	CurrentDrawerUserID string        `json:"current_drawer_user_id,omitempty"`
	CurrentTopic        string        `json:"current_topic,omitempty"`
	WordLength          int           `json:"word_length,omitempty"`
	CorrectGuesserIDs   []string      `json:"correct_guesser_ids"`
	Participants        []Participant `json:"participants"`
	Rounds              []RoundRecord `json:"rounds"`
	Result              *GameResult   `json:"result,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	FinishedAt          *time.Time    `json:"finished_at,omitempty"`
}

// Public builds the client view. Only completed rounds are listed.
func (s *Session) Public() PublicSession {
	v := PublicSession{
		RoomCode:            s.RoomCode,
		Capacity:            s.Capacity,
		GuessWindowSeconds:  s.GuessWindowSeconds,
		TotalRounds:         s.TotalRounds,
		CurrentRound:        s.CurrentRound,
		Status:              s.Status,
		Phase:               s.Phase,
		HostUserID:          s.HostUserID,
		CurrentDrawerUserID: s.CurrentDrawerUserID,
		CurrentTopic:        s.CurrentTopic,
		WordLength:          s.WordLength,
		CorrectGuesserIDs:   []string{},
		Participants:        append([]Participant{}, s.Participants...),
		Rounds:              []RoundRecord{},
		Result:              s.Result,
		CreatedAt:           s.CreatedAt,
		FinishedAt:          s.FinishedAt,
	}
	// membership order keeps the list stable across snapshots
	for _, p := range s.Participants {
		if s.CorrectGuesserIDs[p.UserID] {
			v.CorrectGuesserIDs = append(v.CorrectGuesserIDs, p.UserID)
		}
	}
	for _, r := range s.Rounds {
		if r.Completed {
			v.Rounds = append(v.Rounds, r)
		}
	}
	return v
}
