package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeResult(t *testing.T) {
	tests := []struct {
		name    string
		scores  map[string]int
		order   []string
		winners []string
		draw    bool
	}{
		{"single winner", map[string]int{"a": 50, "b": 100, "c": 0}, []string{"a", "b", "c"}, []string{"b"}, false},
		{"tie keeps membership order", map[string]int{"a": 100, "b": 50, "c": 100}, []string{"a", "b", "c"}, []string{"a", "c"}, true},
		{"everyone zero", map[string]int{"a": 0, "b": 0}, []string{"a", "b"}, []string{"a", "b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ps []Participant
			for _, id := range tt.order {
				ps = append(ps, Participant{UserID: id, Score: tt.scores[id]})
			}
			res := ComputeResult(ps)
			assert.Equal(t, tt.winners, res.WinnerUserIDs)
			assert.Equal(t, tt.winners[0], res.WinnerUserID)
			assert.Equal(t, tt.draw, res.IsDraw)
			assert.Len(t, res.FinalScores, len(ps))
		})
	}

	empty := ComputeResult(nil)
	assert.Empty(t, empty.WinnerUserID)
	assert.False(t, empty.IsDraw)
}

func TestSessionConfig_WithDefaults(t *testing.T) {
	cfg := SessionConfig{TotalRounds: 5}.WithDefaults()
	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, DefaultGuessWindowSeconds, cfg.GuessWindowSeconds)
	assert.Equal(t, 5, cfg.TotalRounds)
	assert.NoError(t, cfg.Validate())
}

func TestSession_PublicHidesWord(t *testing.T) {
	now := time.Now()
	s := NewSession("id", "ABC123", SessionConfig{Capacity: 4, GuessWindowSeconds: 60, TotalRounds: 2}, now)
	s.Participants = []Participant{{UserID: "a", IsHost: true, IsActive: true}, {UserID: "b", IsActive: true}}
	s.HostUserID = "a"
	s.Status = StatusPlaying
	s.Phase = PhaseDrawing
	s.CurrentRound = 2
	s.CurrentDrawerUserID = "a"
	s.CurrentWord = "secret"
	s.WordLength = 6
	s.CorrectGuesserIDs["b"] = true
	s.Rounds = []RoundRecord{
		{RoundNumber: 1, DrawerUserID: "b", Word: "old", Completed: true},
		{RoundNumber: 2, DrawerUserID: "a", Word: "secret"},
	}
	require.NoError(t, s.Validate())

	v := s.Public()
	assert.Equal(t, 6, v.WordLength)
	assert.Equal(t, []string{"b"}, v.CorrectGuesserIDs)
	require.Len(t, v.Rounds, 1)
	assert.Equal(t, "old", v.Rounds[0].Word)
}

func TestSession_CloneIsDeep(t *testing.T) {
	at := time.Now()
	s := NewSession("id", "ABC123", SessionConfig{Capacity: 4, GuessWindowSeconds: 60, TotalRounds: 2}, at)
	s.Participants = []Participant{{UserID: "a"}}
	s.Rounds = []RoundRecord{{RoundNumber: 1, CompletedAt: &at}}
	s.Result = &GameResult{WinnerUserIDs: []string{"a"}}

	c := s.Clone()
	c.Participants[0].Score = 10
	c.Rounds[0].Word = "x"
	*c.Rounds[0].CompletedAt = at.Add(time.Hour)
	c.Result.WinnerUserIDs[0] = "z"
	c.CorrectGuesserIDs["a"] = true

	assert.Equal(t, 0, s.Participants[0].Score)
	assert.Empty(t, s.Rounds[0].Word)
	assert.Equal(t, at, *s.Rounds[0].CompletedAt)
	assert.Equal(t, "a", s.Result.WinnerUserIDs[0])
	assert.Empty(t, s.CorrectGuesserIDs)
}

func TestError_IsAndCodeOf(t *testing.T) {
	err := NewError(CodeFull, "room %s is full", "ABC123")
	assert.ErrorIs(t, err, ErrFull)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "full: room ABC123 is full", err.Error())

	wrapped := errors.Join(errors.New("context"), err)
	assert.Equal(t, CodeFull, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
