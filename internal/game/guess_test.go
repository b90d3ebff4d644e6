package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReactor struct {
	text  string
	err   error
	delay time.Duration
	calls int
}

func (s *stubReactor) React(ctx context.Context, guess, word string) (string, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

// drawingRoom returns a room where alice draws "Giraffe" for bob and carol.
func drawingRoom(t *testing.T) (*SessionStore, string, []domain.Participant) {
	t.Helper()
	store, orch := newTestOrchestrator(fixedRand{})
	code, ps := seedRoom(t, store, testConfig(), "alice", "bob", "carol")
	_, err := orch.StartSession(ctxT(t), code, ps[0].UserID)
	require.NoError(t, err)
	_, err = orch.StartRound(ctxT(t), code, ps[0].UserID, "Giraffe", "animals")
	require.NoError(t, err)
	return store, code, ps
}

func TestCheckGuess_Correct(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "  gIRAFFE ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, domain.DefaultPointsPerGuess, res.ScoreAwarded)
	assert.Equal(t, 50, res.TotalScore)
	assert.False(t, res.AllGuessed)
	assert.Equal(t, 1, res.Round)

	sess, _ := store.GetSession(code)
	assert.True(t, sess.CorrectGuesserIDs[ps[1].UserID])
	assert.Equal(t, 50, sess.Participant(ps[1].UserID).Score)
}

func TestCheckGuess_RepeatScoresZero(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 10, zerolog.Nop())

	_, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)
	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 0, res.ScoreAwarded)

	sess, _ := store.GetSession(code)
	assert.Equal(t, 10, sess.Participant(ps[1].UserID).Score)
}

func TestCheckGuess_AllGuessed(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	_, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)
	res, err := eval.CheckGuess(ctxT(t), code, ps[2].UserID, "giraffe")
	require.NoError(t, err)
	assert.True(t, res.AllGuessed)
}

func TestCheckGuess_Wrong(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	tests := []struct {
		guess string
		close bool
	}{
		{"girafe", true},
		{"giraffes", true},
		{"gorafe", true},
		{"elephant", false},
		{"gir", false},
	}
	for _, tt := range tests {
		t.Run(tt.guess, func(t *testing.T) {
			res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, tt.guess)
			require.NoError(t, err)
			assert.False(t, res.Correct)
			assert.Equal(t, 0, res.ScoreAwarded)
			assert.Equal(t, tt.close, res.Close)
		})
	}

	sess, _ := store.GetSession(code)
	assert.Empty(t, sess.CorrectGuesserIDs)
	assert.Equal(t, 0, sess.Participant(ps[1].UserID).Score)
}

func TestCheckGuess_Rejections(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	_, err := eval.CheckGuess(ctxT(t), code, ps[0].UserID, "giraffe")
	assert.ErrorIs(t, err, domain.ErrInvalidActor, "drawer")

	_, err = eval.CheckGuess(ctxT(t), code, "stranger", "giraffe")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = eval.CheckGuess(ctxT(t), code, ps[1].UserID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	lobby, lps := seedRoom(t, store, testConfig(), "dave", "erin")
	_, err = eval.CheckGuess(ctxT(t), lobby, lps[1].UserID, "giraffe")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCheckGuess_ScoredGuesserCannotBeDeactivated(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	_, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)

	_, err = store.SetActive(code, ps[1].UserID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	sess, _ := store.GetSession(code)
	assert.True(t, sess.Participant(ps[1].UserID).IsActive)
	assert.True(t, sess.CorrectGuesserIDs[ps[1].UserID])

	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)
	assert.Zero(t, res.ScoreAwarded)

	// guessers who have not scored may still go inactive
	_, err = store.SetActive(code, ps[2].UserID, false)
	assert.NoError(t, err)
}

func TestCheckGuess_Reactor(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	r := &stubReactor{text: "so close!"}
	eval.SetReactor(r, time.Second)
	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "zebra")
	require.NoError(t, err)
	assert.Zero(t, r.calls, "CheckGuess never waits on the reactor")
	assert.Equal(t, "so close!", eval.React(ctxT(t), res))
	assert.Equal(t, 1, r.calls)

	res, err = eval.CheckGuess(ctxT(t), code, ps[1].UserID, "giraffe")
	require.NoError(t, err)
	assert.Empty(t, eval.React(ctxT(t), res))
	assert.Equal(t, 1, r.calls, "correct guesses skip the reactor")

	assert.Empty(t, eval.React(ctxT(t), GuessResult{Guess: "zebra"}), "results not produced by CheckGuess")
}

func TestCheckGuess_NotDelayedBySlowReactor(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())
	eval.SetReactor(&stubReactor{text: "late", delay: time.Hour}, 3*time.Second)

	start := time.Now()
	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "zebra")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestCheckGuess_ReactorFailureIsIgnored(t *testing.T) {
	store, code, ps := drawingRoom(t)
	eval := NewGuessEvaluator(store, 0, zerolog.Nop())

	eval.SetReactor(&stubReactor{err: errors.New("service down")}, time.Second)
	res, err := eval.CheckGuess(ctxT(t), code, ps[1].UserID, "zebra")
	require.NoError(t, err)
	assert.Empty(t, eval.React(ctxT(t), res))

	eval.SetReactor(&stubReactor{text: "late", delay: time.Second}, 20*time.Millisecond)
	start := time.Now()
	assert.Empty(t, eval.React(ctxT(t), res))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "reactions are cut off at the timeout")
}
