package game

import (
	"context"
	"testing"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fixedRand always picks the same index, clamped to n.
type fixedRand struct{ pick int }

func (f fixedRand) Intn(n int) int {
	if f.pick >= n {
		return n - 1
	}
	return f.pick
}

func testConfig() domain.SessionConfig {
	return domain.SessionConfig{Capacity: 4, GuessWindowSeconds: 60, TotalRounds: 3}
}

// seedRoom creates a waiting room and joins the given names in order.
func seedRoom(t *testing.T, s *SessionStore, cfg domain.SessionConfig, names ...string) (string, []domain.Participant) {
	t.Helper()
	sess, err := s.CreateSession(cfg)
	require.NoError(t, err)
	var ps []domain.Participant
	for _, n := range names {
		p, _, err := s.AddParticipant(sess.RoomCode, n)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	return sess.RoomCode, ps
}

func newTestOrchestrator(rnd RandomSource) (*SessionStore, *Orchestrator) {
	store := NewSessionStore(rnd, 50)
	return store, NewOrchestrator(store, NewGuard(), rnd, zerolog.Nop())
}

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
