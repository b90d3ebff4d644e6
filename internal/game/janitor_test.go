package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_RunOnceNotifies(t *testing.T) {
	store := NewSessionStore(fixedRand{}, 10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	code, ps := seedRoom(t, store, testConfig(), "alice")
	_, err := store.RemoveParticipant(code, ps[0].UserID)
	require.NoError(t, err)

	j := NewJanitor(store, zerolog.Nop())
	var got []string
	j.OnDelete = func(c string) { got = append(got, c) }

	assert.Empty(t, j.RunOnce(base.Add(time.Minute)))
	assert.Equal(t, []string{code}, j.RunOnce(base.Add(j.Retention)))
	assert.Equal(t, []string{code}, got)
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	store := NewSessionStore(fixedRand{}, 10)
	code, _ := seedRoom(t, store, testConfig())

	j := NewJanitor(store, zerolog.Nop())
	j.Interval = 5 * time.Millisecond
	j.IdleTTL = 0

	var mu sync.Mutex
	var deleted []string
	j.OnDelete = func(c string) {
		mu.Lock()
		deleted = append(deleted, c)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(deleted) == 1 && deleted[0] == code
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "janitor did not stop")
	}
}
