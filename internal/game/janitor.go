package game

import (
	"context"
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
)

// Janitor periodically deletes finished and abandoned sessions.
type Janitor struct {
	store     *SessionStore
	log       zerolog.Logger
	Interval  time.Duration
	Retention time.Duration // how long finished sessions stay readable
	IdleTTL   time.Duration // how long an empty waiting session survives
	OnDelete  func(code string)
}

func NewJanitor(store *SessionStore, log zerolog.Logger) *Janitor {
	return &Janitor{
		store:     store,
		log:       log.With().Str("component", "janitor").Logger(),
		Interval:  domain.SweepInterval,
		Retention: domain.SessionRetention,
		IdleTTL:   domain.IdleRoomTTL,
	}
}

// RunOnce sweeps the store once and returns the deleted codes.
func (j *Janitor) RunOnce(now time.Time) []string {
	start := time.Now()
	deleted := j.store.Sweep(now, j.Retention, j.IdleTTL)
	for _, code := range deleted {
		if j.OnDelete != nil {
			j.OnDelete(code)
		}
	}
	if len(deleted) > 0 {
		j.log.Info().
			Int("deleted_count", len(deleted)).
			Dur("retention", j.Retention).
			Float64("duration_ms", float64(time.Since(start).Milliseconds())).
			Msg("session sweep completed")
	}
	return deleted
}

// Run sweeps every Interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.RunOnce(now)
		}
	}
}
