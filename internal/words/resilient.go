package words

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Resilient wraps a primary Source with a per-call timeout and answers from
// the fallback table whenever the primary fails. It never returns an error.
type Resilient struct {
	primary    Source
	fallback   *Fallback
	timeout    time.Duration
	log        zerolog.Logger
	OnFallback func(op string)
}

// NewResilient builds the word source used by the game. primary may be nil.
func NewResilient(primary Source, fallback *Fallback, timeout time.Duration, log zerolog.Logger) *Resilient {
	if fallback == nil {
		fallback = NewFallback(nil)
	}
	return &Resilient{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		log:      log.With().Str("component", "words").Logger(),
	}
}

func (r *Resilient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resilient) fellBack(op string, err error) {
	if err != nil {
		r.log.Warn().Err(err).Str("op", op).Msg("word service unavailable, using local table")
	}
	if r.OnFallback != nil {
		r.OnFallback(op)
	}
}

func (r *Resilient) GenerateWordSuggestion(ctx context.Context, topic string) (Suggestion, error) {
	if r.primary != nil {
		cctx, cancel := r.callCtx(ctx)
		s, err := r.primary.GenerateWordSuggestion(cctx, topic)
		cancel()
		if err == nil {
			return s, nil
		}
		r.fellBack("suggest", err)
	}
	return r.fallback.GenerateWordSuggestion(ctx, topic)
}

// GenerateWordsByTopic always includes table words; service words are added when available.
func (r *Resilient) GenerateWordsByTopic(ctx context.Context, topic string) (TopicWords, error) {
	local, _ := r.fallback.GenerateWordsByTopic(ctx, topic)
	if r.primary == nil {
		return local, nil
	}
	cctx, cancel := r.callCtx(ctx)
	remote, err := r.primary.GenerateWordsByTopic(cctx, topic)
	cancel()
	if err != nil {
		r.fellBack("words", err)
		return local, nil
	}
	remote.FallbackWords = local.FallbackWords
	return remote, nil
}

func (r *Resilient) React(ctx context.Context, guess, word string) (string, error) {
	if r.primary != nil {
		cctx, cancel := r.callCtx(ctx)
		text, err := r.primary.React(cctx, guess, word)
		cancel()
		if err == nil {
			return text, nil
		}
		r.fellBack("react", err)
	}
	return r.fallback.React(ctx, guess, word)
}
