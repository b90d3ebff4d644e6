package game

import (
	"context"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
)

// GuessResult is the outcome of one guess.
type GuessResult struct {
	Guess        string
	Correct      bool
	ScoreAwarded int
	TotalScore   int
	Close        bool // wrong but within a few edits of the word
	AllGuessed   bool // every active guesser has now scored
	Round        int

	word string
}

// Reactor comments on wrong guesses. It is optional and may fail.
type Reactor interface {
	React(ctx context.Context, guess, word string) (string, error)
}

// GuessEvaluator scores guesses against the current word.
type GuessEvaluator struct {
	store           *SessionStore
	pointsPerGuess  int
	closeDistance   int
	reactor         Reactor
	reactionTimeout time.Duration
	rec             Recorder
	log             zerolog.Logger
}

func NewGuessEvaluator(store *SessionStore, pointsPerGuess int, log zerolog.Logger) *GuessEvaluator {
	if pointsPerGuess <= 0 {
		pointsPerGuess = domain.DefaultPointsPerGuess
	}
	return &GuessEvaluator{
		store:           store,
		pointsPerGuess:  pointsPerGuess,
		closeDistance:   domain.CloseGuessDistance,
		reactionTimeout: domain.WordServiceTimeout,
		rec:             nopRecorder{},
		log:             log.With().Str("component", "guess").Logger(),
	}
}

// SetReactor wires an optional reaction source with a per-call timeout.
func (g *GuessEvaluator) SetReactor(r Reactor, timeout time.Duration) {
	g.reactor = r
	if timeout > 0 {
		g.reactionTimeout = timeout
	}
}

func (g *GuessEvaluator) SetRecorder(r Recorder) {
	if r != nil {
		g.rec = r
	}
}

// NormalizeGuess lowercases and trims a guess or word for comparison.
func NormalizeGuess(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckGuess evaluates raw from userID. The drawer may not guess; a player
// who already scored this round gets a correct result worth zero.
func (g *GuessEvaluator) CheckGuess(ctx context.Context, code, userID, raw string) (GuessResult, error) {
	if err := ctx.Err(); err != nil {
		return GuessResult{}, err
	}
	guess := NormalizeGuess(raw)
	if guess == "" {
		return GuessResult{}, domain.NewError(domain.CodeInvalidInput, "guess is empty")
	}

	res := GuessResult{Guess: guess}
	_, err := g.store.mutate(code, func(tx *roomTx) error {
		s := tx.Session
		if s.Status != domain.StatusPlaying || s.Phase != domain.PhaseDrawing || s.CurrentWord == "" {
			return domain.NewError(domain.CodeInvalidState, "there is no word to guess")
		}
		p := s.Participant(userID)
		if p == nil {
			return domain.NewError(domain.CodeNotFound, "participant %s not in room", userID)
		}
		if userID == s.CurrentDrawerUserID {
			return domain.NewError(domain.CodeInvalidActor, "the drawer cannot guess")
		}
		res.Round = s.CurrentRound
		res.TotalScore = p.Score

		res.word = NormalizeGuess(s.CurrentWord)
		if guess != res.word {
			res.Close = levenshtein.ComputeDistance(guess, res.word) <= g.closeDistance
			tx.discard = true
			return nil
		}
		res.Correct = true
		if s.CorrectGuesserIDs[userID] {
			res.AllGuessed = s.AllGuessed()
			tx.discard = true
			return nil
		}
		p.Score += g.pointsPerGuess
		s.CorrectGuesserIDs[userID] = true
		res.ScoreAwarded = g.pointsPerGuess
		res.TotalScore = p.Score
		res.AllGuessed = s.AllGuessed()
		return nil
	})
	if err != nil {
		g.rec.GuessChecked("rejected")
		return GuessResult{}, err
	}

	switch {
	case res.ScoreAwarded > 0:
		g.rec.GuessChecked("correct")
	case res.Correct:
		g.rec.GuessChecked("repeat")
	case res.Close:
		g.rec.GuessChecked("close")
	default:
		g.rec.GuessChecked("wrong")
	}
	return res, nil
}

// React comments on a wrong guess returned by CheckGuess. It may block for
// up to the reaction timeout; empty means there is nothing to say.
func (g *GuessEvaluator) React(ctx context.Context, res GuessResult) string {
	if g.reactor == nil || res.Correct || res.word == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, g.reactionTimeout)
	defer cancel()
	text, err := g.reactor.React(ctx, res.Guess, res.word)
	if err != nil {
		g.log.Debug().Err(err).Msg("reaction unavailable")
		return ""
	}
	return text
}
