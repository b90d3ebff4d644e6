package game

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/rs/zerolog"
)

// Round end triggers, also used as metric labels.
const (
	TriggerClient     = "client"
	TriggerTimer      = "timer"
	TriggerAllGuessed = "all_guessed"
	TriggerHost       = "host"
	TriggerDeparture  = "departure"
)

// Reasons a game finished.
const (
	ReasonRoundsComplete   = "rounds_complete"
	ReasonNotEnoughPlayers = "not_enough_players"
	ReasonHostEnded        = "host_ended"
	ReasonEmpty            = "empty"
)

var errStaleTrigger = errors.New("stale round trigger")

// Transition is the committed outcome of a round or game transition.
type Transition struct {
	Session          domain.Session
	Trigger          string
	Dropped          bool // a duplicate trigger absorbed without effect
	EndedRound       *domain.RoundRecord
	NextDrawerUserID string
	GameOver         bool
	Reason           string
}

// Departure is the outcome of a participant leaving for good.
type Departure struct {
	Transition
	Removed       domain.Participant
	NewHostUserID string
	WasDrawer     bool
	Emptied       bool
	AllGuessed    bool // the remaining guessers have all scored
}

// Publisher is called while the room guard is still held, so one transition
// produces exactly one set of notifications.
type Publisher func(Transition)

// Orchestrator drives the session state machine:
// waiting -> playing{word_pending -> drawing -> round end} -> finished.
type Orchestrator struct {
	store   *SessionStore
	guard   *Guard
	rnd     RandomSource
	rec     Recorder
	log     zerolog.Logger
	publish Publisher
}

func NewOrchestrator(store *SessionStore, guard *Guard, rnd RandomSource, log zerolog.Logger) *Orchestrator {
	if rnd == nil {
		rnd = store.rnd
	}
	return &Orchestrator{
		store:   store,
		guard:   guard,
		rnd:     rnd,
		rec:     nopRecorder{},
		log:     log.With().Str("component", "orchestrator").Logger(),
		publish: func(Transition) {},
	}
}

// SetRecorder wires lifecycle metrics.
func (o *Orchestrator) SetRecorder(r Recorder) {
	if r != nil {
		o.rec = r
	}
}

// SetPublisher wires transition notifications.
func (o *Orchestrator) SetPublisher(p Publisher) {
	if p != nil {
		o.publish = p
	}
}

// Guard exposes the room guard shared with other transition sources.
func (o *Orchestrator) Guard() *Guard {
	return o.guard
}

// StartSession moves a waiting room into its first round. Only the host may start.
func (o *Orchestrator) StartSession(ctx context.Context, code, requesterID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	sess, err := o.store.mutate(code, func(tx *roomTx) error {
		s := tx.Session
		if s.HostUserID != requesterID {
			return domain.NewError(domain.CodeInvalidActor, "only the host can start the game")
		}
		if s.Status != domain.StatusWaiting {
			return domain.NewError(domain.CodeInvalidState, "game is %s", s.Status)
		}
		if len(s.Participants) < domain.MinPlayersToStart {
			return domain.NewError(domain.CodeNotEnoughPlayers, "need at least %d players", domain.MinPlayersToStart)
		}
		active := s.ActiveParticipants()
		if len(active) < domain.MinPlayersToStart {
			return domain.NewError(domain.CodeNotEnoughPlayers, "need at least %d connected players", domain.MinPlayersToStart)
		}

		drawer := active[0].UserID
		if host := s.Participant(s.HostUserID); host != nil && host.IsActive {
			drawer = host.UserID
		}
		for i := range s.Participants {
			s.Participants[i].Score = 0
		}
		s.Status = domain.StatusPlaying
		s.Phase = domain.PhaseWordPending
		s.CurrentRound = 1
		s.CurrentDrawerUserID = drawer
		s.CurrentWord = ""
		s.CurrentTopic = ""
		s.WordLength = 0
		s.CorrectGuesserIDs = make(map[string]bool)
		s.Rounds = []domain.RoundRecord{{RoundNumber: 1, DrawerUserID: drawer}}
		s.Result = nil
		tx.clearStrokes = true
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	o.rec.SessionStarted()
	o.log.Info().Str("room", sess.RoomCode).Str("drawer", sess.CurrentDrawerUserID).
		Int("players", len(sess.Participants)).Msg("game started")
	return sess, nil
}

// SelectNextDrawer returns the active participant after the current drawer in
// membership order. A drawer who is no longer listed counts as index -1.
func SelectNextDrawer(s *domain.Session) (domain.Participant, error) {
	active := s.ActiveParticipants()
	if len(active) < domain.MinPlayersToStart {
		return domain.Participant{}, domain.NewError(domain.CodeNotEnoughPlayers, "need at least %d active players to rotate", domain.MinPlayersToStart)
	}
	idx := -1
	for i, p := range active {
		if p.UserID == s.CurrentDrawerUserID {
			idx = i
			break
		}
	}
	return active[(idx+1)%len(active)], nil
}

// StartRound sets the drawer's chosen word and opens the guessing window.
func (o *Orchestrator) StartRound(ctx context.Context, code, requesterID, word, topic string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	word = strings.TrimSpace(word)
	topic = strings.TrimSpace(topic)
	if word == "" {
		return domain.Session{}, domain.NewError(domain.CodeInvalidInput, "word is required")
	}

	sess, err := o.store.mutate(code, func(tx *roomTx) error {
		s := tx.Session
		if s.Status != domain.StatusPlaying || s.Phase != domain.PhaseWordPending {
			return domain.NewError(domain.CodeInvalidState, "no round is waiting for a word")
		}
		if s.CurrentDrawerUserID != requesterID {
			return domain.NewError(domain.CodeInvalidActor, "only the drawer picks the word")
		}

		if open := s.OpenRound(); open != nil && open.RoundNumber == s.CurrentRound && open.Word == "" {
			open.DrawerUserID = s.CurrentDrawerUserID
			open.Word = word
			open.Topic = topic
		} else {
			s.CurrentRound++
			s.Rounds = append(s.Rounds, domain.RoundRecord{
				RoundNumber:  s.CurrentRound,
				DrawerUserID: s.CurrentDrawerUserID,
				Word:         word,
				Topic:        topic,
			})
		}
		s.CurrentWord = word
		s.CurrentTopic = topic
		s.WordLength = utf8.RuneCountInString(word)
		s.CorrectGuesserIDs = make(map[string]bool)
		s.Phase = domain.PhaseDrawing
		tx.clearStrokes = true
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	o.rec.RoundStarted()
	o.log.Info().Str("room", sess.RoomCode).Int("round", sess.CurrentRound).
		Str("drawer", sess.CurrentDrawerUserID).Msg("round started")
	return sess, nil
}

// EndRound closes the given round (0 means the current one) and either rotates
// the drawer or finishes the game. Triggers for a round that is not currently
// being drawn, or that race an in-flight transition, are dropped.
func (o *Orchestrator) EndRound(ctx context.Context, code string, round int, trigger string) (Transition, error) {
	if err := ctx.Err(); err != nil {
		return Transition{}, err
	}
	tr := Transition{Trigger: trigger}
	ran, err := o.guard.Run(code, func() error {
		now := o.store.now()
		sess, err := o.store.mutate(code, func(tx *roomTx) error {
			s := tx.Session
			if s.Status != domain.StatusPlaying || s.Phase != domain.PhaseDrawing {
				return errStaleTrigger
			}
			if round > 0 && round != s.CurrentRound {
				return errStaleTrigger
			}
			tr.EndedRound = closeRound(s, now)
			advance(s, &tr, now)
			return nil
		})
		if errors.Is(err, errStaleTrigger) {
			tr.Dropped = true
			return nil
		}
		if err != nil {
			return err
		}
		tr.Session = sess
		o.publish(tr)
		return nil
	})
	if !ran {
		tr.Dropped = true
	}
	if err != nil {
		return Transition{}, err
	}
	if tr.Dropped {
		o.rec.TransitionDropped()
		o.log.Debug().Str("room", code).Int("round", round).Str("trigger", trigger).Msg("duplicate round end dropped")
		return tr, nil
	}

	o.rec.RoundEnded(trigger)
	if tr.EndedRound != nil {
		o.log.Info().Str("room", code).Int("round", tr.EndedRound.RoundNumber).Str("trigger", trigger).Msg("round ended")
	}
	if tr.GameOver {
		o.rec.GameEnded(tr.Reason)
		o.log.Info().Str("room", code).Str("reason", tr.Reason).Msg("game over")
	}
	return tr, nil
}

// EndGame finishes the game. A non-empty requesterID must be the host.
func (o *Orchestrator) EndGame(ctx context.Context, code, requesterID string) (Transition, error) {
	if err := ctx.Err(); err != nil {
		return Transition{}, err
	}
	tr := Transition{Trigger: TriggerHost, Reason: ReasonHostEnded, GameOver: true}
	ran, err := o.guard.Run(code, func() error {
		now := o.store.now()
		sess, err := o.store.mutate(code, func(tx *roomTx) error {
			s := tx.Session
			if requesterID != "" && s.HostUserID != requesterID {
				return domain.NewError(domain.CodeInvalidActor, "only the host can end the game")
			}
			if s.Status == domain.StatusFinished {
				return domain.NewError(domain.CodeInvalidState, "game already finished")
			}
			tr.EndedRound = closeRound(s, now)
			finishSession(s, now)
			return nil
		})
		if err != nil {
			return err
		}
		tr.Session = sess
		o.publish(tr)
		return nil
	})
	if err != nil {
		return Transition{}, err
	}
	if !ran {
		o.rec.TransitionDropped()
		return Transition{Trigger: TriggerHost, Dropped: true}, nil
	}
	o.rec.GameEnded(tr.Reason)
	o.log.Info().Str("room", code).Str("reason", tr.Reason).Msg("game over")
	return tr, nil
}

// Depart removes a participant whose presence has lapsed, repairing host,
// drawer and game state in the same step.
func (o *Orchestrator) Depart(ctx context.Context, code, userID string) (Departure, error) {
	if err := ctx.Err(); err != nil {
		return Departure{}, err
	}
	d := Departure{Transition: Transition{Trigger: TriggerDeparture}}
	now := o.store.now()
	sess, err := o.store.mutate(code, func(tx *roomTx) error {
		s := tx.Session
		wasPlaying := s.Status == domain.StatusPlaying
		d.WasDrawer = wasPlaying && s.CurrentDrawerUserID == userID

		removed, newHost, err := removeParticipant(s, userID, o.rnd, now)
		if err != nil {
			return err
		}
		d.Removed = removed
		d.NewHostUserID = newHost

		if len(s.Participants) == 0 {
			d.Emptied = true
			if wasPlaying {
				d.GameOver = true
				d.Reason = ReasonEmpty
			}
			return nil
		}
		if !wasPlaying {
			return nil
		}

		switch {
		case d.WasDrawer && s.Phase == domain.PhaseDrawing:
			d.EndedRound = closeRound(s, now)
			advance(s, &d.Transition, now)
		case len(s.ActiveParticipants()) < domain.MinPlayersToStart:
			finishSession(s, now)
			d.GameOver = true
			d.Reason = ReasonNotEnoughPlayers
		case d.WasDrawer:
			// word not chosen yet: hand the pick to the next player
			next, err := SelectNextDrawer(s)
			if err != nil {
				return err
			}
			s.CurrentDrawerUserID = next.UserID
			if open := s.OpenRound(); open != nil {
				open.DrawerUserID = next.UserID
			}
			d.NextDrawerUserID = next.UserID
		case s.Phase == domain.PhaseDrawing:
			d.AllGuessed = s.AllGuessed()
		}
		return nil
	})
	if err != nil {
		return Departure{}, err
	}
	d.Session = sess

	o.rec.Departed(d.WasDrawer)
	ev := o.log.Info().Str("room", code).Str("user", userID).Bool("was_drawer", d.WasDrawer)
	if d.NewHostUserID != "" {
		ev = ev.Str("new_host", d.NewHostUserID)
	}
	ev.Msg("participant departed")
	if d.GameOver {
		o.rec.GameEnded(d.Reason)
	}
	return d, nil
}

// closeRound completes the open round record and returns a copy of it.
func closeRound(s *domain.Session, now time.Time) *domain.RoundRecord {
	open := s.OpenRound()
	if open == nil {
		return nil
	}
	at := now
	open.Completed = true
	open.CompletedAt = &at
	closed := *open
	return &closed
}

// advance moves a session past a closed round: the next drawer waits for a
// word, or the game finishes when rounds or players run out.
func advance(s *domain.Session, tr *Transition, now time.Time) {
	if s.CurrentRound >= s.TotalRounds {
		finishSession(s, now)
		tr.GameOver = true
		tr.Reason = ReasonRoundsComplete
		return
	}
	next, err := SelectNextDrawer(s)
	if err != nil {
		finishSession(s, now)
		tr.GameOver = true
		tr.Reason = ReasonNotEnoughPlayers
		return
	}
	s.CurrentDrawerUserID = next.UserID
	s.Phase = domain.PhaseWordPending
	s.CurrentWord = ""
	s.CurrentTopic = ""
	s.WordLength = 0
	s.CorrectGuesserIDs = make(map[string]bool)
	tr.NextDrawerUserID = next.UserID
}
