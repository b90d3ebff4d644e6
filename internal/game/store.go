package game

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
)

// Removal describes the outcome of removing a participant.
type Removal struct {
	Session       domain.Session
	Removed       domain.Participant
	NewHostUserID string // set when the host role moved
	Emptied       bool   // the session has no participants left
}

type roomEntry struct {
	mu      sync.Mutex
	session *domain.Session // nil once deleted
	strokes *RingBuffer[domain.StrokeEvent]
}

// roomTx is the working state handed to a mutation.
type roomTx struct {
	Session      *domain.Session
	clearStrokes bool
	discard      bool
}

// SessionStore keeps every session in memory, keyed by room code.
// Each room has its own lock, so mutations in one room never wait on another.
type SessionStore struct {
	mu            sync.RWMutex
	rooms         map[string]*roomEntry
	rnd           RandomSource
	strokeHistory int
	now           func() time.Time
	newCode       func() string
}

// NewSessionStore creates an empty store.
func NewSessionStore(rnd RandomSource, strokeHistory int) *SessionStore {
	if rnd == nil {
		rnd = NewRandomSource(0)
	}
	if strokeHistory <= 0 {
		strokeHistory = domain.MaxStrokeHistory
	}
	return &SessionStore{
		rooms:         make(map[string]*roomEntry),
		rnd:           rnd,
		strokeHistory: strokeHistory,
		now:           time.Now,
		newCode:       GenerateRoomCode,
	}
}

// GenerateRoomCode returns a 6-character uppercase hex code
func GenerateRoomCode() string {
	b := make([]byte, 3)
	rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

// NormalizeCode upper-cases and trims a user-typed code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *SessionStore) entry(code string) (*roomEntry, error) {
	s.mu.RLock()
	e, ok := s.rooms[NormalizeCode(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewError(domain.CodeNotFound, "room %s not found", code)
	}
	return e, nil
}

// mutate runs fn on a clone of the session and commits it only if fn succeeds
// and the result passes validation. The room lock is held throughout.
func (s *SessionStore) mutate(code string, fn func(tx *roomTx) error) (domain.Session, error) {
	e, err := s.entry(code)
	if err != nil {
		return domain.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Session{}, domain.NewError(domain.CodeNotFound, "room %s not found", code)
	}

	tx := &roomTx{Session: e.session.Clone()}
	if err := fn(tx); err != nil {
		return domain.Session{}, err
	}
	if tx.discard {
		return *e.session.Clone(), nil
	}
	tx.Session.UpdatedAt = s.now()
	if err := tx.Session.Validate(); err != nil {
		return domain.Session{}, err
	}
	e.session = tx.Session
	if tx.clearStrokes {
		e.strokes.Clear()
	}
	return *tx.Session.Clone(), nil
}

// View runs fn against the live session under the room lock. fn must not retain
// or modify the session.
func (s *SessionStore) View(code string, fn func(sess *domain.Session)) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.NewError(domain.CodeNotFound, "room %s not found", code)
	}
	fn(e.session)
	return nil
}

// CreateSession validates cfg and registers a waiting session under a fresh code.
func (s *SessionStore) CreateSession(cfg domain.SessionConfig) (domain.Session, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.newCode()
	for _, exists := s.rooms[code]; exists; _, exists = s.rooms[code] {
		code = s.newCode()
	}
	sess := domain.NewSession(uuid.NewString(), code, cfg, s.now())
	s.rooms[code] = &roomEntry{
		session: sess,
		strokes: NewRingBuffer[domain.StrokeEvent](s.strokeHistory),
	}
	return *sess.Clone(), nil
}

// AddParticipant joins a waiting session. The first participant becomes host.
func (s *SessionStore) AddParticipant(code, displayName string) (domain.Participant, domain.Session, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.Participant{}, domain.Session{}, domain.NewError(domain.CodeInvalidInput, "display name is required")
	}

	var added domain.Participant
	sess, err := s.mutate(code, func(tx *roomTx) error {
		sess := tx.Session
		if sess.Status != domain.StatusWaiting {
			return domain.NewError(domain.CodeAlreadyStarted, "game in room %s has already started", sess.RoomCode)
		}
		if len(sess.Participants) >= sess.Capacity {
			return domain.NewError(domain.CodeFull, "room %s is full", sess.RoomCode)
		}
		p := domain.NewParticipant(displayName, s.now())
		if len(sess.Participants) == 0 {
			p.IsHost = true
			sess.HostUserID = p.UserID
		}
		sess.Participants = append(sess.Participants, p)
		added = p
		return nil
	})
	if err != nil {
		return domain.Participant{}, domain.Session{}, err
	}
	return added, sess, nil
}

// GetSession returns a snapshot.
func (s *SessionStore) GetSession(code string) (domain.Session, error) {
	var snap domain.Session
	err := s.View(code, func(sess *domain.Session) {
		snap = *sess.Clone()
	})
	return snap, err
}

// ListActiveParticipants returns active members in membership order.
func (s *SessionStore) ListActiveParticipants(code string) ([]domain.Participant, error) {
	var active []domain.Participant
	err := s.View(code, func(sess *domain.Session) {
		active = sess.ActiveParticipants()
	})
	return active, err
}

// SetActive flips a participant's presence flag. A participant stays active
// until they depart; a dropped socket inside the grace period does not count.
// Someone who already guessed the open round cannot be deactivated, so their
// guess can never be scored twice.
func (s *SessionStore) SetActive(code, userID string, active bool) (domain.Session, error) {
	return s.mutate(code, func(tx *roomTx) error {
		p := tx.Session.Participant(userID)
		if p == nil {
			return domain.NewError(domain.CodeNotFound, "participant %s not in room", userID)
		}
		if p.IsActive == active {
			tx.discard = true
			return nil
		}
		if !active && tx.Session.CorrectGuesserIDs[userID] {
			return domain.NewError(domain.CodeInvalidState, "participant %s already guessed this round", userID)
		}
		p.IsActive = active
		return nil
	})
}

// RemoveParticipant removes a member outside of a running round.
// Removing the drawer of a playing session must go through the orchestrator.
func (s *SessionStore) RemoveParticipant(code, userID string) (Removal, error) {
	var r Removal
	sess, err := s.mutate(code, func(tx *roomTx) error {
		sess := tx.Session
		if sess.Status == domain.StatusPlaying && sess.CurrentDrawerUserID == userID {
			return domain.NewError(domain.CodeInvalidState, "the current drawer leaves through the round orchestrator")
		}
		removed, newHost, err := removeParticipant(sess, userID, s.rnd, s.now())
		if err != nil {
			return err
		}
		r.Removed = removed
		r.NewHostUserID = newHost
		r.Emptied = len(sess.Participants) == 0
		return nil
	})
	if err != nil {
		return Removal{}, err
	}
	r.Session = sess
	return r, nil
}

// Update applies fn atomically. A failing fn or an invariant violation leaves
// the stored session untouched.
func (s *SessionStore) Update(code string, fn func(sess *domain.Session) error) (domain.Session, error) {
	return s.mutate(code, func(tx *roomTx) error {
		return fn(tx.Session)
	})
}

// AppendStroke records a drawing event for replay to late joiners.
func (s *SessionStore) AppendStroke(code string, ev domain.StrokeEvent) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.NewError(domain.CodeNotFound, "room %s not found", code)
	}
	e.strokes.Add(ev)
	return nil
}

// ClearStrokes empties the replay history.
func (s *SessionStore) ClearStrokes(code string) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strokes.Clear()
	return nil
}

// DrawAs applies fn to the stroke history if userID is drawing the current
// round. The check and the change happen under one lock so a stroke can never
// land in the next drawer's canvas.
func (s *SessionStore) DrawAs(code, userID string, fn func(strokes *RingBuffer[domain.StrokeEvent])) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess := e.session
	if sess == nil {
		return domain.NewError(domain.CodeNotFound, "room %s not found", code)
	}
	if sess.Status != domain.StatusPlaying || sess.Phase != domain.PhaseDrawing {
		return domain.NewError(domain.CodeInvalidState, "nobody is drawing")
	}
	if sess.CurrentDrawerUserID != userID {
		return domain.NewError(domain.CodeInvalidActor, "only the drawer can draw")
	}
	fn(e.strokes)
	return nil
}

// Strokes returns the replay history oldest first.
func (s *SessionStore) Strokes(code string) ([]domain.StrokeEvent, error) {
	e, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strokes.Items(), nil
}

// Delete drops a session. It reports whether the code existed.
func (s *SessionStore) Delete(code string) bool {
	code = NormalizeCode(code)
	s.mu.Lock()
	e, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if ok {
		e.mu.Lock()
		e.session = nil
		e.strokes.Clear()
		e.mu.Unlock()
	}
	return ok
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Sweep deletes finished sessions older than retention and empty waiting
// sessions idle for longer than idleTTL. It returns the deleted codes.
func (s *SessionStore) Sweep(now time.Time, retention, idleTTL time.Duration) []string {
	s.mu.RLock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()

	var deleted []string
	for _, code := range codes {
		expired := false
		_ = s.View(code, func(sess *domain.Session) {
			switch {
			case sess.Status == domain.StatusFinished && sess.FinishedAt != nil:
				expired = now.Sub(*sess.FinishedAt) >= retention
			case sess.Status == domain.StatusWaiting && len(sess.Participants) == 0:
				expired = now.Sub(sess.UpdatedAt) >= idleTTL
			}
		})
		if expired && s.Delete(code) {
			deleted = append(deleted, code)
		}
	}
	return deleted
}

// removeParticipant drops userID from sess, moving the host role to a random
// remaining member if needed. An emptied session is finished.
func removeParticipant(sess *domain.Session, userID string, rnd RandomSource, now time.Time) (domain.Participant, string, error) {
	idx := sess.IndexOf(userID)
	if idx < 0 {
		return domain.Participant{}, "", domain.NewError(domain.CodeNotFound, "participant %s not in room", userID)
	}
	removed := sess.Participants[idx]
	sess.Participants = append(sess.Participants[:idx:idx], sess.Participants[idx+1:]...)
	delete(sess.CorrectGuesserIDs, userID)

	if len(sess.Participants) == 0 {
		sess.HostUserID = ""
		if sess.Status != domain.StatusFinished {
			finishSession(sess, now)
		}
		return removed, "", nil
	}
	if !removed.IsHost {
		return removed, "", nil
	}

	// prefer active members for the host role
	candidates := make([]int, 0, len(sess.Participants))
	for i, p := range sess.Participants {
		if p.IsActive {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		for i := range sess.Participants {
			candidates = append(candidates, i)
		}
	}
	pick := candidates[rnd.Intn(len(candidates))]
	sess.Participants[pick].IsHost = true
	sess.HostUserID = sess.Participants[pick].UserID
	return removed, sess.HostUserID, nil
}

// finishSession moves sess to finished and computes the result. Any open
// round record is closed.
func finishSession(sess *domain.Session, now time.Time) {
	if open := sess.OpenRound(); open != nil {
		at := now
		open.Completed = true
		open.CompletedAt = &at
	}
	sess.Status = domain.StatusFinished
	sess.Phase = domain.PhaseNone
	sess.CurrentDrawerUserID = ""
	sess.CurrentWord = ""
	sess.CurrentTopic = ""
	sess.WordLength = 0
	sess.CorrectGuesserIDs = make(map[string]bool)
	at := now
	sess.FinishedAt = &at
	sess.Result = domain.ComputeResult(sess.Participants)
}
