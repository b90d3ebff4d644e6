// Package presence maps live socket connections to participants and turns
// lapsed connections into departures after a grace period.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/rs/zerolog"
)

// Binding ties a connection to a participant of a room.
type Binding struct {
	RoomCode string
	UserID   string
}

// Departer removes a participant for good.
type Departer interface {
	Depart(ctx context.Context, code, userID string) (game.Departure, error)
}

// Activator marks a participant as present.
type Activator interface {
	SetActive(code, userID string, active bool) (domain.Session, error)
}

// Listener is told about every committed departure.
type Listener interface {
	OnDeparture(d game.Departure)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(d game.Departure)

func (f ListenerFunc) OnDeparture(d game.Departure) { f(d) }

type pendingDeparture struct {
	binding   Binding
	timer     *DepartureTimer
	reconnect bool // armed by a dropped connection rather than a fresh join
}

// Tracker is the connection registry.
type Tracker struct {
	mu        sync.Mutex
	conns     map[string]Binding
	pending   map[string]*pendingDeparture
	grace     time.Duration
	joinGrace time.Duration
	departer  Departer
	activator Activator
	listener  Listener
	log       zerolog.Logger
}

func NewTracker(departer Departer, activator Activator, grace time.Duration, log zerolog.Logger) *Tracker {
	if grace <= 0 {
		grace = domain.DepartureGrace
	}
	return &Tracker{
		conns:     make(map[string]Binding),
		pending:   make(map[string]*pendingDeparture),
		grace:     grace,
		joinGrace: domain.JoinGrace,
		departer:  departer,
		activator: activator,
		log:       log.With().Str("component", "presence").Logger(),
	}
}

// SetListener sets the departure listener
func (t *Tracker) SetListener(l Listener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// SetJoinGrace sets how long a joiner may take to open a socket
func (t *Tracker) SetJoinGrace(d time.Duration) {
	if d > 0 {
		t.joinGrace = d
	}
}

// Connect registers connID for the participant, cancels any pending departure
// of the same participant and marks them active. fresh is false when the
// participant was already connected or is coming back within the grace period.
func (t *Tracker) Connect(connID, code, userID string) (fresh bool, err error) {
	b := Binding{RoomCode: game.NormalizeCode(code), UserID: userID}

	t.mu.Lock()
	fresh = !t.connectedLocked(b)
	for key, p := range t.pending {
		if p.binding != b {
			continue
		}
		p.timer.Cancel()
		delete(t.pending, key)
		if p.reconnect {
			fresh = false
		}
	}
	t.conns[connID] = b
	t.mu.Unlock()

	if _, err := t.activator.SetActive(b.RoomCode, b.UserID, true); err != nil {
		t.mu.Lock()
		delete(t.conns, connID)
		t.mu.Unlock()
		return false, err
	}
	t.log.Debug().Str("conn", connID).Str("room", b.RoomCode).Str("user", userID).Bool("fresh", fresh).Msg("connected")
	return fresh, nil
}

// Disconnect drops connID at once and starts the departure grace period if it
// was the participant's last connection.
func (t *Tracker) Disconnect(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.conns[connID]
	if !ok {
		return
	}
	delete(t.conns, connID)
	if t.connectedLocked(b) {
		return
	}
	t.armLocked("conn:"+connID, b, t.grace, true)
}

// ExpectConnection starts a departure timer for a participant who joined over
// HTTP but has not opened a socket yet.
func (t *Tracker) ExpectConnection(code, userID string) {
	b := Binding{RoomCode: game.NormalizeCode(code), UserID: userID}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectedLocked(b) {
		return
	}
	t.armLocked("join:"+b.RoomCode+":"+b.UserID, b, t.joinGrace, false)
}

// Resolve returns the participant behind connID.
func (t *Tracker) Resolve(connID string) (Binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.conns[connID]
	return b, ok
}

// IsConnected reports whether the participant has a live connection.
func (t *Tracker) IsConnected(code, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectedLocked(Binding{RoomCode: game.NormalizeCode(code), UserID: userID})
}

// ConnectionCount returns the number of live connections.
func (t *Tracker) ConnectionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// PendingCount returns the number of armed departure timers.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// DropRoom forgets every connection and timer of a disposed room.
func (t *Tracker) DropRoom(code string) {
	code = game.NormalizeCode(code)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, b := range t.conns {
		if b.RoomCode == code {
			delete(t.conns, id)
		}
	}
	for key, p := range t.pending {
		if p.binding.RoomCode == code {
			p.timer.Cancel()
			delete(t.pending, key)
		}
	}
}

func (t *Tracker) connectedLocked(b Binding) bool {
	for _, other := range t.conns {
		if other == b {
			return true
		}
	}
	return false
}

func (t *Tracker) armLocked(key string, b Binding, delay time.Duration, reconnect bool) {
	if old, ok := t.pending[key]; ok {
		old.timer.Cancel()
	}
	timer := NewDepartureTimer(delay, func() { t.settle(key, b) })
	t.pending[key] = &pendingDeparture{binding: b, timer: timer, reconnect: reconnect}
	timer.Start()
}

// settle runs when a grace period lapses. The registry lock is held across the
// departure so a reconnect either lands before it or sees the removal.
func (t *Tracker) settle(key string, b Binding) {
	t.mu.Lock()
	if _, ok := t.pending[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	if t.connectedLocked(b) {
		t.mu.Unlock()
		return
	}
	dep, err := t.departer.Depart(context.Background(), b.RoomCode, b.UserID)
	listener := t.listener
	t.mu.Unlock()

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.log.Debug().Str("room", b.RoomCode).Str("user", b.UserID).Msg("departure already settled")
			return
		}
		t.log.Error().Err(err).Str("room", b.RoomCode).Str("user", b.UserID).Msg("departure failed")
		return
	}
	if listener != nil {
		listener.OnDeparture(dep)
	}
}
