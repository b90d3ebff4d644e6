package ws

import (
	"sync"
	"time"
)

type armed struct {
	timer    *time.Timer
	deadline time.Time
}

// RoundTimers holds the server-side backstops of each room: the guess window
// of a drawing round and the drawer's word selection deadline.
type RoundTimers struct {
	mu      sync.Mutex
	rounds  map[string]*armed
	selects map[string]*armed
	now     func() time.Time
}

func NewRoundTimers() *RoundTimers {
	return &RoundTimers{
		rounds:  make(map[string]*armed),
		selects: make(map[string]*armed),
		now:     time.Now,
	}
}

// arm replaces any timer of code in set. The callback forgets its own entry
// before running fn so a re-arm from inside fn is kept.
func (t *RoundTimers) arm(set map[string]*armed, code string, d time.Duration, fn func()) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := set[code]; ok {
		prev.timer.Stop()
	}
	a := &armed{deadline: t.now().Add(d)}
	a.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if set[code] == a {
			delete(set, code)
		}
		t.mu.Unlock()
		fn()
	})
	set[code] = a
	return a.deadline
}

func (t *RoundTimers) stop(set map[string]*armed, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := set[code]; ok {
		a.timer.Stop()
		delete(set, code)
	}
}

// ArmRound schedules fn when the guess window of code lapses
func (t *RoundTimers) ArmRound(code string, d time.Duration, fn func()) time.Time {
	return t.arm(t.rounds, code, d, fn)
}

// ArmSelect schedules fn when the drawer of code runs out of time to pick
func (t *RoundTimers) ArmSelect(code string, d time.Duration, fn func()) time.Time {
	return t.arm(t.selects, code, d, fn)
}

func (t *RoundTimers) StopRound(code string) {
	t.stop(t.rounds, code)
}

func (t *RoundTimers) StopSelect(code string) {
	t.stop(t.selects, code)
}

// Stop cancels every timer of code
func (t *RoundTimers) Stop(code string) {
	t.StopRound(code)
	t.StopSelect(code)
}

// SelectDeadline reports when the pending word selection of code expires
func (t *RoundTimers) SelectDeadline(code string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.selects[code]
	if !ok {
		return time.Time{}, false
	}
	return a.deadline, true
}

// Pending reports which timers of code are armed
func (t *RoundTimers) Pending(code string) (round, sel bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, round = t.rounds[code]
	_, sel = t.selects[code]
	return round, sel
}
