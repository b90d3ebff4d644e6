package presence

import (
	"sync"
	"time"
)

type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerCancelled
	timerFired
)

// DepartureTimer runs its callback once after a delay unless cancelled first.
// Fire may be called directly to settle early; the callback still runs at most once.
type DepartureTimer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
	state timerState
}

func NewDepartureTimer(delay time.Duration, fn func()) *DepartureTimer {
	return &DepartureTimer{delay: delay, fn: fn}
}

// Start arms the timer. Starting twice, or after Cancel/Fire, does nothing.
func (t *DepartureTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != timerIdle {
		return
	}
	t.state = timerRunning
	t.timer = time.AfterFunc(t.delay, func() { t.Fire() })
}

// Cancel stops the timer. It returns false if the callback already ran.
func (t *DepartureTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == timerFired {
		return false
	}
	t.state = timerCancelled
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Fire runs the callback now unless it was cancelled or already ran.
func (t *DepartureTimer) Fire() bool {
	t.mu.Lock()
	if t.state == timerCancelled || t.state == timerFired {
		t.mu.Unlock()
		return false
	}
	t.state = timerFired
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	t.fn()
	return true
}

// Pending reports whether the timer is armed and has not settled.
func (t *DepartureTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerRunning
}
