package game

import "sync"

// Guard is a per-room try-lock. At most one round transition per room is in flight;
// a competing trigger is dropped instead of queued.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

// TryAcquire marks the room busy. It returns false if a transition is already running.
func (g *Guard) TryAcquire(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[code]; ok {
		return false
	}
	g.busy[code] = struct{}{}
	return true
}

// Release clears the busy mark. Releasing an idle room is a no-op.
func (g *Guard) Release(code string) {
	g.mu.Lock()
	delete(g.busy, code)
	g.mu.Unlock()
}

// InFlight reports whether a transition holds the room.
func (g *Guard) InFlight(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[code]
	return ok
}

// Run executes fn while holding the room. The release is deferred so a panic
// or error inside fn never leaves the room locked. ran is false when dropped.
func (g *Guard) Run(code string, fn func() error) (ran bool, err error) {
	if !g.TryAcquire(code) {
		return false, nil
	}
	defer g.Release(code)
	return true, fn()
}
