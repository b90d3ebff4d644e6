package ws

import (
	"sync"

	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/rs/zerolog"
)

// Rooms manages one hub per live room code
type Rooms struct {
	mu   sync.RWMutex
	hubs map[string]*Hub
	log  zerolog.Logger
}

// NewRooms creates a new hub registry
func NewRooms(log zerolog.Logger) *Rooms {
	return &Rooms{
		hubs: make(map[string]*Hub),
		log:  log,
	}
}

// Hub returns the hub for code, starting one if needed
func (rm *Rooms) Hub(code string) *Hub {
	code = game.NormalizeCode(code)

	rm.mu.RLock()
	hub, ok := rm.hubs[code]
	rm.mu.RUnlock()
	if ok {
		return hub
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if hub, ok := rm.hubs[code]; ok {
		return hub
	}
	hub = NewHub(code, rm.log)
	rm.hubs[code] = hub
	go hub.Run()
	return hub
}

// Lookup returns the hub for code without creating one
func (rm *Rooms) Lookup(code string) (*Hub, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	hub, ok := rm.hubs[game.NormalizeCode(code)]
	return hub, ok
}

// Delete closes and forgets the hub for code
func (rm *Rooms) Delete(code string) {
	code = game.NormalizeCode(code)

	rm.mu.Lock()
	hub, ok := rm.hubs[code]
	delete(rm.hubs, code)
	rm.mu.Unlock()

	if ok {
		hub.Close()
	}
}

// Count returns the number of live hubs
func (rm *Rooms) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.hubs)
}

// CloseAll shuts every hub down
func (rm *Rooms) CloseAll() {
	rm.mu.Lock()
	hubs := rm.hubs
	rm.hubs = make(map[string]*Hub)
	rm.mu.Unlock()

	for _, hub := range hubs {
		hub.Close()
	}
}
