package usecase

import (
	"fmt"
	"math/rand"
	"sync"
)

// Doodle-themed adjectives for generated display names
var adjectives = []string{
	// Drawing styles
	"Sketchy", "Scribbly", "Doodling", "Smudged", "Crayon", "Pastel", "Inky", "Dotted",
	"Wobbly", "Squiggly", "Shaded", "Outlined", "Blotchy", "Neon", "Glossy", "Chalky",

	// Moods
	"Brave", "Calm", "Sleepy", "Jolly", "Grumpy", "Sneaky", "Zippy", "Dizzy",
	"Curious", "Cheeky", "Fuzzy", "Bouncy", "Clumsy", "Witty", "Lucky", "Quirky",
	"Mighty", "Humble", "Speedy", "Chilly", "Sunny", "Stormy", "Spicy", "Salty",
}

// Nouns for generated display names
var nouns = []string{
	// Animals
	"Otter", "Fox", "Panda", "Koala", "Gecko", "Walrus", "Badger", "Heron",
	"Llama", "Ferret", "Puffin", "Beaver", "Moose", "Lemur", "Newt", "Yak",

	// Art supplies
	"Pencil", "Eraser", "Brush", "Marker", "Crayon", "Easel", "Palette", "Canvas",
	"Sharpener", "Ruler", "Stencil", "Smudge", "Sketch", "Doodle", "Scribble", "Squiggle",
}

// NameGenerator hands out display names that are unique among live players
type NameGenerator struct {
	mu       sync.RWMutex
	existing map[string]bool
}

func NewNameGenerator() *NameGenerator {
	return &NameGenerator{
		existing: make(map[string]bool),
	}
}

// Generate creates an unused "Adjective Noun" name
func (g *NameGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var name string
	maxAttempts := 100

	for i := 0; i < maxAttempts; i++ {
		name = fmt.Sprintf("%s %s", adjectives[rand.Intn(len(adjectives))], nouns[rand.Intn(len(nouns))])
		if !g.existing[name] {
			break
		}
		if i == maxAttempts-1 {
			name = fmt.Sprintf("%s %d", name, rand.Intn(999))
		}
	}

	g.existing[name] = true
	return name
}

// Reserve marks a chosen name as in use
func (g *NameGenerator) Reserve(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.existing[name] = true
}

// Release frees a name when its player leaves
func (g *NameGenerator) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.existing, name)
}

// ActiveCount returns the number of names in use
func (g *NameGenerator) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.existing)
}
