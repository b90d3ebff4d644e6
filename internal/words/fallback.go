package words

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
)

// optionsPerTopic is how many table words are offered at once
const optionsPerTopic = 3

var defaultTable = map[string][]string{
	"animals": {"cat", "dog", "giraffe", "elephant", "penguin", "octopus", "kangaroo", "snail", "owl", "shark"},
	"food":    {"pizza", "banana", "sandwich", "ice cream", "pancake", "carrot", "sushi", "donut", "cheese", "popcorn"},
	"objects": {"umbrella", "lamp", "scissors", "guitar", "clock", "ladder", "camera", "key", "bicycle", "candle"},
	"places":  {"beach", "castle", "library", "volcano", "airport", "island", "bridge", "farm", "desert", "museum"},
	"sports":  {"soccer", "tennis", "surfing", "bowling", "archery", "boxing", "skiing", "golf", "karate", "rowing"},
	"nature":  {"rainbow", "tornado", "mountain", "waterfall", "cactus", "moon", "cloud", "river", "snowflake", "tree"},
}

// Fallback is the deterministic local word table. Picks rotate through each
// list in order so repeated calls vary without randomness.
type Fallback struct {
	table  map[string][]string
	topics []string
	next   atomic.Uint64
}

// NewFallback builds a table; nil uses the built-in words.
func NewFallback(table map[string][]string) *Fallback {
	if len(table) == 0 {
		table = defaultTable
	}
	topics := make([]string, 0, len(table))
	for t := range table {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return &Fallback{table: table, topics: topics}
}

// Topics lists the known topics in sorted order.
func (f *Fallback) Topics() []string {
	return append([]string(nil), f.topics...)
}

// resolve maps a requested topic to a known one; unknown or empty topics rotate.
func (f *Fallback) resolve(topic string, n uint64) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if _, ok := f.table[topic]; ok {
		return topic
	}
	return f.topics[n%uint64(len(f.topics))]
}

func (f *Fallback) GenerateWordSuggestion(_ context.Context, topic string) (Suggestion, error) {
	n := f.next.Add(1) - 1
	t := f.resolve(topic, n)
	list := f.table[t]
	return Suggestion{Topic: t, Word: list[n%uint64(len(list))]}, nil
}

func (f *Fallback) GenerateWordsByTopic(_ context.Context, topic string) (TopicWords, error) {
	n := f.next.Add(1) - 1
	t := f.resolve(topic, n)
	list := f.table[t]
	count := optionsPerTopic
	if count > len(list) {
		count = len(list)
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, list[(n+uint64(i))%uint64(len(list))])
	}
	return TopicWords{Topic: t, AIWords: []string{}, FallbackWords: out}, nil
}

// React has nothing to say without a word service.
func (f *Fallback) React(_ context.Context, _, _ string) (string, error) {
	return "", nil
}
