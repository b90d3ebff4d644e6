// Package words supplies drawing words. An optional HTTP word service is
// consulted first and a built-in table always answers when it cannot.
package words

import "context"

// Suggestion is a single word for a topic.
type Suggestion struct {
	Topic string `json:"topic"`
	Word  string `json:"word"`
}

// TopicWords are the options offered to a drawer.
type TopicWords struct {
	Topic         string   `json:"topic"`
	AIWords       []string `json:"ai_words"`
	FallbackWords []string `json:"fallback_words"`
}

// Source generates words and reactions.
type Source interface {
	GenerateWordSuggestion(ctx context.Context, topic string) (Suggestion, error)
	GenerateWordsByTopic(ctx context.Context, topic string) (TopicWords, error)
	React(ctx context.Context, guess, word string) (string, error)
}
