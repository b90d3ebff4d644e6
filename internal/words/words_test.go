package words

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_KnownTopicRotates(t *testing.T) {
	f := NewFallback(map[string][]string{"colors": {"red", "green"}})

	first, err := f.GenerateWordSuggestion(context.Background(), " Colors ")
	require.NoError(t, err)
	second, _ := f.GenerateWordSuggestion(context.Background(), "colors")
	third, _ := f.GenerateWordSuggestion(context.Background(), "colors")

	assert.Equal(t, "colors", first.Topic)
	assert.Equal(t, []string{"red", "green", "red"}, []string{first.Word, second.Word, third.Word})
}

func TestFallback_UnknownTopicUsesTable(t *testing.T) {
	f := NewFallback(nil)

	s, err := f.GenerateWordSuggestion(context.Background(), "quantum chromodynamics")
	require.NoError(t, err)
	assert.Contains(t, f.Topics(), s.Topic)
	assert.NotEmpty(t, s.Word)
}

func TestFallback_ReactIsSilent(t *testing.T) {
	f := NewFallback(nil)
	for i := 0; i < 3; i++ {
		text, err := f.React(context.Background(), "zebra", "giraffe")
		require.NoError(t, err)
		assert.Empty(t, text)
	}

	r := NewResilient(nil, f, time.Second, zerolog.Nop())
	text, err := r.React(context.Background(), "zebra", "giraffe")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFallback_WordsByTopic(t *testing.T) {
	f := NewFallback(map[string][]string{"x": {"a", "b", "c", "d"}, "y": {"z"}})

	tw, err := f.GenerateWordsByTopic(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, tw.FallbackWords)
	assert.Empty(t, tw.AIWords)

	tw, _ = f.GenerateWordsByTopic(context.Background(), "x")
	assert.Equal(t, []string{"b", "c", "d"}, tw.FallbackWords)

	tw, _ = f.GenerateWordsByTopic(context.Background(), "y")
	assert.Equal(t, []string{"z"}, tw.FallbackWords)
}

func newWordServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/")
}

func TestClient_Endpoints(t *testing.T) {
	c := newWordServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/suggest":
			json.NewEncoder(w).Encode(map[string]string{"topic": body["topic"], "word": " comet "})
		case "/words":
			json.NewEncoder(w).Encode(map[string]any{"words": []string{"comet", " ", "nebula"}})
		case "/react":
			json.NewEncoder(w).Encode(map[string]string{"text": "close to " + body["word"]})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	s, err := c.GenerateWordSuggestion(ctx, "space")
	require.NoError(t, err)
	assert.Equal(t, Suggestion{Topic: "space", Word: "comet"}, s)

	tw, err := c.GenerateWordsByTopic(ctx, "space")
	require.NoError(t, err)
	assert.Equal(t, "space", tw.Topic)
	assert.Equal(t, []string{"comet", "nebula"}, tw.AIWords)

	text, err := c.React(ctx, "comit", "comet")
	require.NoError(t, err)
	assert.Equal(t, "close to comet", text)
}

func TestClient_Errors(t *testing.T) {
	c := newWordServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/suggest":
			w.WriteHeader(http.StatusBadGateway)
		case "/words":
			w.Write([]byte("not json"))
		default:
			json.NewEncoder(w).Encode(map[string]any{"words": []string{}})
		}
	})
	ctx := context.Background()

	_, err := c.GenerateWordSuggestion(ctx, "space")
	assert.ErrorContains(t, err, "status 502")

	_, err = c.GenerateWordsByTopic(ctx, "space")
	assert.ErrorContains(t, err, "decode")
}

func TestResilient_FallsBackOnTimeout(t *testing.T) {
	c := newWordServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	var fallbacks atomic.Int32
	r := NewResilient(c, NewFallback(map[string][]string{"space": {"star", "moon", "sun"}}), 30*time.Millisecond, zerolog.Nop())
	r.OnFallback = func(string) { fallbacks.Add(1) }

	start := time.Now()
	s, err := r.GenerateWordSuggestion(context.Background(), "space")
	require.NoError(t, err)
	assert.Equal(t, "star", s.Word)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	tw, err := r.GenerateWordsByTopic(context.Background(), "space")
	require.NoError(t, err)
	assert.Empty(t, tw.AIWords)
	assert.Len(t, tw.FallbackWords, 3)

	text, err := r.React(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Empty(t, text, "the local table stays quiet")

	assert.Equal(t, int32(3), fallbacks.Load())
}

func TestResilient_MergesServiceAndTable(t *testing.T) {
	c := newWordServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"topic": "food", "words": []string{"ramen"}})
	})
	r := NewResilient(c, NewFallback(map[string][]string{"food": {"pie", "tea", "jam"}}), time.Second, zerolog.Nop())

	tw, err := r.GenerateWordsByTopic(context.Background(), "food")
	require.NoError(t, err)
	assert.Equal(t, []string{"ramen"}, tw.AIWords)
	assert.Equal(t, []string{"pie", "tea", "jam"}, tw.FallbackWords)
}

func TestResilient_NoPrimary(t *testing.T) {
	r := NewResilient(nil, nil, 0, zerolog.Nop())

	s, err := r.GenerateWordSuggestion(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Word)
}
