package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes caps what is read from the word service
const maxResponseBytes = 64 << 10

// Client talks to the external word service:
//
//	POST {base}/suggest {"topic"}          -> {"topic","word"}
//	POST {base}/words   {"topic"}          -> {"topic","words":[...]}
//	POST {base}/react   {"guess","word"}   -> {"text"}
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) GenerateWordSuggestion(ctx context.Context, topic string) (Suggestion, error) {
	var out Suggestion
	if err := c.post(ctx, "/suggest", map[string]string{"topic": topic}, &out); err != nil {
		return Suggestion{}, err
	}
	out.Word = strings.TrimSpace(out.Word)
	if out.Word == "" {
		return Suggestion{}, fmt.Errorf("word service returned an empty word")
	}
	if out.Topic == "" {
		out.Topic = topic
	}
	return out, nil
}

func (c *Client) GenerateWordsByTopic(ctx context.Context, topic string) (TopicWords, error) {
	var out struct {
		Topic string   `json:"topic"`
		Words []string `json:"words"`
	}
	if err := c.post(ctx, "/words", map[string]string{"topic": topic}, &out); err != nil {
		return TopicWords{}, err
	}
	words := make([]string, 0, len(out.Words))
	for _, w := range out.Words {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return TopicWords{}, fmt.Errorf("word service returned no words for %q", topic)
	}
	if out.Topic == "" {
		out.Topic = topic
	}
	return TopicWords{Topic: out.Topic, AIWords: words, FallbackWords: []string{}}, nil
}

func (c *Client) React(ctx context.Context, guess, word string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/react", map[string]string{"guess": guess, "word": word}, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode word service request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build word service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "goat-doodle/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call word service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("word service %s returned status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read word service response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode word service response: %w", err)
	}
	return nil
}
