package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.DepartureGrace)
	assert.Equal(t, 50, cfg.PointsPerGuess)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.WordServiceURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_GUESS", "7")
	t.Setenv("RATE_LIMIT_STROKE", "nope")
	t.Setenv("DEPARTURE_GRACE", "500ms")
	t.Setenv("WORD_SELECT_TIMEOUT", "15")
	t.Setenv("POINTS_PER_GUESS", "-5")
	t.Setenv("WORD_SERVICE_URL", "http://words.local/")
	t.Setenv("LOG_PRETTY", "true")

	cfg := LoadFromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, rate.Limit(7), cfg.RateLimitGuess)
	assert.Equal(t, DefaultConfig().RateLimitStroke, cfg.RateLimitStroke)
	assert.Equal(t, 500*time.Millisecond, cfg.DepartureGrace)
	assert.Equal(t, 15*time.Second, cfg.WordSelectTimeout)
	assert.Equal(t, 50, cfg.PointsPerGuess)
	assert.Equal(t, "http://words.local", cfg.WordServiceURL)
	assert.True(t, cfg.LogPretty)
}
