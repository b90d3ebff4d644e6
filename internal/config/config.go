package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"golang.org/x/time/rate"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Security
	AllowedOrigins []string
	TicketSecret   string
	TicketTTL      time.Duration

	// Rate Limiting
	RateLimitAPI    rate.Limit
	RateLimitWS     rate.Limit
	RateLimitGuess  rate.Limit
	RateLimitStroke rate.Limit

	// Logging
	LogLevel  string
	LogPretty bool

	// WebSocket
	MaxMessageSize   int
	MaxStrokeHistory int

	// Game
	DepartureGrace    time.Duration
	JoinGrace         time.Duration
	PointsPerGuess    int
	RoundTimerSlack   time.Duration
	WordSelectTimeout time.Duration
	SessionRetention  time.Duration
	IdleRoomTTL       time.Duration
	SweepInterval     time.Duration

	// External services
	WordServiceURL     string
	WordServiceTimeout time.Duration
	DatabaseURL        string
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:               "8080",
		AllowedOrigins:     []string{"http://localhost:8080", "http://localhost:3000"},
		TicketSecret:       "dev-secret-change-me",
		TicketTTL:          domain.TicketTTL,
		RateLimitAPI:       domain.DefaultRateLimitAPI,
		RateLimitWS:        domain.DefaultRateLimitWS,
		RateLimitGuess:     domain.DefaultRateLimitGuess,
		RateLimitStroke:    domain.DefaultRateLimitStroke,
		LogLevel:           "info", // Options: debug, info, warn, error, silent
		MaxMessageSize:     domain.MaxMessageSize,
		MaxStrokeHistory:   domain.MaxStrokeHistory,
		DepartureGrace:     domain.DepartureGrace,
		JoinGrace:          domain.JoinGrace,
		PointsPerGuess:     domain.DefaultPointsPerGuess,
		RoundTimerSlack:    domain.RoundTimerSlack,
		WordSelectTimeout:  domain.WordSelectTimeout,
		SessionRetention:   domain.SessionRetention,
		IdleRoomTTL:        domain.IdleRoomTTL,
		SweepInterval:      domain.SweepInterval,
		WordServiceTimeout: domain.WordServiceTimeout,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Security
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if secret := os.Getenv("TICKET_SECRET"); secret != "" {
		cfg.TicketSecret = secret
	}
	envDuration("TICKET_TTL", &cfg.TicketTTL)

	// Rate Limiting
	envLimit("RATE_LIMIT_API", &cfg.RateLimitAPI)
	envLimit("RATE_LIMIT_WS", &cfg.RateLimitWS)
	envLimit("RATE_LIMIT_GUESS", &cfg.RateLimitGuess)
	envLimit("RATE_LIMIT_STROKE", &cfg.RateLimitStroke)

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if pretty, err := strconv.ParseBool(os.Getenv("LOG_PRETTY")); err == nil {
		cfg.LogPretty = pretty
	}

	// WebSocket
	envInt("MAX_MESSAGE_SIZE", &cfg.MaxMessageSize)
	envInt("MAX_STROKE_HISTORY", &cfg.MaxStrokeHistory)

	// Game
	envDuration("DEPARTURE_GRACE", &cfg.DepartureGrace)
	envDuration("JOIN_GRACE", &cfg.JoinGrace)
	envInt("POINTS_PER_GUESS", &cfg.PointsPerGuess)
	envDuration("ROUND_TIMER_SLACK", &cfg.RoundTimerSlack)
	envDuration("WORD_SELECT_TIMEOUT", &cfg.WordSelectTimeout)
	envDuration("SESSION_RETENTION", &cfg.SessionRetention)
	envDuration("IDLE_ROOM_TTL", &cfg.IdleRoomTTL)
	envDuration("SWEEP_INTERVAL", &cfg.SweepInterval)

	// External services
	if url := os.Getenv("WORD_SERVICE_URL"); url != "" {
		cfg.WordServiceURL = strings.TrimRight(url, "/")
	}
	envDuration("WORD_SERVICE_TIMEOUT", &cfg.WordServiceTimeout)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	return cfg
}

// envInt overwrites dst with a positive integer from key
func envInt(key string, dst *int) {
	if raw := os.Getenv(key); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 {
			*dst = val
		}
	}
}

func envLimit(key string, dst *rate.Limit) {
	if raw := os.Getenv(key); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 {
			*dst = rate.Limit(val)
		}
	}
}

// envDuration accepts Go durations ("3s") or plain seconds ("3")
func envDuration(key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		*dst = time.Duration(secs) * time.Second
	}
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
