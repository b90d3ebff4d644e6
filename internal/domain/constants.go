package domain

import "time"

// ==== Room Limits ====

const (
	MinCapacity = 2
	MaxCapacity = 20

	MinGuessWindowSeconds = 30
	MaxGuessWindowSeconds = 300

	MinTotalRounds = 1
	MaxTotalRounds = 10

	// MinPlayersToStart is the number of participants needed before the host can start
	MinPlayersToStart = 2

	MaxDisplayNameLength = 24
)

// Defaults applied when a create request leaves a field at zero.
const (
	DefaultCapacity           = 8
	DefaultGuessWindowSeconds = 80
	DefaultTotalRounds        = 3
)

// ==== WebSocket Constants ====

// MaxMessageSize is the maximum allowed WebSocket message size in bytes
const MaxMessageSize = 4096

// MaxStrokeHistory is the number of stroke events replayed to late joiners
const MaxStrokeHistory = 5000

// ==== Scoring ====

// DefaultPointsPerGuess is awarded once per round to each correct guesser
const DefaultPointsPerGuess = 50

// CloseGuessDistance is the edit distance under which a wrong guess is reported as close
const CloseGuessDistance = 2

// ==== Rate Limit Constants ====

const (
	// DefaultRateLimitAPI is the default rate limit for API endpoints (requests/sec)
	DefaultRateLimitAPI = 10

	// DefaultRateLimitWS is the default rate limit for WebSocket upgrades (req/sec)
	DefaultRateLimitWS = 5

	// DefaultRateLimitGuess is the per-connection guess/chat rate (msg/sec)
	DefaultRateLimitGuess = 3

	// DefaultRateLimitStroke is the per-connection drawing event rate (msg/sec)
	DefaultRateLimitStroke = 120
)

// ==== Timing Constants ====

const (
	// DepartureGrace is how long a dropped connection may take to come back
	DepartureGrace = 3 * time.Second

	// JoinGrace is how long a joiner has to open their socket after the HTTP join
	JoinGrace = 30 * time.Second

	// RoundTimerSlack is added to the guess window before the server ends a round itself
	RoundTimerSlack = 2 * time.Second

	// WordSelectTimeout is how long a drawer may take to pick a word
	WordSelectTimeout = 20 * time.Second

	// WordServiceTimeout bounds each call to the external word service
	WordServiceTimeout = 3 * time.Second

	// SessionRetention is how long a finished session stays readable
	SessionRetention = 10 * time.Minute

	// IdleRoomTTL is how long an empty waiting room survives
	IdleRoomTTL = 5 * time.Minute

	// SweepInterval is how often the janitor scans the store
	SweepInterval = time.Minute

	// TicketTTL is the lifetime of a socket ticket
	TicketTTL = 12 * time.Hour
)
