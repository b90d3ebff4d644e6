package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a member of a session.
type Participant struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	IsHost      bool      `json:"is_host"`
	IsActive    bool      `json:"is_active"`
	JoinedAt    time.Time `json:"joined_at"`
}

// NewParticipant creates an active, non-host member with a fresh id.
func NewParticipant(displayName string, now time.Time) Participant {
	return Participant{
		UserID:      uuid.NewString(),
		DisplayName: displayName,
		IsActive:    true,
		JoinedAt:    now,
	}
}
