// Package auth issues the signed tickets a participant presents when opening
// or reopening a game socket.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
)

// ErrInvalidTicket is returned for malformed, forged or expired tickets.
var ErrInvalidTicket = errors.New("invalid ticket")

// Ticket identifies a participant of a room.
type Ticket struct {
	RoomCode string
	UserID   string
}

type claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tickets with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = domain.TicketTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a ticket for userID in room code.
func (i *Issuer) Issue(code, userID string) (string, error) {
	now := i.now()
	c := claims{
		Room: code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(i.secret)
}

// Parse verifies a ticket and returns who it belongs to.
func (i *Issuer) Parse(raw string) (Ticket, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if c.Subject == "" || c.Room == "" {
		return Ticket{}, fmt.Errorf("%w: missing subject or room", ErrInvalidTicket)
	}
	return Ticket{RoomCode: c.Room, UserID: c.Subject}, nil
}
