package token

import (
	"context"
	"errors"
	"time"

	"qrattend/internal/geo"
)

// Redemption precondition failures. These are ordinary outcomes reported to
// the caller, kept distinct so the UI can say "already used" vs "expired".
var (
	ErrNotFound = errors.New("attendance token not found")
	ErrInactive = errors.New("attendance token already used")
	ErrExpired  = errors.New("attendance token expired")
)

// ErrLostRace is returned to a caller whose redemption passed the
// preconditions but lost the claim to a concurrent redeemer. It matches
// ErrInactive under errors.Is so callers treat it as "already used", while
// audit logging and metrics can still tell the two apart.
var ErrLostRace error = lostRaceError{}

type lostRaceError struct{}

func (lostRaceError) Error() string { return "attendance token claimed by a concurrent redemption" }

func (lostRaceError) Is(target error) bool { return target == ErrInactive }

// Token is one teacher-issued, time-boxed, optionally geofenced invitation
// to check in. Exactly one successful redemption deactivates it; a token
// past ExpiresAt is spent regardless of the Active flag.
type Token struct {
	ID            string
	Code          string
	SubjectID     string
	SessionID     string
	Anchor        *geo.Point
	AllowedRadius float64
	ExpiresAt     time.Time
	Active        bool
	CreatedAt     time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Store persists tokens. Claim is the single mutation path: it must flip
// Active to false only for a token that is still active and unexpired, and
// must do so atomically with respect to concurrent claims on the same token.
type Store interface {
	Insert(ctx context.Context, t Token) error
	GetByCode(ctx context.Context, code string) (Token, error)
	Claim(ctx context.Context, code string, now time.Time) (bool, error)
}
