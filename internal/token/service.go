package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/geo"
)

const (
	defaultRadiusMeters = 100.0
	defaultTTL          = 30 * time.Minute
)

// IssueParams describes a token to create. The issuer collaborator supplies
// subject, session and geofence explicitly; the service never reaches for
// ambient defaults beyond radius and TTL fallbacks.
type IssueParams struct {
	SubjectID     string
	SessionID     string
	Anchor        *geo.Point
	AllowedRadius float64
	TTL           time.Duration
}

// Outcome is the result of a committed redemption. LocationChecked is false
// when the token carries no anchor, in which case Verification is zero and
// not gating.
type Outcome struct {
	Committed       bool
	Token           Token
	RedeemerID      string
	RedeemedAt      time.Time
	LocationChecked bool
	Verification    geo.Result
}

// Service owns the token state machine. Every redemption entry point must
// call Redeem; none may carry its own copy of the active/expired check.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue creates a fresh active token. The code embeds a UUID, so uniqueness
// is a property of the identifier scheme, not of chance.
func (s *Service) Issue(ctx context.Context, p IssueParams) (Token, error) {
	if p.SubjectID == "" || p.SessionID == "" {
		return Token{}, errors.New("subject and session required")
	}
	if p.Anchor != nil && !p.Anchor.Valid() {
		return Token{}, fmt.Errorf("invalid anchor coordinates (%v, %v)", p.Anchor.Lat, p.Anchor.Lon)
	}
	radius := p.AllowedRadius
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := s.now().UTC()
	t := Token{
		ID:            uuid.NewString(),
		Code:          "att-" + uuid.NewString(),
		SubjectID:     p.SubjectID,
		SessionID:     p.SessionID,
		Anchor:        p.Anchor,
		AllowedRadius: radius,
		ExpiresAt:     now.Add(ttl),
		Active:        true,
		CreatedAt:     now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// Redeem consumes a token exactly once. Preconditions are checked in order:
// exists, active, unexpired. On success the claim and the verification are
// one indivisible step from the perspective of any concurrent caller; a
// geofence miss still commits, the verdict is a reportable outcome of the
// redemption, not a rejection of it.
func (s *Service) Redeem(ctx context.Context, code string, reading geo.Reading, redeemerID string) (Outcome, error) {
	t, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return Outcome{}, err
	}
	if !t.Active {
		return Outcome{}, ErrInactive
	}
	now := s.now().UTC()
	if t.Expired(now) {
		return Outcome{}, ErrExpired
	}

	claimed, err := s.store.Claim(ctx, code, now)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		log.Printf("token %s: redemption by %s lost the race", t.ID, redeemerID)
		return Outcome{}, ErrLostRace
	}
	t.Active = false

	out := Outcome{
		Committed:  true,
		Token:      t,
		RedeemerID: redeemerID,
		RedeemedAt: now,
	}
	if t.Anchor != nil {
		out.LocationChecked = true
		out.Verification = geo.WithinRadius(reading, geo.Reading{Point: *t.Anchor}, t.AllowedRadius)
	}
	return out, nil
}
