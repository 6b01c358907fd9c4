package token

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qrattend/internal/geo"
)

// PGStore persists tokens in Postgres. The claim is a conditional UPDATE
// checked by rows-affected, so the check and the flip are one statement at
// the storage layer.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Insert writes a new token.
func (p *PGStore) Insert(ctx context.Context, t Token) error {
	var lat, lon sql.NullFloat64
	if t.Anchor != nil {
		lat = sql.NullFloat64{Float64: t.Anchor.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: t.Anchor.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance_tokens (id, code, subject_id, session_id, anchor_lat, anchor_lon, allowed_radius, expires_at, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, t.ID, t.Code, t.SubjectID, t.SessionID, lat, lon, t.AllowedRadius, t.ExpiresAt, t.Active, t.CreatedAt)
	return err
}

// GetByCode returns the token with the given redemption code.
func (p *PGStore) GetByCode(ctx context.Context, code string) (Token, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, code, subject_id, session_id, anchor_lat, anchor_lon, allowed_radius, expires_at, is_active, created_at
		FROM attendance_tokens WHERE code = $1
	`, code)

	var t Token
	var lat, lon sql.NullFloat64
	if err := row.Scan(&t.ID, &t.Code, &t.SubjectID, &t.SessionID, &lat, &lon, &t.AllowedRadius, &t.ExpiresAt, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, err
	}
	if lat.Valid && lon.Valid {
		t.Anchor = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	return t, nil
}

// Claim deactivates an active, unexpired token and reports whether this
// caller won. Zero rows affected means another redemption got there first
// or the token expired between check and claim.
func (p *PGStore) Claim(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE attendance_tokens
		SET is_active = FALSE
		WHERE code = $1 AND is_active = TRUE AND expires_at >= $2
	`, code, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
