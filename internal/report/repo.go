package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance reports in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new report. The schema enforces one report per token and
// redeemer; a duplicate insert surfaces as an error for the caller to log.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RedeemedAt.IsZero() {
		rec.RedeemedAt = time.Now().UTC()
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return Record{}, fmt.Errorf("marshal verification details: %w", err)
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_reports (id, token_id, redeemer_id, subject_id, session_id, latitude, longitude, accuracy, location_verified, verification_details, redeemed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at
	`, rec.ID, rec.TokenID, rec.RedeemerID, rec.SubjectID, rec.SessionID,
		rec.Latitude, rec.Longitude, rec.Accuracy, rec.Verified, details, rec.RedeemedAt)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns reports with basic filters, newest first.
func (r *Repository) List(ctx context.Context, subjectID, redeemerID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, token_id, redeemer_id, subject_id, session_id, latitude, longitude, accuracy, location_verified, verification_details, redeemed_at, created_at FROM attendance_reports`
	args := []any{}
	where := ""
	if subjectID != "" {
		args = append(args, subjectID)
		where = fmt.Sprintf(" WHERE subject_id = $%d", len(args))
	}
	if redeemerID != "" {
		args = append(args, redeemerID)
		if where == "" {
			where = fmt.Sprintf(" WHERE redeemer_id = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND redeemer_id = $%d", len(args))
		}
	}
	args = append(args, limit, offset)
	query += where + fmt.Sprintf(" ORDER BY redeemed_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var details []byte
		if err := rows.Scan(&rec.ID, &rec.TokenID, &rec.RedeemerID, &rec.SubjectID, &rec.SessionID,
			&rec.Latitude, &rec.Longitude, &rec.Accuracy, &rec.Verified, &details, &rec.RedeemedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, fmt.Errorf("unmarshal verification details for %s: %w", rec.ID, err)
			}
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
