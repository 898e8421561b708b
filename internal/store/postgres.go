package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Postgres stores drawing records in a single table with jsonb stroke and
// text-object columns. The append-only merge runs server side with the jsonb
// || operator, so concurrent saves cannot lose each other's tails.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the drawings table if it is missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS drawings (
			session_id   TEXT PRIMARY KEY,
			strokes      JSONB NOT NULL DEFAULT '[]'::jsonb,
			text_objects JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate drawings table: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, sessionID string, strokes []models.StrokePoint, textObjects []models.TextObject) (*models.DrawingRecord, error) {
	key := strings.TrimSpace(sessionID)

	// Empty slices must encode as [] rather than null; jsonb || rejects null.
	if strokes == nil {
		strokes = []models.StrokePoint{}
	}
	if textObjects == nil {
		textObjects = []models.TextObject{}
	}

	strokesJSON, err := json.Marshal(strokes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode strokes: %w", err)
	}
	textJSON, err := json.Marshal(textObjects)
	if err != nil {
		return nil, fmt.Errorf("failed to encode text objects: %w", err)
	}

	query := `
		INSERT INTO drawings (session_id, strokes, text_objects, created_at)
		VALUES ($1, $2::jsonb, $3::jsonb, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET strokes = drawings.strokes || excluded.strokes,
		    text_objects = drawings.text_objects || excluded.text_objects
		RETURNING session_id, strokes, text_objects, created_at
	`
	row := p.db.QueryRowContext(ctx, query, key, strokesJSON, textJSON, time.Now().UTC())
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("failed to save drawing %q: %w", key, err)
	}
	return rec, nil
}

func (p *Postgres) Load(ctx context.Context, sessionID string) (*models.DrawingRecord, error) {
	key := strings.TrimSpace(sessionID)

	query := `
		SELECT session_id, strokes, text_objects, created_at
		FROM drawings
		WHERE session_id = $1
	`
	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load drawing %q: %w", key, err)
	}
	return rec, nil
}

func scanRecord(row *sql.Row) (*models.DrawingRecord, error) {
	var rec models.DrawingRecord
	var strokesRaw, textRaw []byte
	if err := row.Scan(&rec.SessionID, &strokesRaw, &textRaw, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(strokesRaw, &rec.Strokes); err != nil {
		return nil, fmt.Errorf("failed to decode strokes: %w", err)
	}
	if err := json.Unmarshal(textRaw, &rec.TextObjects); err != nil {
		return nil, fmt.Errorf("failed to decode text objects: %w", err)
	}
	return &rec, nil
}
