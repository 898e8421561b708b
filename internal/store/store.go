// Package store persists drawing sessions. Records are keyed by the trimmed
// session id, so ids differing only in surrounding whitespace resolve to the
// same record.
package store

import (
	"context"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Store is the persistence gateway for drawing sessions.
//
// Save appends the given strokes and text objects to the session's record,
// creating it on first save, and returns the full merged record. It never
// replaces or deduplicates: callers must only submit the delta since their
// last save.
//
// Load reports a missing record as (nil, nil); only storage faults are
// errors.
type Store interface {
	Save(ctx context.Context, sessionID string, strokes []models.StrokePoint, textObjects []models.TextObject) (*models.DrawingRecord, error)
	Load(ctx context.Context, sessionID string) (*models.DrawingRecord, error)
}
