package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Memory is a map-backed Store. The drawing service falls back to it when no
// DATABASE_URL is configured, and tests use it directly.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*models.DrawingRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*models.DrawingRecord)}
}

func (m *Memory) Save(ctx context.Context, sessionID string, strokes []models.StrokePoint, textObjects []models.TextObject) (*models.DrawingRecord, error) {
	key := strings.TrimSpace(sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = &models.DrawingRecord{SessionID: key, CreatedAt: time.Now().UTC()}
		m.records[key] = rec
	}
	rec.Strokes = append(rec.Strokes, strokes...)
	rec.TextObjects = append(rec.TextObjects, textObjects...)
	return copyRecord(rec), nil
}

func (m *Memory) Load(ctx context.Context, sessionID string) (*models.DrawingRecord, error) {
	key := strings.TrimSpace(sessionID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func copyRecord(rec *models.DrawingRecord) *models.DrawingRecord {
	return &models.DrawingRecord{
		SessionID:   rec.SessionID,
		Strokes:     append([]models.StrokePoint(nil), rec.Strokes...),
		TextObjects: append([]models.TextObject(nil), rec.TextObjects...),
		CreatedAt:   rec.CreatedAt,
	}
}
