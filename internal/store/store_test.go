package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

func strokes(xs ...float64) []models.StrokePoint {
	out := make([]models.StrokePoint, 0, len(xs))
	for i, x := range xs {
		out = append(out, models.StrokePoint{X: x, Y: x, Dragging: i > 0, LineWidth: 3, Color: "black"})
	}
	return out
}

func TestSaveCreatesRecord(t *testing.T) {
	m := NewMemory()

	rec, err := m.Save(context.Background(), "sess", strokes(1, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, "sess", rec.SessionID)
	assert.Equal(t, strokes(1, 2), rec.Strokes)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSaveAppendsInCallOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Save(ctx, "sess", strokes(1, 2), nil)
	require.NoError(t, err)
	rec, err := m.Save(ctx, "sess", strokes(3), nil)
	require.NoError(t, err)

	want := append(strokes(1, 2), strokes(3)...)
	assert.Equal(t, want, rec.Strokes, "saves append, never replace or deduplicate")
}

func TestResentDataDuplicates(t *testing.T) {
	// The merge is blindly additive: resending the same delta doubles it.
	// Delta discipline lives in the syncer, not here.
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Save(ctx, "sess", strokes(1), nil)
	require.NoError(t, err)
	rec, err := m.Save(ctx, "sess", strokes(1), nil)
	require.NoError(t, err)
	assert.Len(t, rec.Strokes, 2)
}

func TestTextObjectsAppend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Save(ctx, "sess", nil, []models.TextObject{{ID: 1, Text: "hello", X: 10, Y: 20}})
	require.NoError(t, err)
	rec, err := m.Save(ctx, "sess", nil, []models.TextObject{{ID: 2, Text: "world", X: 30, Y: 40}})
	require.NoError(t, err)

	require.Len(t, rec.TextObjects, 2)
	assert.Equal(t, int64(1), rec.TextObjects[0].ID)
	assert.Equal(t, int64(2), rec.TextObjects[1].ID)
}

func TestTrimmedIDsShareRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Save(ctx, "abc ", strokes(1), nil)
	require.NoError(t, err)

	rec, err := m.Load(ctx, " abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc", rec.SessionID)
	assert.Equal(t, strokes(1), rec.Strokes)
}

func TestLoadMissingIsNotAnError(t *testing.T) {
	m := NewMemory()

	rec, err := m.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestReturnedRecordIsACopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Save(ctx, "sess", strokes(1), nil)
	require.NoError(t, err)
	rec.Strokes[0].X = 999

	fresh, err := m.Load(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, float64(1), fresh.Strokes[0].X, "callers must not be able to mutate stored state")
}
