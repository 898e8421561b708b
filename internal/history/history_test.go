package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

func point(x float64) models.StrokePoint {
	return models.StrokePoint{X: x, Y: x, LineWidth: 3, Color: "black"}
}

func TestUndoRestoresPreStrokeState(t *testing.T) {
	s := New()

	before := []models.StrokePoint{point(1)}
	s.RecordBeforeStroke(before)
	after := append(append([]models.StrokePoint{}, before...), point(2), point(3))

	got, err := s.Undo(after)
	require.NoError(t, err)
	assert.Equal(t, before, got)
}

func TestRedoRestoresPreUndoState(t *testing.T) {
	s := New()

	before := []models.StrokePoint{point(1)}
	s.RecordBeforeStroke(before)
	after := append(append([]models.StrokePoint{}, before...), point(2))

	undone, err := s.Undo(after)
	require.NoError(t, err)

	redone, err := s.Redo(undone)
	require.NoError(t, err)
	assert.Equal(t, after, redone)
}

func TestUndoEmptyStack(t *testing.T) {
	s := New()
	_, err := s.Undo([]models.StrokePoint{point(1)})
	require.ErrorIs(t, err, ErrEmptyHistory)
	assert.False(t, s.CanRedo(), "a failed undo must not touch the redo stack")
}

func TestRedoEmptyStack(t *testing.T) {
	s := New()
	_, err := s.Redo(nil)
	require.ErrorIs(t, err, ErrEmptyHistory)
	assert.False(t, s.CanUndo())
}

func TestUndoDoesNotClearRedo(t *testing.T) {
	s := New()
	s.RecordBeforeStroke(nil)
	s.RecordBeforeStroke([]models.StrokePoint{point(1)})

	_, err := s.Undo([]models.StrokePoint{point(1), point(2)})
	require.NoError(t, err)
	_, err = s.Undo([]models.StrokePoint{point(1)})
	require.NoError(t, err)

	assert.True(t, s.CanRedo())
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := New()
	current := []models.StrokePoint{point(1)}
	s.RecordBeforeStroke(current)

	// Later drawing mutates the caller's slice in place.
	current[0] = point(99)

	got, err := s.Undo(current)
	require.NoError(t, err)
	assert.Equal(t, point(1), got[0])
}

func TestClear(t *testing.T) {
	s := New()
	s.RecordBeforeStroke([]models.StrokePoint{point(1)})
	_, err := s.Undo([]models.StrokePoint{point(1), point(2)})
	require.NoError(t, err)

	s.Clear()
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
}

func TestUndoRedoSequence(t *testing.T) {
	s := New()

	var states [][]models.StrokePoint
	current := []models.StrokePoint{}
	for i := 1; i <= 3; i++ {
		states = append(states, current)
		s.RecordBeforeStroke(current)
		current = append(append([]models.StrokePoint{}, current...), point(float64(i)))
	}

	// Unwind all three strokes.
	for i := 2; i >= 0; i-- {
		prev, err := s.Undo(current)
		require.NoError(t, err)
		assert.Equal(t, states[i], prev)
		current = prev
	}
	_, err := s.Undo(current)
	require.ErrorIs(t, err, ErrEmptyHistory)
}
