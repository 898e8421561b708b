// Package history implements snapshot-based undo/redo over a client's local
// stroke sequence. It is per-client state and is never persisted.
package history

import (
	"errors"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// ErrEmptyHistory is returned when there is nothing left to undo or redo.
var ErrEmptyHistory = errors.New("history: empty stack")

// Stack holds whole-sequence snapshots rather than inverse deltas: more
// memory, but reconstruction is exact no matter how a stroke was produced.
type Stack struct {
	undo [][]models.StrokePoint
	redo [][]models.StrokePoint
}

func New() *Stack {
	return &Stack{}
}

// RecordBeforeStroke pushes the pre-stroke state onto the undo stack. Call it
// once per pen-down, not per sampled point within a drag.
func (s *Stack) RecordBeforeStroke(current []models.StrokePoint) {
	s.undo = append(s.undo, snapshot(current))
}

// Undo pops the most recent snapshot and parks the current state on the redo
// stack. The current state is untouched when the undo stack is empty.
func (s *Stack) Undo(current []models.StrokePoint) ([]models.StrokePoint, error) {
	if len(s.undo) == 0 {
		return nil, ErrEmptyHistory
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, snapshot(current))
	return prev, nil
}

// Redo is the mirror of Undo.
func (s *Stack) Redo(current []models.StrokePoint) ([]models.StrokePoint, error) {
	if len(s.redo) == 0 {
		return nil, ErrEmptyHistory
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, snapshot(current))
	return next, nil
}

// Clear drops both stacks; used when the canvas itself is cleared.
func (s *Stack) Clear() {
	s.undo = nil
	s.redo = nil
}

func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

func snapshot(points []models.StrokePoint) []models.StrokePoint {
	out := make([]models.StrokePoint, len(points))
	copy(out, points)
	return out
}
