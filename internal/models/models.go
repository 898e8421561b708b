package models

import (
	"encoding/json"
	"time"
)

// StrokePoint is a single sampled point of a freehand stroke. Dragging=false
// marks a pen-down; Dragging=true connects the point to the previous point of
// the same sender's stroke sequence.
type StrokePoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Dragging  bool    `json:"dragging"`
	LineWidth float64 `json:"lineWidth"`
	Color     string  `json:"color"`
}

// TextObject is a movable text annotation. Unlike strokes it is mutable in
// place and addressed by its creation-time id, unique within a session.
type TextObject struct {
	ID   int64   `json:"id"`
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Participant is a connected user in the process-wide roster.
type Participant struct {
	Username     string `json:"username"`
	ConnectionID string `json:"connectionId"`
	IsAdmin      bool   `json:"isAdmin"`
}

// DrawingRecord is the durable state of a drawing session, keyed by the
// trimmed session id. Strokes and text objects only ever grow; saves append.
type DrawingRecord struct {
	SessionID   string        `json:"sessionId"`
	Strokes     []StrokePoint `json:"strokes"`
	TextObjects []TextObject  `json:"textObjects"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
