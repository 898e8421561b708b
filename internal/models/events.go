package models

// Websocket event names. The names match what the web frontend already
// listens for.
const (
	EventSessionID       = "sessionId"
	EventJoin            = "join"
	EventUpdateUsers     = "updateUsers"
	EventRemoveUser      = "removeUser"
	EventRemoved         = "removed"
	EventErrorMessage    = "errorMessage"
	EventJoinSession     = "joinSession"
	EventDrawing         = "drawing"
	EventTextAdded       = "textAdded"
	EventTextMoved       = "textMoved"
	EventSaveDrawing     = "saveDrawing"
	EventDrawingSaved    = "drawingSaved"
	EventStrokesUpdated  = "strokesUpdated"
	EventGetDrawing      = "getDrawing"
	EventDrawingFetched  = "drawingFetched"
	EventDrawingNotFound = "drawingNotFound"
	EventError           = "error"
)

// JoinPayload announces a username for the roster.
type JoinPayload struct {
	Username string `json:"username"`
}

// RemoveUserPayload asks the server to kick a user from the roster.
type RemoveUserPayload struct {
	Username string `json:"username"`
}

// JoinSessionPayload associates the connection with a session scope.
type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// DrawingPayload carries one stroke point. From is filled in by the server on
// relay so receivers can keep each sender's stroke connectivity intact when
// concurrent strokes interleave.
type DrawingPayload struct {
	SessionID string      `json:"sessionId"`
	From      string      `json:"from,omitempty"`
	Point     StrokePoint `json:"point"`
}

// TextPayload carries a created or repositioned text object.
type TextPayload struct {
	SessionID string     `json:"sessionId"`
	From      string     `json:"from,omitempty"`
	Object    TextObject `json:"object"`
}

// SaveDrawingPayload is the incremental delta to merge into the durable
// record. Senders must only include what has not been saved before; the store
// appends blindly.
type SaveDrawingPayload struct {
	SessionID   string        `json:"sessionId"`
	Strokes     []StrokePoint `json:"strokes"`
	TextObjects []TextObject  `json:"textObjects"`
}

// GetDrawingPayload requests a session's durable history. RequestID is echoed
// on whichever of the three outcomes comes back.
type GetDrawingPayload struct {
	SessionID string `json:"sessionId"`
	RequestID string `json:"requestId"`
}

// DrawingFetchedPayload is the found outcome of a fetch.
type DrawingFetchedPayload struct {
	RequestID   string        `json:"requestId"`
	Strokes     []StrokePoint `json:"strokes"`
	TextObjects []TextObject  `json:"textObjects"`
}

// MessagePayload is a human-readable signal: save confirmations, not-found
// notices, and error events.
type MessagePayload struct {
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message"`
}
