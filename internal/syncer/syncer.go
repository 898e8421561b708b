// Package syncer coordinates save and fetch traffic between a client's local
// drawing state and the durable record on the far side of the channel.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

var (
	// ErrEmptySave means nothing new has been drawn since the last save.
	ErrEmptySave = errors.New("syncer: nothing to save")
	// ErrInvalidSession rejects save and fetch calls without a session id.
	ErrInvalidSession = errors.New("syncer: invalid session id")
)

// Channel is the bidirectional event transport the orchestrator runs over.
// wsclient provides the production implementation. Handlers registered with
// On run on the channel's read goroutine and must not block.
type Channel interface {
	Emit(event string, payload interface{}) error
	On(event string, fn func(data json.RawMessage))
}

// FetchResult is a session's durable history as returned by a fetch.
type FetchResult struct {
	Strokes     []models.StrokePoint
	TextObjects []models.TextObject
}

// Syncer enforces the delta-only save contract and matches fetch responses to
// their requests. It keeps a per-session watermark of how much local state has
// already been transmitted, so resending a full local buffer can never
// duplicate entries in the durable record, and one channel can carry several
// sessions without their watermarks interfering.
type Syncer struct {
	ch Channel

	mu      sync.Mutex
	saved   map[string]watermark
	pending map[string]chan fetchOutcome
}

// watermark is how much of a session's local buffers has been transmitted,
// keyed by the trimmed session id.
type watermark struct {
	strokes int
	texts   int
}

type fetchOutcome struct {
	result FetchResult
	err    error
}

func New(ch Channel) *Syncer {
	s := &Syncer{
		ch:      ch,
		saved:   make(map[string]watermark),
		pending: make(map[string]chan fetchOutcome),
	}
	ch.On(models.EventDrawingFetched, s.onFetched)
	ch.On(models.EventDrawingNotFound, s.onNotFound)
	ch.On(models.EventError, s.onError)
	return s
}

// Save emits the unsent tail of the session's local state and returns without
// waiting for confirmation; the server answers with an independent
// drawingSaved signal. The watermark advances only after a successful emit, so
// a failed save leaves the delta eligible for the next attempt.
func (s *Syncer) Save(sessionID string, strokes []models.StrokePoint, textObjects []models.TextObject) error {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	w := s.saved[key]
	// Undo can shrink the local buffers below the watermark.
	if w.strokes > len(strokes) {
		w.strokes = len(strokes)
	}
	if w.texts > len(textObjects) {
		w.texts = len(textObjects)
	}
	s.saved[key] = w
	deltaStrokes := strokes[w.strokes:]
	deltaTexts := textObjects[w.texts:]
	if len(deltaStrokes) == 0 && len(deltaTexts) == 0 {
		s.mu.Unlock()
		return ErrEmptySave
	}
	payload := models.SaveDrawingPayload{
		SessionID:   key,
		Strokes:     append([]models.StrokePoint{}, deltaStrokes...),
		TextObjects: append([]models.TextObject{}, deltaTexts...),
	}
	s.mu.Unlock()

	if err := s.ch.Emit(models.EventSaveDrawing, payload); err != nil {
		return fmt.Errorf("failed to emit save: %w", err)
	}

	s.mu.Lock()
	s.saved[key] = watermark{strokes: len(strokes), texts: len(textObjects)}
	s.mu.Unlock()
	return nil
}

// Fetch requests the durable record and waits for exactly one of the three
// outcomes. A missing record is not an error; it resolves to empty slices.
// Responses carry the request id back, so overlapping fetches cannot
// cross-resolve and every call resolves at most once.
func (s *Syncer) Fetch(ctx context.Context, sessionID string) (FetchResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return FetchResult{}, ErrInvalidSession
	}

	requestID := uuid.New().String()
	outcome := make(chan fetchOutcome, 1)
	s.mu.Lock()
	s.pending[requestID] = outcome
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	err := s.ch.Emit(models.EventGetDrawing, models.GetDrawingPayload{
		SessionID: sessionID,
		RequestID: requestID,
	})
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to emit fetch: %w", err)
	}

	select {
	case out := <-outcome:
		return out.result, out.err
	case <-ctx.Done():
		return FetchResult{}, ctx.Err()
	}
}

// Reconcile fetches a session's history on (re)join and seeds its saved
// watermark from it, so the next save only transmits what was drawn locally
// afterwards.
func (s *Syncer) Reconcile(ctx context.Context, sessionID string) (FetchResult, error) {
	res, err := s.Fetch(ctx, sessionID)
	if err != nil {
		return FetchResult{}, err
	}
	s.mu.Lock()
	s.saved[strings.TrimSpace(sessionID)] = watermark{strokes: len(res.Strokes), texts: len(res.TextObjects)}
	s.mu.Unlock()
	return res, nil
}

// OnSaved installs the handler for the server's asynchronous save
// confirmation.
func (s *Syncer) OnSaved(fn func(message string)) {
	s.ch.On(models.EventDrawingSaved, func(data json.RawMessage) {
		var payload models.MessagePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		fn(payload.Message)
	})
}

func (s *Syncer) onFetched(data json.RawMessage) {
	var payload models.DrawingFetchedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	s.resolve(payload.RequestID, fetchOutcome{result: FetchResult{
		Strokes:     payload.Strokes,
		TextObjects: payload.TextObjects,
	}})
}

func (s *Syncer) onNotFound(data json.RawMessage) {
	var payload models.MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	s.resolve(payload.RequestID, fetchOutcome{result: FetchResult{
		Strokes:     []models.StrokePoint{},
		TextObjects: []models.TextObject{},
	}})
}

func (s *Syncer) onError(data json.RawMessage) {
	var payload models.MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if payload.RequestID == "" {
		// Save-path errors carry no request id; there is nothing to resolve.
		return
	}
	s.resolve(payload.RequestID, fetchOutcome{err: fmt.Errorf("syncer: fetch failed: %s", payload.Message)})
}

// resolve delivers at most once per request id; late or duplicate responses
// find no pending entry and are dropped.
func (s *Syncer) resolve(requestID string, out fetchOutcome) {
	s.mu.Lock()
	ch, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()
	if ok {
		ch <- out
	}
}
