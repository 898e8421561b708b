package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/hub"
	"github.com/kindlyrobotics/sketchsync/internal/models"
	"github.com/kindlyrobotics/sketchsync/internal/store"
)

// Broadcaster pushes an event to a session's connected websocket clients. The
// hub implements it.
type Broadcaster interface {
	BroadcastToSession(sessionID string, sender *hub.Client, event string, payload interface{})
}

// DrawingAPI is the REST mirror of the websocket save/fetch path, backed by
// the same additive-merge store. Saves repaint joined websocket clients just
// like ws saves do.
type DrawingAPI struct {
	store     store.Store
	broadcast Broadcaster
	log       zerolog.Logger
}

func NewDrawingAPI(st store.Store, b Broadcaster, log zerolog.Logger) *DrawingAPI {
	return &DrawingAPI{store: st, broadcast: b, log: log}
}

type saveRequest struct {
	Strokes     []models.StrokePoint `json:"strokes"`
	TextObjects []models.TextObject  `json:"textObjects"`
}

// SaveDrawing handles POST /api/drawings/{sessionId}.
func (a *DrawingAPI) SaveDrawing(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := a.store.Save(r.Context(), sessionID, req.Strokes, req.TextObjects)
	if err != nil {
		a.log.Error().Err(err).Str("session", sessionID).Msg("failed to save drawing")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error saving drawing"})
		return
	}

	// Joined websocket clients see REST saves the same way they see ws saves.
	a.broadcast.BroadcastToSession(rec.SessionID, nil, models.EventStrokesUpdated, rec.Strokes)
	writeJSON(w, http.StatusOK, rec)
}

// GetDrawing handles GET /api/drawings/{sessionId}.
func (a *DrawingAPI) GetDrawing(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	rec, err := a.store.Load(r.Context(), sessionID)
	if err != nil {
		a.log.Error().Err(err).Str("session", sessionID).Msg("failed to load drawing")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error retrieving drawing"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No drawing found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
