package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/hub"
)

// SessionAPI exposes live session information.
type SessionAPI struct {
	presence *hub.Presence
	log      zerolog.Logger
}

func NewSessionAPI(p *hub.Presence, log zerolog.Logger) *SessionAPI {
	return &SessionAPI{presence: p, log: log}
}

// GetParticipants handles GET /api/sessions/{sessionId}/participants.
func (a *SessionAPI) GetParticipants(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	members, err := a.presence.Members(r.Context(), sessionID)
	if err != nil {
		a.log.Error().Err(err).Str("session", sessionID).Msg("failed to list participants")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error listing participants"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":    sessionID,
		"participants": members,
	})
}
