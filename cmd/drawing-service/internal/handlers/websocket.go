package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/hub"
	"github.com/kindlyrobotics/sketchsync/internal/models"
	"github.com/kindlyrobotics/sketchsync/internal/ratelimit"
	"github.com/kindlyrobotics/sketchsync/internal/registry"
	"github.com/kindlyrobotics/sketchsync/internal/store"
)

const storeTimeout = 5 * time.Second

// SocketHandler routes a connection's inbound websocket events to the
// registry, hub, and store. Events from one connection are handled on its
// read goroutine, so they are processed in emission order.
type SocketHandler struct {
	hub      *hub.Hub
	registry *registry.Registry
	store    store.Store
	limiter  *ratelimit.Limiter
	log      zerolog.Logger
}

func NewSocketHandler(h *hub.Hub, r *registry.Registry, st store.Store, limiter *ratelimit.Limiter, log zerolog.Logger) *SocketHandler {
	return &SocketHandler{hub: h, registry: r, store: st, limiter: limiter, log: log}
}

// ServeWs upgrades the request and starts the connection pumps. The new
// connection's id doubles as its default session id, announced through the
// sessionId event.
func (s *SocketHandler) ServeWs(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := hub.NewClient(s.hub, conn, s, s.log)
		s.hub.Register(client)

		go client.WritePump()
		go client.ReadPump()

		s.log.Info().Str("connection", client.ConnectionID).Msg("client connected")
		s.hub.NotifyConnection(client.ConnectionID, models.EventSessionID, client.ConnectionID)
	}
}

func (s *SocketHandler) HandleDisconnect(c *hub.Client) {
	s.log.Info().Str("connection", c.ConnectionID).Msg("client disconnected")
	s.registry.Disconnect(c.ConnectionID)
}

func (s *SocketHandler) HandleEvent(c *hub.Client, env models.Envelope) {
	switch env.Event {
	case models.EventJoin:
		var p models.JoinPayload
		if !s.decode(c, env, &p) {
			return
		}
		s.registry.Join(p.Username, c.ConnectionID)

	case models.EventRemoveUser:
		var p models.RemoveUserPayload
		if !s.decode(c, env, &p) {
			return
		}
		switch err := s.registry.Remove(c.ConnectionID, p.Username); {
		case errors.Is(err, registry.ErrNotAuthorized):
			s.hub.NotifyConnection(c.ConnectionID, models.EventErrorMessage,
				models.MessagePayload{Message: "Only the admin can remove users."})
		case errors.Is(err, registry.ErrNotFound):
			s.hub.NotifyConnection(c.ConnectionID, models.EventErrorMessage,
				models.MessagePayload{Message: "No such user."})
		}

	case models.EventJoinSession:
		var p models.JoinSessionPayload
		if !s.decode(c, env, &p) {
			return
		}
		s.hub.JoinSession(c, p.SessionID)

	case models.EventDrawing:
		var p models.DrawingPayload
		if !s.decode(c, env, &p) {
			return
		}
		p.From = c.ConnectionID
		s.hub.BroadcastToSession(p.SessionID, c, env.Event, p)

	case models.EventTextAdded, models.EventTextMoved:
		var p models.TextPayload
		if !s.decode(c, env, &p) {
			return
		}
		p.From = c.ConnectionID
		s.hub.BroadcastToSession(p.SessionID, c, env.Event, p)

	case models.EventSaveDrawing:
		var p models.SaveDrawingPayload
		if !s.decode(c, env, &p) {
			return
		}
		s.handleSave(c, p)

	case models.EventGetDrawing:
		var p models.GetDrawingPayload
		if !s.decode(c, env, &p) {
			return
		}
		s.handleFetch(c, p)

	default:
		s.log.Debug().Str("event", env.Event).Str("connection", c.ConnectionID).Msg("ignoring unknown event")
	}
}

func (s *SocketHandler) handleSave(c *hub.Client, p models.SaveDrawingPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	sessionID := strings.TrimSpace(p.SessionID)
	if err := s.limiter.CheckSave(ctx, c.ConnectionID, sessionID); err != nil {
		s.hub.NotifyConnection(c.ConnectionID, models.EventErrorMessage,
			models.MessagePayload{Message: "Too many saves, slow down."})
		return
	}

	rec, err := s.store.Save(ctx, sessionID, p.Strokes, p.TextObjects)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("failed to save drawing")
		s.hub.NotifyConnection(c.ConnectionID, models.EventError,
			models.MessagePayload{Message: "Error saving drawing"})
		return
	}

	s.hub.BroadcastToSession(rec.SessionID, nil, models.EventStrokesUpdated, rec.Strokes)
	s.hub.NotifyConnection(c.ConnectionID, models.EventDrawingSaved,
		models.MessagePayload{Message: "Drawing saved successfully!"})
}

func (s *SocketHandler) handleFetch(c *hub.Client, p models.GetDrawingPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, err := s.store.Load(ctx, p.SessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session", p.SessionID).Msg("failed to load drawing")
		s.hub.NotifyConnection(c.ConnectionID, models.EventError,
			models.MessagePayload{RequestID: p.RequestID, Message: "Error retrieving drawing"})
		return
	}
	if rec == nil {
		s.hub.NotifyConnection(c.ConnectionID, models.EventDrawingNotFound,
			models.MessagePayload{RequestID: p.RequestID, Message: "No drawing found for this session."})
		return
	}

	s.hub.NotifyConnection(c.ConnectionID, models.EventDrawingFetched, models.DrawingFetchedPayload{
		RequestID:   p.RequestID,
		Strokes:     rec.Strokes,
		TextObjects: rec.TextObjects,
	})
}

func (s *SocketHandler) decode(c *hub.Client, env models.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		s.log.Warn().Err(err).Str("event", env.Event).Str("connection", c.ConnectionID).Msg("dropping malformed payload")
		return false
	}
	return true
}
