// Package hub fans session-scoped drawing events out to connected websocket
// clients.
package hub

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Hub owns all connection and session membership state. Everything is
// serialized through the run loop, so no locking is needed on the maps; other
// goroutines talk to it over channels. Delivery is fire-and-forget: there are
// no receiver acknowledgements and nothing is retried or replayed to late
// joiners.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	broadcast  chan sessionMessage
	direct     chan directMessage
	all        chan []byte

	clients  map[*Client]bool
	byConn   map[string]*Client
	sessions map[string]map[*Client]bool

	presence *Presence
	log      zerolog.Logger
}

type joinRequest struct {
	client    *Client
	sessionID string
}

type sessionMessage struct {
	sessionID string
	sender    *Client // excluded from delivery; nil delivers to every member
	payload   []byte
}

type directMessage struct {
	connectionID string
	payload      []byte
}

func New(presence *Presence, log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		broadcast:  make(chan sessionMessage),
		direct:     make(chan directMessage),
		all:        make(chan []byte),
		clients:    make(map[*Client]bool),
		byConn:     make(map[string]*Client),
		sessions:   make(map[string]map[*Client]bool),
		presence:   presence,
		log:        log,
	}
}

// Run owns the hub state. Start it exactly once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.byConn[c.ConnectionID] = c
		case c := <-h.unregister:
			h.drop(c)
		case req := <-h.join:
			if !h.clients[req.client] {
				continue
			}
			members, ok := h.sessions[req.sessionID]
			if !ok {
				members = make(map[*Client]bool)
				h.sessions[req.sessionID] = members
			}
			members[req.client] = true
			h.presence.Join(req.sessionID, req.client.ConnectionID)
		case msg := <-h.broadcast:
			for c := range h.sessions[msg.sessionID] {
				if c != msg.sender {
					h.deliver(c, msg.payload)
				}
			}
		case msg := <-h.direct:
			if c, ok := h.byConn[msg.connectionID]; ok {
				h.deliver(c, msg.payload)
			}
		case payload := <-h.all:
			for c := range h.clients {
				h.deliver(c, payload)
			}
		}
	}
}

// Register adds a connection; the hub takes no action until the connection
// also joins a session scope.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister drops a connection and its session memberships.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// JoinSession associates the connection with a session scope. Events emitted
// to the scope before joining are not delivered retroactively.
func (h *Hub) JoinSession(c *Client, sessionID string) {
	h.join <- joinRequest{client: c, sessionID: strings.TrimSpace(sessionID)}
}

// BroadcastToSession sends an event to every member of the session scope
// except sender. Pass a nil sender to include everyone.
func (h *Hub) BroadcastToSession(sessionID string, sender *Client, event string, payload interface{}) {
	raw, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	h.broadcast <- sessionMessage{sessionID: strings.TrimSpace(sessionID), sender: sender, payload: raw}
}

// NotifyAll sends an event to every connected client. Together with
// NotifyConnection it implements registry.Notifier.
func (h *Hub) NotifyAll(event string, payload interface{}) {
	raw, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode notification")
		return
	}
	h.all <- raw
}

// NotifyConnection sends an event to one connection. Unknown connection ids
// are dropped silently.
func (h *Hub) NotifyConnection(connectionID, event string, payload interface{}) {
	raw, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode notification")
		return
	}
	h.direct <- directMessage{connectionID: connectionID, payload: raw}
}

// deliver enqueues without blocking; a client that cannot keep up is dropped,
// which matches the optimistic local-first rendering model.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.Send <- payload:
	default:
		h.log.Warn().Str("connection", c.ConnectionID).Msg("send buffer full, dropping client")
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	delete(h.byConn, c.ConnectionID)
	for sessionID, members := range h.sessions {
		if members[c] {
			delete(members, c)
			h.presence.Leave(sessionID, c.ConnectionID)
			if len(members) == 0 {
				delete(h.sessions, sessionID)
			}
		}
	}
	close(c.Send)
}

func encode(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
