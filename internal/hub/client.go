package hub

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Handler receives a connection's inbound traffic. HandleEvent runs on the
// connection's read goroutine, so events from one sender are always processed
// in emission order.
type Handler interface {
	HandleEvent(c *Client, env models.Envelope)
	HandleDisconnect(c *Client)
}

// Client is one websocket connection. ReadPump feeds inbound envelopes to the
// installed handler; WritePump drains Send.
type Client struct {
	ConnectionID string
	Conn         *websocket.Conn
	Send         chan []byte

	hub     *Hub
	handler Handler
	log     zerolog.Logger
}

func NewClient(h *Hub, conn *websocket.Conn, handler Handler, log zerolog.Logger) *Client {
	return &Client{
		ConnectionID: uuid.New().String(),
		Conn:         conn,
		Send:         make(chan []byte, 256),
		hub:          h,
		handler:      handler,
		log:          log,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.hub.Unregister(c)
		c.Conn.Close()
	}()
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Str("connection", c.ConnectionID).Msg("websocket read failed")
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.log.Warn().Err(err).Str("connection", c.ConnectionID).Msg("dropping malformed envelope")
			continue
		}
		c.handler.HandleEvent(c, env)
	}
}

func (c *Client) WritePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	// Send was closed by the hub.
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
