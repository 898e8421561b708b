// Package wsclient is a small socket-style client for the drawing service's
// websocket endpoint. It implements the syncer Channel interface.
package wsclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

// Client is one client-side connection. Handlers registered with On run on
// the read-loop goroutine, in the order the server emitted the events.
type Client struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu       sync.RWMutex
	handlers map[string][]func(json.RawMessage)

	writeMu sync.Mutex
	done    chan struct{}

	sessionID  string
	gotSession chan struct{}
}

// Dial connects to a ws:// or wss:// URL and starts the read loop.
func Dial(url string, log zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	c := &Client{
		conn:       conn,
		log:        log,
		handlers:   make(map[string][]func(json.RawMessage)),
		done:       make(chan struct{}),
		gotSession: make(chan struct{}),
	}
	// The server announces the connection's default session id immediately
	// after the upgrade; capture it before the caller has a chance to miss it.
	c.On(models.EventSessionID, func(data json.RawMessage) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return
		}
		c.mu.Lock()
		if c.sessionID == "" {
			c.sessionID = id
			close(c.gotSession)
		}
		c.mu.Unlock()
	})
	go c.readLoop()
	return c, nil
}

// Emit sends one event envelope. Writes are serialized internally; gorilla
// connections allow only a single concurrent writer.
func (c *Client) Emit(event string, payload interface{}) error {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		data = b
	}
	raw, err := json.Marshal(models.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", event, err)
	}
	return nil
}

// On registers a handler for an inbound event. Handlers must not block; slow
// work belongs on another goroutine.
func (c *Client) On(event string, fn func(data json.RawMessage)) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], fn)
	c.mu.Unlock()
}

// SessionID blocks until the server assigns this connection its default
// session id, or the timeout elapses.
func (c *Client) SessionID(timeout time.Duration) (string, error) {
	select {
	case <-c.gotSession:
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.sessionID, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for session id")
	case <-c.done:
		return "", fmt.Errorf("connection closed before session id arrived")
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("websocket read failed")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}

		c.mu.RLock()
		handlers := append([]func(json.RawMessage){}, c.handlers[env.Event]...)
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(env.Data)
		}
	}
}

// Close tears the connection down and waits for the read loop to finish.
func (c *Client) Close() error {
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := c.conn.Close()
	<-c.done
	return err
}
