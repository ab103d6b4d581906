// Package ws exposes the game over websockets.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"yahtzee/internal/app"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// envelope is the frame format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event app.EventKind `json:"event"`
	Data  any           `json:"data"`
}

// client is one websocket connection.
type client struct {
	id   string
	key  string
	conn *websocket.Conn
	send chan []byte

	closed bool // guarded by Hub.mu
}

// Hub tracks live connections and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{clients: make(map[string]*client), log: log}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// unregister drops c and stops its write pump. Safe to call twice.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(c)
}

func (h *Hub) closeLocked(c *client) {
	if c.closed {
		return
	}
	c.closed = true
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	close(c.send)
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatch delivers events in order. A sessionReplaced event also closes its
// recipient once the message is flushed.
func (h *Hub) Dispatch(events []app.Event) {
	for _, ev := range events {
		data, err := json.Marshal(outbound{Event: ev.Kind, Data: ev.Payload})
		if err != nil {
			h.log.Error().Err(err).Str("event", string(ev.Kind)).Msg("marshal event")
			continue
		}

		h.mu.Lock()
		if ev.Broadcast() {
			for _, c := range h.clients {
				h.enqueueLocked(c, data)
			}
		} else {
			for _, id := range ev.Recipients {
				c, ok := h.clients[id]
				if !ok {
					continue
				}
				h.enqueueLocked(c, data)
				if ev.Kind == app.EventSessionReplaced {
					h.closeLocked(c)
				}
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) enqueueLocked(c *client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", c.id).Msg("send buffer full, dropping connection")
		h.closeLocked(c)
	}
}

// writePump owns all writes to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Str("conn_id", c.id).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
