// Package feed pushes level-up events to websocket subscribers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/rocatrun/internal/domain/model"
	"github.com/okian/rocatrun/pkg/logger"
	"github.com/okian/rocatrun/pkg/metrics"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
	maxReadBytes = 512
)

// ErrClosed is returned for subscriptions to a closed hub.
var ErrClosed = errors.New("feed closed")

// TypeLevelUp is the message type of level-up events.
const TypeLevelUp = "LevelUp"

// Message is the envelope of every pushed event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LevelUpEvent is the payload of a TypeLevelUp message.
type LevelUpEvent struct {
	CharacterID int64 `json:"character_id"`
	OldLevel    int   `json:"old_level"`
	NewLevel    int   `json:"new_level"`
	Experience  int   `json:"experience"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to connected clients. Slow clients lose events
// rather than stall publishers.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCheckOrigin overrides the websocket origin check. By default only
// same-origin browsers and non-browser clients may connect.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 2048},
		clients:  make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	return h
}

// PublishLevelUp broadcasts lu. Grants without a level change are ignored.
func (h *Hub) PublishLevelUp(ctx context.Context, lu model.LevelUp) {
	if !lu.HasLeveledUp {
		return
	}
	data, err := json.Marshal(LevelUpEvent{
		CharacterID: lu.CharacterID,
		OldLevel:    lu.OldLevel,
		NewLevel:    lu.NewLevel,
		Experience:  lu.Experience,
	})
	if err != nil {
		h.log.Error(ctx, "marshal level up", logger.Error(err))
		return
	}
	msg, err := json.Marshal(Message{Type: TypeLevelUp, Data: data})
	if err != nil {
		h.log.Error(ctx, "marshal message", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			metrics.RecordErrorByComponent("feed", "dropped")
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if err := h.add(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	h.log.Debug(r.Context(), "feed client connected", logger.Int("clients", h.Count()))

	go c.writer()
	c.reader()
	h.remove(c)
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

// reader discards client messages and returns when the connection ends.
func (c *client) reader() {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writer owns all writes to the connection. It closes the connection when
// send is closed or a write fails.
func (c *client) writer() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
