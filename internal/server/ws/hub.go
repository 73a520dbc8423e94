// Package ws pushes game state to browsers over WebSocket. Each connection
// watches exactly one game.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whalebounty/whalebounty/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 32
)

// FrameState is the only frame type the server sends.
const FrameState = "state"

// Frame is the JSON text frame delivered to clients.
type Frame struct {
	Type   string           `json:"type"`
	GameID string           `json:"gameId"`
	State  domain.GameState `json:"state"`
}

// client represents a single WebSocket connection.
type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	gameID     string
	registered chan struct{} // closed by Run once the client receives updates
}

// Hub manages connected clients and routes each game update to the clients
// watching that game.
type Hub struct {
	clients    map[string]map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
}

type broadcastMsg struct {
	gameID string
	data   []byte
}

// NewHub creates a Hub. checkOrigin may be nil to accept every origin.
func NewHub(checkOrigin func(r *http.Request) bool, logger *slog.Logger) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:    make(map[string]map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With(slog.String("component", "ws_hub")),
	}
}

// Run is the hub's event loop. It exits when ctx is cancelled, closing every
// client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.gameID] == nil {
				h.clients[c.gameID] = make(map[*client]bool)
			}
			h.clients[c.gameID][c] = true
			h.mu.Unlock()
			close(c.registered)
			h.logger.Debug("client connected",
				slog.String("game_id", c.gameID),
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.clients[c.gameID]; ok && set[c] {
				delete(set, c)
				close(c.send)
				if len(set) == 0 {
					delete(h.clients, c.gameID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client disconnected",
				slog.String("game_id", c.gameID),
				slog.Int("total_clients", h.clientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients[msg.gameID] {
				select {
				case c.send <- msg.data:
				default:
					// Client's send buffer is full; drop the message.
					h.logger.Warn("dropping update for slow client", slog.String("game_id", msg.gameID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues u for the clients watching its game. It never blocks the
// caller for long: a full queue drops the update.
func (h *Hub) Publish(ctx context.Context, u domain.GameUpdate) error {
	data, err := json.Marshal(Frame{Type: FrameState, GameID: u.GameID, State: u.State})
	if err != nil {
		return fmt.Errorf("ws: marshal frame: %w", err)
	}
	select {
	case h.broadcast <- broadcastMsg{gameID: u.GameID, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ws: broadcast queue full, dropped update for %s", u.GameID)
	}
}

// Relay forwards game updates published on bus (by any instance) to local
// clients until ctx is done.
func (h *Hub) Relay(ctx context.Context, bus domain.SignalBus, pattern string) error {
	msgCh, err := bus.Subscribe(ctx, pattern)
	if err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", pattern, err)
	}
	h.logger.Info("relaying game updates", slog.String("pattern", pattern))

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("ws: subscription %s closed", pattern)
			}
			var u domain.GameUpdate
			if err := json.Unmarshal(data, &u); err != nil || u.GameID == "" {
				h.logger.Warn("ignoring malformed game update", slog.Int("bytes", len(data)))
				continue
			}
			if err := h.Publish(ctx, u); err != nil {
				h.logger.Warn("relay publish failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Serve upgrades the request and attaches the connection to gameID. The
// client is registered before snapshot is read, so an update published in
// between still reaches it; the snapshot frame is queued behind any such
// update. The caller has already authorised access to the game.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, gameID string, snapshot func(context.Context) (domain.GameState, error)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		gameID:     gameID,
		registered: make(chan struct{}),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	select {
	case <-c.registered:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	state, err := snapshot(r.Context())
	if err != nil {
		h.logger.Warn("initial snapshot failed",
			slog.String("game_id", gameID),
			slog.String("error", err.Error()),
		)
		conn.Close()
		return
	}
	data, err := json.Marshal(Frame{Type: FrameState, GameID: gameID, State: state})
	if err != nil {
		conn.Close()
		return
	}
	h.deliver(c, data)
}

// deliver queues data for c unless c has already been unregistered and its
// send channel closed.
func (h *Hub) deliver(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c.gameID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("dropping snapshot for slow client", slog.String("game_id", c.gameID))
	}
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// readPump only services control frames; anything the client sends is
// discarded.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump sends queued frames as text messages plus periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
