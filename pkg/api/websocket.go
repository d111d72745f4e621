package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/table"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Browser clients are served from other origins
	},
}

// wsClient is one WebSocket connection watching a table.
type wsClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	table    *table.Table
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	send   chan WSResponse
}

// WebSocket handles GET /api/games/{id}/ws. The client receives the current
// state right away and every state change after it, and may send actions.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("table", t.ID()).Msg("websocket-upgrade-failed")
		return
	}
	c := &wsClient{
		conn:     conn,
		handlers: h,
		table:    t,
		log:      log.With().Str("table", t.ID()).Str("remote", r.RemoteAddr).Logger(),
		send:     make(chan WSResponse, wsSendBuffer),
	}
	c.log.Debug().Msg("websocket-connected")

	unsubscribe := t.Subscribe(func(gs engine.GameState) {
		c.push(WSResponse{Type: "state", Payload: h.gameAt(t, gs)})
	})
	c.push(WSResponse{Type: "state", Payload: h.gameAt(t, t.State())})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump(r.Context())

	unsubscribe()
	c.close()
	<-done
	c.log.Debug().Msg("websocket-disconnected")
}

// push queues msg without blocking the table. A client too slow to drain
// its queue misses messages; the next state push catches it up.
func (c *wsClient) push(msg WSResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("websocket-message-dropped")
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.log.Debug().Err(err).Msg("websocket-write-failed")
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

func (c *wsClient) readPump(ctx context.Context) {
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("websocket-read-failed")
			}
			return
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *wsClient) handleMessage(ctx context.Context, msg WSMessage) {
	switch msg.Type {
	case "ping":
		c.push(WSResponse{Type: "pong", ID: msg.ID})
		return
	case "roll", "move", "double", "take", "pass", "forfeit":
	default:
		c.push(WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "bad_request"})
		return
	}

	var req ActionRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.push(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "bad_request"})
			return
		}
	}
	resp, err := c.handlers.act(ctx, c.table, msg.Type, req)
	if err != nil {
		_, code := classify(err)
		c.push(WSResponse{Type: "error", ID: msg.ID, Error: err.Error(), Code: code})
		return
	}
	c.push(WSResponse{Type: "result", ID: msg.ID, Payload: resp})
}
