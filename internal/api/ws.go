// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/metrics"
	"github.com/ManuGH/camsync/internal/poller"
)

const (
	wsSendBuffer = 16
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 4 << 10
)

// Incoming websocket command. Only "library" is understood.
type wsRequest struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	AtMost int    `json:"at_most"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsMessage struct {
	ID       int              `json:"id,omitempty"`
	Type     string           `json:"type"`
	Success  *bool            `json:"success,omitempty"`
	Result   any              `json:"result,omitempty"`
	Error    *wsError         `json:"error,omitempty"`
	Snapshot *poller.Snapshot `json:"snapshot,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every published snapshot to connected websocket clients and
// answers library queries against the latest one. Clients that fall
// behind are disconnected.
type Hub struct {
	latest   func() *poller.Snapshot
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(latest func() *poller.Snapshot) *Hub {
	return &Hub{
		latest: latest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast matches poller.Listener.
func (h *Hub) Broadcast(ctx context.Context, snap *poller.Snapshot) {
	msg, err := json.Marshal(wsMessage{Type: "snapshot", Snapshot: snap})
	if err != nil {
		logger := xglog.WithComponentFromContext(ctx, "ws")
		logger.Error().Err(err).Msg("encode snapshot")
		return
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.enqueue(c, msg)
	}
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithComponentFromContext(r.Context(), "ws")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()
	logger.Debug().Str(xglog.FieldEvent, "ws.connected").Msg("websocket client connected")

	go h.writePump(c)

	if msg, err := json.Marshal(wsMessage{Type: "snapshot", Snapshot: h.latest()}); err == nil {
		h.enqueue(c, msg)
	}
	h.readPump(c)
	logger.Debug().Str(xglog.FieldEvent, "ws.disconnected").Msg("websocket client disconnected")
}

// Close disconnects every client and waits for their writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) enqueue(c *wsClient, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
		metrics.IncPublish("websocket", "ok")
	default:
		metrics.IncPublish("websocket", "dropped")
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		reply, err := json.Marshal(h.handle(data))
		if err != nil {
			continue
		}
		h.enqueue(c, reply)
	}
}

func (h *Hub) handle(data []byte) wsMessage {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply(0, "invalid_format", "message is not valid JSON")
	}
	switch req.Type {
	case "library":
		if req.AtMost <= 0 {
			return errorReply(req.ID, "invalid_format", "at_most must be a positive integer")
		}
		ok := true
		return wsMessage{
			ID:      req.ID,
			Type:    "result",
			Success: &ok,
			Result:  libraryResult{Videos: h.latest().Library(req.AtMost)},
		}
	default:
		return errorReply(req.ID, "unknown_command", "unknown command "+req.Type)
	}
}

func errorReply(id int, code, message string) wsMessage {
	ok := false
	return wsMessage{ID: id, Type: "result", Success: &ok, Error: &wsError{Code: code, Message: message}}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
