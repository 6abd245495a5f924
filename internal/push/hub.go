// Package push implements the realtime WebSocket layer: one goroutine-backed
// connection per client, a bounded outbound queue with a critical-type
// eviction policy, and a hub that fans out to every connection.
package push

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/model"
)

const (
	outboundQueueDepth = 1024
	heartbeatInterval  = 30 * time.Second
	heartbeatMisses    = 2
)

var criticalTypes = map[model.ServerMessageType]bool{
	model.MsgAlert:          true,
	model.MsgActionRequest:  true,
	model.MsgActionComplete: true,
	model.MsgError:          true,
}

// Broadcaster is the narrow interface the react/investigation/alertengine
// packages depend on so they never need to know about gorilla/websocket.
type Broadcaster interface {
	Broadcast(msgType model.ServerMessageType, data any)
}

// Hub owns the set of live connections and fans messages out to all of them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	// OnActionResponse receives operator decisions relayed from any
	// connection, for the action engine's Approve path.
	OnActionResponse func(model.ActionResponse)
	OnUserMessage    func(connID string, text string)
	OnCancel         func(connID string, runID string)

	// OnDisconnect fires once a connection's run/read/write loops have all
	// torn down, so a caller can cancel any session-scoped ReActRuns it
	// started (user chat runs; auto-investigations are not session-scoped).
	OnDisconnect func(connID string)
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Connection)}
}

// Broadcast sends msgType/data to every connected client, in the order this
// call was made relative to other Broadcast calls (the hub itself does not
// reorder; per-connection ordering is additionally preserved by each
// connection's single writer goroutine).
func (h *Hub) Broadcast(msgType model.ServerMessageType, data any) {
	env := model.Envelope{Type: string(msgType), ID: uuid.NewString(), Timestamp: time.Now(), Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.enqueue(env)
	}
}

// Accept wraps an already-upgraded WebSocket in a Connection and registers it
// with the hub. It runs the connection's read/write/heartbeat
// loops and blocks until the connection closes.
func (h *Hub) Accept(ctx context.Context, ws *websocket.Conn) {
	c := newConnection(ws)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		if h.OnDisconnect != nil {
			h.OnDisconnect(c.id)
		}
	}()

	c.enqueue(model.Envelope{Type: string(model.MsgConnected), ID: uuid.NewString(), Timestamp: time.Now(), Data: map[string]string{"connection_id": c.id}})
	c.run(ctx, h)
}

// ConnectionCount reports the number of live sessions, for /status.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
