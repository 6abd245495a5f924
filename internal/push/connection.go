package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/argus-core/backend/internal/model"
)

// Connection is one client's persistent session: a FIFO outbound queue
// drained by a single writer goroutine, plus a reader goroutine translating
// client envelopes into hub callbacks.
type Connection struct {
	id string
	ws *websocket.Conn

	mu      sync.Mutex
	queue   []model.Envelope
	notify  chan struct{}
	closed  bool
	misses  int
}

func newConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		ws:     ws,
		notify: make(chan struct{}, 1),
	}
}

// enqueue applies the overflow policy: on a full queue, a non-critical message
// drops the queue head (whatever its type); a critical message evicts the
// oldest queued non-critical message, and if there is none the connection is
// closed with a backpressure reason and the message is not enqueued.
func (c *Connection) enqueue(env model.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if len(c.queue) >= outboundQueueDepth {
		if criticalTypes[model.ServerMessageType(env.Type)] {
			if !c.evictOldestNonCritical() {
				// Queue is entirely critical messages and still full; the
				// caller (run loop) will observe the connection close.
				c.closeLocked()
				return
			}
		} else {
			c.queue = c.queue[1:]
		}
	}
	c.queue = append(c.queue, env)

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// evictOldestNonCritical removes the oldest non-critical message to make
// room for an incoming critical one. Returns false if no non-critical
// message exists to evict.
func (c *Connection) evictOldestNonCritical() bool {
	for i, e := range c.queue {
		if !criticalTypes[model.ServerMessageType(e.Type)] {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Connection) pop() (model.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return model.Envelope{}, false
	}
	env := c.queue[0]
	c.queue = c.queue[1:]
	return env, true
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.queue = nil
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "backpressure"),
		time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// run drives the write loop, the read loop, and the heartbeat watchdog for
// this connection until the context is cancelled or the socket closes.
func (c *Connection) run(ctx context.Context, h *Hub) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.close()

	go c.writeLoop(ctx)
	go c.heartbeatLoop(ctx)
	c.readLoop(ctx, h)
}

func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
			for {
				env, ok := c.pop()
				if !ok {
					break
				}
				if err := c.ws.WriteJSON(env); err != nil {
					c.close()
					return
				}
			}
		}
	}
}

func (c *Connection) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.misses++
			expired := exceedsMissBudget(c.misses)
			c.mu.Unlock()
			if expired {
				c.close()
				return
			}
		}
	}
}

// exceedsMissBudget reports whether misses has reached heartbeatMisses: two
// consecutive missed pings close the connection, not a third.
func exceedsMissBudget(misses int) bool {
	return misses >= heartbeatMisses
}

func (c *Connection) resetMisses() {
	c.mu.Lock()
	c.misses = 0
	c.mu.Unlock()
}

func (c *Connection) readLoop(ctx context.Context, h *Hub) {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch model.ClientMessageType(env.Type) {
		case model.ClientPing:
			c.resetMisses()
			c.enqueue(model.Envelope{Type: string(model.MsgPong), ID: uuid.NewString(), Timestamp: time.Now()})
		case model.ClientActionResp:
			if h.OnActionResponse == nil {
				continue
			}
			var resp model.ActionResponse
			if b, err := json.Marshal(env.Data); err == nil {
				_ = json.Unmarshal(b, &resp)
				h.OnActionResponse(resp)
			}
		case model.ClientUserMessage:
			if h.OnUserMessage == nil {
				continue
			}
			if text, ok := env.Data.(string); ok {
				h.OnUserMessage(c.id, text)
			} else if m, ok := env.Data.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					h.OnUserMessage(c.id, text)
				}
			}
		case model.ClientCancel:
			if h.OnCancel == nil {
				continue
			}
			if m, ok := env.Data.(map[string]any); ok {
				if runID, ok := m["run_id"].(string); ok {
					h.OnCancel(c.id, runID)
				}
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
