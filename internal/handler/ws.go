package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/argus-core/backend/internal/push"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Realtime clients are the operator dashboard, served from a handful of
	// known origins configured at the CORS layer; the socket itself accepts
	// any origin that made it past that layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades /ws connections and hands them to the push hub.
type WSHandler struct {
	hub *push.Hub
}

func NewWSHandler(hub *push.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve godoc
// @Summary Realtime event stream
// @Tags ws
// @Router /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}
	h.hub.Accept(c.Request.Context(), conn)
}
