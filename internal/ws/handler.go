package ws

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tsyne-dev/tsyne-host/internal/monitoring"
	"github.com/tsyne-dev/tsyne-host/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Handler manages WebSocket connections
type Handler struct {
	broker  *Broker
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(broker *Broker) *Handler {
	return &Handler{broker: broker}
}

// WithMetrics attaches the connection gauge.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// HandleConnection handles WebSocket upgrade and streams instance
// events until the peer disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	sub := h.broker.Subscribe(c.Query("instance_id"))
	defer h.broker.Unsubscribe(sub)

	// The connection allows one concurrent writer, so the read loop
	// funnels its replies through the single select below.
	replies := make(chan interface{}, 8)
	done := make(chan struct{})
	go h.readLoop(conn, sub, replies, done)

	// Send welcome message
	h.send(conn, map[string]interface{}{
		"type":    "system",
		"message": "Connected to tsyne host stream",
	})

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := h.send(conn, ev); err != nil {
				return
			}
		case reply := <-replies:
			if err := h.send(conn, reply); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop consumes inbound messages. It owns no writes.
func (h *Handler) readLoop(conn *websocket.Conn, sub *Subscription, replies chan<- interface{}, done chan<- struct{}) {
	defer close(done)

	for {
		var msg types.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			h.broker.SetFilter(sub, msg.InstanceID)
			h.reply(replies, map[string]interface{}{
				"type":        "subscribed",
				"instance_id": msg.InstanceID,
			})
		case "ping":
			h.reply(replies, map[string]interface{}{"type": "pong"})
		default:
			h.reply(replies, map[string]interface{}{
				"type":    "error",
				"message": "unknown message type",
			})
		}
	}
}

func (h *Handler) reply(replies chan<- interface{}, data interface{}) {
	select {
	case replies <- data:
	default: // writer stalled, drop the reply
	}
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	return conn.WriteJSON(data)
}
