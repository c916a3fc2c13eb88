package socket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"coedit/metrics"
	"coedit/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the Next.js dev server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one browser connection. It holds at most one room membership
// at a time, tracked by the hub.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

// ServeWs upgrades an HTTP request to a WebSocket connection and registers
// it with the hub. Room membership only happens later, via join-document.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.sendBufferSize),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// trySend queues a frame without blocking; false means the buffer is full.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}
		metrics.MessagesReceived.Inc()

		// Validate the envelope at the boundary; the hub validates the
		// per-event payload shape.
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Warnf("Client %s sent invalid JSON: %v", c.ID, err)
			continue
		}

		c.hub.inbound <- inboundMessage{client: c, msg: msg}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // keepalive ping
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // connection is dead
			}
		}
	}
}
