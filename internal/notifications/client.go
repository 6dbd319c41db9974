package notifications

import (
	"sync"
	"time"

	"huddle/internal/middleware"
	"huddle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // must stay below pongWait
	maxMessageSize = 4096
	sendBuffer     = 64
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// FrameHandler receives each text frame a client sends.
type FrameHandler func(c *Client, frame []byte)

// Client is one registered websocket connection. Send is closed by the hub
// when the client is unregistered or the hub shuts down.
type Client struct {
	UserID uint
	Send   chan []byte

	hub  *Hub
	conn *websocket.Conn

	mu     sync.RWMutex
	closed bool
}

// NewClient returns a client with an empty send buffer.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		conn:   conn,
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// TrySend queues message without blocking. On a full buffer the message is
// dropped and a messages_dropped notice is queued in its place when room
// allows, so the peer knows to re-fetch over HTTP.
func (c *Client) TrySend(message []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return
	}

	select {
	case c.Send <- message:
		return
	default:
	}
	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	middleware.Logger.Warn("Websocket buffer full, dropped message", "user_id", c.UserID)
	select {
	case c.Send <- dropNotice:
	default:
	}
}

// Serve runs the connection until the peer leaves: writes happen on a
// separate goroutine, reads block the caller. onFrame may be nil.
func (c *Client) Serve(onFrame FrameHandler) {
	go c.writeLoop()
	c.readLoop(onFrame)
}

func (c *Client) readLoop(onFrame FrameHandler) {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	c.conn.SetReadLimit(maxMessageSize)
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Info("Websocket closed unexpectedly", "user_id", c.UserID, "error", err)
			}
			return
		}
		if onFrame != nil {
			onFrame(c, frame)
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, open := <-c.Send:
			if !open {
				_ = write(websocket.CloseMessage, []byte{})
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
