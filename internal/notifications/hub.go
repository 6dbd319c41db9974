package notifications

import (
	"context"
	"errors"
	"sync"

	"huddle/internal/middleware"
	"huddle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Socket caps, per user and per instance.
const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrHubClosed       = errors.New("notification hub is shutting down")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
)

// Hub tracks the websocket clients held by this instance, keyed by user.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates a new Hub instance for managing notification sockets.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// Register adds a socket for userID. It fails once the hub is shut down or
// either connection cap is reached.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes a client. Calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnectionsTotal.Dec()
		client.closeSend()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Broadcast queues message on every socket userID holds here.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sendAll(h.conns[userID], []byte(message))
}

// BroadcastAll queues message on every socket held here.
func (h *Hub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		sendAll(clients, data)
	}
}

func sendAll(clients map[*Client]struct{}, data []byte) {
	for c := range clients {
		c.TrySend(data)
	}
}

// IsOnline reports whether a user has at least one socket on this instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// ConnectionCount returns the number of sockets held by this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring connects the Notifier to this hub: it subscribes to the Redis channels
// and forwards messages to matching userID connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == BroadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		userID, ok := parseUserChannel(channel)
		if !ok {
			middleware.Logger.Warn("invalid notification channel", "channel", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Shutdown refuses new connections and closes every send channel. Each write
// loop then sends a close frame and tears its socket down.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, userConns := range h.conns {
		for client := range userConns {
			client.closeSend()
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
