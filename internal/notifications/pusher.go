package notifications

import (
	"context"
	"errors"
	"log/slog"

	"huddle/internal/middleware"
)

// ErrTokenUnregistered means the push provider no longer knows the device token.
// The dispatcher deletes such tokens.
var ErrTokenUnregistered = errors.New("push token unregistered")

// PushPayload is what a device displays.
type PushPayload struct {
	Title string
	Body  string
	Image string
	// Badge is the receiver's unread count, used by iOS.
	Badge int
	Data  map[string]string
}

// Pusher sends one payload to one device token.
type Pusher interface {
	Push(ctx context.Context, token string, payload PushPayload) error
	Name() string
}

// LogPusher logs pushes instead of sending them.
type LogPusher struct {
	logger *slog.Logger
}

// NewLogPusher creates a LogPusher writing to the application logger.
func NewLogPusher() *LogPusher {
	return &LogPusher{logger: middleware.Logger}
}

func (p *LogPusher) Name() string { return "log" }

func (p *LogPusher) Push(ctx context.Context, token string, payload PushPayload) error {
	p.logger.InfoContext(ctx, "push notification",
		"token_suffix", tokenSuffix(token),
		"title", payload.Title,
		"badge", payload.Badge,
	)
	return nil
}

func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
