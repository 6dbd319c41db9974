package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. main replaces it once the
// config is loaded.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// contextFields are copied from a request context onto every record logged with it.
var contextFields = []contextKey{RequestIDKey, UserIDKey, TraceIDKey}

// ctxHandler decorates records with the request fields carried by ctx.
type ctxHandler struct {
	slog.Handler
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextFields {
		switch v := ctx.Value(key).(type) {
		case string:
			r.AddAttrs(slog.String(string(key), v))
		case uint:
			r.AddAttrs(slog.Uint64(string(key), uint64(v)))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger writes JSON to stdout in production and text elsewhere.
func NewLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if e := strings.ToLower(env); e == "production" || e == "prod" {
		return slog.New(ctxHandler{slog.NewJSONHandler(w, opts)})
	}
	return slog.New(ctxHandler{slog.NewTextHandler(w, opts)})
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch v := strings.ToLower(strings.TrimSpace(level)); v {
	case "warning":
		return slog.LevelWarn
	default:
		if err := l.UnmarshalText([]byte(v)); err != nil {
			return slog.LevelInfo
		}
		return l
	}
}

// ContextMiddleware copies the request ID, user ID and trace ID from locals
// into the user context so service-layer logs carry them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			ctx = context.WithValue(ctx, UserIDKey, uid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request: error level for handler errors
// and 5xx, warn for 4xx, info otherwise.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		ctx := c.UserContext()
		switch {
		case err != nil:
			Logger.ErrorContext(ctx, "Request failed", append(attrs, slog.String("error", err.Error()))...)
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "Request failed", attrs...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "Request rejected", attrs...)
		default:
			Logger.InfoContext(ctx, "Request processed", attrs...)
		}
		return err
	}
}
