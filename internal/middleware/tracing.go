package middleware

import (
	"fmt"
	"strconv"

	"huddle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// headerCarrier adapts the fiber request headers for W3C propagation.
type headerCarrier struct{ c *fiber.Ctx }

func (h headerCarrier) Get(key string) string { return h.c.Get(key) }
func (h headerCarrier) Set(key, value string) { h.c.Request().Header.Set(key, value) }
func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, len(h.c.GetReqHeaders()))
	for k := range h.c.GetReqHeaders() {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = headerCarrier{}

// TracingMiddleware continues an incoming trace, or starts one, with a server
// span per request. The trace ID is stored in locals and echoed in X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), headerCarrier{c})
		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		// The matched route is only known once routing has run.
		span.SetName(c.Method() + " " + c.Route().Path)
		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.String("user.id", strconv.FormatUint(uint64(uid), 10)))
		}
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
		return err
	}
}
