package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"huddle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingMiddleware_ContinuesIncomingTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTracer, prevProp := observability.Tracer, otel.GetTextMapPropagator()
	observability.Tracer = provider.Tracer("middleware-test")
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		observability.Tracer = prevTracer
		otel.SetTextMapPropagator(prevProp)
	})

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/groups/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(9))
		return c.SendStatus(fiber.StatusServiceUnavailable)
	})

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/groups/3", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	resp, err := app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, traceID, resp.Header.Get("X-Trace-ID"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /groups/:id", span.Name())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "503", attrs["http.status_code"])
	assert.Equal(t, "9", attrs["user.id"])
}
