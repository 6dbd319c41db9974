package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "huddle_redis_errors_total",
	Help: "Total number of failed Redis commands",
}, []string{"command"})

var (
	httpMetrics     *fiberprometheus.FiberPrometheus
	httpMetricsOnce sync.Once
)

// InitMetrics creates the HTTP metrics collector for the service. The collector
// registers with the default Prometheus registry, so later calls return the first one.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}

// MetricsMiddleware records request counts and latency for every route.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	if p == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return p.Middleware
}
