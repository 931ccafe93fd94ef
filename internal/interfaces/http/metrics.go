package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flota_http_requests_total",
		Help: "Total de peticiones HTTP por ruta, método y código.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flota_http_request_duration_seconds",
		Help:    "Duración de las peticiones HTTP.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	assignmentOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flota_assignment_operations_total",
		Help: "Operaciones del motor de asignación por tipo y resultado.",
	}, []string{"op", "result"})
)

// MetricsMiddleware registra contadores y duración por ruta.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		method := c.Method()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		return err
	}
}

// recordOp cuenta una operación del motor con su resultado (ok, rejected, error).
func recordOp(op string, result string) {
	assignmentOpsTotal.WithLabelValues(op, result).Inc()
}
