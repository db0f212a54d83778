package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stripe-exporter/internal/middleware"
)

// StatusProvider reports refresh status for the health endpoint
type StatusProvider interface {
	Status() Status
}

// NewRouter returns the scrape router: GET /metrics serves gatherer in the
// Prometheus exposition format and GET /health reports refresh status.
func NewRouter(m *Metrics, gatherer prometheus.Gatherer, status StatusProvider, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger, "/metrics", "/health"))
	router.Use(middleware.Security())
	router.Use(PrometheusMiddleware(m))

	router.GET("/metrics", PrometheusHandler(gatherer))
	router.GET("/health", HealthHandler(status))

	return router
}

// PrometheusMiddleware returns a Gin middleware that records HTTP metrics
func PrometheusMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.RecordHTTPRequest(endpoint, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// PrometheusHandler returns the Prometheus HTTP handler for gatherer
func PrometheusHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthHandler reports the refresh status. Stale data is still served, so
// the endpoint always answers 200.
func HealthHandler(status StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := status.Status()
		body := gin.H{
			"status": s.State(),
			"cycles": s.Cycles,
		}
		if !s.LastSuccess.IsZero() {
			body["last_success"] = s.LastSuccess.UTC().Format(time.RFC3339)
		}
		if s.LastError != "" {
			body["last_error"] = s.LastError
		}
		c.JSON(http.StatusOK, body)
	}
}
