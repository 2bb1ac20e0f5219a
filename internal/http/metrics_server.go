package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/credvault/internal/metrics"
)

// ErrMetricsDisabled is returned by NewMetricsServer without a metrics provider.
var ErrMetricsDisabled = errors.New("metrics are disabled")

// MetricsServer exposes the Prometheus registry of a metrics.Provider on its
// own port, away from the health and readiness routes.
type MetricsServer struct {
	*listener
}

// NewMetricsServer serves provider at GET and HEAD /metrics. Any other path is
// answered with 404 and no body.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	provider *metrics.Provider,
) (*MetricsServer, error) {
	if provider == nil {
		return nil, ErrMetricsDisabled
	}

	router := gin.New()
	router.Use(gin.Recovery())

	scrape := gin.WrapH(provider.Handler())
	router.GET("/metrics", scrape)
	router.HEAD("/metrics", scrape)
	router.NoRoute(func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	l := newListener("metrics server", host, port, logger)
	l.server.Handler = router
	return &MetricsServer{listener: l}, nil
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}
