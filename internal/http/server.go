// Package http provides the operational HTTP endpoints: liveness, readiness and metrics.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/credvault/internal/crypto/domain"
	"github.com/allisson/credvault/internal/metrics"
)

// KeyRingLoader loads the process key ring; readiness requires it to load.
type KeyRingLoader interface {
	Load(ctx context.Context) (*cryptoDomain.KeyRing, error)
}

// Server represents the operational HTTP server.
type Server struct {
	db      *sql.DB
	keyRing KeyRingLoader
	router   *gin.Engine
	listener *listener
	logger   *slog.Logger
}

// NewServer creates a new operational HTTP server. db and keyRing may be nil,
// in which case readiness reports the matching component as failing.
func NewServer(
	db *sql.DB,
	keyRing KeyRingLoader,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:       db,
		keyRing:  keyRing,
		logger:   logger,
		listener: newListener("http server", host, port, logger),
	}
}

// SetupRouter registers the health and readiness routes. HTTP metrics are
// recorded when metricsProvider is not nil.
func (s *Server) SetupRouter(metricsProvider *metrics.Provider, metricsNamespace string) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. SetupRouter must be called first.
func (s *Server) Start(ctx context.Context) error {
	s.listener.server.Handler = s.router
	return s.listener.Start(ctx)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.listener.Shutdown(ctx)
}

// listener runs one http.Server; name labels its log lines and errors.
type listener struct {
	name   string
	server *http.Server
	logger *slog.Logger
}

func newListener(name, host string, port int, logger *slog.Logger) *listener {
	return &listener{
		name:   name,
		logger: logger,
		server: &http.Server{
			Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (l *listener) Start(context.Context) error {
	l.logger.Info("starting "+l.name, slog.String("addr", l.server.Addr))

	if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start %s: %w", l.name, err)
	}
	return nil
}

func (l *listener) Shutdown(ctx context.Context) error {
	l.logger.Info("shutting down " + l.name)
	return l.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready when the database answers a ping and the
// key ring is bound.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := gin.H{"database": "ok", "key_ring": "ok"}
	ready := true

	if s.db == nil || s.db.PingContext(ctx) != nil {
		components["database"] = "error"
		ready = false
	}

	if s.keyRing == nil {
		components["key_ring"] = "error"
		ready = false
	} else if _, err := s.keyRing.Load(ctx); err != nil {
		s.logger.Warn("key ring not ready", slog.Any("error", err))
		components["key_ring"] = "error"
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
