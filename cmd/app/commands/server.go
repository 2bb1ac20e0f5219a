package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/credvault/internal/app"
	"github.com/allisson/credvault/internal/config"
	secretsUseCase "github.com/allisson/credvault/internal/secrets/usecase"
)

// lifecycle is a server that can be started and gracefully stopped.
type lifecycle interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunServer starts the operational HTTP server and, when enabled, the metrics
// server. The key ring is bound before any listener starts so a bad key
// configuration fails the process at startup. Blocks until SIGINT/SIGTERM or a
// server error.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	keyRing, err := container.KeyRingUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize key ring: %w", err)
	}
	if _, err := keyRing.Load(ctx); err != nil {
		return fmt.Errorf("failed to bind encryption keys: %w", err)
	}

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var rotation secretsUseCase.RotationUseCase
	if cfg.RotateOnStartup {
		rotation, err = container.RotationUseCase()
		if err != nil {
			return fmt.Errorf("failed to initialize rotation: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	servers := []lifecycle{server}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	return serve(ctx, servers, rotation, cfg.DBConnMaxLifetime, logger)
}

// serve runs every server until ctx is done or one of them fails, then shuts
// all of them down within shutdownTimeout. A non-nil rotation runs one sweep
// alongside the servers; its failure is logged and does not stop them.
func serve(
	ctx context.Context,
	servers []lifecycle,
	rotation secretsUseCase.RotationUseCase,
	shutdownTimeout time.Duration,
	logger *slog.Logger,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if rotation != nil {
		g.Go(func() error {
			if _, err := rotation.Rotate(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("encryption key rotation at startup failed", slog.Any("error", err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErrors []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, err)
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
