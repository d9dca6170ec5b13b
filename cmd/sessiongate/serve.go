package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/upb/sessiongate/app"
	"github.com/upb/sessiongate/config"
	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/routes"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and, when METRICS_ENABLED is set, the Prometheus
metrics listener. Configuration is read from the environment and an
optional .env file in the working directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Observability)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded", cfg.LogFields()...)

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	servers := []*server{{
		name: "api",
		srv: &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           routes.SetupRoutes(deps),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
		tls:      cfg.Server.TLS.Enabled,
		certFile: cfg.Server.TLS.CertFile,
		keyFile:  cfg.Server.TLS.KeyFile,
	}}

	if cfg.Observability.MetricsEnabled {
		servers = append(servers, &server{
			name: "metrics",
			srv:  newMetricsServer(fmt.Sprintf(":%d", cfg.Observability.MetricsPort), deps.Registry),
		})
	}

	return serve(ctx, logger, cfg.Server.ShutdownTimeout, servers...)
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(zap.String("service", "sessiongate")), nil
}

func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type server struct {
	name     string
	srv      *http.Server
	tls      bool
	certFile string
	keyFile  string
}

func (s *server) listen() error {
	if s.tls {
		return s.srv.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.srv.ListenAndServe()
}

// serve runs every server until ctx is cancelled or one of them fails,
// then shuts all of them down within shutdownTimeout.
func serve(ctx context.Context, logger *zap.Logger, shutdownTimeout time.Duration, servers ...*server) error {
	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *server) {
			logger.Info("server listening",
				zap.String("server", s.name),
				zap.String("addr", s.srv.Addr),
				zap.Bool("tls", s.tls))
			if err := s.listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", s.name, err)
			}
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.String("server", s.name), zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}

	logger.Info("servers stopped")
	return runErr
}
