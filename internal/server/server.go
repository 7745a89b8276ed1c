package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chartlink/internal/metrics"
	"chartlink/internal/snapshot"
)

const shutdownTimeout = 5 * time.Second

// Start launches status and metrics HTTP servers as configured. A zero port
// disables the respective server.
func Start(ctx context.Context, logger zerolog.Logger, store *snapshot.Store, metricsCollector *metrics.Metrics, statusPort, metricsPort int) {
	if statusPort == 0 && metricsPort == 0 {
		return
	}

	if statusPort > 0 && metricsPort > 0 && statusPort == metricsPort {
		mux := http.NewServeMux()
		registerStatusRoutes(mux, store)
		registerMetricsRoute(mux, metricsCollector)
		startServer(ctx, logger, mux, statusPort, "status/metrics")
		return
	}

	if statusPort > 0 {
		mux := http.NewServeMux()
		registerStatusRoutes(mux, store)
		startServer(ctx, logger, mux, statusPort, "status")
	}

	if metricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, metricsCollector)
		startServer(ctx, logger, mux, metricsPort, "metrics")
	}
}

func registerStatusRoutes(mux *http.ServeMux, store *snapshot.Store) {
	mux.HandleFunc("/healthz", HealthHandler())
	mux.HandleFunc("/readyz", ReadyHandler(store))
	mux.HandleFunc("/statusz", StatusHandler(store))
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
