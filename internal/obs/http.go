// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthHandler answers liveness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

// MetricsMux returns a mux exposing /metrics for gatherer and /healthz.
func MetricsMux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", HealthHandler())
	return mux
}

// StartMetricsServer starts an HTTP server that exposes Prometheus metrics
// on the given port. It blocks until ctx is canceled or the server fails.
func StartMetricsServer(ctx context.Context, port int, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      MetricsMux(gatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return Serve(ctx, server, "metrics", logger)
}

// Serve runs server until ctx is canceled, then shuts it down gracefully.
func Serve(ctx context.Context, server *http.Server, name string, logger *zap.Logger) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("server", name),
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server", zap.String("server", name))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", zap.String("server", name), zap.Error(err))
			return fmt.Errorf("error shutting down %s server: %w", name, err)
		}
		logger.Info("HTTP server stopped gracefully", zap.String("server", name))
		return nil
	case err := <-serverErr:
		return fmt.Errorf("%s server error: %w", name, err)
	}
}
