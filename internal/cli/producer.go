package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/ingest"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
)

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "Serve the library event HTTP API and publish to Kafka",
	RunE:  runProducer,
}

func runProducer(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	ctx, stop := signalContext()
	defer stop()

	metrics := obs.NewMetrics(cfg.Service.Name, prometheus.DefaultRegisterer)
	go func() {
		if err := obs.StartMetricsServer(ctx, cfg.Metrics.Port, prometheus.DefaultGatherer, log); err != nil {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	pub, err := publisher.NewPublisher(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer pub.Close()

	svc, err := ingest.NewService(pub, pub.DefaultTopic(), cfg.Publisher.EventSource, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           ingest.NewRouter(&ingest.Handler{Log: log, Service: svc}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return obs.Serve(ctx, server, "ingest", log)
}
