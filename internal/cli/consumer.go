package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/consumer"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/dispatcher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/recovery"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/store"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/worker"
)

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Consume library events and persist them",
	RunE:  runConsumer,
}

func runConsumer(cmd *cobra.Command, args []string) error {
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

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Error("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return err
	}
	defer st.Close()

	pub, err := publisher.NewPublisher(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer pub.Close()

	app, err := newConsumerApp(cfg, log, metrics, st, pub)
	if err != nil {
		return err
	}
	return app.run(ctx)
}

type consumerApp struct {
	log      *zap.Logger
	pool     *worker.Pool
	consumer *consumer.Consumer
}

// newConsumerApp assembles decode, retry, recovery and the worker pool behind
// a Kafka consumer.
func newConsumerApp(cfg *config.Config, log *zap.Logger, metrics *obs.Metrics, st store.Store, sender recovery.Sender) (*consumerApp, error) {
	processor, err := pipeline.NewProcessor(st, log, cfg.Retry.FaultInjectionEventID)
	if err != nil {
		return nil, err
	}
	executor, err := retry.NewExecutor(cfg.Retry, log, retry.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	recoverer, err := recovery.NewPublisher(sender, log, metrics)
	if err != nil {
		return nil, err
	}

	// The dispatcher commits through the consumer, which submits to the pool,
	// which dispatches. d is assigned before the pool starts.
	var d *dispatcher.Dispatcher
	pool, err := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize,
		worker.HandlerFunc(func(ctx context.Context, rec *types.Record) { d.Dispatch(ctx, rec) }),
		log, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	cons, err := consumer.NewConsumer(cfg, log, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	d, err = dispatcher.New(processor, executor, recoverer, cfg.Kafka.AckMode, log,
		dispatcher.WithCommitter(cons),
		dispatcher.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	return &consumerApp{log: log, pool: pool, consumer: cons}, nil
}

func (a *consumerApp) run(ctx context.Context) error {
	if err := a.pool.Start(ctx); err != nil {
		return err
	}

	consumeErr := a.consumer.Start(ctx)
	if errors.Is(consumeErr, context.Canceled) {
		consumeErr = nil
	}

	if err := a.pool.Stop(); err != nil {
		a.log.Error("Failed to stop worker pool", zap.Error(err))
	}
	if err := a.consumer.Close(); err != nil {
		a.log.Error("Failed to close consumer", zap.Error(err))
	}
	a.log.Info("Consumer shut down")
	return consumeErr
}
