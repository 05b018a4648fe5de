// Command producer publishes generated library events to Kafka for load and
// retry testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

var (
	brokers    string
	topic      string
	batchSize  int
	rate       int
	duration   time.Duration
	faultRatio float64
	faultID    int
)

func init() {
	// Try to load .env file (optional)
	godotenv.Load()

	flag.StringVar(&brokers, "brokers", getEnv("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&topic, "topic", getEnv("KAFKA_TOPIC", config.DefaultTopic), "Kafka topic name")
	flag.IntVar(&batchSize, "batch", 0, "Number of events to produce (0 = infinite)")
	flag.IntVar(&rate, "rate", 0, "Events per second (0 = as fast as possible)")
	flag.DurationVar(&duration, "duration", 0, "Duration to run (e.g., 30s, 5m). If set, overrides batch")
	flag.Float64Var(&faultRatio, "fault-ratio", 0, "Share of events (0..1) sent as UPDATE with the fault-injection id")
	flag.IntVar(&faultID, "fault-id", config.DefaultFaultInjectionEventID, "Event id that triggers recoverable failures in the consumer")
	flag.Parse()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Brokers: brokerList, Topic: topic},
		Publisher: config.PublisherConfig{
			SyncTimeout:  config.DefaultSyncTimeout,
			WriteTimeout: config.DefaultWriteTimeout,
		},
	}
	pub, err := publisher.NewPublisher(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to create publisher", zap.Error(err))
	}
	defer pub.Close()

	logger.Info("Starting load producer",
		zap.Strings("brokers", brokerList),
		zap.String("topic", topic),
		zap.Int("batch_size", batchSize),
		zap.Int("rate", rate),
		zap.Duration("duration", duration),
		zap.Float64("fault_ratio", faultRatio),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	produced, failed := run(ctx, pub, logger)
	logger.Info("Producer stopped",
		zap.Int64("total_produced", produced),
		zap.Int64("total_failed", failed),
	)
}

func run(ctx context.Context, pub *publisher.Publisher, logger *zap.Logger) (int64, int64) {
	var ticker *time.Ticker
	if rate > 0 {
		ticker = time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
	}

	var (
		wg       sync.WaitGroup
		produced atomic.Int64
		failed   atomic.Int64
	)

	for n := 0; batchSize == 0 || duration > 0 || n < batchSize; n++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		rec, err := nextRecord(n)
		if err != nil {
			logger.Error("Failed to encode event", zap.Error(err))
			continue
		}

		wg.Add(1)
		pub.SendAsync(ctx, rec).OnComplete(func(_ publisher.Result, err error) {
			defer wg.Done()
			if err != nil {
				failed.Add(1)
				return
			}
			if current := produced.Add(1); current%100 == 0 {
				logger.Info("Produced events", zap.Int64("count", current))
			}
		})
	}

	wg.Wait()
	return produced.Load(), failed.Load()
}

// nextRecord builds the n-th generated event. A faultRatio share of events
// are UPDATEs for the fault-injection id and exercise the retry path.
func nextRecord(n int) (types.Record, error) {
	ev := &types.LibraryEvent{
		LibraryEventType: types.EventTypeNew,
		Book: &types.Book{
			BookID:     n + 1,
			BookName:   fmt.Sprintf("Load Test Book %d", n+1),
			BookAuthor: "loadtest",
		},
	}
	if faultRatio > 0 && rand.Float64() < faultRatio {
		ev.LibraryEventType = types.EventTypeUpdate
		ev.LibraryEventID = types.IntPtr(faultID)
	}

	value, err := pipeline.Encode(ev)
	if err != nil {
		return types.Record{}, err
	}
	key, err := pipeline.EncodeKey(ev.LibraryEventID)
	if err != nil {
		return types.Record{}, err
	}
	return types.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}, nil
}
