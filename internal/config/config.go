// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AckMode controls when consumed offsets are committed
type AckMode string

const (
	// AckModeAuto commits every record that reaches a terminal outcome,
	// including fatal ones
	AckModeAuto AckMode = "auto"
	// AckModeManual commits only records that succeeded or were handed to
	// recovery
	AckModeManual AckMode = "manual"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Kafka     KafkaConfig
	Worker    WorkerConfig
	Retry     RetryConfig
	Publisher PublisherConfig
	Store     StoreConfig
	HTTP      HTTPConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
	Service   ServiceConfig
}

// KafkaConfig holds Kafka connection settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	AckMode AckMode
}

// WorkerConfig holds consumer concurrency settings
type WorkerConfig struct {
	Count     int
	QueueSize int
}

// RetryConfig holds retry policy settings
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	// FaultInjectionEventID makes business processing fail with a recoverable
	// error for this event id. Zero disables it.
	FaultInjectionEventID int
}

// PublisherConfig holds producer settings
type PublisherConfig struct {
	SyncTimeout  time.Duration
	WriteTimeout time.Duration
	EventSource  string
}

// StoreConfig holds persistence settings
type StoreConfig struct {
	Driver      string
	DatabaseURL string
}

// HTTPConfig holds the ingest API settings
type HTTPConfig struct {
	Addr string
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service settings
type ServiceConfig struct {
	Name string
}

// Defaults
const (
	DefaultTopic                 = "library-events"
	DefaultGroupID               = "library-events-listener-group"
	DefaultWorkerCount           = 3
	DefaultWorkerQueueSize       = 100
	DefaultRetryMaxAttempts      = 3
	DefaultRetryBackoff          = time.Second
	DefaultFaultInjectionEventID = 111
	DefaultSyncTimeout           = time.Second
	DefaultWriteTimeout          = 10 * time.Second
	DefaultEventSource           = "scanner"
	DefaultHTTPAddr              = ":8080"
	DefaultMetricsPort           = 9090
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{}

	// Kafka configuration
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	// Parse comma-separated brokers
	brokers := strings.Split(kafkaBrokers, ",")
	cfg.Kafka.Brokers = make([]string, 0, len(brokers))
	for _, broker := range brokers {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, broker)
		}
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one valid broker address")
	}

	cfg.Kafka.Topic = getString("KAFKA_TOPIC", DefaultTopic)
	cfg.Kafka.GroupID = getString("KAFKA_GROUP_ID", DefaultGroupID)

	ackMode := AckMode(strings.ToLower(getString("KAFKA_ACK_MODE", string(AckModeAuto))))
	if ackMode != AckModeAuto && ackMode != AckModeManual {
		return nil, fmt.Errorf("KAFKA_ACK_MODE must be %q or %q, got %q", AckModeAuto, AckModeManual, ackMode)
	}
	cfg.Kafka.AckMode = ackMode

	// Worker configuration
	var err error
	if cfg.Worker.Count, err = getPositiveInt("WORKER_COUNT", DefaultWorkerCount); err != nil {
		return nil, err
	}
	if cfg.Worker.QueueSize, err = getPositiveInt("WORKER_QUEUE_SIZE", DefaultWorkerQueueSize); err != nil {
		return nil, err
	}

	// Retry configuration
	if cfg.Retry.MaxAttempts, err = getPositiveInt("RETRY_MAX_ATTEMPTS", DefaultRetryMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.Retry.Backoff, err = getDuration("RETRY_BACKOFF", DefaultRetryBackoff); err != nil {
		return nil, err
	}
	if cfg.Retry.FaultInjectionEventID, err = getInt("FAULT_INJECTION_EVENT_ID", DefaultFaultInjectionEventID); err != nil {
		return nil, err
	}

	// Publisher configuration
	if cfg.Publisher.SyncTimeout, err = getDuration("PUBLISH_SYNC_TIMEOUT", DefaultSyncTimeout); err != nil {
		return nil, err
	}
	if cfg.Publisher.WriteTimeout, err = getDuration("PUBLISH_WRITE_TIMEOUT", DefaultWriteTimeout); err != nil {
		return nil, err
	}
	cfg.Publisher.EventSource = getString("PUBLISH_EVENT_SOURCE", DefaultEventSource)

	// Store configuration
	cfg.Store.Driver = strings.ToLower(getString("STORE_DRIVER", StoreDriverMemory))
	cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.Store.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverMemory, StoreDriverPostgres, cfg.Store.Driver)
	}

	// HTTP and metrics configuration
	cfg.HTTP.Addr = getString("HTTP_ADDR", DefaultHTTPAddr)
	if cfg.Metrics.Port, err = getPositiveInt("METRICS_PORT", DefaultMetricsPort); err != nil {
		return nil, err
	}

	// Logging configuration
	cfg.Logging.Level = getString("LOG_LEVEL", "info")

	// Service configuration
	cfg.Service.Name = getString("SERVICE_NAME", "library-events")

	return cfg, nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getPositiveInt(key string, def int) (int, error) {
	n, err := getInt(key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
