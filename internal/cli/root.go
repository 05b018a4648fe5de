// Package cli wires the library-events commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "library-events",
	Short: "Library event streaming service",
	Long: `library-events ingests library events over HTTP, publishes them to Kafka,
and consumes them with bounded retries and recovery re-publishing.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(consumerCmd, producerCmd)
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Service.Name)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
