package cli

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/store"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

type nopSender struct{}

func (nopSender) SendAsync(_ context.Context, rec types.Record) *publisher.Future {
	return publisher.Resolved(publisher.Result{Topic: rec.Topic}, nil)
}

func TestSetupAppliesLogLevelFlag(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("LOG_LEVEL", "info")
	logLevel = "debug"
	t.Cleanup(func() { logLevel = "" })

	cfg, log, err := setup()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotNil(t, log.Check(zap.DebugLevel, "debug enabled"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["consumer"])
	assert.True(t, names["producer"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestNewConsumerAppWiresPipeline(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ACK_MODE", "manual")
	cfg, err := config.Load()
	require.NoError(t, err)

	metrics := obs.NewMetrics("test", prometheus.NewRegistry())
	app, err := newConsumerApp(cfg, zap.NewNop(), metrics, store.NewMemoryStore(), nopSender{})
	require.NoError(t, err)
	require.NotNil(t, app.pool)
	require.NotNil(t, app.consumer)
	t.Cleanup(func() { _ = app.consumer.Close() })
}
