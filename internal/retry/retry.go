package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// State is the terminal state of a retry run.
type State int

const (
	Attempting State = iota
	Succeeded
	Exhausted
	FatalStop
	// Aborted means the run was abandoned because ctx ended.
	Aborted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case FatalStop:
		return "fatal"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Context describes the failed attempts of one record. It is created on the
// first failure and owned by the goroutine running the record.
type Context struct {
	Attempt   int
	LastErr   error
	LastClass Class
	Record    *types.Record
}

// Executor runs an operation up to MaxAttempts times with a fixed backoff
// between attempts.
type Executor struct {
	maxAttempts int
	backoff     time.Duration
	classify    func(error) Class
	logger      *zap.Logger
	metrics     *obs.Metrics
}

// Option customizes an Executor.
type Option func(*Executor)

// WithClassifier replaces the default classifier.
func WithClassifier(fn func(error) Class) Option {
	return func(e *Executor) { e.classify = fn }
}

// WithMetrics records retry attempts and exhaustion.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor from cfg.
func NewExecutor(cfg config.RetryConfig, logger *zap.Logger, opts ...Option) (*Executor, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	if cfg.Backoff < 0 {
		return nil, errors.New("backoff must not be negative")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	e := &Executor{
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		classify:    Classify,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MaxAttempts returns the total number of invocations allowed per record.
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Run invokes fn until it succeeds, fails fatally, or MaxAttempts
// invocations have failed. Each invocation gets a fresh call. The returned
// Context is nil when fn never failed.
func (e *Executor) Run(ctx context.Context, rec *types.Record, fn func(ctx context.Context) error) (State, *Context) {
	if ctx.Err() != nil {
		return Aborted, nil
	}

	var rc *Context
	operation := func() (struct{}, error) {
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}

		if rc == nil {
			rc = &Context{Record: rec}
		}
		rc.Attempt++
		rc.LastErr = err
		rc.LastClass = e.classify(err)

		if rc.LastClass == Fatal || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	notify := func(err error, wait time.Duration) {
		e.metrics.IncrementRetryAttempts()
		e.logger.Warn("Retrying record after failure",
			zap.Int("attempt", rc.Attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Duration("backoff", wait),
			zap.Int("partition", rec.Partition()),
			zap.Int64("offset", rec.Offset()),
			zap.Error(err),
		)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(e.backoff)),
		backoff.WithMaxTries(uint(e.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	switch {
	case err == nil:
		return Succeeded, rc
	case ctx.Err() != nil:
		return Aborted, rc
	case rc == nil || rc.LastClass == Fatal:
		return FatalStop, rc
	default:
		e.metrics.IncrementRetryExhausted()
		return Exhausted, rc
	}
}
