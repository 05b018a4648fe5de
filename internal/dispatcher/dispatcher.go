// Package dispatcher drives one consumed record through decoding, bounded
// retries, recovery and offset acknowledgement.
package dispatcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Processor applies a decoded event.
type Processor interface {
	Process(ctx context.Context, ev types.LibraryEvent) (types.LibraryEvent, error)
}

// Recoverer handles records whose retry run did not succeed.
type Recoverer interface {
	Recover(ctx context.Context, state retry.State, rc *retry.Context) (*publisher.Future, error)
}

// Committer acknowledges a consumed record.
type Committer interface {
	CommitMessage(rec *types.Record)
}

// Outcome reports how a record was handled.
type Outcome struct {
	State    retry.State
	Attempts int
	Err      error
}

// Dispatcher handles records delivered by the worker pool.
type Dispatcher struct {
	processor Processor
	executor  *retry.Executor
	recoverer Recoverer
	committer Committer
	ackMode   config.AckMode
	logger    *zap.Logger
	metrics   *obs.Metrics
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithCommitter sets the committer that acknowledges finished records.
func WithCommitter(c Committer) Option {
	return func(d *Dispatcher) { d.committer = c }
}

// WithMetrics records processing outcomes.
func WithMetrics(m *obs.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a dispatcher.
func New(processor Processor, executor *retry.Executor, recoverer Recoverer, ackMode config.AckMode, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if executor == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if recoverer == nil {
		return nil, errors.New("recoverer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if ackMode != config.AckModeAuto && ackMode != config.AckModeManual {
		return nil, errors.New("unknown ack mode: " + string(ackMode))
	}

	d := &Dispatcher{
		processor: processor,
		executor:  executor,
		recoverer: recoverer,
		ackMode:   ackMode,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.committer == nil {
		return nil, errors.New("committer cannot be nil")
	}
	return d, nil
}

// Dispatch implements worker.Handler.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *types.Record) {
	d.Handle(ctx, rec)
}

// Handle processes rec to completion. Decode failures are fatal without a
// processing attempt. Processing failures are retried per the executor's
// policy; exhausted records are re-published and fatal ones are reported by
// the error boundary.
func (d *Dispatcher) Handle(ctx context.Context, rec *types.Record) Outcome {
	d.logger.Info("Consumer record received",
		zap.String("topic", rec.SourceTopic()),
		zap.Int("partition", rec.Partition()),
		zap.Int64("offset", rec.Offset()),
		zap.Int("key_len", len(rec.Key)),
		zap.Int("value_len", len(rec.Value)),
	)
	d.logger.Debug("Consumer record value", zap.ByteString("value", rec.Value))

	ev, err := pipeline.Decode(ctx, rec.Value)
	if err != nil {
		if errors.Is(err, pipeline.ErrContextCanceled) {
			return d.aborted(rec, 0)
		}
		return d.boundary(rec, err, 0)
	}

	state, rc := d.executor.Run(ctx, rec, func(ctx context.Context) error {
		_, err := d.processor.Process(ctx, *ev)
		return err
	})

	attempts := 1
	if rc != nil {
		attempts = rc.Attempt
	}

	switch state {
	case retry.Succeeded:
		d.metrics.IncrementEventsProcessed()
		d.committer.CommitMessage(rec)
		return Outcome{State: state, Attempts: attemptsOnSuccess(rc)}

	case retry.Exhausted:
		d.logger.Warn("Retries exhausted, handing record to recovery",
			zap.Int("partition", rec.Partition()),
			zap.Int64("offset", rec.Offset()),
			zap.Int("attempts", attempts),
			zap.Error(rc.LastErr),
		)
		if _, err := d.recoverer.Recover(ctx, state, rc); err != nil {
			return d.boundary(rec, err, attempts)
		}
		d.committer.CommitMessage(rec)
		return Outcome{State: state, Attempts: attempts, Err: rc.LastErr}

	case retry.FatalStop:
		var lastErr error
		if rc != nil {
			lastErr = rc.LastErr
		}
		return d.boundary(rec, lastErr, attempts)

	default:
		return d.aborted(rec, attempts)
	}
}

// boundary is the terminal handler for records that cannot be processed or
// recovered. The record is logged; auto mode commits it, manual mode leaves it
// uncommitted.
func (d *Dispatcher) boundary(rec *types.Record, err error, attempts int) Outcome {
	kind := retry.Kind(err)
	d.metrics.IncrementFatalErrors(kind)
	commit := d.ackMode == config.AckModeAuto

	fields := []zap.Field{
		zap.String("topic", rec.SourceTopic()),
		zap.Int("partition", rec.Partition()),
		zap.Int64("offset", rec.Offset()),
		zap.Int("key_len", len(rec.Key)),
		zap.Int("attempts", attempts),
		zap.String("kind", kind),
		zap.Bool("committed", commit),
		zap.Error(err),
	}
	d.logger.Error("Record processing failed permanently", fields...)
	if commit {
		d.committer.CommitMessage(rec)
	}

	return Outcome{State: retry.FatalStop, Attempts: attempts, Err: err}
}

func (d *Dispatcher) aborted(rec *types.Record, attempts int) Outcome {
	d.logger.Info("Record processing abandoned on shutdown",
		zap.Int("partition", rec.Partition()),
		zap.Int64("offset", rec.Offset()),
		zap.Int("attempts", attempts),
	)
	return Outcome{State: retry.Aborted, Attempts: attempts}
}

func attemptsOnSuccess(rc *retry.Context) int {
	if rc == nil {
		return 1
	}
	return rc.Attempt + 1
}
