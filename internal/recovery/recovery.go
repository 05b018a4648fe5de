// Package recovery re-publishes records whose retries were exhausted and
// surfaces records that failed fatally.
package recovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Recovery metadata headers. Earlier values are replaced when a record is
// recovered more than once.
const (
	HeaderPrefix            = "recovery-"
	HeaderOriginalPartition = HeaderPrefix + "original-partition"
	HeaderOriginalOffset    = HeaderPrefix + "original-offset"
	HeaderAttempts          = HeaderPrefix + "attempts"
	HeaderError             = HeaderPrefix + "error"
	HeaderTimestamp         = HeaderPrefix + "timestamp"
)

// ErrNoRecord is returned when there is no record to recover.
var ErrNoRecord = errors.New("retry context carries no record")

// UnrecoverableError is surfaced for records that failed fatally.
type UnrecoverableError struct {
	Err      error
	Attempts int
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// Sender sends a record without waiting for acknowledgement.
type Sender interface {
	SendAsync(ctx context.Context, rec types.Record) *publisher.Future
}

// Publisher hands exhausted records back to their source topic.
type Publisher struct {
	sender  Sender
	logger  *zap.Logger
	metrics *obs.Metrics
	now     func() time.Time
}

// NewPublisher creates a recovery publisher.
func NewPublisher(sender Sender, logger *zap.Logger, metrics *obs.Metrics) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("sender cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Publisher{
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

// Recover handles a record whose retry run ended in state. An Exhausted
// record with a retryable last failure is re-published with its original key
// and value, and the returned future tracks that send. Any other failure is
// returned as an *UnrecoverableError for the caller's error boundary.
func (p *Publisher) Recover(ctx context.Context, state retry.State, rc *retry.Context) (*publisher.Future, error) {
	if rc == nil || rc.Record == nil {
		return nil, ErrNoRecord
	}
	if state != retry.Exhausted || rc.LastClass != retry.Retryable {
		return nil, &UnrecoverableError{Err: rc.LastErr, Attempts: rc.Attempt}
	}

	src := rc.Record
	rec := types.Record{
		Topic:   src.SourceTopic(),
		Key:     bytes.Clone(src.Key),
		Value:   bytes.Clone(src.Value),
		Headers: p.headers(src, rc),
	}

	p.logger.Info("Inside recovery",
		zap.String("topic", rec.Topic),
		zap.Int("original_partition", src.Partition()),
		zap.Int64("original_offset", src.Offset()),
		zap.Int("attempts", rc.Attempt),
		zap.Error(rc.LastErr),
	)

	f := p.sender.SendAsync(ctx, rec)
	f.OnComplete(func(res publisher.Result, err error) {
		if err != nil {
			p.metrics.IncrementRecoveryPublished(obs.StatusFailure)
			p.logger.Error("Failed to re-publish recovered record",
				zap.String("topic", rec.Topic),
				zap.Int("original_partition", src.Partition()),
				zap.Int64("original_offset", src.Offset()),
				zap.Error(err),
			)
			return
		}
		p.metrics.IncrementRecoveryPublished(obs.StatusSuccess)
		p.logger.Info("Recovered record re-published",
			zap.String("topic", res.Topic),
			zap.Int("partition", res.Partition),
			zap.Int64("offset", res.Offset),
			zap.Int("original_partition", src.Partition()),
			zap.Int64("original_offset", src.Offset()),
		)
	})
	return f, nil
}

func (p *Publisher) headers(src *types.Record, rc *retry.Context) []types.Header {
	out := make([]types.Header, 0, len(src.Headers)+5)
	for _, h := range src.Headers {
		if strings.HasPrefix(h.Key, HeaderPrefix) {
			continue
		}
		out = append(out, types.Header{Key: h.Key, Value: bytes.Clone(h.Value)})
	}

	errMsg := ""
	if rc.LastErr != nil {
		errMsg = rc.LastErr.Error()
	}
	return append(out,
		types.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(src.Partition()))},
		types.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(src.Offset(), 10))},
		types.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(rc.Attempt))},
		types.Header{Key: HeaderError, Value: []byte(errMsg)},
		types.Header{Key: HeaderTimestamp, Value: []byte(p.now().UTC().Format(time.RFC3339))},
	)
}
