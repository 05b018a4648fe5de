// Package consumer reads library-event records from Kafka and hands them to
// the worker pool.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

const commitBufferSize = 100

// Submitter accepts consumed records for processing.
type Submitter interface {
	Submit(ctx context.Context, rec *types.Record) error
}

// messageReader is the subset of *kafka.Reader used by the consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer represents a Kafka consumer
type Consumer struct {
	reader    messageReader
	logger    *zap.Logger
	submitter Submitter
	ackMode   config.AckMode
	brokers   []string
	topic     string
	groupID   string

	mu         sync.RWMutex
	commitChan chan kafka.Message
	stopped    bool
}

// NewConsumer creates a new Kafka consumer instance
func NewConsumer(cfg *config.Config, logger *zap.Logger, submitter Submitter) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0, // Synchronous commits from commitLoop
	})
	return newConsumer(reader, cfg, logger, submitter)
}

func newConsumer(reader messageReader, cfg *config.Config, logger *zap.Logger, submitter Submitter) (*Consumer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	return &Consumer{
		reader:     reader,
		logger:     logger,
		submitter:  submitter,
		ackMode:    cfg.Kafka.AckMode,
		brokers:    cfg.Kafka.Brokers,
		topic:      cfg.Kafka.Topic,
		groupID:    cfg.Kafka.GroupID,
		commitChan: make(chan kafka.Message, commitBufferSize),
	}, nil
}

// CommitMessage queues the record's offset for commit. The dispatcher calls it
// once a record reaches a terminal outcome. It never blocks; a dropped commit is
// covered by the next commit on the same partition.
func (c *Consumer) CommitMessage(rec *types.Record) {
	if rec == nil || rec.Meta == nil {
		return
	}
	msg := kafka.Message{
		Topic:     rec.Meta.Topic,
		Partition: rec.Meta.Partition,
		Offset:    rec.Meta.Offset,
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		c.logger.Debug("Consumer stopped, skipping commit",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		return
	}

	select {
	case c.commitChan <- msg:
	default:
		c.logger.Warn("Commit channel full, message may be re-processed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Start consumes records until ctx is canceled
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer",
		zap.Strings("brokers", c.brokers),
		zap.String("topic", c.topic),
		zap.String("groupID", c.groupID),
		zap.String("ackMode", string(c.ackMode)),
	)

	commitDone := make(chan struct{})
	go c.commitLoop(commitDone)
	defer c.stopCommits(commitDone)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer stopped due to context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("Kafka reader closed, stopping consumer")
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka",
				zap.Error(err),
			)
			continue
		}

		rec := &types.Record{
			Topic:   msg.Topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: fromKafkaHeaders(msg.Headers),
			Meta: &types.RecordMeta{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Time:      msg.Time,
			},
		}

		// Blocks while the owning worker's queue is full.
		if err := c.submitter.Submit(ctx, rec); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer stopped due to context cancellation during submit")
				return ctx.Err()
			}
			c.logger.Error("Failed to submit record",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return fmt.Errorf("submit record: %w", err)
		}

		c.logger.Debug("Submitted record",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("keyLength", len(msg.Key)),
			zap.Int("valueLength", len(msg.Value)),
		)
	}
}

func (c *Consumer) stopCommits(commitDone chan struct{}) {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.commitChan)
	}
	c.mu.Unlock()
	<-commitDone
}

// commitLoop commits offsets as they are received and drains the channel
// before returning
func (c *Consumer) commitLoop(done chan struct{}) {
	defer close(done)

	commitCtx := context.Background()

	for msg := range c.commitChan {
		if err := c.reader.CommitMessages(commitCtx, msg); err != nil {
			c.logger.Error("Failed to commit offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}
		c.logger.Debug("Committed offset",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the Kafka consumer and releases resources
func (c *Consumer) Close() error {
	c.logger.Info("Closing Kafka consumer")
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}

func fromKafkaHeaders(headers []kafka.Header) []types.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]types.Header, len(headers))
	for i, h := range headers {
		out[i] = types.Header{Key: h.Key, Value: h.Value}
	}
	return out
}
