// Package publisher sends records to Kafka in fire-and-forget or
// acknowledged-with-timeout mode.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// MessageIDHeader correlates a written message with its pending Future.
const MessageIDHeader = "message-id"

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes records to Kafka.
type Publisher struct {
	writer       messageWriter
	logger       *zap.Logger
	metrics      *obs.Metrics
	topic        string
	syncTimeout  time.Duration
	writeTimeout time.Duration

	pending sync.Map // message id -> *pendingSend

	// mu orders wg.Add in send against the closed flip in Close.
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

type pendingSend struct {
	future *Future
	key    []byte
}

// NewPublisher creates a publisher backed by a kafka.Writer.
func NewPublisher(cfg *config.Config, logger *zap.Logger, metrics *obs.Metrics) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	p, err := newPublisher(nil, cfg.Kafka.Topic, cfg.Publisher, logger, metrics)
	if err != nil {
		return nil, err
	}

	// Topic is left unset so each message picks its own.
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.Publisher.WriteTimeout,
		ReadTimeout:  10 * time.Second,
		Completion:   p.complete,
	}
	return p, nil
}

func newPublisher(w messageWriter, topic string, cfg config.PublisherConfig, logger *zap.Logger, metrics *obs.Metrics) (*Publisher, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if topic == "" {
		return nil, errors.New("default topic is required")
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = config.DefaultSyncTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultWriteTimeout
	}
	return &Publisher{
		writer:       w,
		logger:       logger,
		metrics:      metrics,
		topic:        topic,
		syncTimeout:  cfg.SyncTimeout,
		writeTimeout: cfg.WriteTimeout,
	}, nil
}

// DefaultTopic returns the topic used when a record names none.
func (p *Publisher) DefaultTopic() string {
	return p.topic
}

// SendAsync hands rec to the writer and returns immediately. The outcome is
// logged when the broker acknowledges or rejects the record.
func (p *Publisher) SendAsync(ctx context.Context, rec types.Record) *Future {
	start := time.Now()
	f := p.send(ctx, rec)
	f.OnComplete(func(res Result, err error) {
		if err != nil {
			p.metrics.ObservePublish(obs.ModeAsync, obs.StatusFailure, time.Since(start))
			p.logger.Error("Error sending the message",
				zap.String("topic", res.Topic),
				zap.Int("key_len", len(rec.Key)),
				zap.Error(err),
			)
			return
		}
		p.metrics.ObservePublish(obs.ModeAsync, obs.StatusSuccess, time.Since(start))
		p.logger.Info("Message sent successfully",
			zap.String("topic", res.Topic),
			zap.Int("partition", res.Partition),
			zap.Int64("offset", res.Offset),
		)
	})
	return f
}

// SendSync sends rec and waits up to the configured sync timeout for the
// broker acknowledgement. A timed-out write keeps running in the background
// and may still be delivered.
func (p *Publisher) SendSync(ctx context.Context, rec types.Record) (Result, error) {
	start := time.Now()
	f := p.send(ctx, rec)

	timer := time.NewTimer(p.syncTimeout)
	defer timer.Stop()

	select {
	case <-f.Done():
		res, err := f.Result()
		if err != nil {
			p.metrics.ObservePublish(obs.ModeSync, obs.StatusFailure, time.Since(start))
			p.logger.Error("Error sending the message synchronously", zap.Error(err))
			return Result{}, err
		}
		p.metrics.ObservePublish(obs.ModeSync, obs.StatusSuccess, time.Since(start))
		p.logger.Info("Message sent synchronously",
			zap.String("topic", res.Topic),
			zap.Int("partition", res.Partition),
			zap.Int64("offset", res.Offset),
		)
		return res, nil
	case <-timer.C:
		err := &PublishTimeoutError{Timeout: p.syncTimeout}
		p.metrics.ObservePublish(obs.ModeSync, obs.StatusTimeout, time.Since(start))
		p.logger.Error("Timed out waiting for acknowledgement", zap.Duration("timeout", p.syncTimeout))
		return Result{}, err
	case <-ctx.Done():
		return Result{}, errors.Join(ErrPublishInterrupted, ctx.Err())
	}
}

func (p *Publisher) send(ctx context.Context, rec types.Record) *Future {
	f := newFuture()
	topic := rec.Topic
	if topic == "" {
		topic = p.topic
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		f.resolve(Result{Topic: topic, Partition: -1, Offset: -1, Key: rec.Key}, ErrPublisherClosed)
		return f
	}
	p.wg.Add(1)
	p.mu.Unlock()

	id := uuid.NewString()
	msg := kafka.Message{
		Topic:   topic,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: toKafkaHeaders(rec.Headers, id),
	}
	p.pending.Store(id, &pendingSend{future: f, key: rec.Key})

	go func() {
		defer p.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
		defer cancel()

		err := p.writer.WriteMessages(writeCtx, msg)

		// The completion hook normally resolves the future first. This covers
		// writes that fail before reaching the broker.
		if v, ok := p.pending.LoadAndDelete(id); ok {
			ps := v.(*pendingSend)
			res := Result{Topic: topic, Partition: -1, Offset: -1, Key: ps.key}
			if err != nil {
				ps.future.resolve(res, &PublishFailure{Err: err})
				return
			}
			ps.future.resolve(res, nil)
		}
	}()

	return f
}

// complete is the kafka.Writer completion hook.
func (p *Publisher) complete(messages []kafka.Message, err error) {
	for _, m := range messages {
		id := headerValue(m.Headers, MessageIDHeader)
		if id == "" {
			continue
		}
		v, ok := p.pending.LoadAndDelete(id)
		if !ok {
			continue
		}
		ps := v.(*pendingSend)
		res := Result{Topic: m.Topic, Partition: m.Partition, Offset: m.Offset, Key: ps.key}
		if err != nil {
			ps.future.resolve(res, &PublishFailure{Err: err})
			continue
		}
		ps.future.resolve(res, nil)
	}
}

// Close waits for in-flight writes and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}

func toKafkaHeaders(headers []types.Header, messageID string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key == MessageIDHeader {
			continue
		}
		out = append(out, kafka.Header{Key: h.Key, Value: h.Value})
	}
	return append(out, kafka.Header{Key: MessageIDHeader, Value: []byte(messageID)})
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
