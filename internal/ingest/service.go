// Package ingest accepts library events over HTTP and publishes them to
// Kafka.
package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/publisher"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// EventSourceHeader names the system that produced an event.
const EventSourceHeader = "event-source"

// Sender publishes records.
type Sender interface {
	SendAsync(ctx context.Context, rec types.Record) *publisher.Future
	SendSync(ctx context.Context, rec types.Record) (publisher.Result, error)
}

// Service encodes library events and publishes them.
type Service struct {
	sender      Sender
	topic       string
	eventSource string
	logger      *zap.Logger
}

// NewService creates a service publishing to topic.
func NewService(sender Sender, topic, eventSource string, logger *zap.Logger) (*Service, error) {
	if sender == nil {
		return nil, errors.New("sender cannot be nil")
	}
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Service{sender: sender, topic: topic, eventSource: eventSource, logger: logger}, nil
}

// SendLibraryEvent publishes ev to the publisher's default topic without
// waiting for acknowledgement.
func (s *Service) SendLibraryEvent(ctx context.Context, ev *types.LibraryEvent) (*publisher.Future, error) {
	rec, err := s.record(ev, "", nil)
	if err != nil {
		return nil, err
	}
	return s.sender.SendAsync(ctx, rec), nil
}

// SendLibraryEventWithTopic publishes ev to an explicitly named topic.
func (s *Service) SendLibraryEventWithTopic(ctx context.Context, ev *types.LibraryEvent) (*publisher.Future, error) {
	rec, err := s.record(ev, s.topic, nil)
	if err != nil {
		return nil, err
	}
	return s.sender.SendAsync(ctx, rec), nil
}

// SendLibraryEventWithTopicAndHeader publishes ev with an event-source header.
func (s *Service) SendLibraryEventWithTopicAndHeader(ctx context.Context, ev *types.LibraryEvent) (*publisher.Future, error) {
	headers := []types.Header{{Key: EventSourceHeader, Value: []byte(s.eventSource)}}
	rec, err := s.record(ev, s.topic, headers)
	if err != nil {
		return nil, err
	}
	return s.sender.SendAsync(ctx, rec), nil
}

// SendLibraryEventSync publishes ev and waits for acknowledgement.
func (s *Service) SendLibraryEventSync(ctx context.Context, ev *types.LibraryEvent) (publisher.Result, error) {
	rec, err := s.record(ev, "", nil)
	if err != nil {
		return publisher.Result{}, err
	}
	return s.sender.SendSync(ctx, rec)
}

func (s *Service) record(ev *types.LibraryEvent, topic string, headers []types.Header) (types.Record, error) {
	value, err := pipeline.Encode(ev)
	if err != nil {
		return types.Record{}, err
	}
	key, err := pipeline.EncodeKey(ev.LibraryEventID)
	if err != nil {
		return types.Record{}, err
	}
	return types.Record{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}, nil
}
