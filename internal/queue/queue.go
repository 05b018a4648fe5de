// Package queue provides a bounded buffered queue for records with backpressure support
package queue

import (
	"context"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Queue represents a bounded buffered channel for records
// When the queue is full, Enqueue blocks, providing backpressure
type Queue struct {
	records chan *types.Record
	done    chan struct{}
	size    int
	metrics *obs.Metrics
	once    sync.Once
}

// NewQueue creates a new Queue with the specified buffer size
func NewQueue(size int, metrics *obs.Metrics) *Queue {
	return &Queue{
		records: make(chan *types.Record, size),
		done:    make(chan struct{}),
		size:    size,
		metrics: metrics,
	}
}

// Enqueue adds a record to the queue
// This operation blocks if the queue is full (backpressure)
// Returns an error if the context is cancelled or the queue is closed
func (q *Queue) Enqueue(ctx context.Context, rec *types.Record) error {
	// A closed queue must never accept a send.
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.records <- rec:
		q.metrics.IncrementQueueDepth()
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns a record from the queue
// This operation blocks if the queue is empty
// Returns an error if the context is cancelled or the queue is closed and drained
func (q *Queue) Dequeue(ctx context.Context) (*types.Record, error) {
	select {
	case rec := <-q.records:
		q.metrics.DecrementQueueDepth()
		return rec, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth returns the current number of records in the queue
func (q *Queue) Depth() int {
	return len(q.records)
}

// Capacity returns the queue bound
func (q *Queue) Capacity() int {
	return q.size
}

// Close stops the queue. Pending records are discarded and left to broker
// redelivery.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		for {
			select {
			case <-q.records:
				q.metrics.DecrementQueueDepth()
			default:
				return
			}
		}
	})
}

// Errors
var (
	ErrQueueClosed = &QueueError{msg: "queue is closed"}
)

// QueueError represents a queue operation error
type QueueError struct {
	msg string
}

func (e *QueueError) Error() string {
	return e.msg
}
