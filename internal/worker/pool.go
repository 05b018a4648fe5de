// Package worker provides a fixed-size worker pool that processes records
// with one worker bound to each partition slot.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEventStream/internal/types"
)

// Handler processes one record. It owns the record until it returns.
type Handler interface {
	Dispatch(ctx context.Context, rec *types.Record)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec *types.Record)

func (f HandlerFunc) Dispatch(ctx context.Context, rec *types.Record) { f(ctx, rec) }

// Pool runs workerCount workers. Records from the same partition always go
// to the same worker, so they are handled in offset order and never
// concurrently.
type Pool struct {
	workerCount int
	queues      []*queue.Queue
	handler     Handler
	logger      *zap.Logger
	metrics     *obs.Metrics
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewPool creates a new worker pool with the specified number of workers
// workerCount and queueSize must be greater than 0
func NewPool(workerCount, queueSize int, handler Handler, logger *zap.Logger, metrics *obs.Metrics) (*Pool, error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("worker count must be greater than 0, got: %d", workerCount)
	}
	if queueSize <= 0 {
		return nil, fmt.Errorf("queue size must be greater than 0, got: %d", queueSize)
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	queues := make([]*queue.Queue, workerCount)
	for i := range queues {
		queues[i] = queue.NewQueue(queueSize, metrics)
	}
	metrics.NullifyQueueDepth()

	return &Pool{
		workerCount: workerCount,
		queues:      queues,
		handler:     handler,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Start launches the workers. Returns an error if the pool is already started
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.logger.Info("Starting worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	// Create a context that cancels when the pool is stopped
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.started = true

	for i := range p.workerCount {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Slot returns the worker index that owns partition.
func (p *Pool) Slot(partition int) int {
	if partition < 0 {
		return 0
	}
	return partition % p.workerCount
}

// Submit queues rec on the worker that owns its partition. It blocks while
// that worker's queue is full.
func (p *Pool) Submit(ctx context.Context, rec *types.Record) error {
	if rec == nil {
		return errors.New("record cannot be nil")
	}
	if err := p.queues[p.Slot(rec.Partition())].Enqueue(ctx, rec); err != nil {
		return err
	}
	p.metrics.IncrementEventsIngested()
	return nil
}

// worker is the main loop for a single worker goroutine
func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started",
		zap.Int("workerID", workerID),
	)

	// Create a combined context that cancels when either ctx or p.ctx cancels
	combinedCtx, combinedCancel := p.combineContexts(ctx)
	defer combinedCancel()

	q := p.queues[workerID]
	for {
		rec, err := q.Dequeue(combinedCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Debug("Worker stopping due to context cancellation",
					zap.Int("workerID", workerID),
				)
				return
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				p.logger.Debug("Worker stopping due to queue closed",
					zap.Int("workerID", workerID),
				)
				return
			}

			p.logger.Error("Failed to dequeue record",
				zap.Error(err),
				zap.Int("workerID", workerID),
			)
			continue
		}

		p.handler.Dispatch(combinedCtx, rec)
	}
}

// combineContexts creates a context that cancels when either ctx1 or pool's context cancels
// Returns the combined context and a cancel function that should be called to clean up
func (p *Pool) combineContexts(ctx1 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)
	stop := context.AfterFunc(p.ctx, cancel)
	return combinedCtx, func() {
		stop()
		cancel()
	}
}

// Stop cancels the workers, abandoning in-flight retries, and waits for them
// to return. Queued records are discarded; they were not committed and the
// broker redelivers them.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	p.logger.Info("Stopping worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	for _, q := range p.queues {
		q.Close()
	}
	p.metrics.NullifyQueueDepth()

	p.logger.Info("Worker pool stopped",
		zap.Int("workerCount", p.workerCount),
	)

	p.ctx = nil
	p.cancel = nil

	return nil
}

// Errors
var (
	ErrPoolAlreadyStarted = &PoolError{msg: "worker pool is already started"}
)

// PoolError represents a worker pool operation error
type PoolError struct {
	msg string
}

func (e *PoolError) Error() string {
	return e.msg
}
