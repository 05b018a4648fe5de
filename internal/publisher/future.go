package publisher

import (
	"context"
	"sync"
)

// Result describes where an acknowledged record landed.
type Result struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
}

// Future is the pending outcome of an asynchronous send.
type Future struct {
	done      chan struct{}
	once      sync.Once
	mu        sync.Mutex
	res       Result
	err       error
	callbacks []func(Result, error)
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the send is acknowledged or has failed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the send completes or ctx ends.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (f *Future) Result() (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.err
}

// Err returns the send error, or nil if the send succeeded or is pending.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// OnComplete registers fn to run once the send completes. If the send has
// already completed, fn runs immediately on the caller's goroutine.
// Callbacks run on the completing goroutine, never on the sender's.
func (f *Future) OnComplete(fn func(Result, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		res, err := f.res, f.err
		f.mu.Unlock()
		fn(res, err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// resolve completes the future. Only the first call has any effect.
func (f *Future) resolve(res Result, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.mu.Lock()
		f.res, f.err = res, err
		callbacks := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, fn := range callbacks {
			fn(res, err)
		}
		resolved = true
	})
	return resolved
}

// Resolved returns a future that has already completed with res and err.
func Resolved(res Result, err error) *Future {
	f := newFuture()
	f.resolve(res, err)
	return f
}
