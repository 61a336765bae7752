package types

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of one work unit, keyed by its submission id.
type Result[V any, K comparable] struct {
	Value V
	Key   K
	Error error
}

// NewResult bundles a value, its key and an error.
func NewResult[V any, K comparable](v V, k K, err error) Result[V, K] {
	return Result[V, K]{Value: v, Key: k, Error: err}
}

// Future is a write-once result slot shared between a worker and the
// submitter. Any number of goroutines may wait on it.
type Future[V any, K comparable] struct {
	done   chan struct{}
	once   sync.Once
	result Result[V, K]
}

// NewFuture returns an unresolved future.
func NewFuture[V any, K comparable]() *Future[V, K] {
	return &Future[V, K]{done: make(chan struct{})}
}

// Resolve stores r and wakes all waiters. Only the first call has an
// effect; it reports whether this call resolved the future.
func (f *Future[V, K]) Resolve(r Result[V, K]) bool {
	resolved := false
	f.once.Do(func() {
		f.result = r
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future[V, K]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the result is available.
func (f *Future[V, K]) Get() (V, K, error) {
	<-f.done
	return f.result.Value, f.result.Key, f.result.Error
}

// GetWithContext waits for the result or for ctx to end, whichever comes
// first. On cancellation it returns zero values and ctx.Err().
func (f *Future[V, K]) GetWithContext(ctx context.Context) (V, K, error) {
	select {
	case <-f.done:
		return f.result.Value, f.result.Key, f.result.Error
	case <-ctx.Done():
		var v V
		var k K
		return v, k, ctx.Err()
	}
}

// GetWithTimeout is GetWithContext with a deadline relative to now.
func (f *Future[V, K]) GetWithTimeout(timeout time.Duration) (V, K, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return f.GetWithContext(ctx)
}

// TryGet returns the result if it is ready, without blocking.
func (f *Future[V, K]) TryGet() (V, K, error, bool) {
	select {
	case <-f.done:
		return f.result.Value, f.result.Key, f.result.Error, true
	default:
		var v V
		var k K
		return v, k, nil, false
	}
}

// IsReady reports whether the future has been resolved.
func (f *Future[V, K]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
