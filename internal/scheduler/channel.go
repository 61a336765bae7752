package scheduler

import (
	"context"
	"sync"
)

// channelQueue wraps a buffered channel so that Close can race with Push
// without a send on a closed channel.
type channelQueue[T any] struct {
	ch   chan T
	quit chan struct{} // closed by Close to abort blocked pushes

	mu      sync.RWMutex
	closed  bool
	pushers sync.WaitGroup
	once    sync.Once
}

func newChannelQueue[T any](capacity int) *channelQueue[T] {
	return &channelQueue[T]{
		ch:   make(chan T, max(capacity, 0)),
		quit: make(chan struct{}),
	}
}

func (q *channelQueue[T]) Push(ctx context.Context, v T) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.pushers.Add(1)
	q.mu.RUnlock()
	defer q.pushers.Done()

	select {
	case q.ch <- v:
		return nil
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *channelQueue[T]) Pop(ctx context.Context) (T, error) {
	select {
	case v, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, ErrQueueClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (q *channelQueue[T]) TryPop() (T, bool) {
	select {
	case v, ok := <-q.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Close stops new pushes, waits for in-flight pushes to settle and then
// closes the channel so consumers see the end after draining it.
func (q *channelQueue[T]) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.quit)
		q.pushers.Wait()
		close(q.ch)
	})
}

func (q *channelQueue[T]) Len() int {
	return len(q.ch)
}
