package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// Cache line size for padding to prevent false sharing
	cacheLinePadding = 128
	// Ring size used when no capacity is configured
	defaultRingCapacity = 1024
	// Spins before a blocked producer or consumer yields
	maxSpinAttempts = 10
)

// ringSlot is one cell of the ring. sequence tells producers and consumers
// whose turn it is: == pos means free for the producer at pos,
// == pos+1 means filled for the consumer at pos.
type ringSlot[T any] struct {
	sequence uint64
	value    T
	_        [cacheLinePadding - 16]byte
}

// mpmcQueue is a bounded lock-free ring (Vyukov style) with a notification
// channel so idle consumers sleep instead of spinning.
type mpmcQueue[T any] struct {
	ring []ringSlot[T]
	mask uint64

	_    [cacheLinePadding]byte
	head uint64
	_    [cacheLinePadding - 8]byte
	tail uint64
	_    [cacheLinePadding - 8]byte

	// Close flips closing under mu, closes quit, waits for pushers and
	// only then sets closed and closes closeC. Consumers watch closed, so
	// they never see the end while a push is between its check and its CAS.
	mu      sync.RWMutex
	closing bool
	pushers sync.WaitGroup
	once    sync.Once
	quit    chan struct{} // closed first by Close to abort spinning pushes

	closed  atomic.Bool
	notifyC chan struct{} // buffered, never closed
	closeC  chan struct{} // closed by Close once pushes settled

	bounded  bool
	capacity int
}

func newMPMCQueue[T any](capacity int, bounded bool) *mpmcQueue[T] {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	capacity = nextPowerOfTwo(capacity)

	ring := make([]ringSlot[T], capacity)
	for i := range ring {
		ring[i].sequence = uint64(i) // #nosec G115 -- i is a ring index
	}

	return &mpmcQueue[T]{
		ring:     ring,
		mask:     uint64(capacity - 1), // #nosec G115 -- capacity is positive
		bounded:  bounded,
		capacity: capacity,
		notifyC:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
		closeC:   make(chan struct{}),
	}
}

func (q *mpmcQueue[T]) Push(ctx context.Context, v T) error {
	q.mu.RLock()
	if q.closing {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.pushers.Add(1)
	q.mu.RUnlock()
	defer q.pushers.Done()

	spins := 0
	for {
		tail := atomic.LoadUint64(&q.tail)
		slot := &q.ring[tail&q.mask]
		diff := int64(atomic.LoadUint64(&slot.sequence)) - int64(tail) // #nosec G115 -- sequence arithmetic

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				slot.value = v
				atomic.StoreUint64(&slot.sequence, tail+1)
				q.notify()
				return nil
			}
			continue
		case diff < 0 && q.bounded:
			return ErrQueueFull
		}

		spins++
		if spins > maxSpinAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.quit:
				return ErrQueueClosed
			default:
			}
			runtime.Gosched()
			spins = 0
		}
	}
}

func (q *mpmcQueue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	spins := 0

	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}

		if q.closed.Load() && q.Len() == 0 {
			return zero, ErrQueueClosed
		}

		spins++
		if spins < maxSpinAttempts {
			runtime.Gosched()
			continue
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.closeC:
			// keep draining until empty
			spins = 0
		case <-q.notifyC:
			spins = 0
		}
	}
}

func (q *mpmcQueue[T]) TryPop() (T, bool) {
	var zero T

	for {
		head := atomic.LoadUint64(&q.head)
		slot := &q.ring[head&q.mask]
		diff := int64(atomic.LoadUint64(&slot.sequence)) - int64(head+1) // #nosec G115 -- sequence arithmetic

		if diff != 0 {
			return zero, false
		}

		if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
			v := slot.value
			slot.value = zero
			// hand the slot back to the producer one lap ahead
			atomic.StoreUint64(&slot.sequence, head+q.mask+1)
			// a Push may have been swallowed by another consumer's notify
			if q.Len() > 0 {
				q.notify()
			}
			return v, true
		}
	}
}

// Close stops new pushes and returns once every in-flight push has either
// published its value or given up.
func (q *mpmcQueue[T]) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closing = true
		q.mu.Unlock()

		close(q.quit)
		q.pushers.Wait()

		q.closed.Store(true)
		close(q.closeC)
	})
}

func (q *mpmcQueue[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if tail > head {
		return int(tail - head) // #nosec G115 -- bounded by ring capacity
	}
	return 0
}

// Cap returns the ring size after rounding up to a power of two.
func (q *mpmcQueue[T]) Cap() int {
	return q.capacity
}

func (q *mpmcQueue[T]) notify() {
	select {
	case q.notifyC <- struct{}{}:
	default:
	}
}
