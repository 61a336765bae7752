package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func strategies() []Config {
	return []Config{
		{Strategy: StrategyChannel, Capacity: 16},
		{Strategy: StrategyMPMC, Capacity: 16},
	}
}

func TestQueue_FIFO(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			q := NewQueue[int](cfg)
			ctx := context.Background()

			for i := range 10 {
				if err := q.Push(ctx, i); err != nil {
					t.Fatalf("push %d: %v", i, err)
				}
			}
			if q.Len() != 10 {
				t.Fatalf("expected len 10, got %d", q.Len())
			}

			for i := range 10 {
				v, err := q.Pop(ctx)
				if err != nil {
					t.Fatalf("pop: %v", err)
				}
				if v != i {
					t.Errorf("expected %d, got %d", i, v)
				}
			}
		})
	}
}

func TestQueue_CloseDrainsThenReportsClosed(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			q := NewQueue[string](cfg)
			ctx := context.Background()

			_ = q.Push(ctx, "a")
			_ = q.Push(ctx, "b")
			q.Close()
			q.Close()

			if err := q.Push(ctx, "c"); !errors.Is(err, ErrQueueClosed) {
				t.Fatalf("expected ErrQueueClosed on push after close, got %v", err)
			}

			for _, want := range []string{"a", "b"} {
				v, err := q.Pop(ctx)
				if err != nil || v != want {
					t.Fatalf("expected %q, got %q (%v)", want, v, err)
				}
			}

			if _, err := q.Pop(ctx); !errors.Is(err, ErrQueueClosed) {
				t.Fatalf("expected ErrQueueClosed, got %v", err)
			}
		})
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			q := NewQueue[int](cfg)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("expected deadline exceeded, got %v", err)
			}
		})
	}
}

func TestQueue_TryPopEmpty(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			q := NewQueue[int](cfg)
			if _, ok := q.TryPop(); ok {
				t.Fatal("expected empty queue")
			}
		})
	}
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			q := NewQueue[int](cfg)
			ctx := context.Background()

			const producers, perProducer = 4, 250
			var sum atomic.Int64
			var popped atomic.Int64

			var consumers sync.WaitGroup
			for range 4 {
				consumers.Add(1)
				go func() {
					defer consumers.Done()
					for {
						v, err := q.Pop(ctx)
						if err != nil {
							return
						}
						sum.Add(int64(v))
						popped.Add(1)
					}
				}()
			}

			var wg sync.WaitGroup
			for p := range producers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range perProducer {
						if err := q.Push(ctx, p*perProducer+i); err != nil {
							t.Errorf("push: %v", err)
							return
						}
					}
				}()
			}
			wg.Wait()
			q.Close()
			consumers.Wait()

			n := int64(producers * perProducer)
			if popped.Load() != n {
				t.Fatalf("expected %d values, got %d", n, popped.Load())
			}
			if want := n * (n - 1) / 2; sum.Load() != want {
				t.Errorf("expected sum %d, got %d", want, sum.Load())
			}
		})
	}
}

func TestQueue_CloseRacingPushLosesNothing(t *testing.T) {
	for _, cfg := range strategies() {
		t.Run(cfg.Strategy.String(), func(t *testing.T) {
			ctx := context.Background()

			for range 200 {
				q := NewQueue[int](cfg)

				var popped atomic.Int64
				var consumers sync.WaitGroup
				for range 2 {
					consumers.Add(1)
					go func() {
						defer consumers.Done()
						for {
							if _, err := q.Pop(ctx); err != nil {
								return
							}
							popped.Add(1)
						}
					}()
				}

				var accepted atomic.Int64
				var producers sync.WaitGroup
				for p := range 4 {
					producers.Add(1)
					go func() {
						defer producers.Done()
						for i := 0; ; i++ {
							if err := q.Push(ctx, p*1000+i); err != nil {
								if !errors.Is(err, ErrQueueClosed) {
									t.Errorf("push: %v", err)
								}
								return
							}
							accepted.Add(1)
						}
					}()
				}

				time.Sleep(50 * time.Microsecond)
				q.Close()
				producers.Wait()
				consumers.Wait()

				if popped.Load() != accepted.Load() {
					t.Fatalf("accepted %d pushes but popped %d", accepted.Load(), popped.Load())
				}
			}
		})
	}
}

func TestMPMCQueue_CloseWaitsForInFlightPush(t *testing.T) {
	q := newMPMCQueue[int](4, false)

	// a push that passed the closing check but has not reached its CAS
	q.pushers.Add(1)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	<-q.quit
	select {
	case <-closed:
		t.Fatal("Close returned while a push was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	if q.closed.Load() {
		t.Fatal("consumers told the queue is closed while a push was in flight")
	}
	if err := q.Push(context.Background(), 1); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("push after Close started: %v", err)
	}

	// the in-flight push lands, then Close completes
	q.ring[0].value = 7
	q.tail = 1
	q.ring[0].sequence = 1
	q.pushers.Done()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the push settled")
	}

	v, err := q.Pop(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("Pop = (%d, %v), want (7, nil)", v, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestMPMCQueue_CloseReleasesPushOnFullRing(t *testing.T) {
	q := NewQueue[int](Config{Strategy: StrategyMPMC, Capacity: 2})
	ctx := context.Background()

	for i := range 2 {
		if err := q.Push(ctx, i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	errC := make(chan error, 1)
	go func() { errC <- q.Push(ctx, 2) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errC:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push on a full ring was not released by Close")
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued values, got %d", q.Len())
	}
}

func TestMPMCQueue_BoundedFull(t *testing.T) {
	q := newMPMCQueue[int](4, true)
	ctx := context.Background()

	for i := range 4 {
		if err := q.Push(ctx, i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := q.Push(ctx, 99); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestMPMCQueue_CapacityRoundsUp(t *testing.T) {
	if got := newMPMCQueue[int](5, false).Cap(); got != 8 {
		t.Errorf("expected capacity 8, got %d", got)
	}
	if got := newMPMCQueue[int](0, false).Cap(); got != defaultRingCapacity {
		t.Errorf("expected default capacity, got %d", got)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := map[int]int{-3: 1, 0: 1, 1: 1, 2: 2, 3: 4, 17: 32, 64: 64}
	for in, want := range tests {
		if got := nextPowerOfTwo(in); got != want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
