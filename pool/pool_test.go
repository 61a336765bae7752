package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMap_PreservesOrder(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, s.opts...)

		items := make([]int, 100)
		for i := range items {
			items[i] = i
		}

		results, err := Map(context.Background(), p, items, func(ctx context.Context, v int) (int, error) {
			return v * v, nil
		})
		if err != nil {
			t.Fatalf("Map: %v", err)
		}
		for i, r := range results {
			if r != i*i {
				t.Fatalf("results[%d] = %d, want %d", i, r, i*i)
			}
		}

		shutdown(t, p)
		if got := p.Stats().UnitsCompleted; got != int64(len(items)) {
			t.Errorf("UnitsCompleted = %d, want %d", got, len(items))
		}
	}, 4)
}

func TestMap_ReturnsFirstError(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, s.opts...)

		_, err := Map(context.Background(), p, []int{0, 1, 2, 3, 4, 5}, func(ctx context.Context, v int) (int, error) {
			if v == 3 {
				return 0, fmt.Errorf("bad item %d", v)
			}
			return v, nil
		})

		te, ok := AsTaskError(err)
		if !ok {
			t.Fatalf("expected *TaskError, got %v", err)
		}
		if te.Message != "bad item 3" {
			t.Errorf("Message = %q", te.Message)
		}
		if !strings.Contains(te.Trace, "TestMap_ReturnsFirstError") {
			t.Errorf("trace does not name the failing function:\n%s", te.Trace)
		}
	}, 3)
}

func TestMap_NilPoolRunsSerially(t *testing.T) {
	var inFlight, peak atomic.Int32

	results, err := Map(context.Background(), nil, []string{"a", "b", "c"}, func(ctx context.Context, s string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		if _, ok := WorkerFrom(ctx); ok {
			t.Error("serial unit should not see a worker")
		}
		return strings.ToUpper(s), nil
	})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if strings.Join(results, "") != "ABC" {
		t.Errorf("results = %v", results)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}

	_, err = Map(context.Background(), nil, []int{1, 2}, func(ctx context.Context, v int) (int, error) {
		panic("serial panic")
	})
	if te, ok := AsTaskError(err); !ok || te.Kind != KindPanic {
		t.Errorf("expected panic TaskError, got %v", err)
	}
}

func TestGo_NilPool(t *testing.T) {
	f, err := Go(context.Background(), nil, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Go: %v", err)
	}
	if !f.IsReady() {
		t.Fatal("serial future should be resolved on return")
	}
	if v, _, err := f.Get(); v != 7 || err != nil {
		t.Errorf("Get = (%d, %v)", v, err)
	}
}

func TestSubmit_PanicDoesNotKillWorker(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, s.opts...)
		ctx := context.Background()

		f, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
			panic("unit panic")
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if _, _, err := f.Get(); err == nil {
			t.Fatal("expected panic error")
		} else if te, ok := AsTaskError(err); !ok || te.Kind != KindPanic {
			t.Fatalf("expected panic TaskError, got %v", err)
		}

		f, _ = p.Submit(ctx, func(ctx context.Context) (any, error) {
			w, _ := WorkerFrom(ctx)
			return w.Incarnation, nil
		})
		v, _, err := f.Get()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v.(int) != 0 {
			t.Errorf("incarnation = %v, want 0", v)
		}
		if crashed := p.Stats().WorkersCrashed; crashed != 0 {
			t.Errorf("WorkersCrashed = %d", crashed)
		}
	}, 1)
}

func TestSubmit_AfterShutdown(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, s.opts...)
		shutdown(t, p)

		_, err := p.Submit(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		})
		if !errors.Is(err, ErrPoolClosed) {
			t.Fatalf("err = %v, want ErrPoolClosed", err)
		}
	}, 2)
}

func TestShutdown_DrainsQueue(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, append(s.opts, WithTaskBuffer(64))...)

		var ran atomic.Int32
		futures := make([]*Future[any], 0, 32)
		for range 32 {
			f, err := p.Submit(context.Background(), func(ctx context.Context) (any, error) {
				time.Sleep(time.Millisecond)
				ran.Add(1)
				return nil, nil
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			futures = append(futures, f)
		}

		shutdown(t, p)

		if ran.Load() != 32 {
			t.Errorf("ran %d units, want 32", ran.Load())
		}
		for _, f := range futures {
			if !f.IsReady() {
				t.Fatal("future left unresolved after shutdown")
			}
		}
	}, 2)
}

func TestShutdown_Timeout(t *testing.T) {
	p := newTestPool(t, WithProcesses(1))
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{})
	_, _ = p.Submit(context.Background(), func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	if err := p.Shutdown(20 * time.Millisecond); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("err = %v, want ErrShutdownTimeout", err)
	}
}

func TestTerminate_FailsPendingUnits(t *testing.T) {
	runStrategyTest(t, func(t *testing.T, s strategyConfig) {
		p := newTestPool(t, s.opts...)
		ctx := context.Background()

		started := make(chan struct{})
		running, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		<-started

		var queued []*Future[any]
		for range 3 {
			f, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
				return "ran", nil
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			queued = append(queued, f)
		}

		p.Terminate()

		if _, _, err := running.GetWithTimeout(time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("running unit err = %v, want context.Canceled", err)
		}
		for i, f := range queued {
			if _, _, err := f.GetWithTimeout(time.Second); !errors.Is(err, ErrPoolTerminated) {
				t.Errorf("queued unit %d err = %v, want ErrPoolTerminated", i, err)
			}
		}

		select {
		case <-p.Done():
		default:
			t.Error("Done not closed after Terminate")
		}
	}, 1)
}

func TestSubmit_RacingCloseResolvesEveryFuture(t *testing.T) {
	closers := map[string]func(t *testing.T, p *Pool){
		"Shutdown":  func(t *testing.T, p *Pool) { shutdown(t, p) },
		"Terminate": func(t *testing.T, p *Pool) { p.Terminate() },
	}
	for name, closePool := range closers {
		t.Run(name, func(t *testing.T) {
			runStrategyTest(t, func(t *testing.T, s strategyConfig) {
				for range 100 {
					p := newTestPool(t, s.opts...)

					var mu sync.Mutex
					var accepted []*Future[any]
					var submitters sync.WaitGroup
					for range 4 {
						submitters.Add(1)
						go func() {
							defer submitters.Done()
							for {
								f, err := p.Submit(context.Background(), func(ctx context.Context) (any, error) {
									return nil, nil
								})
								if err != nil {
									if !errors.Is(err, ErrPoolClosed) {
										t.Errorf("Submit: %v", err)
									}
									return
								}
								mu.Lock()
								accepted = append(accepted, f)
								mu.Unlock()
							}
						}()
					}

					time.Sleep(100 * time.Microsecond)
					closePool(t, p)
					submitters.Wait()

					for i, f := range accepted {
						if !f.IsReady() {
							t.Fatalf("future %d of %d left unresolved after %s", i, len(accepted), name)
						}
					}
				}
			}, 2)
		})
	}
}

func TestSubmit_CallerContextCancelled(t *testing.T) {
	p := newTestPool(t, WithProcesses(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := Go(ctx, p, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if err != nil {
		// the push itself may observe the cancelled context
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Go: %v", err)
		}
		return
	}
	if _, _, err := f.GetWithTimeout(time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRateLimit(t *testing.T) {
	p := newTestPool(t, WithProcesses(4), WithRateLimit(50, 1))

	items := make([]int, 6)
	start := time.Now()
	if _, err := Map(context.Background(), p, items, func(ctx context.Context, v int) (int, error) {
		return v, nil
	}); err != nil {
		t.Fatalf("Map: %v", err)
	}

	// 6 units at 50/s with burst 1 need at least 5 intervals of 20ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed %v, rate limit not applied", elapsed)
	}
}
