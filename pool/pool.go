package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/mhcpool/internal/algorithms"
	"github.com/utkarsh5026/mhcpool/internal/argqueue"
	"github.com/utkarsh5026/mhcpool/internal/scheduler"
)

// Pool is a fixed set of supervised worker slots pulling units from one
// shared queue. Each slot runs one worker at a time; when a worker is
// recycled, fails to initialize or crashes, the slot's supervisor starts a
// replacement.
type Pool struct {
	cfg     *config
	id      uuid.UUID
	logger  *zap.Logger
	queue   scheduler.Queue[*job]
	args    *argqueue.Pair[InitArgs]
	backoff algorithms.Backoff

	cancel context.CancelFunc
	done   chan struct{} // closed once every supervisor has returned

	shutdown   atomic.Bool
	terminated atomic.Bool
	nextID     atomic.Int64

	workersStarted  atomic.Int64
	workersRecycled atomic.Int64
	workersCrashed  atomic.Int64
	backupFallbacks atomic.Int64
	unitsCompleted  atomic.Int64
	unitsFailed     atomic.Int64
}

// New builds and starts a pool. Every worker slot starts right away.
//
// Example:
//
//	p, err := pool.New(
//	    pool.WithProcesses(4),
//	    pool.WithInitArgs(plan),
//	    pool.WithInitializer(setupBackend),
//	    pool.WithMaxTasksPerWorker(100),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown(0)
func New(opts ...Option) (*Pool, error) {
	cfg := newConfig(opts...)

	p := &Pool{
		cfg:     cfg,
		id:      uuid.New(),
		queue:   scheduler.NewQueue[*job](scheduler.Config{Strategy: cfg.strategy, Capacity: cfg.taskBuffer}),
		backoff: algorithms.NewBackoff(cfg.backoffType, cfg.backoffInitial, cfg.backoffMax, 0.2),
		done:    make(chan struct{}),
	}
	p.logger = cfg.logger.With(zap.Stringer("pool", p.id))

	if cfg.initArgs != nil {
		if len(cfg.initArgs) != cfg.processes {
			return nil, errorc.With(ErrConfiguration, errorc.String("",
				"number of init argument sets must equal the number of processes"))
		}
		args, err := argqueue.New(cfg.initArgs)
		if err != nil {
			return nil, errorc.With(ErrConfiguration, errorc.String("", err.Error()))
		}
		p.args = args
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	var g errgroup.Group
	for slot := range cfg.processes {
		g.Go(func() error {
			p.supervise(ctx, slot)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		if p.args != nil {
			p.args.Close()
		}
		close(p.done)
	}()

	p.logger.Info("started pool",
		zap.Int("processes", cfg.processes),
		zap.Int("max_tasks_per_worker", cfg.maxTasksPerWorker),
		zap.Bool("init_args", cfg.initArgs != nil),
		zap.Stringer("strategy", cfg.strategy),
		zap.Int("task_buffer", cfg.taskBuffer))

	return p, nil
}

// Processes is the number of worker slots.
func (p *Pool) Processes() int {
	return p.cfg.processes
}

// Submit queues fn for execution and returns its future. A nil pool runs
// fn in the calling goroutine.
func (p *Pool) Submit(ctx context.Context, fn Unit) (*Future[any], error) {
	return Go(ctx, p, fn)
}

func (p *Pool) submit(ctx context.Context, j *job) error {
	if p.shutdown.Load() || p.terminated.Load() {
		return ErrPoolClosed
	}

	if err := p.queue.Push(ctx, j); err != nil {
		if errors.Is(err, scheduler.ErrQueueClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Shutdown stops accepting units, lets the workers drain the queue and
// waits for them to exit. A non-positive timeout waits forever.
func (p *Pool) Shutdown(timeout time.Duration) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return waitUntil(p.done, timeout)
	}

	p.logger.Info("shutting down pool", zap.Int("queued", p.queue.Len()))
	p.queue.Close()

	return waitUntil(p.done, timeout)
}

// Terminate cancels every running unit, fails every queued unit with
// ErrPoolTerminated and waits for the workers to exit.
func (p *Pool) Terminate() {
	if !p.terminated.CompareAndSwap(false, true) {
		<-p.done
		return
	}
	p.shutdown.Store(true)

	p.logger.Info("terminating pool", zap.Int("queued", p.queue.Len()))
	p.cancel()
	p.queue.Close()

	for {
		j, ok := p.queue.TryPop()
		if !ok {
			break
		}
		j.fail(ErrPoolTerminated)
	}

	<-p.done
}

// Done is closed once all workers have exited after Shutdown or
// Terminate.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// ArgQueueLens reports the lengths of the primary and backup argument
// queues, or (0, 0) when the pool has no init arguments.
func (p *Pool) ArgQueueLens() (primary, backup int) {
	if p.args == nil {
		return 0, 0
	}
	return p.args.PrimaryLen(), p.args.BackupLen()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		WorkersStarted:  p.workersStarted.Load(),
		WorkersRecycled: p.workersRecycled.Load(),
		WorkersCrashed:  p.workersCrashed.Load(),
		BackupFallbacks: p.backupFallbacks.Load(),
		UnitsCompleted:  p.unitsCompleted.Load(),
		UnitsFailed:     p.unitsFailed.Load(),
		Queued:          p.queue.Len(),
	}
}

// supervise keeps one worker running in slot until the pool drains or is
// terminated.
func (p *Pool) supervise(ctx context.Context, slot int) {
	failures := 0

	for incarnation := 0; ; incarnation++ {
		exit := p.spawn(ctx, slot, incarnation)

		if !exit.reason.restarts() || ctx.Err() != nil {
			return
		}

		if exit.reason == ExitRecycled {
			failures = 0
			continue
		}

		if p.shutdown.Load() && p.queue.Len() == 0 {
			return
		}

		delay := p.backoff.NextDelay(failures)
		failures++
		p.logger.Warn("restarting worker slot",
			zap.Int("slot", slot),
			zap.Int("incarnation", incarnation),
			zap.Stringer("reason", exit.reason),
			zap.Duration("delay", delay),
			zap.Error(exit.err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

type workerExit struct {
	reason ExitReason
	err    error
}

// spawn runs one worker on its own goroutine and waits for it to exit.
// The worker reports back from a deferred call, so the report arrives even
// if the goroutine is torn down by runtime.Goexit.
func (p *Pool) spawn(ctx context.Context, slot, incarnation int) workerExit {
	exitC := make(chan workerExit, 1)
	p.workersStarted.Add(1)
	go p.runWorker(ctx, slot, incarnation, exitC)
	return <-exitC
}

// waitUntil blocks until either the done channel is closed or the timeout is reached.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	select {
	case <-d:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
