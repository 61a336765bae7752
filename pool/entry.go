package pool

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/argqueue"
	"github.com/utkarsh5026/mhcpool/internal/device"
	"github.com/utkarsh5026/mhcpool/internal/scheduler"
)

// runWorker is the body of one worker incarnation:
//
//  1. claim an argument set, primary queue first, backup queue if empty;
//  2. arrange for the set to go back to the primary queue on exit;
//  3. bind the device assignment and seed the worker's random source;
//  4. call the user initializer;
//  5. run units until recycled, drained or terminated.
func (p *Pool) runWorker(ctx context.Context, slot, incarnation int, exitC chan<- workerExit) {
	w := &Worker{Slot: slot, Incarnation: incarnation}
	log := p.logger.With(zap.String("worker", w.ID()))

	var (
		lease    *argqueue.Lease[InitArgs]
		current  *job
		returned bool
		exit     = workerExit{reason: ExitCrashed}
	)

	defer func() {
		if r := recover(); r != nil {
			exit = workerExit{reason: ExitCrashed, err: panicError(r, debug.Stack())}
		} else if !returned {
			exit = workerExit{reason: ExitCrashed, err: ErrWorkerCrashed}
		}

		if exit.reason == ExitCrashed {
			p.workersCrashed.Add(1)
			if current != nil {
				current.fail(crashError(slot, incarnation))
				p.unitsFailed.Add(1)
			}
		}

		// The argument set goes back before any other exit hook runs. A
		// crashed worker's set is dropped and its replacement copies one
		// from the backup queue, so the primary queue can end up holding
		// one GPU's set twice.
		if lease != nil {
			if exit.reason == ExitCrashed {
				lease.Abandon()
			} else if !lease.Release() {
				log.Error("primary argument queue full on release", zap.Stringer("args", w.Args))
			}
		}

		w.binding.Release()
		p.runExitHook(w, exit.reason, log)

		log.Debug("worker exited", zap.Stringer("reason", exit.reason), zap.Int("units", w.units), zap.Error(exit.err))
		exitC <- exit
	}()

	if p.args != nil {
		l, err := p.acquire(ctx, log)
		if err != nil {
			exit = workerExit{reason: ExitTerminated, err: err}
			returned = true
			return
		}
		lease = l
		w.Args = l.Value()
		w.FromBackup = l.FromBackup()
	}

	if err := p.initialize(w, log); err != nil {
		log.Error("worker initialization failed", zap.Error(err))
		exit = workerExit{reason: ExitInitFailed, err: err}
		returned = true
		return
	}

	if p.cfg.onWorkerStart != nil {
		p.cfg.onWorkerStart(w)
	}

	exit = p.work(ctx, w, &current)
	returned = true
}

// acquire claims an argument set without ever blocking on the primary
// queue.
func (p *Pool) acquire(ctx context.Context, log *zap.Logger) (*argqueue.Lease[InitArgs], error) {
	l, err := p.args.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if l.FromBackup() {
		p.backupFallbacks.Add(1)
		log.Warn("argument queue empty, using backup queue", zap.Stringer("args", l.Value()))
	}
	return l, nil
}

func (p *Pool) initialize(w *Worker, log *zap.Logger) error {
	binding, err := device.Bind(w.Args.Assignment(), w.Slot, p.cfg.pinCPU)
	w.binding = binding
	if err != nil {
		log.Warn("cpu pinning failed", zap.Error(err))
	}

	w.Rand = newWorkerRand()

	log.Info("initializing worker",
		zap.Stringer("args", w.Args),
		zap.Bool("from_backup", w.FromBackup),
		zap.Int("core", w.Core()))

	if p.cfg.initializer == nil {
		return nil
	}
	return p.cfg.initializer(w)
}

func (p *Pool) work(ctx context.Context, w *Worker, current **job) workerExit {
	budget := p.cfg.maxTasksPerWorker

	for {
		if budget > 0 && w.units >= budget {
			p.workersRecycled.Add(1)
			return workerExit{reason: ExitRecycled}
		}

		j, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, scheduler.ErrQueueClosed) {
				return workerExit{reason: ExitDrained}
			}
			return workerExit{reason: ExitTerminated}
		}

		if ctx.Err() != nil {
			j.fail(ErrPoolTerminated)
			return workerExit{reason: ExitTerminated}
		}

		if p.cfg.rateLimiter != nil {
			if err := p.cfg.rateLimiter.Wait(ctx); err != nil {
				j.fail(ErrPoolTerminated)
				return workerExit{reason: ExitTerminated}
			}
		}

		*current = j
		err = p.execute(ctx, w, j)
		*current = nil

		w.units++
		if err != nil {
			p.unitsFailed.Add(1)
		} else {
			p.unitsCompleted.Add(1)
		}
	}
}

// execute runs j with a context that carries the worker and ends when
// either the submitter's or the pool's context does.
func (p *Pool) execute(poolCtx context.Context, w *Worker, j *job) error {
	if err := j.ctx.Err(); err != nil {
		j.fail(err)
		return err
	}

	ctx, cancel := context.WithCancel(withWorker(j.ctx, w))
	stop := context.AfterFunc(poolCtx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	return j.run(ctx)
}

func (p *Pool) runExitHook(w *Worker, reason ExitReason, log *zap.Logger) {
	if p.cfg.onWorkerExit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker exit hook panicked", zap.Any("panic", r))
		}
	}()
	p.cfg.onWorkerExit(w, reason)
}
