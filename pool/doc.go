// Package pool runs work units on a fixed set of supervised workers, each
// of which can be bound to its own compute devices.
//
// A Pool owns one slot per worker. Every slot runs a single worker at a
// time on a dedicated OS thread; when the worker retires, fails to start
// or crashes, the slot's supervisor starts a replacement. Units submitted
// with Go, Map or Pool.Submit are pulled from one shared queue.
//
// # Basic Usage
//
//	p, err := pool.New(pool.WithProcesses(4))
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(0)
//
//	scores, err := pool.Map(ctx, p, alleles, func(ctx context.Context, a string) (float64, error) {
//	    return score(ctx, a)
//	})
//
// A nil *Pool is valid for Go and Map and runs every unit serially in the
// caller, which is what Build returns for zero jobs.
//
// # Init Arguments
//
// WithInitArgs hands one InitArgs to each slot through a pair of queues.
// A starting worker takes a set from the primary queue and puts it back
// when it exits cleanly, so a recycled worker's replacement inherits the
// same devices. When the primary queue is empty, because a worker crashed
// holding a set, the worker copies a set from the backup queue, which
// always keeps every set.
//
// # Worker Recycling
//
//	p, err := pool.New(
//	    pool.WithProcesses(8),
//	    pool.WithMaxTasksPerWorker(50),
//	    pool.WithInitializer(func(w *pool.Worker) error {
//	        w.State = loadModels(w.Args)
//	        return nil
//	    }),
//	)
//
// Retiring a worker after a number of units drops everything the
// initializer and the units accumulated in w.State.
//
// # GPU Assignment
//
// PlanGPUs spreads workers over GPUs with a per-GPU cap, and Build wires
// the plan into a pool:
//
//	p, err := pool.Build(pool.BuildOptions{NumJobs: 5, NumGPUs: 2, MaxWorkersPerGPU: 2})
//	// workers get GPUs [0] [1] [0] [1] []
//
// # Errors
//
// Errors returned by a unit and panics raised in it reach the submitter
// as *TaskError, which keeps the worker-side stack trace next to the
// original message. A unit whose worker crashes fails with a TaskError
// wrapping ErrWorkerCrashed. Units are never retried.
package pool
