package pool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/utkarsh5026/mhcpool/internal/device"
)

// Worker is the state owned by one worker incarnation. A slot's
// replacement worker gets a fresh Worker; nothing is shared between
// incarnations except the argument set they may inherit.
type Worker struct {
	// Slot is the worker's position in the pool, 0..processes-1.
	Slot int
	// Incarnation counts the workers started for Slot so far.
	Incarnation int
	// Args is the argument set the worker claimed at startup.
	Args InitArgs
	// FromBackup reports whether Args came from the backup queue.
	FromBackup bool
	// Rand is seeded independently for every worker.
	Rand *rand.Rand
	// State is free for the initializer to fill.
	State any

	binding *device.Binding
	units   int
}

// ID identifies the incarnation in logs.
func (w *Worker) ID() string {
	return fmt.Sprintf("%d.%d", w.Slot, w.Incarnation)
}

// Units is the number of units the worker has finished.
func (w *Worker) Units() int {
	return w.units
}

// Core is the CPU core the worker's thread is pinned to, or -1.
func (w *Worker) Core() int {
	if w.binding == nil {
		return -1
	}
	return w.binding.Core
}

// Environ returns the current process environment extended with the
// worker's device assignment, for child processes started by a unit.
func (w *Worker) Environ() []string {
	return append(os.Environ(), w.Args.Assignment().Environ()...)
}

type workerKey struct{}

func withWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the worker running the unit that received ctx. It
// reports false for units run serially without a pool.
func WorkerFrom(ctx context.Context) (*Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(*Worker)
	return w, ok
}

// newWorkerRand gives every worker its own stream so siblings started
// together never share random state.
func newWorkerRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) // #nosec G404 -- model init, not crypto
}
