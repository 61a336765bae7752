package pool

import (
	"context"

	"github.com/utkarsh5026/mhcpool/internal/device"
	"github.com/utkarsh5026/mhcpool/internal/types"
)

// Future is the pending result of a unit submitted to a Pool. Its key is
// the unit's submission id.
type Future[R any] = types.Future[R, int64]

// Unit is one piece of work executed on a worker.
type Unit func(ctx context.Context) (any, error)

// Initializer prepares a freshly started worker. It runs on the worker's
// goroutine after the worker's device binding and random source are set
// up, and may store per-worker state in w.State. A returned error fails
// the worker start; the slot is restarted after the crash backoff.
type Initializer func(w *Worker) error

// InitArgs is the set of named initialization parameters handed to one
// worker slot.
type InitArgs struct {
	Backend device.Backend
	// GPUDevices is nil when devices are unconstrained and empty for a
	// worker deliberately left on CPU.
	GPUDevices []int
}

// Assignment converts the arguments to a device assignment.
func (a InitArgs) Assignment() device.Assignment {
	return device.Assignment{Backend: a.Backend, GPUs: a.GPUDevices}
}

func (a InitArgs) String() string {
	return a.Assignment().String()
}

// ExitReason tells why a worker stopped.
type ExitReason int

const (
	// ExitRecycled means the worker reached its task budget.
	ExitRecycled ExitReason = iota
	// ExitDrained means the pool was shut down and the queue is empty.
	ExitDrained
	// ExitTerminated means the pool context was cancelled.
	ExitTerminated
	// ExitInitFailed means the initializer returned an error.
	ExitInitFailed
	// ExitCrashed means the worker died without returning: a panic outside
	// a work unit or runtime.Goexit anywhere on the worker goroutine.
	ExitCrashed
)

func (r ExitReason) String() string {
	switch r {
	case ExitRecycled:
		return "recycled"
	case ExitDrained:
		return "drained"
	case ExitTerminated:
		return "terminated"
	case ExitInitFailed:
		return "init-failed"
	case ExitCrashed:
		return "crashed"
	}
	return "unknown"
}

// restarts reports whether the supervisor should start another worker.
func (r ExitReason) restarts() bool {
	return r == ExitRecycled || r == ExitInitFailed || r == ExitCrashed
}

// Stats is a snapshot of pool counters.
type Stats struct {
	WorkersStarted  int64
	WorkersRecycled int64
	WorkersCrashed  int64
	BackupFallbacks int64
	UnitsCompleted  int64
	UnitsFailed     int64
	Queued          int
}

// job is a submitted unit. run resolves the unit's future itself; fail
// resolves it with err when the unit cannot run.
type job struct {
	id   int64
	ctx  context.Context
	run  func(ctx context.Context) error
	fail func(err error)
}
