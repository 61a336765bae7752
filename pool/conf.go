package pool

import (
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/mhcpool/internal/algorithms"
	"github.com/utkarsh5026/mhcpool/internal/scheduler"
)

// SchedulingStrategy selects the shared task queue implementation.
type SchedulingStrategy = scheduler.StrategyType

const (
	SchedulingChannel = scheduler.StrategyChannel
	SchedulingMPMC    = scheduler.StrategyMPMC
)

// Option configures a Pool.
type Option func(*config)

type config struct {
	processes         int
	initializer       Initializer
	initArgs          []InitArgs
	maxTasksPerWorker int

	taskBuffer  int
	strategy    SchedulingStrategy
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	pinCPU      bool

	backoffType    algorithms.BackoffType
	backoffInitial time.Duration
	backoffMax     time.Duration

	onWorkerStart func(*Worker)
	onWorkerExit  func(*Worker, ExitReason)
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		processes:      runtime.NumCPU(),
		strategy:       SchedulingChannel,
		logger:         zap.NewNop(),
		backoffType:    algorithms.BackoffJittered,
		backoffInitial: 50 * time.Millisecond,
		backoffMax:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer <= 0 {
		cfg.taskBuffer = cfg.processes * 4
	}

	return cfg
}

// WithProcesses sets the number of worker slots.
// Non-positive values keep the default, runtime.NumCPU().
func WithProcesses(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.processes = n
		}
	}
}

// WithInitializer sets the function every new worker runs before taking
// work.
func WithInitializer(fn Initializer) Option {
	return func(cfg *config) {
		cfg.initializer = fn
	}
}

// WithInitArgs hands one argument set to each worker slot. The number of
// sets must equal the number of processes.
func WithInitArgs(sets []InitArgs) Option {
	return func(cfg *config) {
		cfg.initArgs = sets
	}
}

// WithMaxTasksPerWorker retires a worker after it has run n units and
// starts a replacement that inherits an argument set from the primary
// queue. Zero means workers live until shutdown.
func WithMaxTasksPerWorker(n int) Option {
	return func(cfg *config) {
		if n >= 0 {
			cfg.maxTasksPerWorker = n
		}
	}
}

// WithTaskBuffer sets the capacity of the shared task queue.
// Defaults to four units per worker.
func WithTaskBuffer(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithSchedulingStrategy picks the shared queue implementation.
func WithSchedulingStrategy(s SchedulingStrategy) Option {
	return func(cfg *config) {
		cfg.strategy = s
	}
}

// WithRateLimit caps how many units per second the whole pool starts.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 units/sec with bursts of 5
func WithRateLimit(unitsPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if unitsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(unitsPerSecond), burst)
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithCPUPinning pins the OS thread of each CPU-only worker to the core
// matching its slot number.
func WithCPUPinning(enabled bool) Option {
	return func(cfg *config) {
		cfg.pinCPU = enabled
	}
}

// WithCrashBackoff sets the delay before a slot whose worker crashed or
// failed to initialize is restarted. The delay doubles with every
// consecutive failure up to maxDelay. A zero initial delay restarts
// immediately.
func WithCrashBackoff(initialDelay, maxDelay time.Duration) Option {
	return func(cfg *config) {
		if initialDelay >= 0 {
			cfg.backoffInitial = initialDelay
		}
		if maxDelay >= 0 {
			cfg.backoffMax = maxDelay
		}
	}
}

// WithOnWorkerStart registers a hook run on the worker goroutine after
// the initializer succeeded.
func WithOnWorkerStart(fn func(*Worker)) Option {
	return func(cfg *config) {
		cfg.onWorkerStart = fn
	}
}

// WithOnWorkerExit registers a hook run on the worker goroutine when it
// stops. The worker's argument set has already been returned to the
// primary queue when the hook runs.
func WithOnWorkerExit(fn func(*Worker, ExitReason)) Option {
	return func(cfg *config) {
		cfg.onWorkerExit = fn
	}
}
