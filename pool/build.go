package pool

import (
	"flag"
	"fmt"
	"runtime"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/device"
)

// DefaultMaxWorkersPerGPU effectively leaves GPUs uncapped.
const DefaultMaxWorkersPerGPU = 1000

// Flags holds the worker pool command line options.
type Flags struct {
	NumJobs           int
	Backend           device.Backend
	GPUs              int
	MaxWorkersPerGPU  int
	MaxTasksPerWorker int
}

// AddWorkerPoolFlags registers the worker pool options on fs.
func AddWorkerPoolFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.IntVar(&f.NumJobs, "num-jobs", 1,
		"Number of worker processes to parallelize over. Set to 0 for a serial run, negative for one per CPU.")
	fs.Var(&f.Backend, "backend",
		"Compute backend: gpu, cpu or default. If not specified the system default is used.")
	fs.IntVar(&f.GPUs, "gpus", 0,
		"Number of GPUs to round-robin workers across. Requires running in parallel.")
	fs.IntVar(&f.MaxWorkersPerGPU, "max-workers-per-gpu", DefaultMaxWorkersPerGPU,
		"Maximum number of workers to assign to a GPU. Additional workers run on CPU.")
	fs.IntVar(&f.MaxTasksPerWorker, "max-tasks-per-worker", 0,
		"Restart workers after N tasks to bound leaked memory. 0 keeps workers for the pool lifetime.")
	return f
}

// BuildOptions are the inputs of Build.
type BuildOptions struct {
	// NumJobs is the worker count: 0 means no pool, negative one per CPU.
	NumJobs int
	// NumGPUs enables per-worker GPU assignment when positive.
	NumGPUs           int
	Backend           device.Backend
	MaxWorkersPerGPU  int
	MaxTasksPerWorker int
	Logger            *zap.Logger
	// Initializer runs in every worker after its devices are bound.
	Initializer Initializer
}

// Options converts parsed flags to BuildOptions.
func (f *Flags) Options(logger *zap.Logger) BuildOptions {
	return BuildOptions{
		NumJobs:           f.NumJobs,
		NumGPUs:           f.GPUs,
		Backend:           f.Backend,
		MaxWorkersPerGPU:  f.MaxWorkersPerGPU,
		MaxTasksPerWorker: f.MaxTasksPerWorker,
		Logger:            logger,
	}
}

// BuildFromFlags is Build driven by parsed command line flags.
func BuildFromFlags(f *Flags, logger *zap.Logger, opts ...Option) (*Pool, error) {
	return Build(f.Options(logger), opts...)
}

// Build creates a pool whose workers are spread over GPUs.
//
// It returns a nil pool and no error when NumJobs is 0; Go and Map then
// run units serially in the caller. Extra options are applied after the
// ones derived from o.
func Build(o BuildOptions, opts ...Option) (*Pool, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// No pool regardless of the other settings.
	if o.NumJobs == 0 {
		logger.Info("serial execution, no worker pool", zap.Stringer("backend", o.Backend))
		return nil, nil
	}

	if o.NumGPUs < 0 || o.MaxTasksPerWorker < 0 {
		return nil, errorc.With(ErrConfiguration, errorc.String("",
			fmt.Sprintf("gpus (%d) and max tasks per worker (%d) must not be negative", o.NumGPUs, o.MaxTasksPerWorker)))
	}

	workers := o.NumJobs
	if workers < 0 {
		workers = runtime.NumCPU()
	}

	maxPerGPU := o.MaxWorkersPerGPU
	if maxPerGPU <= 0 {
		maxPerGPU = 1
	}

	var initArgs []InitArgs
	switch {
	case o.NumGPUs > 0:
		logger.Info("round-robin assigning each worker a GPU", zap.Int("gpus", o.NumGPUs))
		initArgs, _ = PlanGPUs(workers, o.NumGPUs, maxPerGPU, o.Backend, logger)
	case o.Backend != device.BackendUnset:
		initArgs = make([]InitArgs, workers)
		for i := range initArgs {
			initArgs[i] = InitArgs{Backend: o.Backend}
		}
	}

	base := []Option{
		WithProcesses(workers),
		WithMaxTasksPerWorker(o.MaxTasksPerWorker),
		WithLogger(logger),
		WithInitializer(deviceInitializer(logger, o.Initializer)),
	}
	if initArgs != nil {
		base = append(base, WithInitArgs(initArgs))
	}

	return New(append(base, opts...)...)
}

// deviceInitializer logs the devices a worker was given before running
// next.
func deviceInitializer(logger *zap.Logger, next Initializer) Initializer {
	return func(w *Worker) error {
		if w.Args.Backend != device.BackendUnset || w.Args.GPUDevices != nil {
			logger.Info("worker assigned devices",
				zap.String("worker", w.ID()),
				zap.Stringer("backend", w.Args.Backend),
				zap.Ints("gpus", w.Args.GPUDevices),
				zap.Strings("env", w.Args.Assignment().Environ()))
		}
		if next == nil {
			return nil
		}
		return next(w)
	}
}
