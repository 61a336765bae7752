package benchmarks

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/utkarsh5026/mhcpool/internal/device"
	"github.com/utkarsh5026/mhcpool/pool"
)

// strategyConfig defines a benchmark configuration for a shared queue
// strategy.
type strategyConfig struct {
	name string
	opts []pool.Option
}

// getAllStrategies returns every shared queue implementation.
func getAllStrategies(processes int) []strategyConfig {
	return []strategyConfig{
		{
			name: "Channel",
			opts: []pool.Option{
				pool.WithProcesses(processes),
				pool.WithSchedulingStrategy(pool.SchedulingChannel),
			},
		},
		{
			name: "MPMC",
			opts: []pool.Option{
				pool.WithProcesses(processes),
				pool.WithSchedulingStrategy(pool.SchedulingMPMC),
				pool.WithTaskBuffer(1024),
			},
		},
	}
}

// runStrategyBenchmark runs a benchmark function for all strategies.
func runStrategyBenchmark(b *testing.B, strategies []strategyConfig, benchFunc func(b *testing.B, s strategyConfig)) {
	for _, strategy := range strategies {
		b.Run(strategy.name, func(b *testing.B) {
			benchFunc(b, strategy)
		})
	}
}

// newBenchPool builds a pool and stops it when the benchmark ends.
func newBenchPool(b *testing.B, opts ...pool.Option) *pool.Pool {
	b.Helper()
	p, err := pool.New(append(opts, pool.WithCrashBackoff(0, 0))...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(p.Terminate)
	return p
}

// gpuArgs spreads processes over gpus the way training runs do.
func gpuArgs(processes, gpus int) []pool.InitArgs {
	plan, _ := pool.PlanGPUs(processes, gpus, pool.DefaultMaxWorkersPerGPU, device.BackendDefault, nil)
	return plan
}

func tasks(n int) []int {
	t := make([]int, n)
	for i := range t {
		t[i] = i
	}
	return t
}

// reportThroughput reports units per second for a benchmark that ran
// unitsPerOp units per iteration.
func reportThroughput(b *testing.B, unitsPerOp int) {
	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	b.ReportMetric(float64(unitsPerOp)/nsPerOp*1e9, "units/sec")
}

// =============================================================================
// Benchmark Workload Generators
// =============================================================================

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) func(ctx context.Context, task int) (int, error) {
	return func(ctx context.Context, task int) (int, error) {
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	index := min(max(int(float64(len(sorted)-1)*p+0.5), 0), len(sorted)-1)
	return sorted[index]
}
