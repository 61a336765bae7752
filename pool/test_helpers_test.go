package pool

import (
	"testing"
	"time"
)

// strategyConfig is one shared queue implementation under test.
type strategyConfig struct {
	name string
	opts []Option
}

func getAllStrategies(processes int) []strategyConfig {
	return []strategyConfig{
		{
			name: "Channel",
			opts: []Option{
				WithProcesses(processes),
				WithSchedulingStrategy(SchedulingChannel),
			},
		},
		{
			name: "MPMC",
			opts: []Option{
				WithProcesses(processes),
				WithSchedulingStrategy(SchedulingMPMC),
			},
		},
	}
}

func runStrategyTest(t *testing.T, testFunc func(t *testing.T, s strategyConfig), processes int, additionalOpts ...Option) {
	t.Helper()
	for _, s := range getAllStrategies(processes) {
		s.opts = append(s.opts, WithCrashBackoff(0, 0))
		s.opts = append(s.opts, additionalOpts...)
		t.Run(s.name, func(t *testing.T) {
			testFunc(t, s)
		})
	}
}

func newTestPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Terminate)
	return p
}

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	if err := p.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
