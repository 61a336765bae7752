package algorithms

import (
	"math/rand"
	"sync"
	"time"
)

// maxShift caps the exponent so the shifted factor cannot overflow int64.
const maxShift = 62

// BackoffType selects how the restart delay of a crashing worker slot grows.
type BackoffType int

const (
	// BackoffExponential doubles the delay after every consecutive crash.
	BackoffExponential BackoffType = iota
	// BackoffJittered spreads exponential delays by ±jitterFactor.
	BackoffJittered
)

// Backoff computes how long a supervisor waits before restarting a worker
// slot after its worker crashed.
type Backoff interface {
	// NextDelay returns the delay before restart number crashes (0-indexed:
	// 0 is the restart after the first crash in a row).
	NextDelay(crashes int) time.Duration
}

// NewBackoff builds a Backoff. A non-positive initialDelay disables delays.
func NewBackoff(kind BackoffType, initialDelay, maxDelay time.Duration, jitterFactor float64) Backoff {
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}

	switch kind {
	case BackoffJittered:
		return &jitteredBackoff{
			exponentialBackoff: exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay},
			jitterFactor:       clamp(jitterFactor, 0, 1),
			rng:                rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- restart jitter only
		}
	default:
		return &exponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}
	}
}

type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

// NextDelay returns initialDelay * 2^crashes, capped at maxDelay.
func (eb *exponentialBackoff) NextDelay(crashes int) time.Duration {
	if crashes < 0 || eb.initialDelay <= 0 {
		return 0
	}
	if crashes > maxShift {
		return eb.maxDelay
	}

	delay := time.Duration(int64(1)<<uint(crashes)) * eb.initialDelay
	if delay > eb.maxDelay || delay < 0 {
		return eb.maxDelay
	}
	return delay
}

// jitteredBackoff keeps restarted slots that crashed together from
// restarting in lockstep.
type jitteredBackoff struct {
	exponentialBackoff
	jitterFactor float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (jb *jitteredBackoff) NextDelay(crashes int) time.Duration {
	base := jb.exponentialBackoff.NextDelay(crashes)
	if base == 0 {
		return 0
	}

	jb.mu.Lock()
	multiplier := 1.0 + (jb.rng.Float64()*2-1)*jb.jitterFactor
	jb.mu.Unlock()

	return clamp(time.Duration(float64(base)*multiplier), 0, jb.maxDelay)
}

func clamp[N int | int64 | float64 | time.Duration](v, lo, hi N) N {
	return min(max(v, lo), hi)
}
