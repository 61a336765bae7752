// Package scheduler holds the shared task queues worker pools pull from.
//
// Workers in a pool are recycled and may crash, so tasks are never bound
// to a particular worker: every worker pops from one shared queue and a
// replacement worker simply starts popping where its predecessor stopped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrQueueFull   = errors.New("scheduler: queue is full")
	ErrQueueClosed = errors.New("scheduler: queue is closed")
)

// StrategyType selects the queue implementation.
type StrategyType int

const (
	// StrategyChannel is a buffered Go channel.
	StrategyChannel StrategyType = iota
	// StrategyMPMC is a lock-free multi-producer multi-consumer ring.
	StrategyMPMC
)

func (s StrategyType) String() string {
	switch s {
	case StrategyChannel:
		return "channel"
	case StrategyMPMC:
		return "mpmc"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Queue is a FIFO shared by all workers of a pool.
type Queue[T any] interface {
	// Push adds v, blocking while the queue is full (unless it is a
	// bounded MPMC queue, which fails fast with ErrQueueFull).
	Push(ctx context.Context, v T) error

	// Pop blocks until a value is available. Once the queue is closed
	// it keeps returning queued values and then ErrQueueClosed.
	Pop(ctx context.Context) (T, error)

	// TryPop pops without blocking.
	TryPop() (T, bool)

	// Close rejects further pushes. Queued values stay poppable.
	Close()

	// Len is the approximate number of queued values.
	Len() int
}

// Config configures NewQueue.
type Config struct {
	Strategy StrategyType
	// Capacity is the channel buffer or ring size.
	Capacity int
	// Bounded makes a full MPMC ring reject pushes instead of spinning.
	Bounded bool
}

// NewQueue builds the queue selected by cfg.
func NewQueue[T any](cfg Config) Queue[T] {
	switch cfg.Strategy {
	case StrategyMPMC:
		return newMPMCQueue[T](cfg.Capacity, cfg.Bounded)
	default:
		return newChannelQueue[T](cfg.Capacity)
	}
}

// nextPowerOfTwo returns the next power of 2 >= n
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	if n&(n-1) == 0 {
		return n
	}

	power := 1
	for power < n {
		power *= 2
	}
	return power
}
