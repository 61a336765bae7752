// Package argqueue distributes one initialization argument set per worker
// slot through a primary/backup pair of bounded FIFO channels.
//
// Both channels are seeded with the same N sets. Workers claim a set from
// the primary channel and hand it back when they exit, so a replacement
// worker inherits the set of the worker it replaces. A worker that dies
// without handing its set back leaves the primary channel one short; the
// backup channel covers that case. It is never drained: every read is
// followed by an immediate write of the same value.
package argqueue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrEmpty  = errors.New("argqueue: no argument sets")
	ErrClosed = errors.New("argqueue: pair closed")
)

// Pair is the primary/backup channel pair.
type Pair[T any] struct {
	primary chan T
	backup  chan T

	// backupMu makes the backup pop+push look atomic to observers.
	backupMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	size      int
}

// New seeds both channels with sets. The capacity of each channel equals
// len(sets).
func New[T any](sets []T) (*Pair[T], error) {
	if len(sets) == 0 {
		return nil, ErrEmpty
	}

	p := &Pair[T]{
		primary: make(chan T, len(sets)),
		backup:  make(chan T, len(sets)),
		closed:  make(chan struct{}),
		size:    len(sets),
	}

	for _, s := range sets {
		p.primary <- s
		p.backup <- s
	}

	return p, nil
}

// TryPrimary pops from the primary channel without blocking.
func (p *Pair[T]) TryPrimary() (T, bool) {
	select {
	case v := <-p.primary:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Backup reads the head of the backup channel and pushes it straight back
// to the tail. It blocks only while another caller holds the backup lock.
func (p *Pair[T]) Backup(ctx context.Context) (T, error) {
	var zero T

	p.backupMu.Lock()
	defer p.backupMu.Unlock()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.closed:
		return zero, ErrClosed
	case v := <-p.backup:
		p.backup <- v
		return v, nil
	}
}

// Release returns v to the primary channel. It reports false when the
// channel is already full, which means more sets were released than were
// ever claimed from it.
func (p *Pair[T]) Release(v T) bool {
	select {
	case p.primary <- v:
		return true
	default:
		return false
	}
}

// PrimaryLen reports how many sets are waiting in the primary channel.
func (p *Pair[T]) PrimaryLen() int {
	return len(p.primary)
}

// BackupLen reports the backup channel length; outside Backup it is always
// Size().
func (p *Pair[T]) BackupLen() int {
	p.backupMu.Lock()
	defer p.backupMu.Unlock()
	return len(p.backup)
}

// Size is the number of sets the pair was seeded with.
func (p *Pair[T]) Size() int {
	return p.size
}

// Close unblocks pending Backup calls. Sets can still be released.
func (p *Pair[T]) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// Acquire claims a set, preferring the primary channel and falling back to
// the backup channel when the primary is empty.
func (p *Pair[T]) Acquire(ctx context.Context) (*Lease[T], error) {
	if v, ok := p.TryPrimary(); ok {
		return &Lease[T]{pair: p, value: v}, nil
	}

	v, err := p.Backup(ctx)
	if err != nil {
		return nil, err
	}
	return &Lease[T]{pair: p, value: v, fromBackup: true}, nil
}
