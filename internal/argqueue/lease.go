package argqueue

import "sync"

// Lease is an argument set held by one worker for its lifetime.
// Exactly one of Release or Abandon takes effect.
type Lease[T any] struct {
	pair       *Pair[T]
	value      T
	fromBackup bool

	once     sync.Once
	returned bool
}

// Value returns the leased argument set.
func (l *Lease[T]) Value() T {
	return l.value
}

// FromBackup reports whether the set came from the backup channel.
func (l *Lease[T]) FromBackup() bool {
	return l.fromBackup
}

// Release pushes the set back onto the primary channel so the next worker
// started for the slot can reuse it. It returns false if the lease was
// already settled or the primary channel was full.
func (l *Lease[T]) Release() bool {
	ok := false
	l.once.Do(func() {
		ok = l.pair.Release(l.value)
		l.returned = ok
	})
	return ok
}

// Abandon settles the lease without returning the set, the way a worker
// that died mid-flight never gets to hand its arguments back.
func (l *Lease[T]) Abandon() {
	l.once.Do(func() {})
}

// Returned reports whether Release put the set back.
func (l *Lease[T]) Returned() bool {
	return l.returned
}
