package device

// Binding is an Assignment applied to the current worker thread.
type Binding struct {
	Assignment
	// Core is the CPU core the thread was pinned to, or -1.
	Core int

	unlock func()
}

// Bind locks the calling goroutine to its thread. CPU-only workers are
// pinned to core when pinCPU is set; GPU workers are never pinned so the
// driver threads they spawn are not confined. A pinning failure is
// reported but the binding stays usable.
func Bind(a Assignment, core int, pinCPU bool) (*Binding, error) {
	unlock, pinned, err := LockWorkerThread(core, pinCPU && !a.UsesGPU())
	return &Binding{Assignment: a, Core: pinned, unlock: unlock}, err
}

// Release unlocks the thread unless it was pinned. A pinned thread stays
// locked so the runtime retires it together with the goroutine instead of
// handing a narrowed affinity mask to unrelated goroutines. Safe to call on
// a nil binding.
func (b *Binding) Release() {
	if b == nil || b.unlock == nil {
		return
	}
	if b.Core < 0 {
		b.unlock()
	}
	b.unlock = nil
}
