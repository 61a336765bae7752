//go:build linux

package device

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the current OS thread to a single CPU core.
// Must be called after runtime.LockOSThread().
//
// Out of range ids wrap around runtime.NumCPU().
func pinToCore(cpuID int) (int, error) {
	numCPU := runtime.NumCPU()
	if cpuID < 0 || cpuID >= numCPU {
		cpuID = ((cpuID % numCPU) + numCPU) % numCPU
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return -1, err
	}

	return cpuID, nil
}

// LockWorkerThread locks the calling goroutine to its OS thread and, when
// pin is set, restricts that thread to core. The returned func undoes the
// lock. The affinity mask is not restored.
func LockWorkerThread(core int, pin bool) (unlock func(), pinned int, err error) {
	runtime.LockOSThread()

	pinned = -1
	if pin {
		pinned, err = pinToCore(core)
	}

	return runtime.UnlockOSThread, pinned, err
}
