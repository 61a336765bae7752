//go:build windows

package device

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pinToCore pins the current OS thread to a single CPU core.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (int, error) {
	numCPU := runtime.NumCPU()
	if cpuID < 0 || cpuID >= numCPU {
		cpuID = ((cpuID % numCPU) + numCPU) % numCPU
	}

	handle, _, _ := getCurrentThread.Call()

	// Bit N = CPU N
	mask := uintptr(1) << uint(cpuID)

	prevMask, _, err := setThreadAffinityMask.Call(handle, mask)
	if prevMask == 0 {
		return -1, err
	}

	return cpuID, nil
}

// LockWorkerThread locks the calling goroutine to its OS thread and, when
// pin is set, restricts that thread to core.
func LockWorkerThread(core int, pin bool) (unlock func(), pinned int, err error) {
	runtime.LockOSThread()

	pinned = -1
	if pin {
		pinned, err = pinToCore(core)
	}

	return runtime.UnlockOSThread, pinned, err
}
