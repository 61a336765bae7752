//go:build !linux && !windows

package device

import (
	"runtime"
)

// LockWorkerThread locks the goroutine to an OS thread.
// CPU pinning is not available on this platform, pinned is always -1.
func LockWorkerThread(core int, pin bool) (unlock func(), pinned int, err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, -1, nil
}
