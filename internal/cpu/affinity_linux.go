//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Dedicate locks the calling goroutine to its OS thread and restricts that
// thread to a single core. A negative core only locks the thread.
// The returned function undoes the lock and must run on the same goroutine.
func Dedicate(core int) (release func(), err error) {
	runtime.LockOSThread()
	release = runtime.UnlockOSThread
	if core < 0 {
		return release, nil
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(normalizeCore(core))

	// 0 = current thread
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return release, err
	}
	return release, nil
}
