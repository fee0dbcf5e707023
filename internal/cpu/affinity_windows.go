//go:build windows

package cpu

import (
	"runtime"

	"golang.org/x/sys/windows"
)

var (
	kernel32              = windows.NewLazySystemDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
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

	mask := uintptr(1) << uint(normalizeCore(core))
	prev, _, callErr := setThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if prev == 0 {
		return release, callErr
	}
	return release, nil
}
