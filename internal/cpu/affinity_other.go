//go:build !linux && !windows

package cpu

import "runtime"

// Dedicate locks the calling goroutine to its OS thread. Core pinning is not
// available on this platform, so core is ignored.
func Dedicate(core int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
