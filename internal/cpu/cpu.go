// Package cpu reports available parallelism and dedicates OS threads to
// long-lived workers.
package cpu

import "runtime"

// Parallelism returns the number of parallelism units the process may use.
// It follows GOMAXPROCS, so callers that adjust it for container quotas
// (automaxprocs) are reflected here.
func Parallelism() int {
	return max(1, runtime.GOMAXPROCS(0))
}

// normalizeCore maps any core index into [0, NumCPU).
func normalizeCore(core int) int {
	n := runtime.NumCPU()
	core %= n
	if core < 0 {
		core += n
	}
	return core
}
