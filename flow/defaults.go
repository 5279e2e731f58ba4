package flow

import "sync/atomic"

var (
	configuredMaxIterations atomic.Int64
	configuredMaxWorkers    atomic.Int64
)

// SetDefaultMaxIterations overrides the cap applied to DoWhile
// combinators constructed without their own MaxIterations. A value <= 0
// restores DefaultMaxIterations. Combinators already constructed are
// unaffected.
func SetDefaultMaxIterations(n int) {
	configuredMaxIterations.Store(int64(n))
}

// SetDefaultMaxWorkers overrides the worker bound applied to
// ParallelList combinators constructed without their own MaxWorkers.
// Zero means unbounded.
func SetDefaultMaxWorkers(n int) {
	configuredMaxWorkers.Store(int64(n))
}

func defaultMaxIterations() int {
	if n := int(configuredMaxIterations.Load()); n > 0 {
		return n
	}
	return DefaultMaxIterations
}

func defaultMaxWorkers() int {
	if n := int(configuredMaxWorkers.Load()); n > 0 {
		return n
	}
	return 0
}
