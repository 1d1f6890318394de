package phasetime

import (
	"sync/atomic"
	"time"
)

// Accumulator is a single elapsed-time counter owned by one compilation.
type Accumulator struct {
	nanos atomic.Int64
	runs  atomic.Int64
}

// Add credits d.
func (a *Accumulator) Add(d time.Duration) {
	if a == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	a.nanos.Add(int64(d))
	a.runs.Add(1)
}

// Elapsed returns the accumulated time.
func (a *Accumulator) Elapsed() time.Duration {
	if a == nil {
		return 0
	}
	return time.Duration(a.nanos.Load())
}

// Seconds returns the accumulated time in seconds.
func (a *Accumulator) Seconds() float64 { return a.Elapsed().Seconds() }

// Runs returns how many intervals were added.
func (a *Accumulator) Runs() int64 {
	if a == nil {
		return 0
	}
	return a.runs.Load()
}
