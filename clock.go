package MvccDB

import (
	"math"
	"sync/atomic"
)

// LogicalClock source of begin and commit timestamps
type LogicalClock interface {
	// Now returns a value strictly greater than every value returned before
	Now() uint64
	// Current last value handed out, does not advance the clock
	Current() uint64
}

// LocalClock in-process counter clock
type LocalClock struct {
	ts atomic.Uint64
}

var _ LogicalClock = (*LocalClock)(nil)

// NewLocalClock the first Now() returns start+1
func NewLocalClock(start uint64) *LocalClock {
	clk := &LocalClock{}
	clk.ts.Store(start)
	return clk
}

// Now panics with ErrClockExhausted once the counter would wrap. There is
// no way to continue without breaking timestamp order, so the process must stop.
func (clk *LocalClock) Now() uint64 {
	for {
		cur := clk.ts.Load()
		if cur == math.MaxUint64 {
			panic(ErrClockExhausted)
		}
		if clk.ts.CompareAndSwap(cur, cur+1) {
			return cur + 1
		}
	}
}

func (clk *LocalClock) Current() uint64 {
	return clk.ts.Load()
}
