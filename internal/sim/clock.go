package sim

import (
	"math"
	"sync/atomic"
)

// Clock publishes simulation time to goroutines outside the physics loop.
type Clock struct {
	bits atomic.Uint64
	step atomic.Int64
}

func (c *Clock) Now() float64 {
	return math.Float64frombits(c.bits.Load())
}

func (c *Clock) Step() int {
	return int(c.step.Load())
}

func (c *Clock) set(t float64, step int) {
	c.bits.Store(math.Float64bits(t))
	c.step.Store(int64(step))
}
