package integrators

import (
	"github.com/san-kum/tethermap/internal/sim"
	"gonum.org/v1/gonum/floats"
)

// RK4 is not safe for concurrent use; it reuses its stage buffers.
//
// Intermediate stages are evaluated off the constraint surface; only the
// returned state is normalized.
type RK4 struct {
	k       [4]sim.State
	scratch sim.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		for i := range r.k {
			r.k[i] = make(sim.State, n)
		}
		r.scratch = make(sim.State, n)
	}
}

var (
	rk4Offsets = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

func (r *RK4) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	r.ensureScratch(len(x))

	copy(r.k[0], dyn.Derive(x, u, t))
	for s := 1; s < 4; s++ {
		h := rk4Offsets[s] * dt
		floats.AddScaledTo(r.scratch, x, h, r.k[s-1])
		copy(r.k[s], dyn.Derive(r.scratch, u, t+h))
	}

	next := make(sim.State, len(x))
	copy(next, x)
	for s, w := range rk4Weights {
		floats.AddScaled(next, w*dt/6, r.k[s])
	}
	return normalize(dyn, next)
}
