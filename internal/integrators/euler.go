package integrators

import (
	"github.com/san-kum/tethermap/internal/sim"
	"gonum.org/v1/gonum/floats"
)

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t float64, dt float64) sim.State {
	next := make(sim.State, len(x))
	floats.AddScaledTo(next, x, dt, dyn.Derive(x, u, t))
	return normalize(dyn, next)
}

// normalize projects x back onto the dynamics' constraint, if it has one.
func normalize(dyn sim.Dynamics, x sim.State) sim.State {
	if n, ok := dyn.(sim.Normalizer); ok {
		n.Normalize(x)
	}
	return x
}
