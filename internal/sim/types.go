package sim

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

// Dynamics is an ODE dX/dt = f(X, u, t).
type Dynamics interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Normalizer is implemented by dynamics whose state carries a constraint
// that integration drifts off, such as a unit quaternion. Integrators call
// Normalize on every state they return.
type Normalizer interface {
	Normalize(x State)
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

// Step describes the physics step a hook is being invoked for.
type Step struct {
	Index int
	Time  float64
	Dt    float64
}

// Hook runs once per physics step on the simulation goroutine. It is the
// only place allowed to read world state or apply forces.
type Hook interface {
	OnUpdate(step Step) error
}

type HookFunc func(step Step) error

func (f HookFunc) OnUpdate(step Step) error { return f(step) }

// Body is a simulated rigid body advanced by the simulator after hooks ran.
type Body interface {
	State() State
	Control() Control
	Advance(integ Integrator, t, dt float64) error
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Config struct {
	Dt       float64
	Duration float64
	// RealTimeFactor paces the loop against the wall clock. Zero runs as
	// fast as possible.
	RealTimeFactor float64
	Record         bool
	ValidateState  bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.001,
		Duration:      10.0,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// StepError wraps a hook or body failure with the step it happened on.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
