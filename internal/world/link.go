package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/tethermap/internal/sim"
	"github.com/san-kum/tethermap/internal/tether"
)

// State layout: position(3) velocity(3) orientation wxyz(4) angular velocity(3).
const linkStateDim = 13

// Link is a gravity-free rigid body with a scalar moment of inertia.
// Forces applied during a step accumulate and are cleared after Advance.
type Link struct {
	Name           string
	Mass           float64
	Inertia        float64
	LinearDamping  float64
	AngularDamping float64

	x sim.State
	u sim.Control
}

func NewLink(name string, mass, inertia float64, pose tether.Pose) *Link {
	l := &Link{
		Name:    name,
		Mass:    mass,
		Inertia: inertia,
		x:       make(sim.State, linkStateDim),
		u:       make(sim.Control, 6),
	}
	q := pose.Orientation
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	q = q.Normalize()
	copy(l.x[0:3], pose.Position[:])
	l.x[6], l.x[7], l.x[8], l.x[9] = q.W, q.V[0], q.V[1], q.V[2]
	return l
}

func (l *Link) StateDim() int   { return linkStateDim }
func (l *Link) ControlDim() int { return 6 }

func (l *Link) Derive(x sim.State, u sim.Control, t float64) sim.State {
	dx := make(sim.State, linkStateDim)
	copy(dx[0:3], x[3:6])
	for i := 0; i < 3; i++ {
		dx[3+i] = (u[i] - l.LinearDamping*x[3+i]) / l.Mass
		dx[10+i] = (u[3+i] - l.AngularDamping*x[10+i]) / l.Inertia
	}

	// dq/dt = 0.5 * (0, w) * q with w in the world frame.
	q := mgl64.Quat{W: x[6], V: mgl64.Vec3{x[7], x[8], x[9]}}
	w := mgl64.Quat{V: mgl64.Vec3{x[10], x[11], x[12]}}
	dq := w.Mul(q).Scale(0.5)
	dx[6], dx[7], dx[8], dx[9] = dq.W, dq.V[0], dq.V[1], dq.V[2]
	return dx
}

func (l *Link) State() sim.State     { return l.x }
func (l *Link) Control() sim.Control { return l.u }

// Normalize implements sim.Normalizer: it rescales the orientation back to
// a unit quaternion. A collapsed quaternion is left as is.
func (l *Link) Normalize(x sim.State) {
	n := quatNorm(x)
	if n == 0 {
		return
	}
	for i := 6; i < 10; i++ {
		x[i] /= n
	}
}

func quatNorm(x sim.State) float64 {
	return math.Sqrt(x[6]*x[6] + x[7]*x[7] + x[8]*x[8] + x[9]*x[9])
}

// Advance integrates one step with the accumulated wrench and clears it.
func (l *Link) Advance(integ sim.Integrator, t, dt float64) error {
	next := integ.Step(l, l.x, l.u, t, dt)
	if quatNorm(next) == 0 {
		return fmt.Errorf("world: link %s orientation collapsed", l.Name)
	}
	l.x = next
	l.u = make(sim.Control, 6)
	return nil
}

// ApplyForce implements tether.ActuatorSink.
func (l *Link) ApplyForce(link string, force, torque mgl64.Vec3) error {
	if link != l.Name {
		return fmt.Errorf("world: unknown link %q", link)
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(force[i]) || math.IsInf(force[i], 0) || math.IsNaN(torque[i]) || math.IsInf(torque[i], 0) {
			return fmt.Errorf("world: non-finite wrench on %s", link)
		}
		l.u[i] += force[i]
		l.u[3+i] += torque[i]
	}
	return nil
}

// LinkState snapshots the body for the controller.
func (l *Link) LinkState() tether.LinkState {
	return tether.LinkState{
		Pose: tether.Pose{
			Position:    mgl64.Vec3{l.x[0], l.x[1], l.x[2]},
			Orientation: mgl64.Quat{W: l.x[6], V: mgl64.Vec3{l.x[7], l.x[8], l.x[9]}},
		},
		Velocity:        mgl64.Vec3{l.x[3], l.x[4], l.x[5]},
		AngularVelocity: mgl64.Vec3{l.x[10], l.x[11], l.x[12]},
	}
}
