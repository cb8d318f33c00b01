package tether

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

func IdentityPose() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// LinkState is a read-only snapshot of the actuated link for one step.
type LinkState struct {
	Pose            Pose
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Target is what the controller drives toward. Velocity is fed forward into
// the velocity setpoint.
type Target struct {
	Pose     Pose
	Velocity mgl64.Vec3
}

// ActuatorSink applies a wrench to a named body for the current step.
type ActuatorSink interface {
	ApplyForce(link string, force, torque mgl64.Vec3) error
}

// RotationError returns the rotation vector (axis * angle) of the minimal
// rotation taking current onto target, expressed in the world frame.
func RotationError(target, current mgl64.Quat) mgl64.Vec3 {
	q := unit(target).Mul(unit(current).Inverse()).Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	sinHalf := q.V.Len()
	if sinHalf < 1e-12 {
		return q.V.Mul(2)
	}
	angle := 2 * math.Atan2(sinHalf, q.W)
	return q.V.Mul(angle / sinHalf)
}

// unit treats the zero quaternion as identity.
func unit(q mgl64.Quat) mgl64.Quat {
	if q.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (t Target) finite() bool {
	q := t.Pose.Orientation
	return finiteVec(t.Pose.Position) && finiteVec(t.Velocity) &&
		finiteVec(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}
