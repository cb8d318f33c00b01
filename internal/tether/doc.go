// Package tether drives a single link toward a commanded pose with two
// cascaded PID loops.
//
// The outer loop turns pose error into a velocity setpoint clamped to the
// configured maximum velocity; the inner loop turns velocity error into a
// force (and, for orientation, a torque) clamped to the maximum force.
//
// # Threading
//
// [Controller.SetTarget], [Controller.SetEnabled] and [Controller.Stop] may be
// called from any goroutine; the latest call wins. [Controller.OnUpdate] must
// only be called from the simulation loop, once per physics step. PID state
// is owned by that loop and is never touched by the command methods.
//
// # Disable and re-enable
//
// A disabled controller applies nothing and freezes its PID state. On
// re-enable it resumes from the frozen integrators unless
// [Config.ResetOnEnable] is set.
//
// Stop takes the pose and velocity found at the next update as the target.
// [Config.BrakeOnStop] brings the link to rest there instead.
package tether
