package tether

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

var (
	ErrNonFiniteTarget = errors.New("tether: target contains NaN or Inf")
	ErrNoSink          = errors.New("tether: actuator sink is nil")
)

// Output is what the controller computed for one step.
type Output struct {
	VelocitySetpoint mgl64.Vec3
	AngularSetpoint  mgl64.Vec3
	Force            mgl64.Vec3
	Torque           mgl64.Vec3
	Applied          bool
}

type Controller struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	target      Target
	enabled     bool
	pendingStop bool

	// owned by the simulation loop
	pos, vel, rot, angVel PID3
	wasEnabled            bool
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds an enabled controller. Until the first target arrives it holds
// the link where the first update finds it.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:         cfg,
		logger:      zap.NewNop(),
		target:      Target{Pose: IdentityPose()},
		enabled:     true,
		pendingStop: true,
		pos:         cfg.Position.newPID3(),
		vel:         cfg.Velocity.newPID3(),
		rot:         cfg.Orientation.newPID3(),
		angVel:      cfg.AngularVelocity.newPID3(),
		wasEnabled:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) Config() Config { return c.cfg }

// SetTarget replaces the current target. Targets with non-finite values are
// rejected and the previous target stays in force. A zero orientation
// quaternion means "keep orientation identity".
func (c *Controller) SetTarget(t Target) error {
	if !t.finite() {
		c.logger.Warn("rejected non-finite target", zap.String("link", c.cfg.Link))
		return ErrNonFiniteTarget
	}
	t.Pose.Orientation = unit(t.Pose.Orientation)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t
	c.pendingStop = false
	return nil
}

func (c *Controller) Target() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Stop makes the pose and velocity the next update finds the new target, so
// no further corrective effort is applied. With BrakeOnStop the target
// velocity is zero instead.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingStop = true
}

// Reset clears all integrator and derivative state. Simulation loop only.
func (c *Controller) Reset() {
	c.pos.Reset()
	c.vel.Reset()
	c.rot.Reset()
	c.angVel.Reset()
}

// Integrals exposes the accumulated integral of the position and velocity
// loops.
func (c *Controller) Integrals() (position, velocity mgl64.Vec3) {
	return c.pos.Integral(), c.vel.Integral()
}

// OnUpdate runs both loops for one physics step and applies the result to
// the sink. A disabled controller returns a zero Output without touching
// the sink or its PID state.
func (c *Controller) OnUpdate(dt float64, state LinkState, sink ActuatorSink) (Output, error) {
	c.mu.Lock()
	enabled := c.enabled
	if enabled && c.pendingStop {
		c.target = Target{Pose: Pose{
			Position:    state.Pose.Position,
			Orientation: unit(state.Pose.Orientation),
		}}
		if !c.cfg.BrakeOnStop {
			c.target.Velocity = state.Velocity
		}
		c.pendingStop = false
		c.mu.Unlock()
		c.Reset()
		c.logger.Debug("holding current pose", zap.String("link", c.cfg.Link))
	} else {
		c.mu.Unlock()
	}

	if !enabled {
		c.wasEnabled = false
		return Output{}, nil
	}
	if !c.wasEnabled {
		c.wasEnabled = true
		if c.cfg.ResetOnEnable {
			c.Reset()
		}
	}
	if dt <= 0 {
		return Output{}, nil
	}
	if sink == nil {
		return Output{}, ErrNoSink
	}

	target := c.Target()
	out := c.compute(dt, target, state)

	if err := sink.ApplyForce(c.cfg.Link, out.Force, out.Torque); err != nil {
		return out, fmt.Errorf("tether: apply force to %s: %w", c.cfg.Link, err)
	}
	out.Applied = true
	return out, nil
}

func (c *Controller) compute(dt float64, target Target, state LinkState) Output {
	var out Output

	posErr := target.Pose.Position.Sub(state.Pose.Position)
	setpoint := c.pos.Update(posErr, dt).Add(target.Velocity)
	out.VelocitySetpoint = clampVec(setpoint, c.cfg.Position.Limit)

	velErr := out.VelocitySetpoint.Sub(state.Velocity)
	out.Force = clampVec(c.vel.Update(velErr, dt), c.cfg.Velocity.Limit)

	if c.cfg.rotationEnabled() {
		rotErr := RotationError(target.Pose.Orientation, state.Pose.Orientation)
		angSet := c.rot.Update(rotErr, dt)
		if c.cfg.Orientation.Limit > 0 {
			angSet = clampVec(angSet, c.cfg.Orientation.Limit)
		}
		out.AngularSetpoint = angSet

		angErr := angSet.Sub(state.AngularVelocity)
		out.Torque = clampVec(c.angVel.Update(angErr, dt), c.cfg.AngularVelocity.Limit)
	}
	return out
}
