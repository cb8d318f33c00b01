package tether

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var ErrInvalidConfig = errors.New("tether: invalid config")

// LoopConfig configures one PID stage. Limit is the output clamp.
type LoopConfig struct {
	Gains         `yaml:",inline"`
	Limit         float64 `yaml:"limit"`
	IntegralLimit float64 `yaml:"integral_limit"`
}

type Config struct {
	Link string `yaml:"link"`
	// Position maps pose error to a velocity setpoint; Limit is max velocity.
	Position LoopConfig `yaml:"position"`
	// Velocity maps velocity error to force; Limit is max force.
	Velocity LoopConfig `yaml:"velocity"`
	// Orientation and AngularVelocity mirror the two stages for rotation.
	// Rotation control is off while AngularVelocity.Limit is zero.
	Orientation     LoopConfig `yaml:"orientation"`
	AngularVelocity LoopConfig `yaml:"angular_velocity"`
	ResetOnEnable   bool       `yaml:"reset_on_enable"`
	// BrakeOnStop makes Stop hold the current position at rest instead of
	// keeping the link's current velocity as the target.
	BrakeOnStop bool `yaml:"brake_on_stop"`
}

func DefaultConfig() Config {
	return Config{
		Link:     "tether",
		Position: LoopConfig{Gains: Gains{Kp: 4.0, Ki: 0.0, Kd: 0.0}, Limit: 1.0},
		Velocity: LoopConfig{Gains: Gains{Kp: 20.0, Ki: 0.5, Kd: 0.0}, Limit: 50.0},
	}
}

func (c Config) Validate() error {
	var err error
	if c.Link == "" {
		err = multierr.Append(err, fmt.Errorf("%w: link name is empty", ErrInvalidConfig))
	}
	if c.Position.Limit <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: max velocity must be positive", ErrInvalidConfig))
	}
	if c.Velocity.Limit <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: max force must be positive", ErrInvalidConfig))
	}
	if c.Orientation.Limit < 0 || c.AngularVelocity.Limit < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: angular limits must not be negative", ErrInvalidConfig))
	}
	return err
}

func (c Config) rotationEnabled() bool {
	return c.AngularVelocity.Limit > 0
}

func (l LoopConfig) newPID3() PID3 {
	p := NewPID3(l.Gains, l.Limit)
	for _, c := range p {
		c.IntegralLimit = l.IntegralLimit
	}
	return p
}

// SetGain sets one gain or limit by its dotted name, for example
// "velocity.kp" or "position.limit".
func (c *Config) SetGain(name string, v float64) error {
	stage, param, ok := strings.Cut(strings.ToLower(name), ".")
	if !ok {
		return fmt.Errorf("%w: gain name %q is not stage.param", ErrInvalidConfig, name)
	}
	var l *LoopConfig
	switch stage {
	case "position":
		l = &c.Position
	case "velocity":
		l = &c.Velocity
	case "orientation":
		l = &c.Orientation
	case "angular_velocity":
		l = &c.AngularVelocity
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidConfig, stage)
	}
	switch param {
	case "kp":
		l.Kp = v
	case "ki":
		l.Ki = v
	case "kd":
		l.Kd = v
	case "limit":
		l.Limit = v
	case "integral_limit":
		l.IntegralLimit = v
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidConfig, param)
	}
	return nil
}
