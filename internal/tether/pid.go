package tether

import "math"

type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// PID is a scalar controller driven by an explicit step duration.
// Limit clamps the output to [-Limit, Limit]; IntegralLimit clamps the
// accumulated integral. A non-positive limit disables the clamp.
type PID struct {
	Gains
	Limit         float64
	IntegralLimit float64
	integral      float64
	prevErr       float64
	first         bool
}

func NewPID(g Gains, limit float64) *PID {
	return &PID{
		Gains: g,
		Limit: limit,
		first: true,
	}
}

// Update advances the controller by dt and returns the clamped output.
// With dt <= 0 only the proportional term is returned and state is untouched.
func (p *PID) Update(err, dt float64) float64 {
	if dt <= 0 {
		return clamp(p.Kp*err, p.Limit)
	}

	derivative := 0.0
	if p.first {
		p.first = false
	} else {
		derivative = (err - p.prevErr) / dt
	}

	p.integral = clamp(p.integral+err*dt, p.IntegralLimit)
	p.prevErr = err

	u := p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	return clamp(u, p.Limit)
}

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.first = true
}

func (p *PID) Integral() float64 { return p.integral }

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":    p.Kp,
		"Ki":    p.Ki,
		"Kd":    p.Kd,
		"Limit": p.Limit,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Limit":
		p.Limit = value
	}
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}
