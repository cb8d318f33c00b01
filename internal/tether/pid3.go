package tether

import "github.com/go-gl/mathgl/mgl64"

// PID3 runs one independent PID per axis.
type PID3 [3]*PID

func NewPID3(g Gains, limit float64) PID3 {
	return PID3{NewPID(g, limit), NewPID(g, limit), NewPID(g, limit)}
}

func (p PID3) Update(err mgl64.Vec3, dt float64) mgl64.Vec3 {
	return mgl64.Vec3{
		p[0].Update(err[0], dt),
		p[1].Update(err[1], dt),
		p[2].Update(err[2], dt),
	}
}

func (p PID3) Reset() {
	for _, c := range p {
		c.Reset()
	}
}

func (p PID3) Integral() mgl64.Vec3 {
	return mgl64.Vec3{p[0].Integral(), p[1].Integral(), p[2].Integral()}
}

func clampVec(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	return mgl64.Vec3{clamp(v[0], limit), clamp(v[1], limit), clamp(v[2], limit)}
}
