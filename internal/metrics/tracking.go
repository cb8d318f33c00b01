package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/tethermap/internal/sim"
)

// TrackingError is the RMS distance between the link position, read from
// the first three state components, and a target supplied per sample.
type TrackingError struct {
	target  func() mgl64.Vec3
	sumSq   float64
	last    float64
	samples int
}

func NewTrackingError(target func() mgl64.Vec3) *TrackingError {
	return &TrackingError{target: target}
}

func (e *TrackingError) Name() string { return "tracking_rms" }

func (e *TrackingError) Observe(x sim.State, u sim.Control, t float64) {
	if len(x) < 3 {
		return
	}
	d := e.target().Sub(mgl64.Vec3{x[0], x[1], x[2]}).Len()
	e.sumSq += d * d
	e.last = d
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.samples))
}

// Final is the error at the last observed step.
func (e *TrackingError) Final() float64 { return e.last }

func (e *TrackingError) Reset() {
	e.sumSq = 0
	e.last = 0
	e.samples = 0
}
