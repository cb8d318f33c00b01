package world

import (
	"errors"
	"math"

	"github.com/san-kum/tethermap/internal/probe"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrDegenerateRay = errors.New("world: ray has non-finite endpoints")

// Scene is a static set of solids inside a navigable volume.
type Scene struct {
	bounds Box
	shapes []Shape
}

func NewScene(bounds Box, shapes ...Shape) *Scene {
	s := &Scene{bounds: bounds, shapes: make([]Shape, len(shapes))}
	copy(s.shapes, shapes)
	return s
}

func (s *Scene) Bounds() Box     { return s.bounds }
func (s *Scene) Shapes() []Shape { return s.shapes }

// Contains is the navigable-volume test.
func (s *Scene) Contains(p r3.Vec) (bool, error) {
	return s.bounds.Inside(p), nil
}

// Raycast returns the nearest solid hit on the segment.
func (s *Scene) Raycast(from, to r3.Vec) (probe.Hit, error) {
	if !finite(from) || !finite(to) {
		return probe.Hit{}, ErrDegenerateRay
	}
	best := 2.0
	for _, sh := range s.shapes {
		if t, ok := sh.Intersect(from, to); ok && t < best {
			best = t
		}
	}
	if best > 1 {
		return probe.Hit{}, nil
	}
	d := r3.Sub(to, from)
	return probe.Hit{
		Hit:      true,
		Point:    r3.Add(from, r3.Scale(best, d)),
		Distance: best * r3.Norm(d),
	}, nil
}

func finite(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// FaultyWorld fails every query whose point (or ray start) lies in Region.
// It stands in for a geometry engine that errors on part of the map.
type FaultyWorld struct {
	probe.WorldQuery
	Region Box
	Err    error
}

func (f *FaultyWorld) Contains(p r3.Vec) (bool, error) {
	if f.Region.Inside(p) {
		return false, f.err()
	}
	return f.WorldQuery.Contains(p)
}

func (f *FaultyWorld) Raycast(from, to r3.Vec) (probe.Hit, error) {
	if f.Region.Inside(from) {
		return probe.Hit{}, f.err()
	}
	return f.WorldQuery.Raycast(from, to)
}

func (f *FaultyWorld) err() error {
	if f.Err != nil {
		return f.Err
	}
	return errors.New("world: geometry query failed")
}
