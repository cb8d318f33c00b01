package world

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Shape is a solid primitive.
type Shape interface {
	// Inside reports whether p is in the solid (boundary included).
	Inside(p r3.Vec) bool
	// Intersect returns the smallest t in [0, 1] where from + t*(to-from)
	// enters the solid.
	Intersect(from, to r3.Vec) (float64, bool)
	Bounds() Box
}

// Box is an axis-aligned box.
type Box struct {
	Min, Max r3.Vec
}

func NewBox(center, size r3.Vec) Box {
	half := r3.Scale(0.5, size)
	return Box{Min: r3.Sub(center, half), Max: r3.Add(center, half)}
}

func (b Box) Inside(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Bounds() Box { return b }

func (b Box) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

func (b Box) Size() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// Intersect uses the slab method.
func (b Box) Intersect(from, to r3.Vec) (float64, bool) {
	if b.Inside(from) {
		return 0, true
	}
	d := r3.Sub(to, from)
	tmin, tmax := 0.0, 1.0
	o := [3]float64{from.X, from.Y, from.Z}
	dir := [3]float64{d.X, d.Y, d.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for a := 0; a < 3; a++ {
		if dir[a] == 0 {
			if o[a] < lo[a] || o[a] > hi[a] {
				return 0, false
			}
			continue
		}
		t1 := (lo[a] - o[a]) / dir[a]
		t2 := (hi[a] - o[a]) / dir[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) Inside(p r3.Vec) bool {
	return r3.Norm2(r3.Sub(p, s.Center)) <= s.Radius*s.Radius
}

func (s Sphere) Bounds() Box {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return Box{Min: r3.Sub(s.Center, r), Max: r3.Add(s.Center, r)}
}

func (s Sphere) Intersect(from, to r3.Vec) (float64, bool) {
	if s.Inside(from) {
		return 0, true
	}
	d := r3.Sub(to, from)
	m := r3.Sub(from, s.Center)
	a := r3.Dot(d, d)
	if a == 0 {
		return 0, false
	}
	b := r3.Dot(m, d)
	c := r3.Dot(m, m) - s.Radius*s.Radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
