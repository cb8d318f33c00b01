package sdf

import (
	"github.com/san-kum/tethermap/internal/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Gradient holds the finite-difference gradient of a Field.
type Gradient struct {
	*voxel.Grid[r3.Vec]
}

// ComputeGradient differentiates the field along each axis. Whether a
// neighbour is usable is decided by its occupancy, so sentinel distances
// never enter the arithmetic.
func ComputeGradient(f *Field) *Gradient {
	region := f.Region()
	g := &Gradient{Grid: voxel.NewGrid[r3.Vec](region)}
	res := region.Resolution
	occ := f.Occupancy

	usable := func(idx voxel.Index) bool {
		o, ok := occ.Get(idx)
		return ok && o != voxel.OutOfBounds
	}

	out := g.Data()
	for off := range out {
		idx := f.IndexAt(off)
		if occ.Data()[off] == voxel.OutOfBounds {
			continue
		}
		d0 := f.Data()[off]

		var comp [3]float64
		for a, step := range voxel.Axes {
			plus := idx.Add(step)
			minus := idx.Add(voxel.Index{I: -step.I, J: -step.J, K: -step.K})
			hasPlus, hasMinus := usable(plus), usable(minus)
			switch {
			case hasPlus && hasMinus:
				comp[a] = (f.At(plus) - f.At(minus)) / (2 * res)
			case hasPlus:
				comp[a] = (f.At(plus) - d0) / res
			case hasMinus:
				comp[a] = (d0 - f.At(minus)) / res
			}
		}
		out[off] = r3.Vec{X: comp[0], Y: comp[1], Z: comp[2]}
	}
	return g
}

// Value returns the gradient at idx, or the zero vector outside the region.
func (g *Gradient) Value(idx voxel.Index) r3.Vec {
	v, _ := g.Get(idx)
	return v
}

// Flatten returns xyz-interleaved components in row-major cell order.
func (g *Gradient) Flatten() []float64 {
	out := make([]float64, 0, 3*g.Len())
	for _, v := range g.Data() {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}
