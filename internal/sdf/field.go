package sdf

import (
	"errors"
	"math"

	"github.com/san-kum/tethermap/internal/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sentinel marks out-of-bounds cells. It is never a real distance.
const Sentinel = math.MaxFloat32

var (
	ErrNilGrid        = errors.New("sdf: occupancy grid is nil")
	ErrIncompleteGrid = errors.New("sdf: occupancy grid has unclassified cells")
)

func IsSentinel(v float64) bool {
	return v >= Sentinel
}

// Field is a signed distance field over the region of its occupancy grid.
type Field struct {
	*voxel.Grid[float64]
	Occupancy *voxel.OccupancyGrid
	// MaxDistance caps cells that have no opposite-class cell anywhere.
	MaxDistance float64
}

// Value returns the distance at idx. ok is false outside the region and on
// out-of-bounds cells.
func (f *Field) Value(idx voxel.Index) (float64, bool) {
	occ, ok := f.Occupancy.Get(idx)
	if !ok || occ == voxel.OutOfBounds {
		return 0, false
	}
	return f.At(idx), true
}

// Lookup returns the distance of the cell containing p.
func (f *Field) Lookup(p r3.Vec) (float64, bool) {
	idx, ok := f.Region().IndexOf(p)
	if !ok {
		return 0, false
	}
	return f.Value(idx)
}

// Flatten returns a row-major copy of the distances, sentinels included.
func (f *Field) Flatten() []float64 {
	out := make([]float64, f.Len())
	copy(out, f.Data())
	return out
}

// Range returns the smallest and largest finite distance.
func (f *Field) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for off, v := range f.Data() {
		if f.Occupancy.Data()[off] == voxel.OutOfBounds {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}
