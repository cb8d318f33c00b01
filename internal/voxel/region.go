package voxel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidRegion indicates a region with a non-positive resolution or extent.
var ErrInvalidRegion = errors.New("voxel: invalid region")

// MaxCells is the largest region any grid may back. Callers usually apply a
// much smaller limit through CheckSize.
const MaxCells = 1 << 30

// Index identifies a cell by its integer coordinates.
type Index struct {
	I, J, K int
}

func (idx Index) Add(d Index) Index {
	return Index{idx.I + d.I, idx.J + d.J, idx.K + d.K}
}

func (idx Index) String() string {
	return fmt.Sprintf("(%d,%d,%d)", idx.I, idx.J, idx.K)
}

// Region is the bounding box of a grid in world coordinates.
type Region struct {
	Origin     r3.Vec
	Extents    [3]int
	Resolution float64
}

// Validate rejects regions that cannot back a grid.
func (r Region) Validate() error {
	if math.IsNaN(r.Resolution) || math.IsInf(r.Resolution, 0) || r.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidRegion, r.Resolution)
	}
	cells := 1
	for axis, n := range r.Extents {
		if n <= 0 {
			return fmt.Errorf("%w: extent %d must be positive, got %d", ErrInvalidRegion, axis, n)
		}
		if n > MaxCells/cells {
			return fmt.Errorf("%w: extents %v exceed %d cells", ErrInvalidRegion, r.Extents, MaxCells)
		}
		cells *= n
	}
	for _, v := range []float64{r.Origin.X, r.Origin.Y, r.Origin.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: origin must be finite", ErrInvalidRegion)
		}
	}
	return nil
}

// CheckSize validates r and rejects it when it holds more than limit cells.
// A non-positive limit only applies MaxCells.
func (r Region) CheckSize(limit int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if limit > 0 && r.Len() > limit {
		return fmt.Errorf("%w: %d cells over the limit of %d", ErrInvalidRegion, r.Len(), limit)
	}
	return nil
}

// Len is the number of cells in the region. It is only meaningful for a
// region that passes Validate.
func (r Region) Len() int {
	return r.Extents[0] * r.Extents[1] * r.Extents[2]
}

// Contains reports whether idx lies within the extents.
func (r Region) Contains(idx Index) bool {
	return idx.I >= 0 && idx.I < r.Extents[0] &&
		idx.J >= 0 && idx.J < r.Extents[1] &&
		idx.K >= 0 && idx.K < r.Extents[2]
}

// Position maps an index to origin + index*resolution.
func (r Region) Position(idx Index) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(r.Resolution, r3.Vec{
		X: float64(idx.I),
		Y: float64(idx.J),
		Z: float64(idx.K),
	}))
}

// Center is the world position of the middle of a cell.
func (r Region) Center(idx Index) r3.Vec {
	half := r.Resolution / 2
	return r3.Add(r.Position(idx), r3.Vec{X: half, Y: half, Z: half})
}

// IndexOf returns the cell containing p. ok is false when p is outside the region.
func (r Region) IndexOf(p r3.Vec) (Index, bool) {
	d := r3.Scale(1/r.Resolution, r3.Sub(p, r.Origin))
	idx := Index{
		I: int(math.Floor(d.X)),
		J: int(math.Floor(d.Y)),
		K: int(math.Floor(d.Z)),
	}
	return idx, r.Contains(idx)
}

// Size is the world-frame size of the region.
func (r Region) Size() r3.Vec {
	return r3.Vec{
		X: float64(r.Extents[0]) * r.Resolution,
		Y: float64(r.Extents[1]) * r.Resolution,
		Z: float64(r.Extents[2]) * r.Resolution,
	}
}

// Diagonal is the distance between the first and last cell centres.
func (r Region) Diagonal() float64 {
	return r3.Norm(r3.Vec{
		X: float64(r.Extents[0]-1) * r.Resolution,
		Y: float64(r.Extents[1]-1) * r.Resolution,
		Z: float64(r.Extents[2]-1) * r.Resolution,
	})
}
