package sdf

import (
	"fmt"
	"math"

	"github.com/san-kum/tethermap/internal/voxel"
)

type Method int

const (
	Exact Method = iota
	Wavefront
)

func (m Method) String() string {
	switch m {
	case Exact:
		return "exact"
	case Wavefront:
		return "wavefront"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a config value to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "exact":
		return Exact, nil
	case "wavefront":
		return Wavefront, nil
	default:
		return Exact, fmt.Errorf("sdf: unknown method %q", s)
	}
}

// far stands in for infinity in squared cell distances; it keeps the
// lower-envelope arithmetic finite.
const far = 1e20

// Compute builds the signed distance field of a completed occupancy grid.
func Compute(grid *voxel.OccupancyGrid, method Method) (*Field, error) {
	if grid == nil {
		return nil, ErrNilGrid
	}
	if !voxel.Complete(grid) {
		return nil, ErrIncompleteGrid
	}

	region := grid.Region()
	field := &Field{
		Grid:        voxel.NewGrid[float64](region),
		Occupancy:   grid,
		MaxDistance: math.Max(region.Diagonal(), region.Resolution),
	}

	var outside, inside []float64
	switch method {
	case Exact:
		outside = exactSquared(grid, voxel.Occupied)
		inside = exactSquared(grid, voxel.Free)
	case Wavefront:
		outside = wavefrontSquared(grid, voxel.Occupied)
		inside = wavefrontSquared(grid, voxel.Free)
	default:
		return nil, fmt.Errorf("sdf: unknown method %v", method)
	}

	res := region.Resolution
	dist := field.Data()
	for off, occ := range grid.Data() {
		switch occ {
		case voxel.Free:
			dist[off] = field.magnitude(outside[off], res)
		case voxel.Occupied:
			dist[off] = -field.magnitude(inside[off], res)
		default:
			dist[off] = Sentinel
		}
	}
	return field, nil
}

func (f *Field) magnitude(d2, res float64) float64 {
	if d2 >= far/2 {
		return f.MaxDistance
	}
	return math.Sqrt(d2) * res
}

// exactSquared returns, per cell, the squared distance in cells to the
// nearest cell of class src. Out-of-bounds cells are never sources.
func exactSquared(grid *voxel.OccupancyGrid, src voxel.Occupancy) []float64 {
	e := grid.Region().Extents
	nx, ny, nz := e[0], e[1], e[2]

	d := make([]float64, grid.Len())
	for off, occ := range grid.Data() {
		if occ == src {
			d[off] = 0
		} else {
			d[off] = far
		}
	}

	n := max(nx, ny, nz)
	buf := newEnvelope(n)

	// k lines
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			buf.transform(d, (i*ny+j)*nz, 1, nz)
		}
	}
	// j lines
	for i := 0; i < nx; i++ {
		for k := 0; k < nz; k++ {
			buf.transform(d, i*ny*nz+k, nz, ny)
		}
	}
	// i lines
	for j := 0; j < ny; j++ {
		for k := 0; k < nz; k++ {
			buf.transform(d, j*nz+k, ny*nz, nx)
		}
	}
	return d
}

// envelope holds the scratch buffers of the 1D lower-envelope transform.
type envelope struct {
	f []float64
	v []int
	z []float64
}

func newEnvelope(n int) *envelope {
	return &envelope{
		f: make([]float64, n),
		v: make([]int, n),
		z: make([]float64, n+1),
	}
}

// transform runs the 1D squared distance transform in place over n values of
// d starting at start with the given stride.
func (e *envelope) transform(d []float64, start, stride, n int) {
	f := e.f[:n]
	for q := 0; q < n; q++ {
		f[q] = d[start+q*stride]
	}

	v, z := e.v, e.z
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[start+q*stride] = dq*dq + f[v[k]]
	}
}

func intersect(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}
