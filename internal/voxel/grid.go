package voxel

// Grid is a dense array holding one T per cell of a region.
type Grid[T any] struct {
	region Region
	data   []T
}

func NewGrid[T any](r Region) *Grid[T] {
	return &Grid[T]{
		region: r,
		data:   make([]T, r.Len()),
	}
}

func (g *Grid[T]) Region() Region { return g.region }
func (g *Grid[T]) Len() int       { return len(g.data) }

// Data exposes the backing slice in row-major order.
func (g *Grid[T]) Data() []T { return g.data }

// Offset converts an index to its position in Data. Callers must check bounds.
func (g *Grid[T]) Offset(idx Index) int {
	e := g.region.Extents
	return (idx.I*e[1]+idx.J)*e[2] + idx.K
}

// IndexAt is the inverse of Offset.
func (g *Grid[T]) IndexAt(offset int) Index {
	e := g.region.Extents
	k := offset % e[2]
	j := (offset / e[2]) % e[1]
	i := offset / (e[1] * e[2])
	return Index{I: i, J: j, K: k}
}

// Get returns the value at idx; ok is false outside the extents.
func (g *Grid[T]) Get(idx Index) (T, bool) {
	if !g.region.Contains(idx) {
		var zero T
		return zero, false
	}
	return g.data[g.Offset(idx)], true
}

// At is Get without the bounds flag. It panics outside the extents.
func (g *Grid[T]) At(idx Index) T {
	return g.data[g.Offset(idx)]
}

func (g *Grid[T]) Set(idx Index, v T) bool {
	if !g.region.Contains(idx) {
		return false
	}
	g.data[g.Offset(idx)] = v
	return true
}

// Each visits every cell in row-major order.
func (g *Grid[T]) Each(fn func(idx Index, v T)) {
	for off, v := range g.data {
		fn(g.IndexAt(off), v)
	}
}

func (g *Grid[T]) Clone() *Grid[T] {
	c := &Grid[T]{region: g.region, data: make([]T, len(g.data))}
	copy(c.data, g.data)
	return c
}

// Axis unit offsets, used for neighbour lookups.
var Axes = [3]Index{{I: 1}, {J: 1}, {K: 1}}

// Neighbors26 lists the offsets of the 26-connected neighbourhood.
var Neighbors26 []Index

func init() {
	for _, i := range []int{-1, 0, 1} {
		for _, j := range []int{-1, 0, 1} {
			for _, k := range []int{-1, 0, 1} {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				Neighbors26 = append(Neighbors26, Index{I: i, J: j, K: k})
			}
		}
	}
}
