package sdf

import (
	"github.com/san-kum/tethermap/internal/voxel"
	queue "gopkg.in/eapache/queue.v1"
)

// wavefrontSquared propagates the identity of the nearest src cell outward
// through the 26-neighbourhood. A cell is re-queued whenever it learns of a
// closer source, so the pass converges regardless of visit order.
// Out-of-bounds cells are neither sources nor relays.
func wavefrontSquared(grid *voxel.OccupancyGrid, src voxel.Occupancy) []float64 {
	occ := grid.Data()
	d := make([]float64, grid.Len())
	nearest := make([]int, grid.Len())

	q := queue.New()
	for off, c := range occ {
		if c == src {
			d[off] = 0
			nearest[off] = off
			q.Add(off)
		} else {
			d[off] = far
			nearest[off] = -1
		}
	}

	region := grid.Region()
	for q.Length() > 0 {
		off := q.Remove().(int)
		source := nearest[off]
		srcIdx := grid.IndexAt(source)
		idx := grid.IndexAt(off)

		for _, step := range voxel.Neighbors26 {
			n := idx.Add(step)
			if !region.Contains(n) {
				continue
			}
			noff := grid.Offset(n)
			if occ[noff] == voxel.OutOfBounds || occ[noff] == src {
				continue
			}
			di, dj, dk := float64(n.I-srcIdx.I), float64(n.J-srcIdx.J), float64(n.K-srcIdx.K)
			d2 := di*di + dj*dj + dk*dk
			if d2 < d[noff] {
				d[noff] = d2
				nearest[noff] = source
				q.Add(noff)
			}
		}
	}
	return d
}
