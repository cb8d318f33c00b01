// Package probe classifies the cells of a region by querying world geometry.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/tethermap/internal/voxel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNoWorld = errors.New("probe: world query is nil")
	// ErrQueryPanic marks a geometry query that panicked. It is counted as a
	// query error like any other.
	ErrQueryPanic = errors.New("probe: geometry query panicked")
	// ErrPanic is returned by Probe when a worker panicked outside a
	// geometry query.
	ErrPanic = errors.New("probe: worker panicked")
)

// Hit is the first intersection along a cast segment.
type Hit struct {
	Hit      bool
	Point    r3.Vec
	Distance float64
}

// WorldQuery is the read-only geometry capability the prober depends on.
//
// Raycast reports the first intersection on the segment from -> to. A segment
// that starts inside a solid hits at distance zero. Contains is the boundary
// test for the navigable volume. Implementations must not mutate the world
// and must be safe for concurrent use when the prober runs more than one
// worker.
type WorldQuery interface {
	Contains(p r3.Vec) (bool, error)
	Raycast(from, to r3.Vec) (Hit, error)
}

type Stats struct {
	Free        int
	Occupied    int
	OutOfBounds int
	QueryErrors int
	Rays        int
}

func (s *Stats) add(o Stats) {
	s.Free += o.Free
	s.Occupied += o.Occupied
	s.OutOfBounds += o.OutOfBounds
	s.QueryErrors += o.QueryErrors
	s.Rays += o.Rays
}

func (s *Stats) count(occ voxel.Occupancy) {
	switch occ {
	case voxel.Free:
		s.Free++
	case voxel.Occupied:
		s.Occupied++
	case voxel.OutOfBounds:
		s.OutOfBounds++
	}
}

type Prober struct {
	workers int
	logger  *zap.Logger
}

type Option func(*Prober)

// WithWorkers splits the region into slabs along the first axis and probes
// up to n of them at once.
func WithWorkers(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(opts ...Option) *Prober {
	p := &Prober{workers: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe classifies every cell of the region. Geometry failures never abort
// the build; the affected cell becomes OutOfBounds and is counted in
// Stats.QueryErrors; a query that panics counts the same way. The returned
// error is non-nil only for an invalid region, a nil world, a cancelled
// context or a worker panic outside a query (ErrPanic).
func (p *Prober) Probe(ctx context.Context, world WorldQuery, region voxel.Region) (*voxel.OccupancyGrid, Stats, error) {
	if world == nil {
		return nil, Stats{}, ErrNoWorld
	}
	if err := region.Validate(); err != nil {
		return nil, Stats{}, err
	}

	grid := voxel.NewOccupancyGrid(region)
	nx := region.Extents[0]
	slabStats := make([]Stats, nx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := 0; i < nx; i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: slab %d: %v", ErrPanic, i, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			slabStats[i] = probeSlab(world, grid, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("probe: %w", err)
	}

	var stats Stats
	for _, s := range slabStats {
		stats.add(s)
	}
	if stats.QueryErrors > 0 {
		p.logger.Warn("geometry queries failed, cells marked out of bounds",
			zap.Int("query_errors", stats.QueryErrors),
			zap.Int("cells", region.Len()))
	}
	return grid, stats, nil
}

func probeSlab(world WorldQuery, grid *voxel.OccupancyGrid, i int) Stats {
	var stats Stats
	region := grid.Region()
	for j := 0; j < region.Extents[1]; j++ {
		for k := 0; k < region.Extents[2]; k++ {
			idx := voxel.Index{I: i, J: j, K: k}
			occ, rays, failed := classify(world, region.Center(idx), region.Resolution/2)
			grid.Set(idx, occ)
			stats.count(occ)
			stats.Rays += rays
			if failed {
				stats.QueryErrors++
			}
		}
	}
	return stats
}

// segments are the half-spans cast across a unit cell: the three axes
// through the centre, then the four corner-to-corner diagonals.
var segments = [7]r3.Vec{
	{X: 1}, {Y: 1}, {Z: 1},
	{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: -1}, {X: 1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: 1},
}

var classify = Classify

// Classify labels the cell centred at c with half-width h. It casts the
// axis and diagonal segments across the cell; any hit marks the cell
// occupied. A solid smaller than the cell that none of the seven segments
// crosses is missed and the cell reads free. The returned flag is set when a
// geometry query failed or panicked.
func Classify(world WorldQuery, c r3.Vec, h float64) (occ voxel.Occupancy, rays int, failed bool) {
	inside, err := contains(world, c)
	if err != nil {
		return voxel.OutOfBounds, 0, true
	}
	if !inside {
		return voxel.OutOfBounds, 0, false
	}

	for _, seg := range segments {
		d := r3.Scale(h, seg)
		hit, err := raycast(world, r3.Sub(c, d), r3.Add(c, d))
		rays++
		if err != nil {
			return voxel.OutOfBounds, rays, true
		}
		if hit.Hit {
			return voxel.Occupied, rays, false
		}
	}
	return voxel.Free, rays, false
}

func contains(world WorldQuery, p r3.Vec) (inside bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrQueryPanic, r)
		}
	}()
	return world.Contains(p)
}

func raycast(world WorldQuery, from, to r3.Vec) (hit Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrQueryPanic, r)
		}
	}()
	return world.Raycast(from, to)
}
