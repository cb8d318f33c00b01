package voxel

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testRegion() Region {
	return Region{
		Origin:     r3.Vec{X: -1, Y: 0, Z: 2},
		Extents:    [3]int{3, 4, 5},
		Resolution: 0.5,
	}
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		ok     bool
	}{
		{"valid", testRegion(), true},
		{"zero resolution", Region{Extents: [3]int{1, 1, 1}}, false},
		{"negative resolution", Region{Extents: [3]int{1, 1, 1}, Resolution: -1}, false},
		{"nan resolution", Region{Extents: [3]int{1, 1, 1}, Resolution: math.NaN()}, false},
		{"zero extent", Region{Extents: [3]int{1, 0, 1}, Resolution: 1}, false},
		{"infinite origin", Region{Origin: r3.Vec{X: math.Inf(1)}, Extents: [3]int{1, 1, 1}, Resolution: 1}, false},
		{"overflowing extents", Region{Extents: [3]int{1 << 22, 1 << 21, 1 << 21}, Resolution: 1}, false},
		{"over max cells", Region{Extents: [3]int{1 << 10, 1 << 10, 1<<10 + 1}, Resolution: 1}, false},
		{"at max cells", Region{Extents: [3]int{1 << 10, 1 << 10, 1 << 10}, Resolution: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid region, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRegion) {
				t.Errorf("expected ErrInvalidRegion, got %v", err)
			}
		})
	}
}

func TestRegionCheckSize(t *testing.T) {
	r := testRegion()
	if err := r.CheckSize(r.Len()); err != nil {
		t.Errorf("region at the limit rejected: %v", err)
	}
	if err := r.CheckSize(0); err != nil {
		t.Errorf("zero limit should only apply MaxCells: %v", err)
	}
	if err := r.CheckSize(r.Len() - 1); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("expected ErrInvalidRegion over the limit, got %v", err)
	}
	if err := (Region{Extents: [3]int{2, 2, 2}}).CheckSize(100); !errors.Is(err, ErrInvalidRegion) {
		t.Errorf("CheckSize should validate first, got %v", err)
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	g := NewGrid[int](testRegion())
	if g.Len() != 60 {
		t.Fatalf("expected 60 cells, got %d", g.Len())
	}

	for off := 0; off < g.Len(); off++ {
		idx := g.IndexAt(off)
		if !g.Region().Contains(idx) {
			t.Fatalf("offset %d mapped outside region: %v", off, idx)
		}
		if got := g.Offset(idx); got != off {
			t.Fatalf("offset %d -> %v -> %d", off, idx, got)
		}
	}
}

func TestRowMajorOrder(t *testing.T) {
	g := NewGrid[int](testRegion())
	if g.Offset(Index{0, 0, 1}) != 1 {
		t.Error("k should vary fastest")
	}
	if g.Offset(Index{0, 1, 0}) != 5 {
		t.Error("j stride should equal nz")
	}
	if g.Offset(Index{1, 0, 0}) != 20 {
		t.Error("i stride should equal ny*nz")
	}
}

func TestPositionIndexBijection(t *testing.T) {
	r := testRegion()
	g := NewGrid[int](r)

	g.Each(func(idx Index, _ int) {
		got, ok := r.IndexOf(r.Center(idx))
		if !ok || got != idx {
			t.Errorf("center of %v maps back to %v (ok=%v)", idx, got, ok)
		}
	})

	p := r.Position(Index{2, 1, 3})
	want := r3.Vec{X: 0, Y: 0.5, Z: 3.5}
	if p != want {
		t.Errorf("expected %v, got %v", want, p)
	}

	if _, ok := r.IndexOf(r3.Vec{X: -2}); ok {
		t.Error("point below origin should be outside")
	}
}

func TestGetSetBounds(t *testing.T) {
	g := NewOccupancyGrid(testRegion())

	if g.Set(Index{3, 0, 0}, Free) {
		t.Error("set outside extents should fail")
	}
	if _, ok := g.Get(Index{-1, 0, 0}); ok {
		t.Error("get outside extents should fail")
	}

	g.Set(Index{1, 2, 3}, Occupied)
	if v, _ := g.Get(Index{1, 2, 3}); v != Occupied {
		t.Errorf("expected occupied, got %v", v)
	}

	if Complete(g) {
		t.Error("grid with unknown cells is not complete")
	}
	for i := range g.Data() {
		if g.Data()[i] == Unknown {
			g.Data()[i] = Free
		}
	}
	if !Complete(g) {
		t.Error("expected complete grid")
	}
	if Count(g, Occupied) != 1 || Count(g, Free) != 59 {
		t.Errorf("unexpected counts: occupied=%d free=%d", Count(g, Occupied), Count(g, Free))
	}
}

func TestNeighbors26(t *testing.T) {
	if len(Neighbors26) != 26 {
		t.Fatalf("expected 26 neighbours, got %d", len(Neighbors26))
	}
	seen := make(map[Index]bool)
	for _, d := range Neighbors26 {
		if d == (Index{}) {
			t.Error("neighbourhood must not include the centre")
		}
		seen[d] = true
	}
	if len(seen) != 26 {
		t.Error("neighbour offsets must be unique")
	}
}

func TestOccupancyOpposite(t *testing.T) {
	if Free.Opposite() != Occupied || Occupied.Opposite() != Free {
		t.Error("free and occupied should be opposites")
	}
	if OutOfBounds.Opposite() != Unknown {
		t.Error("out of bounds has no opposite")
	}
}
