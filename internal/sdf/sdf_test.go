package sdf

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/gomega"
	"github.com/san-kum/tethermap/internal/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

func filled(extents [3]int, res float64, occ voxel.Occupancy) *voxel.OccupancyGrid {
	g := voxel.NewOccupancyGrid(voxel.Region{Extents: extents, Resolution: res})
	for off := range g.Data() {
		g.Data()[off] = occ
	}
	return g
}

func diagonalGrid() *voxel.OccupancyGrid {
	g := filled([3]int{2, 2, 2}, 1.0, voxel.Free)
	g.Set(voxel.Index{I: 0, J: 0, K: 0}, voxel.Occupied)
	g.Set(voxel.Index{I: 1, J: 1, K: 1}, voxel.Occupied)
	return g
}

func TestDiagonalPair(t *testing.T) {
	for _, m := range []Method{Exact, Wavefront} {
		t.Run(m.String(), func(t *testing.T) {
			g := NewWithT(t)
			f, err := Compute(diagonalGrid(), m)
			g.Expect(err).NotTo(HaveOccurred())

			want := []float64{-1, 1, 1, 1, 1, 1, 1, -1}
			g.Expect(cmp.Diff(want, f.Flatten(), cmpopts.EquateApprox(0, 1e-9))).To(BeEmpty())
		})
	}
}

func TestSignConvention(t *testing.T) {
	g := NewWithT(t)
	grid := filled([3]int{6, 5, 4}, 0.25, voxel.Free)
	for j := 0; j < 5; j++ {
		for k := 0; k < 4; k++ {
			grid.Set(voxel.Index{I: 2, J: j, K: k}, voxel.Occupied)
			grid.Set(voxel.Index{I: 3, J: j, K: k}, voxel.Occupied)
		}
	}

	f, err := Compute(grid, Exact)
	g.Expect(err).NotTo(HaveOccurred())

	grid.Each(func(idx voxel.Index, occ voxel.Occupancy) {
		v := f.At(idx)
		switch occ {
		case voxel.Free:
			g.Expect(v).To(BeNumerically(">", 0), "free cell %v", idx)
		case voxel.Occupied:
			g.Expect(v).To(BeNumerically("<", 0), "occupied cell %v", idx)
		}
	})

	g.Expect(f.At(voxel.Index{I: 0, J: 1, K: 1})).To(BeNumerically("~", 0.5, 1e-9))
	g.Expect(f.At(voxel.Index{I: 1, J: 1, K: 1})).To(BeNumerically("~", 0.25, 1e-9))
	g.Expect(f.At(voxel.Index{I: 2, J: 1, K: 1})).To(BeNumerically("~", -0.25, 1e-9))
	g.Expect(f.At(voxel.Index{I: 5, J: 1, K: 1})).To(BeNumerically("~", 0.5, 1e-9))
}

func TestNoOppositeClass(t *testing.T) {
	g := NewWithT(t)

	free, err := Compute(filled([3]int{2, 2, 2}, 1.0, voxel.Free), Exact)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(free.MaxDistance).To(BeNumerically("~", math.Sqrt(3), 1e-9))
	for _, v := range free.Data() {
		g.Expect(v).To(Equal(free.MaxDistance))
	}

	solid, err := Compute(filled([3]int{3, 1, 1}, 0.1, voxel.Occupied), Wavefront)
	g.Expect(err).NotTo(HaveOccurred())
	for _, v := range solid.Data() {
		g.Expect(v).To(Equal(-solid.MaxDistance))
	}
}

func TestOutOfBoundsGetsSentinel(t *testing.T) {
	for _, m := range []Method{Exact, Wavefront} {
		t.Run(m.String(), func(t *testing.T) {
			g := NewWithT(t)
			grid := filled([3]int{5, 5, 5}, 1.0, voxel.Free)
			grid.Set(voxel.Index{I: 0, J: 0, K: 0}, voxel.Occupied)
			oob := voxel.Index{I: 2, J: 2, K: 2}
			grid.Set(oob, voxel.OutOfBounds)

			f, err := Compute(grid, m)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(IsSentinel(f.At(oob))).To(BeTrue())

			_, ok := f.Value(oob)
			g.Expect(ok).To(BeFalse())

			lo, hi := f.Range()
			g.Expect(IsSentinel(lo) || IsSentinel(hi)).To(BeFalse())
		})
	}
}

func TestWavefrontBlockedByOutOfBounds(t *testing.T) {
	g := NewWithT(t)
	grid := filled([3]int{5, 1, 1}, 1.0, voxel.Free)
	grid.Set(voxel.Index{I: 0}, voxel.Occupied)
	grid.Set(voxel.Index{I: 2}, voxel.OutOfBounds)

	f, err := Compute(grid, Wavefront)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(f.At(voxel.Index{I: 1})).To(BeNumerically("~", 1, 1e-9))
	g.Expect(f.At(voxel.Index{I: 3})).To(Equal(f.MaxDistance))
}

func TestWavefrontWithinOneCellOfExact(t *testing.T) {
	grid := filled([3]int{12, 10, 8}, 0.5, voxel.Free)
	for _, idx := range []voxel.Index{
		{I: 1, J: 1, K: 1}, {I: 9, J: 2, K: 6}, {I: 5, J: 7, K: 3},
		{I: 6, J: 7, K: 3}, {I: 11, J: 9, K: 0}, {I: 3, J: 8, K: 7},
	} {
		grid.Set(idx, voxel.Occupied)
	}

	exact, err := Compute(grid, Exact)
	if err != nil {
		t.Fatal(err)
	}
	wave, err := Compute(grid, Wavefront)
	if err != nil {
		t.Fatal(err)
	}

	res := grid.Region().Resolution
	for off, e := range exact.Data() {
		w := wave.Data()[off]
		if math.Abs(w) < math.Abs(e)-1e-9 {
			t.Fatalf("cell %v: wavefront %v understates exact %v", grid.IndexAt(off), w, e)
		}
		if math.Abs(w-e) > res+1e-9 {
			t.Fatalf("cell %v: wavefront %v differs from exact %v by more than a cell", grid.IndexAt(off), w, e)
		}
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	g := NewWithT(t)

	_, err := Compute(nil, Exact)
	g.Expect(err).To(MatchError(ErrNilGrid))

	grid := filled([3]int{2, 2, 2}, 1.0, voxel.Free)
	grid.Set(voxel.Index{I: 1, J: 0, K: 1}, voxel.Unknown)
	_, err = Compute(grid, Exact)
	g.Expect(err).To(MatchError(ErrIncompleteGrid))
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"", Exact, true},
		{"exact", Exact, true},
		{"wavefront", Wavefront, true},
		{"chamfer", Exact, false},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseMethod(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLookup(t *testing.T) {
	g := NewWithT(t)
	grid := diagonalGrid()
	f, err := Compute(grid, Exact)
	g.Expect(err).NotTo(HaveOccurred())

	v, ok := f.Lookup(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5})
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(BeNumerically("~", -1, 1e-9))

	_, ok = f.Lookup(r3.Vec{X: 5})
	g.Expect(ok).To(BeFalse())
}
