package storage

import (
	"encoding/json"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
	"github.com/san-kum/tethermap/internal/wire"
)

// Cell is one row of cells.csv.
type Cell struct {
	I         int     `csv:"i"`
	J         int     `csv:"j"`
	K         int     `csv:"k"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Z         float64 `csv:"z"`
	Occupancy string  `csv:"occupancy"`
	Distance  float64 `csv:"distance"`
	GX        float64 `csv:"gx"`
	GY        float64 `csv:"gy"`
	GZ        float64 `csv:"gz"`
}

func (c Cell) OutOfBounds() bool {
	return sdf.IsSentinel(c.Distance)
}

// Cells flattens a result into rows in row-major order. Positions are cell
// centres.
func Cells(res *mapping.Result) []Cell {
	region := res.Region
	cells := make([]Cell, 0, res.Occupancy.Len())
	res.Occupancy.Each(func(idx voxel.Index, occ voxel.Occupancy) {
		p := region.Center(idx)
		c := Cell{
			I: idx.I, J: idx.J, K: idx.K,
			X: p.X, Y: p.Y, Z: p.Z,
			Occupancy: occ.String(),
			Distance:  res.SDF.At(idx),
		}
		if res.Gradient != nil {
			g := res.Gradient.At(idx)
			c.GX, c.GY, c.GZ = g.X, g.Y, g.Z
		}
		cells = append(cells, c)
	})
	return cells
}

func ExportCSV(w io.Writer, res *mapping.Result) error {
	return WriteCells(w, Cells(res))
}

// WriteCells writes rows in the cells.csv layout.
func WriteCells(w io.Writer, cells []Cell) error {
	return gocsv.Marshal(cells, w)
}

func ExportWire(w io.Writer, res *mapping.Result) error {
	_, err := w.Write(wire.EncodeResult(res))
	return err
}

func ExportJSON(w io.Writer, meta MapMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
