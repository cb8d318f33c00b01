package voxel

// Occupancy classifies a single cell.
type Occupancy uint8

const (
	// Unknown is the zero value. A completed build never leaves a cell Unknown.
	Unknown Occupancy = iota
	Free
	Occupied
	OutOfBounds
)

func (o Occupancy) String() string {
	switch o {
	case Free:
		return "free"
	case Occupied:
		return "occupied"
	case OutOfBounds:
		return "out_of_bounds"
	default:
		return "unknown"
	}
}

// Opposite returns the class a cell measures its distance to.
func (o Occupancy) Opposite() Occupancy {
	switch o {
	case Free:
		return Occupied
	case Occupied:
		return Free
	default:
		return Unknown
	}
}

// OccupancyGrid is the output of a probe pass.
type OccupancyGrid = Grid[Occupancy]

// NewOccupancyGrid allocates a grid with every cell Unknown.
func NewOccupancyGrid(r Region) *OccupancyGrid {
	return NewGrid[Occupancy](r)
}

// Count returns how many cells carry the given classification.
func Count(g *OccupancyGrid, occ Occupancy) int {
	n := 0
	for _, v := range g.data {
		if v == occ {
			n++
		}
	}
	return n
}

// Complete reports whether every cell has been classified.
func Complete(g *OccupancyGrid) bool {
	for _, v := range g.data {
		if v == Unknown {
			return false
		}
	}
	return true
}
