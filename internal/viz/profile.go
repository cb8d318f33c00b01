package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
)

var ErrEmptyProfile = errors.New("viz: profile has no in-bounds cells")

// Profile samples the field along the line parallel to axis through the
// other two coordinates a and b (in ascending axis order). Out-of-bounds
// cells are skipped.
func Profile(f *sdf.Field, axis Axis, a, b int) ([]float64, error) {
	n := Layers(f, axis)
	values := make([]float64, 0, n)
	for s := 0; s < n; s++ {
		var idx voxel.Index
		switch axis {
		case AxisX:
			idx = voxel.Index{I: s, J: a, K: b}
		case AxisY:
			idx = voxel.Index{I: a, J: s, K: b}
		default:
			idx = voxel.Index{I: a, J: b, K: s}
		}
		if !f.Region().Contains(idx) {
			return nil, fmt.Errorf("%w: %v", ErrLayer, idx)
		}
		if v, ok := f.Value(idx); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, ErrEmptyProfile
	}
	return values, nil
}

func PlotProfile(values []float64, caption string, width, height int) string {
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption))
}
