package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
)

var ErrLayer = errors.New("viz: layer outside grid")

// Axis is the grid axis a slice is taken across.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	return [...]string{"x", "y", "z"}[a]
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z", "":
		return AxisZ, nil
	}
	return AxisZ, fmt.Errorf("viz: unknown axis %q", s)
}

// plane returns the index at column u, row v of the given layer, and the
// column and row counts.
func plane(r voxel.Region, axis Axis, layer int) (cols, rows int, at func(u, v int) voxel.Index) {
	e := r.Extents
	switch axis {
	case AxisX:
		return e[1], e[2], func(u, v int) voxel.Index { return voxel.Index{I: layer, J: u, K: v} }
	case AxisY:
		return e[0], e[2], func(u, v int) voxel.Index { return voxel.Index{I: u, J: layer, K: v} }
	default:
		return e[0], e[1], func(u, v int) voxel.Index { return voxel.Index{I: u, J: v, K: layer} }
	}
}

// Layers is the number of slices across axis.
func Layers(f *sdf.Field, axis Axis) int {
	return f.Region().Extents[axis]
}

// RenderSlice draws one layer of the field, two characters per cell, with
// the second grid axis pointing up.
func RenderSlice(f *sdf.Field, axis Axis, layer int, theme Theme) (string, error) {
	if layer < 0 || layer >= Layers(f, axis) {
		return "", fmt.Errorf("%w: %s=%d", ErrLayer, axis, layer)
	}
	cols, rows, at := plane(f.Region(), axis, layer)

	solid := lipgloss.NewStyle().Foreground(theme.Solid)
	void := lipgloss.NewStyle().Foreground(theme.Void)

	var b strings.Builder
	for v := rows - 1; v >= 0; v-- {
		for u := 0; u < cols; u++ {
			idx := at(u, v)
			switch f.Occupancy.At(idx) {
			case voxel.Occupied:
				b.WriteString(solid.Render("██"))
			case voxel.OutOfBounds:
				b.WriteString(void.Render("··"))
			default:
				t := f.At(idx) / f.MaxDistance
				c := lerpColor(theme.Near, theme.Far, t)
				b.WriteString(lipgloss.NewStyle().Foreground(c).Render("▓▓"))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Legend explains the slice colours.
func Legend(f *sdf.Field, theme Theme) string {
	near := lipgloss.NewStyle().Foreground(theme.Near).Render("▓▓")
	far := lipgloss.NewStyle().Foreground(theme.Far).Render("▓▓")
	solid := lipgloss.NewStyle().Foreground(theme.Solid).Render("██")
	void := lipgloss.NewStyle().Foreground(theme.Void).Render("··")
	return fmt.Sprintf("%s 0 … %s %.2f   %s occupied   %s out of bounds",
		near, far, f.MaxDistance, solid, void)
}
