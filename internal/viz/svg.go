package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
)

// SliceSVG draws one layer of the field as an SVG heat map, scale pixels
// per cell, with the second grid axis pointing up.
func SliceSVG(f *sdf.Field, axis Axis, layer int, theme Theme, scale float64) (string, error) {
	if layer < 0 || layer >= Layers(f, axis) {
		return "", fmt.Errorf("%w: %s=%d", ErrLayer, axis, layer)
	}
	if scale <= 0 {
		scale = 8
	}
	cols, rows, at := plane(f.Region(), axis, layer)
	width := float64(cols) * scale
	height := float64(rows) * scale

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for v := 0; v < rows; v++ {
		y := float64(rows-1-v) * scale
		for u := 0; u < cols; u++ {
			idx := at(u, v)
			var fill string
			switch f.Occupancy.At(idx) {
			case voxel.Occupied:
				fill = string(theme.Solid)
			case voxel.OutOfBounds:
				fill = string(theme.Void)
			default:
				fill = string(lerpColor(theme.Near, theme.Far, f.At(idx)/f.MaxDistance))
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>
`, float64(u)*scale, y, scale, scale, fill))
		}
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}

// TrailSVG draws a top-down path, fitted with 10% padding.
func TrailSVG(points [][2]float64, width, height int, stroke string) string {
	if len(points) < 2 {
		return ""
	}

	minX, maxX := points[0][0], points[0][0]
	minY, maxY := points[0][1], points[0][1]
	for _, p := range points {
		minX, maxX = min(minX, p[0]), max(maxX, p[0])
		minY, maxY = min(minY, p[1]), max(maxY, p[1])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, stroke))

	for i, p := range points {
		x := (p[0] - minX) / rangeX * float64(width)
		y := float64(height) - (p[1]-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
