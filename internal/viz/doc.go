// Package viz renders built maps and tether motion in the terminal.
//
//   - [RenderSlice]: one layer of a distance field as a coloured heat map
//   - [Profile] and [PlotProfile]: distance along a grid line, via asciigraph
//   - [Viewer]: a Bubble Tea model showing the latest map and the link trail
//   - [TeaSink]: forwards dispatcher results and link states to a Viewer
//   - [SliceSVG] and [TrailSVG]: the same views as SVG files
//
// # Key Bindings
//
//	←/→ - Previous/next layer
//	A   - Cycle slicing axis
//	T   - Cycle color themes
//	Q   - Quit
package viz
