// Package voxel provides the dense 3D grid shared by the mapping pipeline.
//
// A [Region] fixes the world-frame origin, the integer extents per axis and
// a uniform resolution. A [Grid] stores one value per cell of a region in
// row-major order (k varies fastest):
//
//	offset = (i*ny + j)*nz + k
//
// The occupancy grid, the signed distance field and the gradient field all
// share this indexing, so an offset computed on one is valid on the others.
package voxel
