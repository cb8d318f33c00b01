// Package sdf turns an occupancy grid into a signed distance field and its
// gradient.
//
// Distances are measured between cell centres in world units. A free cell
// holds the distance to the nearest occupied cell; an occupied cell holds the
// negated distance to the nearest free cell. Out-of-bounds cells hold
// [Sentinel] and take no part in the transform.
//
// Two transforms are available:
//
//   - [Exact]: separable squared Euclidean distance transform (three 1D
//     lower-envelope passes). Distances are exact.
//   - [Wavefront]: 26-connected propagation of nearest-source identity
//     through a FIFO. Out-of-bounds cells block propagation, so distances are
//     measured around them. Errors stay well below one cell.
//
// The gradient uses central differences where both neighbours along an axis
// are usable, one-sided differences where only one is, and zero otherwise.
// Gradients are degenerate on the occupied/free boundary, where the signed
// distance has a kink.
package sdf
