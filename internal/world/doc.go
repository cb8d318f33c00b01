// Package world is a small stand-in for the host physics engine: a static
// scene of primitive solids that answers ray and boundary queries, and a
// free-floating rigid link that accepts forces.
//
// A Scene is immutable after construction and safe for concurrent queries.
// A Link is owned by the simulation loop.
package world
