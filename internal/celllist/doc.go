// Package celllist maintains the spatial structures that restrict pair
// searches to nearby particles.
//
// [CellList] tiles the box with a grid whose cells are at least
// 1.01·(rc+rs) wide, so every pair within cutoff plus skin sits in the same
// or an adjacent cell. Occupancy is an arena-indexed linked list: a head
// index per cell and a next index per particle, -1 terminated.
//
// [NeighborList] stores an explicit neighbor index per particle instead,
// built by an all-pairs scan. Both share the same rebuild policy: the
// structure is rebuilt only when the two largest displacements since the
// last build add up to more than the skin.
package celllist
