package celllist

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
)

// NeighborList stores, for every particle, the indices of all particles
// within cutoff+skin at the last build. The list is flattened as
// [count, ids...] per particle with an offset index into it.
type NeighborList struct {
	box    geom.Box
	cutoff float64
	skin   float64

	list  []int
	index []int
	pairs [][2]int

	mon    skinMonitor
	builds int
}

// NewNeighborList validates rc and rs against box; the list is filled on the
// first Update.
func NewNeighborList(box geom.Box, rc, rs float64) (*NeighborList, error) {
	if err := validateReach(box, rc, rs); err != nil {
		return nil, err
	}
	return &NeighborList{
		box:    box,
		cutoff: rc,
		skin:   rs,
		mon:    skinMonitor{box: box, skin: rs},
	}, nil
}

// Update rebuilds the list once the skin is used up and reports whether it did.
func (n *NeighborList) Update(ps []dynamo.Particle) (bool, error) {
	stale, err := n.mon.stale(ps)
	if err != nil {
		return false, err
	}
	if !stale {
		return false, nil
	}
	if err := n.rebuild(ps); err != nil {
		return false, err
	}
	return true, nil
}

// Rebuild rescans every pair unconditionally.
func (n *NeighborList) Rebuild(ps []dynamo.Particle) error {
	if err := n.mon.size(len(ps)); err != nil {
		return err
	}
	return n.rebuild(ps)
}

func (n *NeighborList) rebuild(ps []dynamo.Particle) error {
	if err := checkPositions(ps); err != nil {
		return err
	}
	reach := n.cutoff + n.skin
	reach2 := reach * reach
	count := len(ps)

	n.pairs = n.pairs[:0]
	degree := make([]int, count)
	for i := 0; i < count; i++ {
		for j := i + 1; j < count; j++ {
			if d2, _ := geom.MinImage(ps[i].Pos, ps[j].Pos, n.box); d2 < reach2 {
				n.pairs = append(n.pairs, [2]int{i, j})
				degree[i]++
				degree[j]++
			}
		}
	}

	if len(n.index) != count {
		n.index = make([]int, count)
	}
	size := 0
	for i := 0; i < count; i++ {
		n.index[i] = size
		size += 1 + degree[i]
	}
	if cap(n.list) < size {
		n.list = make([]int, size)
	}
	n.list = n.list[:size]

	for i := 0; i < count; i++ {
		n.list[n.index[i]] = 0
	}
	for _, p := range n.pairs {
		n.push(p[0], p[1])
		n.push(p[1], p[0])
	}

	n.mon.snapshot(ps)
	n.builds++
	return nil
}

func (n *NeighborList) push(i, j int) {
	at := n.index[i]
	n.list[at]++
	n.list[at+n.list[at]] = j
}

// Neighbors returns every particle listed for i, in both pair directions.
func (n *NeighborList) Neighbors(i int) []int {
	at := n.index[i]
	return n.list[at+1 : at+1+n.list[at]]
}

// Flat returns the raw [count, ids...] array and the per-particle offsets.
func (n *NeighborList) Flat() ([]int, []int) { return n.list, n.index }

func (n *NeighborList) NumPairs() int   { return len(n.pairs) }
func (n *NeighborList) Cutoff() float64 { return n.cutoff }
func (n *NeighborList) Skin() float64   { return n.skin }
func (n *NeighborList) Builds() int     { return n.builds }

func (n *NeighborList) Displacements() (float64, float64) { return n.mon.drMax1, n.mon.drMax2 }
