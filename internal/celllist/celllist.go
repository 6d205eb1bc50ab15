package celllist

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxCells bounds the grid allocation.
	MaxCells = 1 << 24

	// MinCellWidth is the smallest cell edge accepted, in reduced units.
	MinCellWidth = 1.0

	// cellPadding widens the cell edge past cutoff+skin before the grid is fit
	// to the box.
	cellPadding = 1.01

	neighborCount = 27
)

var (
	ErrNegativeCutoff = dynamo.ErrNegativeCutoff
	ErrNegativeSkin   = dynamo.ErrNegativeSkin

	// ErrZeroReach indicates cutoff and skin are both zero.
	ErrZeroReach = errors.New("celllist: cutoff + skin must be > 0")

	// ErrCellTooSmall indicates a cell edge not strictly larger than cutoff+skin.
	ErrCellTooSmall = errors.New("celllist: cell edge not larger than cutoff + skin")

	// ErrCellWidth indicates a cell edge below MinCellWidth.
	ErrCellWidth = errors.New("celllist: cell edge below minimum width")

	// ErrTooFewCells indicates an axis with fewer than 3 cells.
	ErrTooFewCells = errors.New("celllist: fewer than 3 cells along an axis")

	// ErrAllocation indicates a grid larger than MaxCells.
	ErrAllocation = errors.New("celllist: unable to allocate cell grid")

	// ErrNeighborTable indicates a cell whose neighborhood is not 27 distinct cells.
	ErrNeighborTable = errors.New("celllist: neighbor set is not 27 distinct cells")
)

// Structure is the rebuild contract shared by CellList and NeighborList.
type Structure interface {
	// Update rebuilds if particles drifted further than the skin allows and
	// reports whether it did.
	Update(ps []dynamo.Particle) (bool, error)
	Builds() int
}

// CellList is a periodic grid of cells with linked-list occupancy.
type CellList struct {
	box    geom.Box
	cutoff float64
	skin   float64

	dims  [3]int
	edge  r3.Vec
	neigh []int

	head []int
	next []int

	mon    skinMonitor
	builds int
}

// New builds the grid and neighbor table for box. The occupancy arrays are
// sized on the first Update.
func New(box geom.Box, rc, rs float64) (*CellList, error) {
	if err := validateReach(box, rc, rs); err != nil {
		return nil, err
	}

	reach := rc + rs
	sides := [3]float64{box.X, box.Y, box.Z}
	var counts, edges [3]float64
	for k, l := range sides {
		counts[k] = math.Floor(l / (cellPadding * reach))
		edges[k] = l / counts[k]
	}

	for k := range sides {
		if edges[k] <= reach {
			return nil, fmt.Errorf("%w: axis %d edge %g, reach %g", ErrCellTooSmall, k, edges[k], reach)
		}
	}
	for k := range sides {
		if edges[k] < MinCellWidth {
			return nil, fmt.Errorf("%w: axis %d edge %g < %g", ErrCellWidth, k, edges[k], MinCellWidth)
		}
	}
	for k := range sides {
		if counts[k] < 3 {
			return nil, fmt.Errorf("%w: axis %d has %g (box %g, reach %g)", ErrTooFewCells, k, counts[k], sides[k], reach)
		}
	}
	if total := counts[0] * counts[1] * counts[2]; total > MaxCells {
		return nil, fmt.Errorf("%w: %g cells exceeds limit %d", ErrAllocation, total, MaxCells)
	}

	c := &CellList{
		box:    box,
		cutoff: rc,
		skin:   rs,
		dims:   [3]int{int(counts[0]), int(counts[1]), int(counts[2])},
		edge:   r3.Vec{X: edges[0], Y: edges[1], Z: edges[2]},
		mon:    skinMonitor{box: box, skin: rs},
	}
	if err := c.buildNeighbors(); err != nil {
		return nil, err
	}

	c.head = make([]int, c.NumCells())
	for i := range c.head {
		c.head[i] = -1
	}
	return c, nil
}

func validateReach(box geom.Box, rc, rs float64) error {
	if !(rc >= 0) {
		return fmt.Errorf("%w: got %g", ErrNegativeCutoff, rc)
	}
	if !(rs >= 0) {
		return fmt.Errorf("%w: got %g", ErrNegativeSkin, rs)
	}
	if err := box.Validate(); err != nil {
		return err
	}
	if rc+rs == 0 {
		return ErrZeroReach
	}
	return nil
}

func (c *CellList) buildNeighbors() error {
	nx, ny, nz := c.dims[0], c.dims[1], c.dims[2]
	c.neigh = make([]int, 0, c.NumCells()*neighborCount)

	var set [neighborCount]int
	for id := 0; id < c.NumCells(); id++ {
		x, y, z := c.Coords(id)
		k := 0
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					set[k] = c.linear((x+dx+nx)%nx, (y+dy+ny)%ny, (z+dz+nz)%nz)
					k++
				}
			}
		}

		sorted := set
		sort.Ints(sorted[:])
		for j := 1; j < neighborCount; j++ {
			if sorted[j] == sorted[j-1] {
				return fmt.Errorf("%w: cell %d repeats %d", ErrNeighborTable, id, sorted[j])
			}
		}
		c.neigh = append(c.neigh, set[:]...)
	}
	return nil
}

func (c *CellList) linear(x, y, z int) int {
	return x + y*c.dims[0] + z*c.dims[0]*c.dims[1]
}

// Coords decodes a linear cell id into grid coordinates.
func (c *CellList) Coords(id int) (x, y, z int) {
	layer := c.dims[0] * c.dims[1]
	z = id / layer
	y = (id - z*layer) / c.dims[0]
	x = id % c.dims[0]
	return x, y, z
}

// CellIndex returns the linear id of the cell containing pos.
func (c *CellList) CellIndex(pos r3.Vec) int {
	w := geom.Wrap(pos, c.box)
	return c.linear(
		clampCell(w.X/c.edge.X, c.dims[0]),
		clampCell(w.Y/c.edge.Y, c.dims[1]),
		clampCell(w.Z/c.edge.Z, c.dims[2]),
	)
}

// rounding can put a coordinate just below L into cell n
func clampCell(f float64, n int) int {
	i := int(f)
	if i >= n {
		return n - 1
	}
	return i
}

// Update is the build-or-skip step run before every force evaluation.
func (c *CellList) Update(ps []dynamo.Particle) (bool, error) {
	stale, err := c.mon.stale(ps)
	if err != nil {
		return false, err
	}
	if !stale {
		return false, nil
	}
	if err := c.rebuild(ps); err != nil {
		return false, err
	}
	return true, nil
}

// Rebuild discards the current occupancy and rebins every particle.
func (c *CellList) Rebuild(ps []dynamo.Particle) error {
	if err := c.mon.size(len(ps)); err != nil {
		return err
	}
	return c.rebuild(ps)
}

// rebuild leaves the previous occupancy in place when it fails.
func (c *CellList) rebuild(ps []dynamo.Particle) error {
	if err := checkPositions(ps); err != nil {
		return err
	}
	if len(c.next) != len(ps) {
		c.next = make([]int, len(ps))
	}
	for i := range c.head {
		c.head[i] = -1
	}
	for i := range ps {
		cell := c.CellIndex(ps[i].Pos)
		c.next[i] = c.head[cell]
		c.head[cell] = i
	}
	c.mon.snapshot(ps)
	c.builds++
	return nil
}

// Neighbors returns the 27 cell ids around cell, itself included.
func (c *CellList) Neighbors(cell int) []int {
	return c.neigh[cell*neighborCount : (cell+1)*neighborCount]
}

// Head returns the first particle of every cell chain, -1 when empty.
func (c *CellList) Head() []int { return c.head }

// Next returns the chain links, indexed by particle, -1 terminated.
func (c *CellList) Next() []int { return c.next }

func (c *CellList) Dims() [3]int      { return c.dims }
func (c *CellList) NumCells() int     { return c.dims[0] * c.dims[1] * c.dims[2] }
func (c *CellList) CellWidth() r3.Vec { return c.edge }
func (c *CellList) Cutoff() float64   { return c.cutoff }
func (c *CellList) Skin() float64     { return c.skin }
func (c *CellList) Builds() int       { return c.builds }

// Displacements returns the largest and second-largest displacement seen by
// the last Update that skipped a rebuild.
func (c *CellList) Displacements() (float64, float64) { return c.mon.drMax1, c.mon.drMax2 }
