package compute

import (
	"fmt"

	"github.com/san-kum/mdsim/internal/celllist"
	"github.com/san-kum/mdsim/internal/dynamo"
)

// CellEvaluator traverses the 27-cell neighborhood of every cell.
type CellEvaluator struct {
	cells *celllist.CellList
	par   partitioned
}

// NewCellEvaluator builds the cell list from the system's current box,
// cutoff and skin.
func NewCellEvaluator(sys *dynamo.System, workers int) (*CellEvaluator, error) {
	cl, err := celllist.New(sys.Box(), sys.Cutoff(), sys.Skin())
	if err != nil {
		return nil, fmt.Errorf("cell evaluator: %w", err)
	}
	return &CellEvaluator{cells: cl, par: newPartitioned(workers)}, nil
}

func (e *CellEvaluator) Name() string { return "cells" }

func (e *CellEvaluator) Compute(sys *dynamo.System) (float64, error) {
	if _, err := e.cells.Update(sys.Particles); err != nil {
		return 0, err
	}

	k := newPairKernel(sys)
	head, next := e.cells.Head(), e.cells.Next()

	return e.par.run(sys, e.cells.NumCells(), func(lo, hi int, buf *accum) error {
		for cell := lo; cell < hi; cell++ {
			for a := head[cell]; a != -1; a = next[a] {
				for _, nc := range e.cells.Neighbors(cell) {
					for b := head[nc]; b != -1; b = next[b] {
						if a <= b {
							continue
						}
						if err := k.add(a, b, buf); err != nil {
							return err
						}
					}
				}
			}
		}
		return nil
	})
}

func (e *CellEvaluator) Cells() *celllist.CellList { return e.cells }
func (e *CellEvaluator) Builds() int               { return e.cells.Builds() }
