// Package compute evaluates pair forces over a particle system.
//
// Three evaluators share one contract, overwrite every acceleration and
// store the total pair energy on the system:
//
//   - cells: walks the 27-cell neighborhood of a [celllist.CellList]
//   - neighbors: walks an explicit [celllist.NeighborList]
//   - brute: the O(N²) reference loop
//
// Every unordered pair is evaluated once, from the particle with the larger
// index. The outer loop is split into contiguous chunks, one per worker;
// each worker accumulates into a private pooled buffer and the buffers are
// reduced in worker order once all workers finish.
//
//	eval, _ := compute.NewCellEvaluator(sys, 0)
//	pe, err := eval.Compute(sys)
package compute
