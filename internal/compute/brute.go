package compute

import "github.com/san-kum/mdsim/internal/dynamo"

// BruteForce evaluates every pair. It needs no spatial structure and has no
// box-size constraints.
type BruteForce struct {
	par partitioned
}

func NewBruteForce(workers int) *BruteForce {
	return &BruteForce{par: newPartitioned(workers)}
}

func (e *BruteForce) Name() string { return "brute" }

func (e *BruteForce) Compute(sys *dynamo.System) (float64, error) {
	k := newPairKernel(sys)
	return e.par.run(sys, len(sys.Particles), func(lo, hi int, buf *accum) error {
		for a := lo; a < hi; a++ {
			for b := 0; b < a; b++ {
				if err := k.add(a, b, buf); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
