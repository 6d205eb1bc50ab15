package potential

import (
	"math"

	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// SoftRepulsion is the bounded conservative pair force used in dissipative
// particle dynamics:
//
//	U(r) = ½ε·rc·(1 - r/rc)²,  r < rc
//
// Parameters are {ε}. The force is the exact gradient, ε(1 - r/rc) along
// the separation. Coincident particles feel no force.
type SoftRepulsion struct{}

func (SoftRepulsion) Evaluate(p1, p2 r3.Vec, box geom.Box, params []float64, cutoff float64) (float64, r3.Vec, error) {
	if err := need(params, 1, "soft"); err != nil {
		return 0, r3.Vec{}, err
	}
	eps := params[0]

	r2, dr := geom.MinImage(p1, p2, box)
	if r2 >= cutoff*cutoff {
		return 0, r3.Vec{}, nil
	}

	r := math.Sqrt(r2)
	overlap := 1.0 - r/cutoff
	energy := 0.5 * eps * cutoff * overlap * overlap
	if r == 0 {
		return energy, r3.Vec{}, nil
	}
	return energy, r3.Scale(eps*overlap/r, dr), nil
}
