package potential

import (
	"fmt"
	"math"

	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ShiftedLJ is a Lennard-Jones potential with a hard-core offset delta and
// an additive energy shift:
//
//	U(r) = 4ε[(σ/(r-δ))¹² - (σ/(r-δ))⁶] + shift,  r < cutoff
//
// Parameters are {ε, σ, δ, shift}. The cutoff is compared against r itself,
// so it must already include δ.
type ShiftedLJ struct{}

func (ShiftedLJ) Evaluate(p1, p2 r3.Vec, box geom.Box, params []float64, cutoff float64) (float64, r3.Vec, error) {
	if err := need(params, 4, "slj"); err != nil {
		return 0, r3.Vec{}, err
	}
	eps, sigma, delta, shift := params[0], params[1], params[2], params[3]

	r2, dr := geom.MinImage(p1, p2, box)
	if r2 <= delta*delta {
		return 0, r3.Vec{}, fmt.Errorf("%w: r=%g, delta=%g", ErrHardCore, math.Sqrt(r2), delta)
	}
	if r2 >= cutoff*cutoff {
		return 0, r3.Vec{}, nil
	}

	r := math.Sqrt(r2)
	b := 1.0 / (r - delta)
	a := sigma * b
	a2 := a * a
	a6 := a2 * a2 * a2

	// -dU/dr projected on dr/r
	factor := 24.0 * eps * a6 * (2.0*a6 - 1.0) * b / r
	return 4.0*eps*(a6*a6-a6) + shift, r3.Scale(factor, dr), nil
}
