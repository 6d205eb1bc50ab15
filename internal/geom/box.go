// Package geom provides periodic-boundary geometry for a rectangular box.
//
// All pairwise separations in the engine go through [MinImage]; cell
// assignment goes through [Wrap].
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidBox indicates a box side that is not a finite positive length.
var ErrInvalidBox = errors.New("geom: box dimensions must be finite and > 0")

// Box holds the side lengths of a periodic rectangular box.
type Box r3.Vec

// NewBox returns a validated box.
func NewBox(x, y, z float64) (Box, error) {
	b := Box{X: x, Y: y, Z: z}
	if err := b.Validate(); err != nil {
		return Box{}, err
	}
	return b, nil
}

// Validate reports whether every side is finite and strictly positive.
func (b Box) Validate() error {
	for _, l := range [3]float64{b.X, b.Y, b.Z} {
		if !(l > 0) || math.IsInf(l, 0) {
			return fmt.Errorf("%w: got %g x %g x %g", ErrInvalidBox, b.X, b.Y, b.Z)
		}
	}
	return nil
}

// Volume is the product of the three sides.
func (b Box) Volume() float64 { return b.X * b.Y * b.Z }

// Vec returns the side lengths as a vector.
func (b Box) Vec() r3.Vec { return r3.Vec(b) }

// Wrap maps p into [0, L) on every axis. Coordinates already inside the box
// are returned unchanged.
func Wrap(p r3.Vec, box Box) r3.Vec {
	return r3.Vec{
		X: wrap(p.X, box.X),
		Y: wrap(p.Y, box.Y),
		Z: wrap(p.Z, box.Z),
	}
}

// MinImage returns the squared minimum-image distance between p1 and p2 and
// the displacement p2-p1 with every component in (-L/2, L/2].
func MinImage(p1, p2 r3.Vec, box Box) (float64, r3.Vec) {
	dr := r3.Vec{
		X: image(p2.X-p1.X, box.X),
		Y: image(p2.Y-p1.Y, box.Y),
		Z: image(p2.Z-p1.Z, box.Z),
	}
	return r3.Norm2(dr), dr
}

func wrap(x, l float64) float64 {
	if x >= 0 && x < l {
		return x
	}
	x -= l * math.Floor(x/l)
	// a tiny negative x rounds up to exactly l
	if x >= l {
		x = 0
	}
	return x
}

func image(d, l float64) float64 {
	half := 0.5 * l
	if d > -half && d <= half {
		return d
	}
	return d - l*math.Ceil(d/l-0.5)
}
