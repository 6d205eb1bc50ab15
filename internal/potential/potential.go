// Package potential defines the pair interaction capability used by the
// force evaluators.
//
// A [Potential] maps a pair of positions, the periodic box, a parameter
// vector and a cutoff onto a pair energy and the force the first particle
// exerts on the second. Implementations own the cutoff decision: callers
// never filter pairs by distance themselves.
//
//	pot := potential.ShiftedLJ{}
//	u, f, err := pot.Evaluate(p1, p2, box, []float64{1, 1, 0, 0}, 2.5)
package potential

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrHardCore indicates a pair closer than the hard-core offset of the
	// potential, where its functional form is undefined.
	ErrHardCore = errors.New("potential: separation inside hard core")

	// ErrParams indicates a parameter vector that is too short for the potential.
	ErrParams = errors.New("potential: missing parameters")

	// ErrUnknown indicates a potential name with no registered implementation.
	ErrUnknown = errors.New("potential: unknown potential")
)

// Potential evaluates one pair interaction. The returned force acts on p2 and
// is exerted by p1; the force on p1 is its negation.
type Potential interface {
	Evaluate(p1, p2 r3.Vec, box geom.Box, params []float64, cutoff float64) (float64, r3.Vec, error)
}

// Func adapts an ordinary function to the Potential interface.
type Func func(p1, p2 r3.Vec, box geom.Box, params []float64, cutoff float64) (float64, r3.Vec, error)

func (f Func) Evaluate(p1, p2 r3.Vec, box geom.Box, params []float64, cutoff float64) (float64, r3.Vec, error) {
	return f(p1, p2, box, params, cutoff)
}

// Zero is the ideal gas: no interaction at any separation.
type Zero struct{}

func (Zero) Evaluate(_, _ r3.Vec, _ geom.Box, _ []float64, _ float64) (float64, r3.Vec, error) {
	return 0, r3.Vec{}, nil
}

var registry = map[string]func() Potential{
	"slj":  func() Potential { return ShiftedLJ{} },
	"soft": func() Potential { return SoftRepulsion{} },
	"zero": func() Potential { return Zero{} },
}

// Lookup returns the potential registered under name.
func Lookup(name string) (Potential, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknown, name, Names())
	}
	return fn(), nil
}

// Names lists the registered potentials in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func need(params []float64, n int, name string) error {
	if len(params) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrParams, name, n, len(params))
	}
	return nil
}
