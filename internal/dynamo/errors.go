package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for system state.
var (
	// ErrParticleCount indicates a request for fewer particles than the
	// operation needs.
	ErrParticleCount = errors.New("dynamo: particle count too small")

	// ErrParticleCountChanged indicates the particle array was resized after
	// the neighbor structures were sized for it.
	ErrParticleCountChanged = errors.New("dynamo: particle count changed since structure was sized")

	// ErrInvalidMass indicates a particle mass that is not finite and > 0.
	ErrInvalidMass = errors.New("dynamo: mass must be finite and > 0")

	// ErrNegativeCutoff indicates a cutoff radius below zero.
	ErrNegativeCutoff = errors.New("dynamo: cutoff must be >= 0")

	// ErrNegativeSkin indicates a skin radius below zero.
	ErrNegativeSkin = errors.New("dynamo: skin must be >= 0")

	// ErrTemperature indicates a target temperature that is negative or not finite.
	ErrTemperature = errors.New("dynamo: temperature must be finite and >= 0")

	// ErrNoPotential indicates a system with no pair potential set.
	ErrNoPotential = errors.New("dynamo: no pair potential set")

	// ErrLatticeOverflow indicates a lattice spacing too coarse to fit the
	// requested particles in the box.
	ErrLatticeOverflow = errors.New("dynamo: lattice does not fit in box")

	// ErrInvalidState indicates a NaN or Inf position or velocity.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// SimulationError wraps an error with the step at which a run failed.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
