// Package integrators advances a particle system in time.
//
// Each integrator is a small state machine. It starts Uninitialized and
// moves to Running on its first Step, which validates the system, builds the
// force evaluator and computes the initial forces and kinetic energy. An
// integrator binds to the first system it steps and refuses any other.
package integrators

import (
	"errors"
	"fmt"

	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrTimestep       = errors.New("integrators: timestep must be > 0")
	ErrThermalMass    = errors.New("integrators: thermal mass must be > 0")
	ErrInitialization = errors.New("integrators: initialization failed")
	ErrSystemMismatch = errors.New("integrators: integrator is bound to another system")
)

// minChunk is the smallest particle range handed to a kick/drift worker.
const minChunk = 512

type Integrator interface {
	Name() string
	Step(sys *dynamo.System) error
	Timestep() float64
}

type Phase int

const (
	Uninitialized Phase = iota
	Running
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Option func(*base)

// WithEvaluator replaces the default cell-list evaluator.
func WithEvaluator(f compute.Factory) Option {
	return func(b *base) {
		if f != nil {
			b.factory = f
		}
	}
}

// base carries the state common to every scheme.
type base struct {
	dt      float64
	phase   Phase
	factory compute.Factory
	eval    compute.Evaluator
	sys     *dynamo.System
	prevAcc []r3.Vec
}

func newBase(dt float64, opts []Option) (base, error) {
	if !(dt > 0) {
		return base{}, fmt.Errorf("%w: got %g", ErrTimestep, dt)
	}
	b := base{dt: dt, factory: compute.DefaultFactory()}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// ensure runs the Uninitialized -> Running transition on first use.
func (b *base) ensure(sys *dynamo.System) error {
	if b.phase == Running {
		if sys != b.sys {
			return ErrSystemMismatch
		}
		if len(sys.Particles) != len(b.prevAcc) {
			return fmt.Errorf("%w: bound to %d, got %d",
				dynamo.ErrParticleCountChanged, len(b.prevAcc), len(sys.Particles))
		}
		return nil
	}

	if err := sys.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	eval, err := b.factory(sys)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	b.eval = eval
	b.prevAcc = make([]r3.Vec, len(sys.Particles))
	if _, err := eval.Compute(sys); err != nil {
		return fmt.Errorf("%w: initial forces: %w", ErrInitialization, err)
	}
	sys.MeasureKinetic()

	b.sys = sys
	b.phase = Running
	return nil
}

// forces saves the current accelerations and recomputes them.
func (b *base) forces(sys *dynamo.System) error {
	for i := range sys.Particles {
		b.prevAcc[i] = sys.Particles[i].Acc
	}
	_, err := b.eval.Compute(sys)
	return err
}

func (b *base) Timestep() float64 { return b.dt }
func (b *base) Phase() Phase      { return b.phase }

// Evaluator returns the force evaluator, nil before the first step.
func (b *base) Evaluator() compute.Evaluator { return b.eval }

// LastAccelerations returns the accelerations in effect before the most
// recent force evaluation.
func (b *base) LastAccelerations() []r3.Vec { return b.prevAcc }
