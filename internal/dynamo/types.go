package dynamo

import (
	"fmt"
	"math"

	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/potential"
	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is one point particle. Acc is written only by force evaluators;
// Pos and Vel only by integrators and initializers.
type Particle struct {
	Pos r3.Vec
	Vel r3.Vec
	Acc r3.Vec
}

func (p Particle) IsValid() bool {
	for _, v := range [6]float64{p.Pos.X, p.Pos.Y, p.Pos.Z, p.Vel.X, p.Vel.Y, p.Vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is the full state of one simulation: particles, box, interaction
// and the energy bookkeeping the integrators maintain.
type System struct {
	Particles []Particle

	box        geom.Box
	mass       float64
	cutoff     float64
	skin       float64
	targetTemp float64

	pot    potential.Potential
	params []float64

	kinetic     float64
	potentialE  float64
	temperature float64
}

// NewSystem returns an empty system in box with the given particle mass.
// Cutoff, skin and target temperature start at zero; a potential must be set
// before the system is stepped.
func NewSystem(box geom.Box, mass float64) (*System, error) {
	s := &System{}
	if err := s.SetBox(box); err != nil {
		return nil, err
	}
	if err := s.SetMass(mass); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *System) SetBox(box geom.Box) error {
	if err := box.Validate(); err != nil {
		return err
	}
	s.box = box
	return nil
}

func (s *System) SetMass(m float64) error {
	if !(m > 0) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidMass, m)
	}
	s.mass = m
	return nil
}

// SetCutoff sets the interaction cutoff. Structures already built from the
// old value keep it; a new integrator is needed to pick up the change.
func (s *System) SetCutoff(rc float64) error {
	if !(rc >= 0) || math.IsInf(rc, 0) {
		return fmt.Errorf("%w: got %g", ErrNegativeCutoff, rc)
	}
	s.cutoff = rc
	return nil
}

func (s *System) SetSkin(rs float64) error {
	if !(rs >= 0) || math.IsInf(rs, 0) {
		return fmt.Errorf("%w: got %g", ErrNegativeSkin, rs)
	}
	s.skin = rs
	return nil
}

func (s *System) SetTargetTemperature(t float64) error {
	if !(t >= 0) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: got %g", ErrTemperature, t)
	}
	s.targetTemp = t
	return nil
}

// SetPotential installs the pair potential and its parameter vector. The
// parameters are copied.
func (s *System) SetPotential(pot potential.Potential, params []float64) error {
	if pot == nil {
		return ErrNoPotential
	}
	s.pot = pot
	s.params = append([]float64(nil), params...)
	return nil
}

// SetParticles replaces the particle array. The slice is copied.
func (s *System) SetParticles(ps []Particle) error {
	for i, p := range ps {
		if !p.IsValid() {
			return fmt.Errorf("%w: particle %d", ErrInvalidState, i)
		}
	}
	s.Particles = append([]Particle(nil), ps...)
	return nil
}

// SetPotentialEnergy records the total pair energy of the current
// configuration. Force evaluators call it after every traversal.
func (s *System) SetPotentialEnergy(u float64) { s.potentialE = u }

// Validate reports whether the system is complete enough to be stepped.
func (s *System) Validate() error {
	if err := s.box.Validate(); err != nil {
		return err
	}
	if !(s.mass > 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidMass, s.mass)
	}
	if s.cutoff < 0 {
		return ErrNegativeCutoff
	}
	if s.skin < 0 {
		return ErrNegativeSkin
	}
	if s.pot == nil {
		return ErrNoPotential
	}
	if len(s.Particles) < 1 {
		return fmt.Errorf("%w: got %d", ErrParticleCount, len(s.Particles))
	}
	return nil
}

// MeasureKinetic recomputes the kinetic energy ½mΣv² and the instantaneous
// temperature mΣv²/(3(N-1)), stores both and returns them.
func (s *System) MeasureKinetic() (float64, float64) {
	sum := 0.0
	for i := range s.Particles {
		sum += r3.Norm2(s.Particles[i].Vel)
	}
	s.kinetic = 0.5 * s.mass * sum
	s.temperature = 0
	if n := len(s.Particles); n > 1 {
		s.temperature = s.mass * sum / (3.0 * float64(n-1))
	}
	return s.kinetic, s.temperature
}

// Momentum returns the total momentum mΣv.
func (s *System) Momentum() r3.Vec {
	var p r3.Vec
	for i := range s.Particles {
		p = r3.Add(p, s.Particles[i].Vel)
	}
	return r3.Scale(s.mass, p)
}

// Positions returns a copy of every particle position.
func (s *System) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.Particles))
	for i := range s.Particles {
		out[i] = s.Particles[i].Pos
	}
	return out
}

// Clone returns a deep copy that shares only the potential implementation.
func (s *System) Clone() *System {
	c := *s
	c.Particles = append([]Particle(nil), s.Particles...)
	c.params = append([]float64(nil), s.params...)
	return &c
}

func (s *System) Box() geom.Box                  { return s.box }
func (s *System) Mass() float64                  { return s.mass }
func (s *System) Cutoff() float64                { return s.cutoff }
func (s *System) Skin() float64                  { return s.skin }
func (s *System) TargetTemperature() float64     { return s.targetTemp }
func (s *System) Potential() potential.Potential { return s.pot }
func (s *System) NumParticles() int              { return len(s.Particles) }

// Params returns the potential parameter vector. Callers must not modify it.
func (s *System) Params() []float64 { return s.params }

func (s *System) KineticEnergy() float64      { return s.kinetic }
func (s *System) PotentialEnergy() float64    { return s.potentialE }
func (s *System) TotalEnergy() float64        { return s.kinetic + s.potentialE }
func (s *System) InstantTemperature() float64 { return s.temperature }
