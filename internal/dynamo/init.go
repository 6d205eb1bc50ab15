package dynamo

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// InitRandom places n particles uniformly in the box with velocity
// components uniform in [-0.5, 0.5). The last particle carries the momentum
// that cancels the others, so the net momentum is zero.
func (s *System) InitRandom(n int, seed int64) error {
	if n < 1 {
		return fmt.Errorf("%w: need n >= 1, got %d", ErrParticleCount, n)
	}

	rng := rand.New(rand.NewSource(seed))
	ps := make([]Particle, n)
	var total r3.Vec

	for i := range ps {
		if i < n-1 {
			v := r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
			ps[i].Vel = v
			total = r3.Add(total, v)
		} else {
			ps[i].Vel = r3.Scale(-1, total)
		}
		ps[i].Pos = r3.Vec{
			X: rng.Float64() * s.box.X,
			Y: rng.Float64() * s.box.Y,
			Z: rng.Float64() * s.box.Z,
		}
	}

	s.Particles = ps
	s.potentialE = 0
	s.MeasureKinetic()
	return nil
}

// InitThermal places n particles on a simple cubic lattice with the given
// spacing and draws Gaussian velocities. The mean velocity is removed and the
// rest rescaled so the measured temperature is exactly t.
func (s *System) InitThermal(n int, t float64, seed int64, spacing float64) error {
	if n < 2 {
		return fmt.Errorf("%w: need n >= 2, got %d", ErrParticleCount, n)
	}
	if !(t >= 0) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: got %g", ErrTemperature, t)
	}
	if !(spacing > 0) {
		return fmt.Errorf("%w: spacing must be > 0, got %g", ErrLatticeOverflow, spacing)
	}

	nx := int(math.Floor(s.box.X / spacing))
	ny := int(math.Floor(s.box.Y / spacing))
	nz := int(math.Floor(s.box.Z / spacing))
	if nx*ny*nz < n {
		return fmt.Errorf("%w: %d sites (%dx%dx%d at spacing %g) for %d particles",
			ErrLatticeOverflow, nx*ny*nz, nx, ny, nz, spacing, n)
	}

	rng := rand.New(rand.NewSource(seed))
	ps := make([]Particle, n)
	var mean r3.Vec

	for i := range ps {
		ix := i % nx
		iy := (i / nx) % ny
		iz := i / (nx * ny)
		ps[i].Pos = r3.Vec{
			X: (float64(ix) + 0.5) * spacing,
			Y: (float64(iy) + 0.5) * spacing,
			Z: (float64(iz) + 0.5) * spacing,
		}
		ps[i].Vel = r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		mean = r3.Add(mean, ps[i].Vel)
	}

	mean = r3.Scale(1/float64(n), mean)
	for i := range ps {
		ps[i].Vel = r3.Sub(ps[i].Vel, mean)
	}

	s.Particles = ps
	s.potentialE = 0
	_, measured := s.MeasureKinetic()

	scale := 0.0
	if measured > 0 {
		scale = math.Sqrt(t / measured)
	}
	for i := range s.Particles {
		s.Particles[i].Vel = r3.Scale(scale, s.Particles[i].Vel)
	}
	s.MeasureKinetic()
	return nil
}
