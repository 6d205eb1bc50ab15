package integrators

import (
	"fmt"

	"github.com/san-kum/mdsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// NoseHoover is velocity Verlet coupled to a single friction coefficient γ
// with thermal mass Q. γ is driven by
//
//	dγ/dt = (2·Uk - 3(N-1)·T0) / Q
//
// and integrated in two half steps around the force evaluation, the first
// from the kinetic energy at the start of the step and the second from the
// half-step velocities. The closing velocity update solves
// v = v½ + ½dt(a - γv) for v in closed form.
type NoseHoover struct {
	base
	q     float64
	gamma float64
}

func NewNoseHoover(dt, q float64, opts ...Option) (*NoseHoover, error) {
	if !(q > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrThermalMass, q)
	}
	b, err := newBase(dt, opts)
	if err != nil {
		return nil, err
	}
	return &NoseHoover{base: b, q: q}, nil
}

func (n *NoseHoover) Name() string { return "nvt" }

// Gamma returns the current friction coefficient.
func (n *NoseHoover) Gamma() float64 { return n.gamma }

func (n *NoseHoover) ThermalMass() float64 { return n.q }

func (n *NoseHoover) Step(sys *dynamo.System) error {
	if err := n.ensure(sys); err != nil {
		return err
	}

	ps := sys.Particles
	dt := n.dt
	halfDt := 0.5 * dt
	dof := 3.0 * float64(len(ps)-1)
	target := dof * sys.TargetTemperature()

	drive := (2.0*sys.KineticEnergy() - target) / n.q

	gamma := n.gamma
	dynamo.ParallelFor(len(ps), minChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			drag := r3.Sub(ps[i].Acc, r3.Scale(gamma, ps[i].Vel))
			ps[i].Vel = r3.Add(ps[i].Vel, r3.Scale(halfDt, drag))
			ps[i].Pos = r3.Add(ps[i].Pos, r3.Scale(dt, ps[i].Vel))
		}
	})
	n.gamma += halfDt * drive

	if err := n.forces(sys); err != nil {
		return err
	}

	v2 := 0.0
	for i := range ps {
		v2 += r3.Norm2(ps[i].Vel)
	}
	drive = (sys.Mass()*v2 - target) / n.q
	n.gamma += halfDt * drive

	scale := 1.0 / (1.0 + halfDt*n.gamma)
	dynamo.ParallelFor(len(ps), minChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ps[i].Vel = r3.Scale(scale, r3.Add(ps[i].Vel, r3.Scale(halfDt, ps[i].Acc)))
		}
	})

	sys.MeasureKinetic()
	return nil
}
