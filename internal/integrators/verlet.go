package integrators

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// NVE is velocity Verlet at constant energy. Positions are never wrapped.
type NVE struct {
	base
}

func NewNVE(dt float64, opts ...Option) (*NVE, error) {
	b, err := newBase(dt, opts)
	if err != nil {
		return nil, err
	}
	return &NVE{base: b}, nil
}

func (v *NVE) Name() string { return "nve" }

func (v *NVE) Step(sys *dynamo.System) error {
	if err := v.ensure(sys); err != nil {
		return err
	}

	ps := sys.Particles
	dt := v.dt
	halfDt := 0.5 * dt

	dynamo.ParallelFor(len(ps), minChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ps[i].Vel = r3.Add(ps[i].Vel, r3.Scale(halfDt, ps[i].Acc))
			ps[i].Pos = r3.Add(ps[i].Pos, r3.Scale(dt, ps[i].Vel))
		}
	})

	if err := v.forces(sys); err != nil {
		return err
	}

	dynamo.ParallelFor(len(ps), minChunk, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ps[i].Vel = r3.Add(ps[i].Vel, r3.Scale(halfDt, ps[i].Acc))
		}
	})

	sys.MeasureKinetic()
	return nil
}
