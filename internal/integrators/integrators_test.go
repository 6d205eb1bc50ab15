package integrators_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/potential"
)

// ljShift makes the truncated LJ energy continuous at rc = 2.5.
const ljShift = 0.016316891136

func ljSystem(l, rc, rs float64) *dynamo.System {
	sys, err := dynamo.NewSystem(geom.Box{X: l, Y: l, Z: l}, 1.0)
	Expect(err).NotTo(HaveOccurred())
	Expect(sys.SetCutoff(rc)).To(Succeed())
	Expect(sys.SetSkin(rs)).To(Succeed())
	Expect(sys.SetPotential(potential.ShiftedLJ{}, []float64{1, 1, 0, ljShift})).To(Succeed())
	return sys
}

func idealGas(n int, temp, target float64) *dynamo.System {
	sys, err := dynamo.NewSystem(geom.Box{X: 10, Y: 10, Z: 10}, 1.0)
	Expect(err).NotTo(HaveOccurred())
	Expect(sys.SetCutoff(1.0)).To(Succeed())
	Expect(sys.SetPotential(potential.Zero{}, nil)).To(Succeed())
	Expect(sys.SetTargetTemperature(target)).To(Succeed())
	Expect(sys.InitThermal(n, temp, 5, 1.0)).To(Succeed())
	return sys
}

var _ = Describe("construction", func() {
	It("rejects a non-positive timestep", func() {
		_, err := integrators.NewNVE(0)
		Expect(err).To(MatchError(integrators.ErrTimestep))
		_, err = integrators.NewNoseHoover(-0.01, 1)
		Expect(err).To(MatchError(integrators.ErrTimestep))
	})

	It("rejects a non-positive thermal mass", func() {
		_, err := integrators.NewNoseHoover(0.005, 0)
		Expect(err).To(MatchError(integrators.ErrThermalMass))
	})

	It("starts uninitialized", func() {
		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		Expect(nve.Phase()).To(Equal(integrators.Uninitialized))
		Expect(nve.Evaluator()).To(BeNil())
		Expect(nve.Timestep()).To(Equal(0.005))
	})
})

var _ = Describe("first step", func() {
	It("moves to Running and builds the default cell evaluator", func() {
		sys := ljSystem(12, 2.5, 0.3)
		Expect(sys.InitThermal(100, 1.0, 1, 1.5)).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		Expect(nve.Step(sys)).To(Succeed())

		Expect(nve.Phase()).To(Equal(integrators.Running))
		Expect(nve.Phase().String()).To(Equal("running"))
		Expect(nve.Evaluator().Name()).To(Equal("cells"))
		Expect(nve.LastAccelerations()).To(HaveLen(100))
		Expect(sys.PotentialEnergy()).NotTo(BeZero())
	})

	It("wraps cell list failures as initialization errors", func() {
		sys := ljSystem(6, 2.5, 0)
		Expect(sys.InitRandom(10, 1)).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		err = nve.Step(sys)
		Expect(err).To(MatchError(integrators.ErrInitialization))
		Expect(nve.Phase()).To(Equal(integrators.Uninitialized))
	})

	It("wraps invalid systems as initialization errors", func() {
		sys, err := dynamo.NewSystem(geom.Box{X: 12, Y: 12, Z: 12}, 1.0)
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.InitRandom(10, 1)).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		err = nve.Step(sys)
		Expect(err).To(MatchError(integrators.ErrInitialization))
		Expect(err).To(MatchError(dynamo.ErrNoPotential))
	})

	It("reports hard-core overlaps in the initial configuration", func() {
		sys := ljSystem(12, 2.5, 0)
		Expect(sys.SetPotential(potential.ShiftedLJ{}, []float64{1, 1, 0.9, 0})).To(Succeed())
		Expect(sys.SetParticles([]dynamo.Particle{
			{Pos: r3.Vec{X: 1, Y: 1, Z: 1}},
			{Pos: r3.Vec{X: 1.5, Y: 1, Z: 1}},
		})).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		err = nve.Step(sys)
		Expect(err).To(MatchError(integrators.ErrInitialization))
		Expect(err).To(MatchError(potential.ErrHardCore))
	})

	It("binds to one system", func() {
		a := idealGas(8, 1, 1)
		b := idealGas(8, 1, 1)

		nve, err := integrators.NewNVE(0.01)
		Expect(err).NotTo(HaveOccurred())
		Expect(nve.Step(a)).To(Succeed())
		Expect(nve.Step(b)).To(MatchError(integrators.ErrSystemMismatch))
	})

	DescribeTable("refuses a particle count change without moving anything",
		func(name string, delta int) {
			sys := idealGas(10, 1, 1)
			var integ integrators.Integrator
			var err error
			if name == "nvt" {
				integ, err = integrators.NewNoseHoover(0.01, 1)
			} else {
				integ, err = integrators.NewNVE(0.01)
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(integ.Step(sys)).To(Succeed())

			if delta > 0 {
				sys.Particles = append(sys.Particles, dynamo.Particle{Pos: r3.Vec{X: 5, Y: 5, Z: 5}})
			} else {
				sys.Particles = sys.Particles[:len(sys.Particles)-1]
			}
			before := sys.Positions()

			Expect(integ.Step(sys)).To(MatchError(dynamo.ErrParticleCountChanged))
			Expect(sys.Positions()).To(Equal(before))
		},
		Entry("nve grow", "nve", 1),
		Entry("nve shrink", "nve", -1),
		Entry("nvt grow", "nvt", 1),
		Entry("nvt shrink", "nvt", -1),
	)

	It("uses the evaluator it is given", func() {
		sys := ljSystem(12, 2.5, 0.3)
		Expect(sys.InitThermal(50, 1.0, 1, 1.5)).To(Succeed())

		factory, err := compute.Lookup("neighbors", 2)
		Expect(err).NotTo(HaveOccurred())
		nvt, err := integrators.NewNoseHoover(0.005, 1, integrators.WithEvaluator(factory))
		Expect(err).NotTo(HaveOccurred())
		Expect(nvt.Step(sys)).To(Succeed())
		Expect(nvt.Evaluator().Name()).To(Equal("neighbors"))
	})
})

var _ = Describe("NVE", func() {
	It("moves a free particle in a straight line without wrapping", func() {
		sys := idealGas(2, 1, 0)
		sys.Particles[0].Pos = r3.Vec{X: 9.5, Y: 5, Z: 5}
		sys.Particles[0].Vel = r3.Vec{X: 1}
		sys.Particles[1].Pos = r3.Vec{X: 2, Y: 2, Z: 2}
		sys.Particles[1].Vel = r3.Vec{X: -1}

		nve, err := integrators.NewNVE(0.1)
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 10; i++ {
			Expect(nve.Step(sys)).To(Succeed())
		}

		Expect(sys.Particles[0].Pos.X).To(BeNumerically("~", 10.5, 1e-12))
		Expect(sys.Particles[1].Pos.X).To(BeNumerically("~", 1.0, 1e-12))
		Expect(sys.KineticEnergy()).To(BeNumerically("~", 1.0, 1e-12))
		Expect(sys.InstantTemperature()).To(BeNumerically("~", 2.0/3.0, 1e-12))
	})

	It("conserves total energy with zero skin", func() {
		sys := ljSystem(16.796, 2.5, 0)
		Expect(sys.InitThermal(400, 0.71, 42, 2.0)).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		Expect(nve.Step(sys)).To(Succeed())
		e0 := sys.TotalEnergy()

		for i := 0; i < 1000; i++ {
			Expect(nve.Step(sys)).To(Succeed())
			if i%50 == 0 {
				Expect(math.Abs(sys.TotalEnergy()-e0)).To(BeNumerically("<", 0.01*math.Abs(e0)),
					"step %d: E=%g, E0=%g", i, sys.TotalEnergy(), e0)
			}
		}
		Expect(r3.Norm(sys.Momentum())).To(BeNumerically("<", 1e-9))
	})

	It("keeps the previous accelerations", func() {
		sys := ljSystem(12, 2.5, 0.3)
		Expect(sys.InitThermal(64, 1.0, 3, 1.5)).To(Succeed())

		nve, err := integrators.NewNVE(0.005)
		Expect(err).NotTo(HaveOccurred())
		Expect(nve.Step(sys)).To(Succeed())
		before := make([]r3.Vec, len(sys.Particles))
		for i, p := range sys.Particles {
			before[i] = p.Acc
		}

		Expect(nve.Step(sys)).To(Succeed())
		Expect(nve.LastAccelerations()).To(Equal(before))
	})
})

var _ = Describe("NoseHoover", func() {
	It("leaves an ideal gas at the target temperature alone", func() {
		sys := idealGas(64, 1.5, 1.5)
		nvt, err := integrators.NewNoseHoover(0.005, 1)
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 100; i++ {
			Expect(nvt.Step(sys)).To(Succeed())
		}
		Expect(math.Abs(nvt.Gamma())).To(BeNumerically("<", 1e-9))
		Expect(sys.InstantTemperature()).To(BeNumerically("~", 1.5, 1e-9))
	})

	It("applies friction when the system is too hot", func() {
		sys := idealGas(64, 2.0, 1.0)
		nvt, err := integrators.NewNoseHoover(0.005, 10)
		Expect(err).NotTo(HaveOccurred())

		Expect(nvt.Step(sys)).To(Succeed())
		Expect(nvt.Gamma()).To(BeNumerically(">", 0))
		Expect(sys.InstantTemperature()).To(BeNumerically("<", 2.0))
	})

	It("pushes energy in when the system is too cold", func() {
		sys := idealGas(64, 0.5, 1.0)
		nvt, err := integrators.NewNoseHoover(0.005, 10)
		Expect(err).NotTo(HaveOccurred())

		Expect(nvt.Step(sys)).To(Succeed())
		Expect(nvt.Gamma()).To(BeNumerically("<", 0))
		Expect(sys.InstantTemperature()).To(BeNumerically(">", 0.5))
	})

	It("holds a Lennard-Jones fluid at the target on average", func() {
		sys := ljSystem(8.5, 2.5, 0.3)
		Expect(sys.InitThermal(256, 1.2, 7, 1.2)).To(Succeed())
		Expect(sys.SetTargetTemperature(1.2)).To(Succeed())

		nvt, err := integrators.NewNoseHoover(0.005, 10)
		Expect(err).NotTo(HaveOccurred())

		sum := 0.0
		const steps = 1000
		for i := 0; i < steps; i++ {
			Expect(nvt.Step(sys)).To(Succeed())
			sum += sys.InstantTemperature()
		}
		Expect(sum / steps).To(BeNumerically("~", 1.2, 0.12))
		Expect(r3.Norm(sys.Momentum())).To(BeNumerically("<", 1e-9))
	})
})
