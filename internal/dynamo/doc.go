// Package dynamo holds the particle system state shared by the force
// evaluators and the integrators.
//
// A [System] owns a fixed set of [Particle] values together with the box,
// mass, cutoff, skin, target temperature and pair potential of a run:
//
//   - [Particle]: position, velocity and acceleration of one point particle
//   - [System]: validated global state plus energy and temperature bookkeeping
//   - [System.InitRandom], [System.InitThermal]: initial phase space
//   - [ParallelFor]: chunked fan-out used by the per-particle loops
//
// # Example
//
//	box, _ := geom.NewBox(16.796, 16.796, 16.796)
//	sys, _ := dynamo.NewSystem(box, 1.0)
//	_ = sys.SetCutoff(2.5)
//	_ = sys.SetPotential(potential.ShiftedLJ{}, []float64{1, 1, 0, 0})
//	_ = sys.InitThermal(400, 0.71, 42, 2.0)
//
// # Thread Safety
//
// A System is NOT thread-safe. Exactly one integrator may advance a given
// system; independent replicas each need their own System (see [System.Clone]).
package dynamo
