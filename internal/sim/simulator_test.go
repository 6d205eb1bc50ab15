package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/potential"
	"gonum.org/v1/gonum/spatial/r3"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// drift moves every particle by dt·v and never computes forces.
type drift struct {
	dt    float64
	steps int
	fail  int
}

func (d *drift) Name() string      { return "drift" }
func (d *drift) Timestep() float64 { return d.dt }

func (d *drift) Step(sys *dynamo.System) error {
	d.steps++
	if d.steps == d.fail {
		return dynamo.ErrParticleCountChanged
	}
	for i := range sys.Particles {
		p := &sys.Particles[i]
		p.Pos = r3.Add(p.Pos, r3.Scale(d.dt, p.Vel))
	}
	sys.MeasureKinetic()
	return nil
}

// heat scales every velocity by factor per step, so the kinetic energy grows
// by factor² each step.
type heat struct{ factor float64 }

func (h *heat) Name() string      { return "heat" }
func (h *heat) Timestep() float64 { return 0.01 }

func (h *heat) Step(sys *dynamo.System) error {
	for i := range sys.Particles {
		sys.Particles[i].Vel = r3.Scale(h.factor, sys.Particles[i].Vel)
	}
	sys.MeasureKinetic()
	return nil
}

func gas(t *testing.T, n int) *dynamo.System {
	t.Helper()
	sys, err := dynamo.NewSystem(geom.Box{X: 10, Y: 10, Z: 10}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.SetCutoff(1.0); err != nil {
		t.Fatal(err)
	}
	if err := sys.SetPotential(potential.Zero{}, nil); err != nil {
		t.Fatal(err)
	}
	if err := sys.InitThermal(n, 1.0, 3, 1.0); err != nil {
		t.Fatal(err)
	}
	return sys
}

type countMetric struct {
	count int
	sum   float64
}

func (c *countMetric) Name() string { return "test" }
func (c *countMetric) Observe(sys *dynamo.System, step int) {
	c.count++
	c.sum += sys.InstantTemperature()
}
func (c *countMetric) Value() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}
func (c *countMetric) Reset() {
	c.count = 0
	c.sum = 0
}

func TestSimulatorRun(t *testing.T) {
	sys := gas(t, 27)
	start := sys.Particles[0].Pos
	vel := sys.Particles[0].Vel

	s := New(&drift{dt: 0.1}, quiet)
	result, err := s.Run(context.Background(), sys, Config{Steps: 10, ReportEvery: 2})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}
	if len(result.Samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(result.Samples))
	}
	last := result.Samples[4]
	if last.Step != 10 || math.Abs(last.Time-1.0) > 1e-12 {
		t.Errorf("last sample at step %d t=%g", last.Step, last.Time)
	}
	if math.Abs(last.Temperature-1.0) > 1e-12 {
		t.Errorf("free flight should keep T, got %g", last.Temperature)
	}

	want := r3.Add(start, r3.Scale(1.0, vel))
	if r3.Norm(r3.Sub(sys.Particles[0].Pos, want)) > 1e-12 {
		t.Errorf("position %v, want %v", sys.Particles[0].Pos, want)
	}
}

func TestSimulatorReportLastStep(t *testing.T) {
	sys := gas(t, 8)
	s := New(&drift{dt: 0.1}, quiet)

	result, err := s.Run(context.Background(), sys, Config{Steps: 7, ReportEvery: 3})
	if err != nil {
		t.Fatal(err)
	}
	steps := []int{}
	for _, smp := range result.Samples {
		steps = append(steps, smp.Step)
	}
	if len(steps) != 3 || steps[0] != 3 || steps[1] != 6 || steps[2] != 7 {
		t.Errorf("sampled steps %v, want [3 6 7]", steps)
	}

	result, err = s.Run(context.Background(), sys, Config{Steps: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Samples) != 1 || result.Samples[0].Step != 4 {
		t.Errorf("ReportEvery 0 should sample only the last step, got %+v", result.Samples)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(&drift{dt: 0.1}, quiet)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero steps", Config{Steps: 0}},
		{"negative steps", Config{Steps: -5}},
		{"negative report interval", Config{Steps: 5, ReportEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Run(context.Background(), gas(t, 8), tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimulatorStepError(t *testing.T) {
	s := New(&drift{dt: 0.5, fail: 4}, quiet)

	result, err := s.Run(context.Background(), gas(t, 8), Config{Steps: 10, ReportEvery: 1})
	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	if simErr.Step != 4 || simErr.Time != 2.0 {
		t.Errorf("failed at step %d t=%g, want 4 and 2.0", simErr.Step, simErr.Time)
	}
	if !errors.Is(err, dynamo.ErrParticleCountChanged) {
		t.Errorf("cause lost: %v", err)
	}
	if result.StepsTaken != 3 || len(result.Samples) != 3 {
		t.Errorf("partial result: %d steps, %d samples", result.StepsTaken, len(result.Samples))
	}
}

func TestSimulatorValidateState(t *testing.T) {
	sys := gas(t, 8)
	sys.Particles[2].Vel.Y = math.Inf(1)

	s := New(&drift{dt: 0.1}, quiet)
	_, err := s.Run(context.Background(), sys, Config{Steps: 3, ValidateState: true})
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestSimulatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(&drift{dt: 0.1}, quiet)
	result, err := s.Run(ctx, gas(t, 8), Config{Steps: 100})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("expected no steps, got %d", result.StepsTaken)
	}
}

func TestSimulatorMetricsAndObservers(t *testing.T) {
	s := New(&drift{dt: 0.1}, quiet)
	metric := &countMetric{}
	s.AddMetric(metric)

	seen := 0
	s.AddObserver(ObserverFunc(func(sys *dynamo.System, smp Sample) error {
		seen++
		if smp.Step == 6 {
			return errors.New("stop")
		}
		return nil
	}))

	result, err := s.Run(context.Background(), gas(t, 8), Config{Steps: 10, ReportEvery: 2})
	if err == nil {
		t.Fatal("observer error should abort the run")
	}
	if seen != 3 {
		t.Errorf("observer saw %d samples, want 3", seen)
	}
	if metric.count != 6 {
		t.Errorf("expected 6 observations, got %d", metric.count)
	}
	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
}

func TestSimulatorWithNVE(t *testing.T) {
	sys := gas(t, 27)
	nve, err := integrators.NewNVE(0.01)
	if err != nil {
		t.Fatal(err)
	}

	s := New(nve, quiet)
	result, err := s.Run(context.Background(), sys, Config{Steps: 20, ReportEvery: 5, ValidateState: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Builds < 1 || result.Builds != s.Builds() {
		t.Errorf("expected the cell list to be built, got %d", result.Builds)
	}
	if result.EnergyDrift > 1e-12 {
		t.Errorf("ideal gas energy drift %g", result.EnergyDrift)
	}
	if Builds(&drift{}) != 0 {
		t.Error("integrator without evaluator should report 0 builds")
	}
}

func TestEnergyDriftFromFirstStep(t *testing.T) {
	sys := gas(t, 27)
	ke0 := sys.KineticEnergy()
	const f = 1.01

	s := New(&heat{factor: f}, quiet)
	result, err := s.Run(context.Background(), sys, Config{Steps: 20, ReportEvery: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Samples) != 2 || result.Samples[0].Step != 10 {
		t.Fatalf("unexpected samples %+v", result.Samples)
	}
	if math.Abs(result.InitialEnergy-ke0*f*f) > 1e-9*ke0 {
		t.Errorf("initial energy %g, want the step 1 energy %g", result.InitialEnergy, ke0*f*f)
	}

	// E(i) = E0·f^(2i); the baseline is step 1, not the first sample at 10.
	want := math.Pow(f, 38) - 1
	if math.Abs(result.EnergyDrift-want) > 1e-9 {
		t.Errorf("drift %g, want %g", result.EnergyDrift, want)
	}
}

func TestEnsemble(t *testing.T) {
	base := gas(t, 27)
	systems, err := Replicas(base, 4, 1.5, 10, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	ens := NewEnsemble(func() (integrators.Integrator, error) {
		return integrators.NewNVE(0.01)
	}, func() []Metric {
		return []Metric{&countMetric{}}
	}, quiet)

	results, err := ens.Run(context.Background(), systems, Config{Steps: 10, ReportEvery: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.StepsTaken != 10 {
			t.Errorf("replica %d took %d steps", i, r.StepsTaken)
		}
		if math.Abs(r.Metrics["test"]-1.5) > 1e-9 {
			t.Errorf("replica %d mean T = %g, want 1.5", i, r.Metrics["test"])
		}
	}
	if systems[0].Particles[0].Vel == systems[1].Particles[0].Vel {
		t.Error("replicas should use different seeds")
	}
	if base.InstantTemperature() != 1.0 {
		t.Error("base system must not be modified")
	}
}

func TestEnsembleFailure(t *testing.T) {
	systems := []*dynamo.System{gas(t, 8), gas(t, 8)}
	ens := NewEnsemble(func() (integrators.Integrator, error) {
		return integrators.NewNVE(-1)
	}, nil, quiet)

	if _, err := ens.Run(context.Background(), systems, Config{Steps: 5}); !errors.Is(err, integrators.ErrTimestep) {
		t.Errorf("expected ErrTimestep, got %v", err)
	}
}
