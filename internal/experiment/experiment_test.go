package experiment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/potential"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.System.Particles = 64
	cfg.System.Box = 9
	cfg.System.Spacing = 1.5
	cfg.System.Skin = 0.3
	cfg.Steps = 20
	cfg.ReportEvery = 5
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := smallConfig()

	sys, integ, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if sys.NumParticles() != 64 {
		t.Errorf("expected 64 particles, got %d", sys.NumParticles())
	}
	if sys.Box().X != 9 {
		t.Errorf("expected box side 9, got %g", sys.Box().X)
	}
	if sys.Cutoff() != cfg.System.Cutoff || sys.Skin() != cfg.System.Skin {
		t.Errorf("cutoff/skin not applied: %g/%g", sys.Cutoff(), sys.Skin())
	}
	if integ.Name() != "nve" || integ.Timestep() != cfg.Dt {
		t.Errorf("unexpected integrator %s dt=%g", integ.Name(), integ.Timestep())
	}
}

func TestBuildNoseHoover(t *testing.T) {
	cfg := smallConfig()
	cfg.Integrator = "nvt"
	cfg.Thermostat.Q = 5

	_, integ, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	nh, ok := integ.(*integrators.NoseHoover)
	if !ok {
		t.Fatalf("expected *NoseHoover, got %T", integ)
	}
	if nh.ThermalMass() != 5 {
		t.Errorf("expected Q=5, got %g", nh.ThermalMass())
	}

	names := map[string]bool{}
	for _, m := range NewRegistry().DefaultMetrics(integ) {
		names[m.Name()] = true
	}
	if !names["thermostat_effort"] {
		t.Error("nvt runs should record thermostat effort")
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"invalid", func(c *config.Config) { c.Steps = 0 }, config.ErrInvalid},
		{"integrator", func(c *config.Config) { c.Integrator = "rk4" }, ErrUnknownIntegrator},
		{"potential", func(c *config.Config) { c.Potential = "morse" }, potential.ErrUnknown},
		{"evaluator", func(c *config.Config) { c.Evaluator = "gpu" }, compute.ErrUnknownEvaluator},
		{"lattice", func(c *config.Config) { c.System.Particles = 1000; c.System.Box = 5 }, dynamo.ErrLatticeOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(cfg)
			_, _, err := Build(cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRun(t *testing.T) {
	cfg := smallConfig()
	exp, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.StepsTaken != 20 {
		t.Errorf("expected 20 steps, got %d", res.StepsTaken)
	}
	if len(res.Samples) != 4 {
		t.Errorf("expected 4 samples, got %d", len(res.Samples))
	}
	for _, name := range []string{"energy", "energy_drift", "temperature", "stability", "rebuilds"} {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("missing metric %q", name)
		}
	}
	if res.Metrics["rebuilds"] < 1 {
		t.Errorf("the initial build should be counted, got %g", res.Metrics["rebuilds"])
	}

	meta := exp.Metadata()
	if meta.Particles != 64 || meta.Box != [3]float64{9, 9, 9} || meta.Integrator != "nve" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestRunSoftPreset(t *testing.T) {
	cfg := config.GetPreset("soft")
	cfg.Steps = 50

	exp, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Metrics["stability"] != 1 {
		t.Errorf("soft run went unstable: %g", res.Metrics["stability"])
	}
}

func TestTrajectoryObserver(t *testing.T) {
	cfg := smallConfig()
	exp, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := storage.NewTrajectoryWriter(&buf)
	exp.Simulator().AddObserver(TrajectoryObserver(tw, 2))

	if _, err := exp.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// samples at steps 5, 10, 15, 20; frames at 10 and 20
	if tw.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", tw.Frames())
	}
	frames, err := storage.ReadTrajectory(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 || len(frames[0]) != 64 {
		t.Errorf("unexpected trajectory shape %d frames", len(frames))
	}
}

func TestRunEnsemble(t *testing.T) {
	cfg := smallConfig()
	cfg.Evaluator = "brute"

	results, err := RunEnsemble(context.Background(), cfg, 3, nil)
	if err != nil {
		t.Fatalf("RunEnsemble failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.StepsTaken != cfg.Steps {
			t.Errorf("replica %d took %d steps", i, r.StepsTaken)
		}
	}
	if results[0].Samples[0].Kinetic == results[1].Samples[0].Kinetic {
		t.Error("replicas should start from different seeds")
	}

	if _, err := RunEnsemble(context.Background(), cfg, 0, nil); err == nil {
		t.Error("expected an error for zero replicas")
	}
}

func TestSimConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Output.Validate = true
	want := sim.Config{Steps: 20, ReportEvery: 5, ValidateState: true}
	if got := SimConfig(cfg); got != want {
		t.Errorf("SimConfig = %+v, want %+v", got, want)
	}
}
