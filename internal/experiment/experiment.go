// Package experiment turns a config.Config into a ready-to-run system,
// integrator and simulator.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/storage"
)

type Experiment struct {
	cfg       *config.Config
	sys       *dynamo.System
	integ     integrators.Integrator
	simulator *sim.Simulator
}

// Build returns the system and integrator cfg describes.
func Build(cfg *config.Config) (*dynamo.System, integrators.Integrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	reg := NewRegistry()
	sys, err := reg.NewSystem(cfg)
	if err != nil {
		return nil, nil, err
	}
	integ, err := reg.NewIntegrator(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sys, integ, nil
}

// New builds an experiment with the default metrics attached.
func New(cfg *config.Config, logger *slog.Logger) (*Experiment, error) {
	sys, integ, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	s := sim.New(integ, logger)
	for _, m := range reg.DefaultMetrics(integ) {
		s.AddMetric(m)
	}

	return &Experiment{
		cfg:       cfg,
		sys:       sys,
		integ:     integ,
		simulator: s,
	}, nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	return e.simulator.Run(ctx, e.sys, SimConfig(e.cfg))
}

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }

func (e *Experiment) System() *dynamo.System { return e.sys }

func (e *Experiment) Integrator() integrators.Integrator { return e.integ }

// Metadata describes the run for storage.
func (e *Experiment) Metadata() storage.RunMetadata { return Metadata(e.cfg) }

// Metadata describes a run of cfg for storage.
func Metadata(cfg *config.Config) storage.RunMetadata {
	side := cfg.BoxSide()
	return storage.RunMetadata{
		Name:        cfg.Name,
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Steps:       cfg.Steps,
		Particles:   cfg.System.Particles,
		Box:         [3]float64{side, side, side},
		Cutoff:      cfg.System.Cutoff,
		Skin:        cfg.System.Skin,
		Temperature: cfg.System.Temperature,
		Potential:   cfg.Potential,
		Integrator:  cfg.Integrator,
		Evaluator:   cfg.Evaluator,
	}
}

func SimConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Steps:         cfg.Steps,
		ReportEvery:   cfg.ReportEvery,
		ValidateState: cfg.Output.Validate,
	}
}

// TrajectoryObserver writes a frame to w on every every-th report step, so
// that with a frame written before the run the frames are evenly spaced.
func TrajectoryObserver(w *storage.TrajectoryWriter, every int) sim.Observer {
	if every < 1 {
		every = 1
	}
	seen := 0
	return sim.ObserverFunc(func(sys *dynamo.System, s sim.Sample) error {
		seen++
		if seen%every != 0 {
			return nil
		}
		return w.WriteFrame(sys)
	})
}

// RunEnsemble runs n thermal replicas of cfg concurrently, seeded cfg.Seed,
// cfg.Seed+1, ...
func RunEnsemble(ctx context.Context, cfg *config.Config, n int, logger *slog.Logger) ([]*sim.Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("experiment: need at least one replica, got %d", n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := NewRegistry()
	base, err := reg.NewSystem(cfg)
	if err != nil {
		return nil, err
	}
	systems, err := sim.Replicas(base, n, cfg.System.Temperature, cfg.Seed, cfg.System.Spacing)
	if err != nil {
		return nil, err
	}

	newIntegrator := func() (integrators.Integrator, error) { return reg.NewIntegrator(cfg) }
	newMetrics := func() []sim.Metric {
		return []sim.Metric{metrics.NewEnergyDrift(), metrics.NewTemperature()}
	}

	ens := sim.NewEnsemble(newIntegrator, newMetrics, logger)
	return ens.Run(ctx, systems, SimConfig(cfg))
}
