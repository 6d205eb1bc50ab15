package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/potential"
	"github.com/san-kum/mdsim/internal/sim"
)

var ErrUnknownIntegrator = errors.New("experiment: unknown integrator")

// stabilityLimit is the particle speed past which a step counts as unstable.
const stabilityLimit = 100.0

type integratorFunc func(cfg *config.Config, f compute.Factory) (integrators.Integrator, error)

// Registry maps configuration names onto potentials, force evaluators and
// integrators.
type Registry struct {
	integrators map[string]integratorFunc
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]integratorFunc),
	}

	r.integrators["nve"] = func(cfg *config.Config, f compute.Factory) (integrators.Integrator, error) {
		return integrators.NewNVE(cfg.Dt, integrators.WithEvaluator(f))
	}
	r.integrators["nvt"] = func(cfg *config.Config, f compute.Factory) (integrators.Integrator, error) {
		return integrators.NewNoseHoover(cfg.Dt, cfg.Thermostat.Q, integrators.WithEvaluator(f))
	}

	return r
}

// NewSystem builds and initializes the particle system cfg describes.
func (r *Registry) NewSystem(cfg *config.Config) (*dynamo.System, error) {
	side := cfg.BoxSide()
	box, err := geom.NewBox(side, side, side)
	if err != nil {
		return nil, err
	}
	sys, err := dynamo.NewSystem(box, cfg.System.Mass)
	if err != nil {
		return nil, err
	}

	pot, err := potential.Lookup(cfg.Potential)
	if err != nil {
		return nil, err
	}
	if err := sys.SetPotential(pot, cfg.Params); err != nil {
		return nil, err
	}
	if err := sys.SetCutoff(cfg.System.Cutoff); err != nil {
		return nil, err
	}
	if err := sys.SetSkin(cfg.System.Skin); err != nil {
		return nil, err
	}
	if err := sys.SetTargetTemperature(cfg.System.Temperature); err != nil {
		return nil, err
	}

	switch cfg.System.Init {
	case "random":
		err = sys.InitRandom(cfg.System.Particles, cfg.Seed)
	default:
		err = sys.InitThermal(cfg.System.Particles, cfg.System.Temperature, cfg.Seed, cfg.System.Spacing)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", cfg.System.Init, err)
	}
	return sys, nil
}

// NewIntegrator returns a fresh integrator wired to the configured evaluator.
func (r *Registry) NewIntegrator(cfg *config.Config) (integrators.Integrator, error) {
	fn, ok := r.integrators[cfg.Integrator]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownIntegrator, cfg.Integrator, r.ListIntegrators())
	}
	factory, err := compute.Lookup(cfg.Evaluator, cfg.Workers)
	if err != nil {
		return nil, err
	}
	return fn(cfg, factory)
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListPotentials() []string { return potential.Names() }

func (r *Registry) ListEvaluators() []string { return compute.Names() }

// DefaultMetrics returns the metrics every run records. A thermostatted
// integrator adds its friction.
func (r *Registry) DefaultMetrics(integ integrators.Integrator) []sim.Metric {
	ms := []sim.Metric{
		metrics.NewEnergy(),
		metrics.NewEnergyDrift(),
		metrics.NewTemperature(),
		metrics.NewStability(stabilityLimit),
		metrics.NewRebuilds(func() int { return sim.Builds(integ) }),
	}
	if nh, ok := integ.(*integrators.NoseHoover); ok {
		ms = append(ms, metrics.NewThermostatEffort(nh.Gamma))
	}
	return ms
}
