package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/mdsim/internal/compute"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/integrators"
)

type Simulator struct {
	integrator integrators.Integrator
	log        *slog.Logger
	metrics    []Metric
	observers  []Observer
}

// New returns a simulator driving integ. A nil logger means slog.Default.
func New(integ integrators.Integrator, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		integrator: integ,
		log:        logger,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Builds returns how often the integrator's neighbor structure has been
// rebuilt, 0 if it has none.
func (s *Simulator) Builds() int {
	return Builds(s.integrator)
}

// Builds reports the rebuild count of integ's evaluator, if it has one.
func Builds(integ integrators.Integrator) int {
	holder, ok := integ.(interface{ Evaluator() compute.Evaluator })
	if !ok {
		return 0
	}
	counter, ok := holder.Evaluator().(interface{ Builds() int })
	if !ok {
		return 0
	}
	return counter.Builds()
}

func (s *Simulator) Run(ctx context.Context, sys *dynamo.System, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	every := cfg.ReportEvery
	if every <= 0 {
		every = cfg.Steps
	}
	dt := s.integrator.Timestep()
	result := &Result{
		Samples: make([]Sample, 0, cfg.Steps/every+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	s.log.Info("run started",
		"integrator", s.integrator.Name(),
		"particles", sys.NumParticles(),
		"steps", cfg.Steps,
		"dt", dt)
	start := time.Now()

	for i := 1; i <= cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(result, start)
			return result, ctx.Err()
		default:
		}

		t := float64(i) * dt
		if err := s.integrator.Step(sys); err != nil {
			s.finish(result, start)
			s.log.Error("step failed", "step", i, "err", err)
			return result, &dynamo.SimulationError{Step: i, Time: t, Wrapped: err}
		}

		if cfg.ValidateState {
			if err := validate(sys); err != nil {
				s.finish(result, start)
				s.log.Error("state diverged", "step", i, "err", err)
				return result, &dynamo.SimulationError{Step: i, Time: t, Wrapped: err}
			}
		}
		result.StepsTaken++
		if result.StepsTaken == 1 {
			result.InitialEnergy = sys.TotalEnergy()
		}

		for _, m := range s.metrics {
			m.Observe(sys, i)
		}

		if i%every != 0 && i != cfg.Steps {
			continue
		}

		sample := Sample{
			Step:        i,
			Time:        t,
			Kinetic:     sys.KineticEnergy(),
			Potential:   sys.PotentialEnergy(),
			Total:       sys.TotalEnergy(),
			Temperature: sys.InstantTemperature(),
			Builds:      s.Builds(),
		}
		result.Samples = append(result.Samples, sample)
		s.log.Debug("report",
			"step", i,
			"ke", sample.Kinetic,
			"pe", sample.Potential,
			"temp", sample.Temperature,
			"builds", sample.Builds)

		for _, obs := range s.observers {
			if err := obs.OnStep(sys, sample); err != nil {
				s.finish(result, start)
				return result, &dynamo.SimulationError{Step: i, Time: t, Wrapped: err}
			}
		}
	}

	s.finish(result, start)
	s.log.Info("run finished",
		"steps", result.StepsTaken,
		"builds", result.Builds,
		"drift", result.EnergyDrift,
		"elapsed", result.Elapsed)
	return result, nil
}

func (s *Simulator) finish(result *Result, start time.Time) {
	result.Elapsed = time.Since(start)
	result.Builds = s.Builds()

	if n := len(result.Samples); n > 0 {
		initial := result.InitialEnergy
		final := result.Samples[n-1].Total
		if initial != 0 {
			result.EnergyDrift = math.Abs(final-initial) / math.Abs(initial)
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.ReportEvery < 0 {
		return fmt.Errorf("report interval must be >= 0, got %d", cfg.ReportEvery)
	}
	return nil
}

func validate(sys *dynamo.System) error {
	for i, p := range sys.Particles {
		if !p.IsValid() {
			return fmt.Errorf("%w: particle %d", dynamo.ErrInvalidState, i)
		}
	}
	if math.IsNaN(sys.TotalEnergy()) || math.IsInf(sys.TotalEnergy(), 0) {
		return fmt.Errorf("%w: total energy %g", dynamo.ErrInvalidState, sys.TotalEnergy())
	}
	return nil
}
