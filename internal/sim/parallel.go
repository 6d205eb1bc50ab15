package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/integrators"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent replicas concurrently. Every replica gets its
// own integrator and metrics; the systems must not be shared.
type Ensemble struct {
	newIntegrator func() (integrators.Integrator, error)
	newMetrics    func() []Metric
	log           *slog.Logger
}

func NewEnsemble(newIntegrator func() (integrators.Integrator, error), newMetrics func() []Metric, logger *slog.Logger) *Ensemble {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ensemble{newIntegrator: newIntegrator, newMetrics: newMetrics, log: logger}
}

// Run steps every system with cfg and returns results in input order. The
// first failure cancels the remaining replicas.
func (e *Ensemble) Run(ctx context.Context, systems []*dynamo.System, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(systems))

	g, ctx := errgroup.WithContext(ctx)
	for idx, sys := range systems {
		g.Go(func() error {
			integ, err := e.newIntegrator()
			if err != nil {
				return fmt.Errorf("replica %d: %w", idx, err)
			}

			s := New(integ, e.log.With("replica", idx))
			if e.newMetrics != nil {
				for _, m := range e.newMetrics() {
					s.AddMetric(m)
				}
			}

			res, err := s.Run(ctx, sys, cfg)
			if err != nil {
				return fmt.Errorf("replica %d: %w", idx, err)
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Replicas clones base n times and reinitializes each clone thermally with
// seeds seedStart, seedStart+1, ...
func Replicas(base *dynamo.System, n int, temp float64, seedStart int64, spacing float64) ([]*dynamo.System, error) {
	out := make([]*dynamo.System, n)
	for i := range out {
		c := base.Clone()
		if err := c.InitThermal(base.NumParticles(), temp, seedStart+int64(i), spacing); err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
