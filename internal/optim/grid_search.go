// Package optim sweeps run parameters over a grid and picks the setting that
// minimizes one run metric, e.g. the timestep and skin with the least energy
// drift.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
)

var (
	ErrUnknownParam = errors.New("optim: unknown parameter")
	ErrNoResult     = errors.New("optim: no grid point produced the metric")
	ErrDiverged     = errors.New("optim: run diverged")
)

// setters apply one swept value to a config.
var setters = map[string]func(*config.Config, float64){
	"dt":          func(c *config.Config, v float64) { c.Dt = v },
	"skin":        func(c *config.Config, v float64) { c.System.Skin = v },
	"cutoff":      func(c *config.Config, v float64) { c.System.Cutoff = v },
	"temperature": func(c *config.Config, v float64) { c.System.Temperature = v },
	"density":     func(c *config.Config, v float64) { c.System.Density, c.System.Box = v, 0 },
	"q":           func(c *config.Config, v float64) { c.Thermostat.Q = v },
	"workers":     func(c *config.Config, v float64) { c.Workers = int(v) },
}

// Params lists the names a grid can sweep.
func Params() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Point is one evaluated grid setting. Err is set when the run failed; such
// points carry a Value of +Inf.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64, logger *slog.Logger) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters for %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := setters[name]; !ok {
			return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownParam, name, Params())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", name)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logger}, nil
}

// Search runs base with every grid combination applied and returns the point
// with the smallest value of metricName, plus all points in grid order. Every
// point runs with state validation on. A run that fails, loses stability or
// ends with a non-finite drift or metric is recorded as failed and never
// picked; cancellation aborts the search.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (Point, []Point, error) {
	var points []Point
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, base, metricName, &points); err != nil {
		return Point{}, points, err
	}

	best := Point{Value: math.Inf(1)}
	for _, p := range points {
		if p.Err == nil && p.Value < best.Value {
			best = p
		}
	}
	if best.Params == nil {
		return Point{}, points, ErrNoResult
	}
	return best, points, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metricName string,
	points *[]Point,
) error {
	if depth == len(g.paramNames) {
		p, err := g.evaluate(ctx, current, base, metricName)
		if err != nil {
			return err
		}
		*points = append(*points, p)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metricName, points); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, base *config.Config, metricName string) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	p := Point{Params: params, Value: math.Inf(1)}

	cfg := base.Clone()
	for name, v := range params {
		setters[name](cfg, v)
	}
	cfg.Output.Validate = true

	exp, err := experiment.New(cfg, g.logger)
	if err != nil {
		p.Err = err
		g.logger.Debug("grid point rejected", "params", params, "err", err)
		return p, nil
	}

	result, err := exp.Run(ctx)
	if err != nil {
		var simErr *dynamo.SimulationError
		if !errors.As(err, &simErr) {
			return Point{}, err
		}
		p.Err = err
		g.logger.Debug("grid point failed", "params", params, "err", err)
		return p, nil
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		return Point{}, fmt.Errorf("optim: run has no metric %q", metricName)
	}
	if err := diverged(result.Metrics, result.EnergyDrift, val); err != nil {
		p.Err = err
		g.logger.Debug("grid point diverged", "params", params, "err", err)
		return p, nil
	}
	p.Value = val
	g.logger.Debug("grid point", "params", params, metricName, val)
	return p, nil
}

// diverged rejects runs that finished without an error but not in a state
// worth scoring.
func diverged(metrics map[string]float64, drift, val float64) error {
	if s, ok := metrics["stability"]; ok && s < 1 {
		return fmt.Errorf("%w: stability %g", ErrDiverged, s)
	}
	if math.IsNaN(drift) || math.IsInf(drift, 0) {
		return fmt.Errorf("%w: energy drift %g", ErrDiverged, drift)
	}
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: metric %g", ErrDiverged, val)
	}
	return nil
}

// ParseValues reads a comma separated list ("0.001,0.002") or an inclusive
// linear range "min:max:n".
func ParseValues(s string) ([]float64, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("optim: range %q: %w", s, err)
		}
		hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("optim: range %q: %w", s, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("optim: range %q needs a positive count", s)
		}
		if n == 1 {
			return []float64{lo}, nil
		}
		vals := make([]float64, n)
		step := (hi - lo) / float64(n-1)
		for i := range vals {
			vals[i] = lo + float64(i)*step
		}
		vals[n-1] = hi
		return vals, nil
	}

	var vals []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("optim: value %q: %w", f, err)
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("optim: no values in %q", s)
	}
	return vals, nil
}

// ParseGrid reads "name=values" specs into parallel name and range slices.
func ParseGrid(args []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(args))
	ranges := make([][]float64, 0, len(args))
	for _, arg := range args {
		name, values, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, fmt.Errorf("optim: %q is not name=values", arg)
		}
		vals, err := ParseValues(values)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}
