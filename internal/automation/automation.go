// Package automation runs scripted multi-stage protocols, such as a
// thermostatted equilibration followed by an energy conserving production
// run, on one evolving system.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/experiment"
	"github.com/san-kum/mdsim/internal/sim"
	"gopkg.in/yaml.v3"
)

var ErrNoStages = errors.New("automation: scenario has no stages")

// Scenario defines a scripted simulation sequence. Config is laid over
// Preset (or the defaults) and builds the system; each stage then swaps the
// integrator and keeps the particles.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Preset      string    `yaml:"preset"`
	Config      yaml.Node `yaml:"config"`
	Stages      []Stage   `yaml:"stages"`
}

// Stage is one leg of a scenario. Zero fields inherit the base config.
type Stage struct {
	Name        string  `yaml:"name"`
	Integrator  string  `yaml:"integrator"`
	Evaluator   string  `yaml:"evaluator"`
	Steps       int     `yaml:"steps"`
	Dt          float64 `yaml:"dt"`
	ReportEvery int     `yaml:"report_every"`
	Temperature float64 `yaml:"temperature"`
	Q           float64 `yaml:"q"`
}

// StageResult pairs a stage with the record of its run.
type StageResult struct {
	Stage  Stage
	Config *config.Config
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse scenario: %w", err)
	}
	if len(scenario.Stages) == 0 {
		return nil, ErrNoStages
	}
	return &scenario, nil
}

// BaseConfig resolves the preset and config overlay into the config the
// system is built from.
func (s *Scenario) BaseConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("automation: unknown preset %q (available: %v)", s.Preset, config.ListPresets())
		}
	}
	if !s.Config.IsZero() {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("automation: decode config: %w", err)
		}
	}
	if s.Name != "" {
		cfg.Name = s.Name
	}
	return cfg, nil
}

// StageConfig returns base with the stage's overrides applied.
func StageConfig(base *config.Config, st Stage) *config.Config {
	cfg := base.Clone()
	if st.Name != "" {
		cfg.Name = base.Name + "-" + st.Name
	}
	if st.Integrator != "" {
		cfg.Integrator = st.Integrator
	}
	if st.Evaluator != "" {
		cfg.Evaluator = st.Evaluator
	}
	if st.Steps > 0 {
		cfg.Steps = st.Steps
	}
	if st.Dt > 0 {
		cfg.Dt = st.Dt
	}
	if st.ReportEvery > 0 {
		cfg.ReportEvery = st.ReportEvery
	}
	if st.Temperature > 0 {
		cfg.System.Temperature = st.Temperature
	}
	if st.Q > 0 {
		cfg.Thermostat.Q = st.Q
	}
	return cfg
}

// RunScenario executes all stages in order on one system. It returns the
// results of the stages that ran, including a partial record for the stage
// that failed.
func RunScenario(ctx context.Context, scenario *Scenario, logger *slog.Logger) ([]StageResult, error) {
	if len(scenario.Stages) == 0 {
		return nil, ErrNoStages
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, err := scenario.BaseConfig()
	if err != nil {
		return nil, err
	}
	// validate every stage before spending time on the first
	cfgs := make([]*config.Config, len(scenario.Stages))
	for i, st := range scenario.Stages {
		cfgs[i] = StageConfig(base, st)
		if err := cfgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
	}

	sys, _, err := experiment.Build(base)
	if err != nil {
		return nil, err
	}

	reg := experiment.NewRegistry()
	results := make([]StageResult, 0, len(scenario.Stages))
	for i, st := range scenario.Stages {
		cfg := cfgs[i]
		logger.Info("stage", "n", i+1, "of", len(scenario.Stages), "name", st.Name,
			"integrator", cfg.Integrator, "steps", cfg.Steps, "temp", cfg.System.Temperature)

		if err := sys.SetTargetTemperature(cfg.System.Temperature); err != nil {
			return results, fmt.Errorf("stage %d: %w", i+1, err)
		}
		integ, err := reg.NewIntegrator(cfg)
		if err != nil {
			return results, fmt.Errorf("stage %d: %w", i+1, err)
		}
		s := sim.New(integ, logger)
		for _, m := range reg.DefaultMetrics(integ) {
			s.AddMetric(m)
		}

		result, err := s.Run(ctx, sys, experiment.SimConfig(cfg))
		if result != nil {
			results = append(results, StageResult{Stage: st, Config: cfg, Result: result})
		}
		if err != nil {
			return results, fmt.Errorf("stage %d: %w", i+1, err)
		}
	}

	return results, nil
}

// System builds the starting system a scenario would run, for callers that
// want to inspect or render it.
func (s *Scenario) System() (*dynamo.System, error) {
	base, err := s.BaseConfig()
	if err != nil {
		return nil, err
	}
	sys, _, err := experiment.Build(base)
	return sys, err
}
