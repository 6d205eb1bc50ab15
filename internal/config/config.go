package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt          = 0.005
	DefaultSteps       = 1000
	DefaultReportEvery = 10
	DefaultParticles   = 256
	DefaultDensity     = 0.5
	DefaultCutoff      = 2.5
	DefaultSkin        = 0.3
	DefaultTemperature = 1.0
	DefaultSpacing     = 1.0
	DefaultThermalMass = 1.0
	DefaultOutputDir   = "runs"

	// LJShift lifts a unit Lennard-Jones well so U(2.5σ) = 0.
	LJShift = 0.016316891136
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config describes one run: the particle system, its interaction, the
// integrator that advances it and what gets recorded.
type Config struct {
	Name        string    `yaml:"name"         env:"MDSIM_NAME"`
	Potential   string    `yaml:"potential"    env:"MDSIM_POTENTIAL"`
	Params      []float64 `yaml:"params"       env:"MDSIM_PARAMS" envSeparator:","`
	Integrator  string    `yaml:"integrator"   env:"MDSIM_INTEGRATOR"`
	Evaluator   string    `yaml:"evaluator"    env:"MDSIM_EVALUATOR"`
	Workers     int       `yaml:"workers"      env:"MDSIM_WORKERS"`
	Dt          float64   `yaml:"dt"           env:"MDSIM_DT"`
	Steps       int       `yaml:"steps"        env:"MDSIM_STEPS"`
	ReportEvery int       `yaml:"report_every" env:"MDSIM_REPORT_EVERY"`
	Seed        int64     `yaml:"seed"         env:"MDSIM_SEED"`

	System     SystemConfig     `yaml:"system"`
	Thermostat ThermostatConfig `yaml:"thermostat"`
	Output     OutputConfig     `yaml:"output"`
}

type SystemConfig struct {
	Particles int `yaml:"particles" env:"MDSIM_PARTICLES"`
	// Box is the side of the cubic box. When zero the side follows from
	// Density as (N/density)^(1/3).
	Box         float64 `yaml:"box"         env:"MDSIM_BOX"`
	Density     float64 `yaml:"density"     env:"MDSIM_DENSITY"`
	Mass        float64 `yaml:"mass"        env:"MDSIM_MASS"`
	Cutoff      float64 `yaml:"cutoff"      env:"MDSIM_CUTOFF"`
	Skin        float64 `yaml:"skin"        env:"MDSIM_SKIN"`
	Temperature float64 `yaml:"temperature" env:"MDSIM_TEMPERATURE"`
	// Init is "thermal" (lattice plus Gaussian velocities) or "random".
	Init    string  `yaml:"init"    env:"MDSIM_INIT"`
	Spacing float64 `yaml:"spacing" env:"MDSIM_SPACING"`
}

type ThermostatConfig struct {
	Q float64 `yaml:"q" env:"MDSIM_Q"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" env:"MDSIM_OUTPUT_DIR"`
	// TrajectoryEvery writes an XYZ frame every that many report samples;
	// zero disables the trajectory.
	TrajectoryEvery int  `yaml:"trajectory_every" env:"MDSIM_TRAJECTORY_EVERY"`
	Validate        bool `yaml:"validate"         env:"MDSIM_VALIDATE"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:        "md",
		Potential:   "slj",
		Params:      []float64{1, 1, 0, LJShift},
		Integrator:  "nve",
		Evaluator:   "cells",
		Dt:          DefaultDt,
		Steps:       DefaultSteps,
		ReportEvery: DefaultReportEvery,
		Seed:        1,
		System: SystemConfig{
			Particles:   DefaultParticles,
			Density:     DefaultDensity,
			Mass:        1,
			Cutoff:      DefaultCutoff,
			Skin:        DefaultSkin,
			Temperature: DefaultTemperature,
			Init:        "thermal",
			Spacing:     DefaultSpacing,
		},
		Thermostat: ThermostatConfig{Q: DefaultThermalMass},
		Output:     OutputConfig{Dir: DefaultOutputDir},
	}
}

// Load reads a YAML file on top of DefaultConfig, so omitted keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from MDSIM_* environment variables. Unset
// variables leave the field alone.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// BoxSide returns the cubic box side, derived from the density when Box is
// not set.
func (c *Config) BoxSide() float64 {
	if c.System.Box > 0 {
		return c.System.Box
	}
	if c.System.Density <= 0 {
		return 0
	}
	return math.Cbrt(float64(c.System.Particles) / c.System.Density)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Params = append([]float64(nil), c.Params...)
	return &out
}

// Validate catches values that would only fail later, deep inside a run.
// Names of potentials, integrators and evaluators are checked when the run
// is built.
func (c *Config) Validate() error {
	switch {
	case c.Steps < 1:
		return fmt.Errorf("%w: steps must be >= 1, got %d", ErrInvalid, c.Steps)
	case c.ReportEvery < 0:
		return fmt.Errorf("%w: report_every must be >= 0, got %d", ErrInvalid, c.ReportEvery)
	case !(c.Dt > 0):
		return fmt.Errorf("%w: dt must be > 0, got %g", ErrInvalid, c.Dt)
	case c.System.Particles < 1:
		return fmt.Errorf("%w: particles must be >= 1, got %d", ErrInvalid, c.System.Particles)
	case c.System.Box < 0:
		return fmt.Errorf("%w: box must be >= 0, got %g", ErrInvalid, c.System.Box)
	case c.System.Box == 0 && !(c.System.Density > 0):
		return fmt.Errorf("%w: need a box side or a positive density", ErrInvalid)
	case c.System.Cutoff < 0 || c.System.Skin < 0:
		return fmt.Errorf("%w: cutoff and skin must be >= 0", ErrInvalid)
	case c.Output.TrajectoryEvery < 0:
		return fmt.Errorf("%w: trajectory_every must be >= 0", ErrInvalid)
	}
	if c.System.Init != "thermal" && c.System.Init != "random" {
		return fmt.Errorf("%w: init must be thermal or random, got %q", ErrInvalid, c.System.Init)
	}
	if c.Integrator == "nvt" && !(c.Thermostat.Q > 0) {
		return fmt.Errorf("%w: nvt needs thermostat.q > 0, got %g", ErrInvalid, c.Thermostat.Q)
	}
	return nil
}
