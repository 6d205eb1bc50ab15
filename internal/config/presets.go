package config

import "sort"

var Presets = map[string]*Config{
	// energy conservation check: no skin, so every step rebuilds
	"nve-lj": {
		Name: "nve-lj", Potential: "slj", Params: []float64{1, 1, 0, LJShift},
		Integrator: "nve", Evaluator: "cells",
		Dt: 0.005, Steps: 10000, ReportEvery: 100, Seed: 1,
		System: SystemConfig{
			Particles: 400, Box: 16.796, Mass: 1,
			Cutoff: 2.5, Skin: 0, Temperature: 0.71,
			Init: "thermal", Spacing: 2.0,
		},
		Thermostat: ThermostatConfig{Q: DefaultThermalMass},
		Output:     OutputConfig{Dir: DefaultOutputDir},
	},
	"nvt-lj": {
		Name: "nvt-lj", Potential: "slj", Params: []float64{1, 1, 0, LJShift},
		Integrator: "nvt", Evaluator: "cells",
		Dt: 0.005, Steps: 5000, ReportEvery: 50, Seed: 1,
		System: SystemConfig{
			Particles: 4000, Density: 0.5, Mass: 1,
			Cutoff: 2.5, Skin: 0.3, Temperature: 1.0,
			Init: "thermal", Spacing: 1.0,
		},
		Thermostat: ThermostatConfig{Q: 1.0},
		Output:     OutputConfig{Dir: DefaultOutputDir},
	},
	"soft": {
		Name: "soft", Potential: "soft", Params: []float64{25},
		Integrator: "nve", Evaluator: "neighbors",
		Dt: 0.01, Steps: 2000, ReportEvery: 20, Seed: 1,
		System: SystemConfig{
			Particles: 50, Box: 10, Mass: 1,
			Cutoff: 1, Skin: 1, Temperature: 0.5,
			Init: "random", Spacing: DefaultSpacing,
		},
		Thermostat: ThermostatConfig{Q: DefaultThermalMass},
		Output:     OutputConfig{Dir: DefaultOutputDir},
	},
	// base for the evaluator scaling study; bench varies Particles
	"scaling": {
		Name: "scaling", Potential: "slj", Params: []float64{1, 1, 0, LJShift},
		Integrator: "nve", Evaluator: "cells",
		Dt: 0.005, Steps: 100, ReportEvery: 0, Seed: 1,
		System: SystemConfig{
			Particles: 1000, Density: 0.5, Mass: 1,
			Cutoff: 2.5, Skin: 0.3, Temperature: 1.0,
			Init: "thermal", Spacing: 1.0,
		},
		Thermostat: ThermostatConfig{Q: DefaultThermalMass},
		Output:     OutputConfig{Dir: DefaultOutputDir},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
