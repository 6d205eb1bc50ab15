package compute

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// ErrUnknownEvaluator indicates an evaluator name with no registered factory.
var ErrUnknownEvaluator = errors.New("compute: unknown evaluator")

// Evaluator computes accelerations and potential energy for a system.
type Evaluator interface {
	Name() string
	// Compute overwrites every particle's acceleration, records the total
	// potential energy on sys and returns it.
	Compute(sys *dynamo.System) (float64, error)
}

// Factory builds an evaluator for sys. Integrators call it once, on their
// first step.
type Factory func(sys *dynamo.System) (Evaluator, error)

var registry = map[string]func(workers int) Factory{
	"cells": func(workers int) Factory {
		return func(sys *dynamo.System) (Evaluator, error) { return NewCellEvaluator(sys, workers) }
	},
	"neighbors": func(workers int) Factory {
		return func(sys *dynamo.System) (Evaluator, error) { return NewNeighborEvaluator(sys, workers) }
	},
	"brute": func(workers int) Factory {
		return func(sys *dynamo.System) (Evaluator, error) { return NewBruteForce(workers), nil }
	},
}

// Lookup returns the factory registered under name. workers <= 0 uses
// GOMAXPROCS.
func Lookup(name string, workers int) (Factory, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEvaluator, name, Names())
	}
	return fn(workers), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultFactory is the cell-list evaluator using every available CPU.
func DefaultFactory() Factory {
	f, _ := Lookup("cells", 0)
	return f
}
