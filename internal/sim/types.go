package sim

import (
	"time"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// Metric accumulates a scalar over the steps of a run.
type Metric interface {
	Name() string
	Observe(sys *dynamo.System, step int)
	Value() float64
	Reset()
}

// Observer is notified at every report step. Returning an error aborts the
// run.
type Observer interface {
	OnStep(sys *dynamo.System, s Sample) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(sys *dynamo.System, s Sample) error

func (f ObserverFunc) OnStep(sys *dynamo.System, s Sample) error { return f(sys, s) }

type Config struct {
	Steps int
	// ReportEvery is the sampling interval in steps; 0 samples only the
	// last step.
	ReportEvery   int
	ValidateState bool
}

// Sample is the thermodynamic state after one step.
type Sample struct {
	Step        int
	Time        float64
	Kinetic     float64
	Potential   float64
	Total       float64
	Temperature float64
	Builds      int
}

type Result struct {
	Samples []Sample
	Metrics map[string]float64
	// InitialEnergy is the total energy after the first step, the first
	// point at which forces are known. EnergyDrift is measured against it.
	InitialEnergy float64
	EnergyDrift   float64
	StepsTaken    int
	Builds        int
	Elapsed       time.Duration
}
