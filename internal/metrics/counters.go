package metrics

import (
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
)

// Rebuilds counts neighbor structure rebuilds since the last Reset. builds
// reports the structure's running total.
type Rebuilds struct {
	name   string
	builds func() int
	base   int
	last   int
}

func NewRebuilds(builds func() int) *Rebuilds {
	return &Rebuilds{name: "rebuilds", builds: builds}
}

func (r *Rebuilds) Name() string { return r.name }

func (r *Rebuilds) Observe(sys *dynamo.System, step int) { r.last = r.builds() }

func (r *Rebuilds) Value() float64 { return float64(r.last - r.base) }

func (r *Rebuilds) Reset() {
	r.base = r.builds()
	r.last = r.base
}

// ThermostatEffort is the mean |γ| of a thermostat over the observed steps.
type ThermostatEffort struct {
	name    string
	gamma   func() float64
	sum     float64
	samples int
}

func NewThermostatEffort(gamma func() float64) *ThermostatEffort {
	return &ThermostatEffort{name: "thermostat_effort", gamma: gamma}
}

func (c *ThermostatEffort) Name() string { return c.name }

func (c *ThermostatEffort) Observe(sys *dynamo.System, step int) {
	c.sum += math.Abs(c.gamma())
	c.samples++
}

func (c *ThermostatEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ThermostatEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
