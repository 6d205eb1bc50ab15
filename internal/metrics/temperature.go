package metrics

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"gonum.org/v1/gonum/stat"
)

// Temperature collects the instantaneous temperature of every observed step.
// Value is the mean.
type Temperature struct {
	name    string
	samples []float64
}

func NewTemperature() *Temperature {
	return &Temperature{name: "temperature"}
}

func (t *Temperature) Name() string { return t.name }

func (t *Temperature) Observe(sys *dynamo.System, step int) {
	t.samples = append(t.samples, sys.InstantTemperature())
}

func (t *Temperature) Value() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return stat.Mean(t.samples, nil)
}

// MeanStdDev returns the mean and sample standard deviation.
func (t *Temperature) MeanStdDev() (float64, float64) {
	if len(t.samples) < 2 {
		return t.Value(), 0
	}
	return stat.MeanStdDev(t.samples, nil)
}

func (t *Temperature) Reset() { t.samples = t.samples[:0] }
