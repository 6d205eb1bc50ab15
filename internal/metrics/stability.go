package metrics

import (
	"github.com/san-kum/mdsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stability is the fraction of observed steps in which every particle was
// finite and slower than the threshold speed.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sys *dynamo.System, step int) {
	s.samples++
	limit := s.threshold * s.threshold
	for _, p := range sys.Particles {
		if !p.IsValid() || r3.Norm2(p.Vel) > limit {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
