package celllist

import (
	"fmt"
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// skinMonitor tracks how far particles have moved since the last build.
type skinMonitor struct {
	box  geom.Box
	skin float64

	ref    []r3.Vec
	sized  bool
	built  bool
	drMax1 float64
	drMax2 float64
}

// size allocates the reference snapshot on first use and rejects any later
// change of particle count.
func (m *skinMonitor) size(n int) error {
	if !m.sized {
		m.ref = make([]r3.Vec, n)
		m.sized = true
		return nil
	}
	if n != len(m.ref) {
		return fmt.Errorf("%w: sized for %d, got %d", dynamo.ErrParticleCountChanged, len(m.ref), n)
	}
	return nil
}

// stale reports whether the structure must be rebuilt for ps. It reports
// true until a build has succeeded.
func (m *skinMonitor) stale(ps []dynamo.Particle) (bool, error) {
	if err := m.size(len(ps)); err != nil {
		return false, err
	}
	if !m.built {
		return true, nil
	}

	m.drMax1, m.drMax2 = 0, 0
	for i := range ps {
		if !finite(ps[i].Pos) {
			return false, fmt.Errorf("%w: particle %d at %v", dynamo.ErrInvalidState, i, ps[i].Pos)
		}
		d2, _ := geom.MinImage(m.ref[i], ps[i].Pos, m.box)
		dr := math.Sqrt(d2)
		if dr > m.drMax1 {
			m.drMax2 = m.drMax1
			m.drMax1 = dr
		} else if dr > m.drMax2 {
			m.drMax2 = dr
		}
	}
	return m.drMax1+m.drMax2 > m.skin, nil
}

func (m *skinMonitor) snapshot(ps []dynamo.Particle) {
	for i := range ps {
		m.ref[i] = ps[i].Pos
	}
	m.drMax1, m.drMax2 = 0, 0
	m.built = true
}

func finite(p r3.Vec) bool {
	return !math.IsNaN(p.X+p.Y+p.Z) && !math.IsInf(p.X+p.Y+p.Z, 0)
}

// checkPositions rejects any particle that cannot be binned.
func checkPositions(ps []dynamo.Particle) error {
	for i := range ps {
		if !finite(ps[i].Pos) {
			return fmt.Errorf("%w: particle %d at %v", dynamo.ErrInvalidState, i, ps[i].Pos)
		}
	}
	return nil
}
