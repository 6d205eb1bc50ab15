package compute

import (
	"fmt"
	"runtime"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/san-kum/mdsim/internal/potential"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// pairKernel holds the per-evaluation constants of a traversal.
type pairKernel struct {
	ps      []dynamo.Particle
	pot     potential.Potential
	box     geom.Box
	params  []float64
	cutoff  float64
	invMass float64
}

func newPairKernel(sys *dynamo.System) pairKernel {
	return pairKernel{
		ps:      sys.Particles,
		pot:     sys.Potential(),
		box:     sys.Box(),
		params:  sys.Params(),
		cutoff:  sys.Cutoff(),
		invMass: 1.0 / sys.Mass(),
	}
}

// add evaluates the pair (a, b) and accumulates +F/m on a and -F/m on b,
// F being the force on b exerted by a.
func (k *pairKernel) add(a, b int, buf *accum) error {
	u, f, err := k.pot.Evaluate(k.ps[a].Pos, k.ps[b].Pos, k.box, k.params, k.cutoff)
	if err != nil {
		return fmt.Errorf("pair (%d, %d): %w", a, b, err)
	}
	f = r3.Scale(k.invMass, f)
	buf.forces[a] = r3.Add(buf.forces[a], f)
	buf.forces[b] = r3.Sub(buf.forces[b], f)
	buf.energy += u
	return nil
}

// partitioned runs body over [0, units) in contiguous chunks and reduces the
// worker buffers in chunk order.
type partitioned struct {
	workers int
	pool    *accumPool
}

func newPartitioned(workers int) partitioned {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return partitioned{workers: workers, pool: newAccumPool(0)}
}

func (p *partitioned) run(sys *dynamo.System, units int, body func(lo, hi int, buf *accum) error) (float64, error) {
	n := len(sys.Particles)
	p.pool.resize(n)

	chunks := p.workers
	if units < chunks {
		chunks = units
	}
	if chunks < 1 {
		chunks = 1
	}
	size := (units + chunks - 1) / chunks

	bufs := make([]*accum, chunks)
	var g errgroup.Group
	for w := 0; w < chunks; w++ {
		lo := w * size
		hi := min(lo+size, units)
		buf := p.pool.Get()
		bufs[w] = buf
		if lo >= hi {
			continue
		}
		g.Go(func() error { return body(lo, hi, buf) })
	}

	err := g.Wait()
	defer func() {
		for _, b := range bufs {
			p.pool.Put(b)
		}
	}()
	if err != nil {
		return 0, err
	}

	energy := 0.0
	for i := 0; i < n; i++ {
		var sum r3.Vec
		for _, b := range bufs {
			sum = r3.Add(sum, b.forces[i])
		}
		sys.Particles[i].Acc = r3.Scale(-1, sum)
	}
	for _, b := range bufs {
		energy += b.energy
	}

	sys.SetPotentialEnergy(energy)
	return energy, nil
}
