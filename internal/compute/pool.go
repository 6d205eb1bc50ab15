package compute

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// accum is one worker's private force buffer and energy sum.
type accum struct {
	forces []r3.Vec
	energy float64
}

type accumPool struct {
	pool sync.Pool
	size int
}

func newAccumPool(size int) *accumPool {
	p := &accumPool{size: size}
	p.pool.New = func() interface{} {
		return &accum{forces: make([]r3.Vec, p.size)}
	}
	return p
}

func (p *accumPool) Get() *accum {
	a := p.pool.Get().(*accum)
	if len(a.forces) != p.size {
		a.forces = make([]r3.Vec, p.size)
	}
	return a
}

func (p *accumPool) Put(a *accum) {
	if len(a.forces) != p.size {
		return
	}
	for i := range a.forces {
		a.forces[i] = r3.Vec{}
	}
	a.energy = 0
	p.pool.Put(a)
}

// resize changes the buffer length handed out by later Gets.
func (p *accumPool) resize(size int) {
	if size != p.size {
		p.size = size
	}
}
