package celllist

import (
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func cube(l float64) geom.Box { return geom.Box{X: l, Y: l, Z: l} }

func randomParticles(n int, box geom.Box, seed int64) []dynamo.Particle {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]dynamo.Particle, n)
	for i := range ps {
		ps[i].Pos = r3.Vec{X: rng.Float64() * box.X, Y: rng.Float64() * box.Y, Z: rng.Float64() * box.Z}
	}
	return ps
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name   string
		box    geom.Box
		rc, rs float64
		want   error
	}{
		{"negative cutoff", cube(12), -1, 0, ErrNegativeCutoff},
		{"negative skin", cube(12), 2.5, -0.1, ErrNegativeSkin},
		{"negative cutoff wins over bad box", geom.Box{}, -1, -1, ErrNegativeCutoff},
		{"invalid box", geom.Box{X: 12, Y: 0, Z: 12}, 2.5, 0, geom.ErrInvalidBox},
		{"zero reach", cube(12), 0, 0, ErrZeroReach},
		{"narrow cells", cube(2.7), 0.5, 0.3, ErrCellWidth},
		{"two cells", cube(6), 2.5, 0, ErrTooFewCells},
		{"box smaller than reach", cube(2), 2.5, 0, ErrTooFewCells},
		{"too many cells", cube(1e4), 2, 0, ErrAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.box, tt.rc, tt.rs)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, c)
		})
	}
}

func TestGridGeometry(t *testing.T) {
	c, err := New(cube(12), 2.5, 0)
	require.NoError(t, err)

	// floor(12 / 2.525) = 4
	assert.Equal(t, [3]int{4, 4, 4}, c.Dims())
	assert.Equal(t, 64, c.NumCells())
	assert.InDelta(t, 3.0, c.CellWidth().X, 1e-12)
	assert.Greater(t, c.CellWidth().X, 2.5)
}

func TestNeighborTable(t *testing.T) {
	c, err := New(geom.Box{X: 5, Y: 7, Z: 9}, 1, 0)
	require.NoError(t, err)
	dims := c.Dims()
	require.Equal(t, [3]int{4, 6, 8}, dims)

	wrapDist := func(a, b, n int) int {
		d := (a - b + n) % n
		if n-d < d {
			d = n - d
		}
		return d
	}

	for id := 0; id < c.NumCells(); id++ {
		x, y, z := c.Coords(id)
		require.Equal(t, id, c.linear(x, y, z), "decode/encode round trip for %d", id)

		nb := c.Neighbors(id)
		require.Len(t, nb, 27)
		seen := make(map[int]bool, 27)
		for _, other := range nb {
			assert.False(t, seen[other], "cell %d lists %d twice", id, other)
			seen[other] = true

			ox, oy, oz := c.Coords(other)
			assert.LessOrEqual(t, wrapDist(x, ox, dims[0]), 1)
			assert.LessOrEqual(t, wrapDist(y, oy, dims[1]), 1)
			assert.LessOrEqual(t, wrapDist(z, oz, dims[2]), 1)
		}
		assert.True(t, seen[id], "cell %d must include itself", id)
	}
}

func TestCellIndex(t *testing.T) {
	c, err := New(cube(12), 2.5, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, c.CellIndex(r3.Vec{}))
	assert.Equal(t, 1, c.CellIndex(r3.Vec{X: 3.5}))
	assert.Equal(t, 4, c.CellIndex(r3.Vec{Y: 3.5}))
	assert.Equal(t, 16, c.CellIndex(r3.Vec{Z: 3.5}))
	assert.Equal(t, 63, c.CellIndex(r3.Vec{X: 11.999, Y: 11.999, Z: 11.999}))
	assert.Equal(t, 63, c.CellIndex(r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}), "negative coordinates wrap")
	assert.Equal(t, c.CellIndex(r3.Vec{X: 1, Y: 2, Z: 3}), c.CellIndex(r3.Vec{X: 13, Y: -10, Z: 27}))
}

func TestRebuildChains(t *testing.T) {
	box := cube(15)
	c, err := New(box, 2.5, 0.4)
	require.NoError(t, err)

	ps := randomParticles(500, box, 11)
	rebuilt, err := c.Update(ps)
	require.NoError(t, err)
	require.True(t, rebuilt, "first Update must build")
	assert.Equal(t, 1, c.Builds())

	visits := make([]int, len(ps))
	for cell, h := range c.Head() {
		for i := h; i != -1; i = c.Next()[i] {
			visits[i]++
			assert.Equal(t, cell, c.CellIndex(ps[i].Pos), "particle %d chained in wrong cell", i)
		}
	}
	for i, v := range visits {
		assert.Equal(t, 1, v, "particle %d visited %d times", i, v)
	}
}

func TestRebuildCompleteness(t *testing.T) {
	box := geom.Box{X: 13, Y: 11, Z: 17}
	rc, rs := 2.5, 0.3
	c, err := New(box, rc, rs)
	require.NoError(t, err)

	ps := randomParticles(600, box, 5)
	require.NoError(t, c.Rebuild(ps))

	reach2 := (rc + rs) * (rc + rs)
	for i := range ps {
		ci := c.CellIndex(ps[i].Pos)
		for j := i + 1; j < len(ps); j++ {
			d2, _ := geom.MinImage(ps[i].Pos, ps[j].Pos, box)
			if d2 > reach2 {
				continue
			}
			cj := c.CellIndex(ps[j].Pos)
			assert.Contains(t, c.Neighbors(ci), cj, "pair (%d,%d) at r2=%g not adjacent", i, j, d2)
		}
	}
}

func TestUpdatePolicy(t *testing.T) {
	box := cube(12)
	c, err := New(box, 2.5, 0.5)
	require.NoError(t, err)

	ps := randomParticles(50, box, 2)
	_, err = c.Update(ps)
	require.NoError(t, err)

	// 0.2 + 0.2 < 0.5: skip
	ps[3].Pos = r3.Add(ps[3].Pos, r3.Vec{X: 0.2})
	ps[7].Pos = r3.Add(ps[7].Pos, r3.Vec{Y: -0.2})
	rebuilt, err := c.Update(ps)
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Equal(t, 1, c.Builds())
	d1, d2 := c.Displacements()
	assert.InDelta(t, 0.2, d1, 1e-9)
	assert.InDelta(t, 0.2, d2, 1e-9)

	// 0.35 + 0.2 > 0.5: rebuild, even though no single particle moved a full skin
	ps[3].Pos = r3.Add(ps[3].Pos, r3.Vec{X: 0.15})
	rebuilt, err = c.Update(ps)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.Equal(t, 2, c.Builds())

	// displacements are measured from the new snapshot
	rebuilt, err = c.Update(ps)
	require.NoError(t, err)
	assert.False(t, rebuilt)
}

func TestUpdateAcrossBoundary(t *testing.T) {
	box := cube(12)
	c, err := New(box, 2.5, 0.5)
	require.NoError(t, err)

	ps := []dynamo.Particle{{Pos: r3.Vec{X: 11.9}}, {Pos: r3.Vec{X: 5}}}
	_, err = c.Update(ps)
	require.NoError(t, err)

	// unwrapped drift across the face is a 0.2 move, not an 11.8 one
	ps[0].Pos.X = 12.1
	rebuilt, err := c.Update(ps)
	require.NoError(t, err)
	assert.False(t, rebuilt)
}

func TestZeroSkinRebuildsOnAnyMove(t *testing.T) {
	box := cube(12)
	c, err := New(box, 2.5, 0)
	require.NoError(t, err)

	ps := randomParticles(10, box, 9)
	_, err = c.Update(ps)
	require.NoError(t, err)

	rebuilt, err := c.Update(ps)
	require.NoError(t, err)
	assert.False(t, rebuilt, "no motion, no rebuild")

	ps[0].Pos.Z += 1e-9
	rebuilt, err = c.Update(ps)
	require.NoError(t, err)
	assert.True(t, rebuilt)
}

func TestParticleCountChanged(t *testing.T) {
	box := cube(12)
	c, err := New(box, 2.5, 0.3)
	require.NoError(t, err)

	ps := randomParticles(20, box, 1)
	_, err = c.Update(ps)
	require.NoError(t, err)

	_, err = c.Update(ps[:19])
	assert.ErrorIs(t, err, dynamo.ErrParticleCountChanged)
	assert.ErrorIs(t, c.Rebuild(append(ps, dynamo.Particle{})), dynamo.ErrParticleCountChanged)
	assert.Equal(t, 1, c.Builds())
}

func TestRebuildRejectsNonFinitePositions(t *testing.T) {
	box := cube(12)
	for _, bad := range []r3.Vec{{X: math.Inf(1)}, {Y: math.NaN()}, {Z: math.Inf(-1)}} {
		c, err := New(box, 2.5, 0.3)
		require.NoError(t, err)
		ps := randomParticles(20, box, 3)
		_, err = c.Update(ps)
		require.NoError(t, err)
		head := append([]int(nil), c.Head()...)

		ps[0].Pos = bad
		ps[1].Pos = r3.Add(ps[1].Pos, r3.Vec{X: 1})
		_, err = c.Update(ps)
		assert.ErrorIs(t, err, dynamo.ErrInvalidState, "%v", bad)
		assert.ErrorIs(t, c.Rebuild(ps), dynamo.ErrInvalidState)
		assert.Equal(t, head, c.Head(), "failed rebuild keeps the old occupancy")
		assert.Equal(t, 1, c.Builds())
	}
}

func TestFirstBuildRejectsNonFinitePositions(t *testing.T) {
	box := cube(12)
	ps := randomParticles(5, box, 4)
	ps[2].Pos.X = math.NaN()

	c, err := New(box, 2.5, 0.3)
	require.NoError(t, err)
	_, err = c.Update(ps)
	assert.ErrorIs(t, err, dynamo.ErrInvalidState)

	n, err := NewNeighborList(box, 2.5, 0.3)
	require.NoError(t, err)
	_, err = n.Update(ps)
	assert.ErrorIs(t, err, dynamo.ErrInvalidState)
	assert.ErrorIs(t, n.Rebuild(ps), dynamo.ErrInvalidState)

	ps[2].Pos.X = 1
	rebuilt, err := c.Update(ps)
	require.NoError(t, err)
	assert.True(t, rebuilt, "a failed first build must not count as built")
	rebuilt, err = n.Update(ps)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.Equal(t, 1, n.Builds())
}
