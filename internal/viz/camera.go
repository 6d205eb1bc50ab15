package viz

import (
	"math"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera looks at the box center from a fixed distance. Yaw turns about the
// vertical axis, Pitch about the horizontal one.
type Camera struct {
	Yaw, Pitch float64
	Zoom       float64
	Distance   float64
}

func NewCamera() *Camera {
	return &Camera{Yaw: 0.6, Pitch: 0.4, Zoom: 1, Distance: 3}
}

func (c *Camera) Rotate(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, c.Pitch+dpitch))
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(8, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.2, c.Zoom/1.2) }

func (c *Camera) rotate(p r3.Vec) r3.Vec {
	cy, sy := math.Cos(c.Yaw), math.Sin(c.Yaw)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cp, sp := math.Cos(c.Pitch), math.Sin(c.Pitch)
	p.Y, p.Z = p.Y*cp-p.Z*sp, p.Y*sp+p.Z*cp
	return p
}

// Project maps p, given in units of the box's largest side and centered on
// the origin, onto a w x h dot grid. It returns the screen position, the
// depth and whether the point lands on screen.
func (c *Camera) Project(p r3.Vec, w, h int) (int, int, float64, bool) {
	q := c.rotate(p)
	if q.Z >= c.Distance {
		return 0, 0, 0, false
	}
	persp := c.Distance / (c.Distance - q.Z)
	scale := float64(min(w, h)) * 0.5 * c.Zoom * persp
	x := int(q.X*scale) + w/2
	y := int(-q.Y*scale) + h/2
	return x, y, q.Z, x >= 0 && x < w && y >= 0 && y < h
}

// normalize moves a wrapped position into the unit frame Project expects.
func normalize(p r3.Vec, box geom.Box) r3.Vec {
	side := math.Max(box.X, math.Max(box.Y, box.Z))
	center := r3.Scale(0.5, box.Vec())
	return r3.Scale(1/side, r3.Sub(geom.Wrap(p, box), center))
}

var boxCorners = [8]r3.Vec{
	{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
	{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// DrawSystem clears c and draws the periodic box outline and every particle
// at its wrapped position.
func DrawSystem(c *Canvas, cam *Camera, sys *dynamo.System) {
	c.Clear()
	w, h := c.Size()
	box := sys.Box()
	side := math.Max(box.X, math.Max(box.Y, box.Z))
	center := r3.Scale(0.5, box.Vec())

	for _, e := range boxEdges {
		a := cornerAt(boxCorners[e[0]], box, center, side)
		b := cornerAt(boxCorners[e[1]], box, center, side)
		x0, y0, _, ok0 := cam.Project(a, w, h)
		x1, y1, _, ok1 := cam.Project(b, w, h)
		if ok0 || ok1 {
			c.Line(x0, y0, x1, y1)
		}
	}

	for _, p := range sys.Particles {
		if x, y, _, ok := cam.Project(normalize(p.Pos, box), w, h); ok {
			c.Set(x, y)
		}
	}
}

func cornerAt(unit r3.Vec, box geom.Box, center r3.Vec, side float64) r3.Vec {
	p := r3.Vec{X: unit.X * box.X, Y: unit.Y * box.Y, Z: unit.Z * box.Z}
	return r3.Scale(1/side, r3.Sub(p, center))
}
