package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrTrajectoryFormat = errors.New("storage: malformed xyz trajectory")

// TrajectoryWriter appends XYZ frames:
//
//	N
//	Snapshot #k
//	A	x	y	z
//	...
//
// Positions are written unwrapped, as the integrators keep them.
type TrajectoryWriter struct {
	w     *bufio.Writer
	frame int
}

func NewTrajectoryWriter(w io.Writer) *TrajectoryWriter {
	return &TrajectoryWriter{w: bufio.NewWriter(w)}
}

func (t *TrajectoryWriter) WriteFrame(sys *dynamo.System) error {
	fmt.Fprintf(t.w, "%d\nSnapshot #%d\n", len(sys.Particles), t.frame)
	for _, p := range sys.Particles {
		fmt.Fprintf(t.w, "A\t%g\t%g\t%g\n", p.Pos.X, p.Pos.Y, p.Pos.Z)
	}
	t.frame++
	return t.w.Flush()
}

// OnStep lets the writer observe a run, one frame per report step.
func (t *TrajectoryWriter) OnStep(sys *dynamo.System, _ sim.Sample) error {
	return t.WriteFrame(sys)
}

func (t *TrajectoryWriter) Frames() int { return t.frame }

// ReadTrajectory parses every frame of an XYZ stream.
func ReadTrajectory(r io.Reader) ([][]r3.Vec, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			if s := strings.TrimSpace(sc.Text()); s != "" {
				return s, true
			}
		}
		return "", false
	}

	var frames [][]r3.Vec
	for {
		head, ok := next()
		if !ok {
			break
		}
		n, err := strconv.Atoi(head)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: line %d: bad atom count %q", ErrTrajectoryFormat, line, head)
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: frame %d: missing comment line", ErrTrajectoryFormat, len(frames))
		}
		line++

		frame := make([]r3.Vec, n)
		for i := range frame {
			text, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: frame %d: expected %d atoms, got %d", ErrTrajectoryFormat, len(frames), n, i)
			}
			fields := strings.Fields(text)
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: %q", ErrTrajectoryFormat, line, text)
			}
			var xyz [3]float64
			for k := range xyz {
				v, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrTrajectoryFormat, line, err)
				}
				xyz[k] = v
			}
			frame[i] = r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		}
		frames = append(frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
