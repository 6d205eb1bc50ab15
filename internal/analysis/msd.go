package analysis

import (
	"errors"
	"fmt"

	"github.com/san-kum/mdsim/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoFrames      = errors.New("analysis: trajectory has no frames")
	ErrFrameSize     = errors.New("analysis: frames differ in particle count")
	ErrTooFewSamples = errors.New("analysis: too few samples to fit")
)

// MSD returns, for every frame, the mean squared displacement of all
// particles from their positions in frame 0. Positions must be unwrapped.
func MSD(frames [][]r3.Vec) ([]float64, error) {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return nil, ErrNoFrames
	}
	n := len(frames[0])
	out := make([]float64, len(frames))
	for f, frame := range frames {
		if len(frame) != n {
			return nil, fmt.Errorf("%w: frame %d has %d, frame 0 has %d", ErrFrameSize, f, len(frame), n)
		}
		sum := 0.0
		for i, p := range frame {
			sum += r3.Norm2(r3.Sub(p, frames[0][i]))
		}
		out[f] = sum / float64(n)
	}
	return out, nil
}

// Unwrap rebuilds continuous paths from positions that were wrapped into the
// box, assuming no particle moves more than half a box between frames.
// The input is not modified.
func Unwrap(frames [][]r3.Vec, box geom.Box) ([][]r3.Vec, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	out := make([][]r3.Vec, len(frames))
	out[0] = append([]r3.Vec(nil), frames[0]...)
	for f := 1; f < len(frames); f++ {
		if len(frames[f]) != len(frames[0]) {
			return nil, fmt.Errorf("%w: frame %d", ErrFrameSize, f)
		}
		out[f] = make([]r3.Vec, len(frames[f]))
		for i := range frames[f] {
			_, d := geom.MinImage(frames[f-1][i], frames[f][i], box)
			out[f][i] = r3.Add(out[f-1][i], d)
		}
	}
	return out, nil
}

// Fit is a least-squares line through the tail of an MSD curve.
type Fit struct {
	D         float64 // slope / 6
	Slope     float64
	Intercept float64
	RSquared  float64
	Points    int
}

// Diffusion fits msd against times, ignoring the first skip fraction of the
// samples, which are ballistic rather than diffusive.
func Diffusion(times, msd []float64, skip float64) (Fit, error) {
	if len(times) != len(msd) {
		return Fit{}, fmt.Errorf("%w: %d times, %d values", ErrFrameSize, len(times), len(msd))
	}
	if skip < 0 || skip >= 1 {
		skip = 0
	}
	from := int(skip * float64(len(times)))
	xs, ys := times[from:], msd[from:]
	if len(xs) < 2 {
		return Fit{}, fmt.Errorf("%w: %d points after skipping %d", ErrTooFewSamples, len(xs), from)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Fit{
		D:         beta / 6.0,
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(xs, ys, nil, alpha, beta),
		Points:    len(xs),
	}, nil
}
