// Package grid builds the beam sampling grid: a
// precomputed per-row metric lookup table and per-beam sample columns
// derived from a Calibration, held immutable while that Calibration is in
// force.
package grid

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/kestrelharp/laserharp/internal/calib"
)

// Grid is immutable once built; FramePipeline reads it every frame and
// only a new calibration ever replaces it.
type Grid struct {
	YMin, YMax int // inclusive/exclusive row range: [max(0,ya), min(H,yb))
	YMetric    []float64 // y_metric[y - YMin]
	XSample    [][]int32 // XSample[y - YMin][beam]

	beams int
}

// Beams reports N, the number of lasers this grid was built for.
func (g *Grid) Beams() int { return g.beams }

// Build derives a Grid from c for a W x H frame:
//
//	y_metric[y] = tan(clamp((y-ya)/(yb-ya) * pi/2, 0, pi/2-eps)) * mountDistance
//	x_sample[y,i] = clamp(round(x0[i] + m[i]*y), 0, W-1)
func Build(c *calib.Calibration, width, height int, mountDistance float64) *Grid {
	const eps = 1e-6

	yMin := int(math.Max(0, c.Ya))
	yMax := int(math.Min(float64(height), c.Yb))
	if yMax < yMin {
		yMax = yMin
	}
	n := len(c.X0)

	g := &Grid{
		YMin:    yMin,
		YMax:    yMax,
		YMetric: make([]float64, yMax-yMin),
		XSample: make([][]int32, yMax-yMin),
		beams:   n,
	}

	span := c.Yb - c.Ya
	for y := yMin; y < yMax; y++ {
		idx := y - yMin
		frac := (float64(y) - c.Ya) / span * (math.Pi / 2)
		frac = clamp(frac, 0, math.Pi/2-eps)
		g.YMetric[idx] = math.Tan(frac) * mountDistance

		bounds := r2.Rect{
			X: r1.Interval{Lo: 0, Hi: float64(width - 1)},
			Y: r1.Interval{Lo: float64(y), Hi: float64(y)},
		}
		row := make([]int32, n)
		for i := 0; i < n; i++ {
			p := r2.Point{X: math.Round(c.X0[i] + c.M[i]*float64(y)), Y: float64(y)}
			row[i] = int32(bounds.ClampPoint(p).X)
		}
		g.XSample[idx] = row
	}

	return g
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
