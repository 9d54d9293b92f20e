package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelharp/laserharp/internal/calib"
)

func TestBuildRowRange(t *testing.T) {
	c := &calib.Calibration{Ya: 10, Yb: 230, X0: []float64{100, 200}, M: []float64{0, 0}}
	g := Build(c, 320, 240, 1.0)

	assert.Equal(t, 10, g.YMin)
	assert.Equal(t, 230, g.YMax)
	assert.Len(t, g.YMetric, 220)
	assert.Len(t, g.XSample, 220)
	assert.Equal(t, 2, g.Beams())
}

func TestBuildClampsInvertedRange(t *testing.T) {
	c := &calib.Calibration{Ya: 200, Yb: 50, X0: []float64{0}, M: []float64{0}}
	g := Build(c, 320, 240, 1.0)

	assert.Equal(t, g.YMin, g.YMax)
	assert.Empty(t, g.YMetric)
}

func TestBuildYMetricMonotonicallyIncreasesTowardFarRow(t *testing.T) {
	c := &calib.Calibration{Ya: 0, Yb: 240, X0: []float64{0}, M: []float64{0}}
	g := Build(c, 320, 240, 1.0)
	require.True(t, len(g.YMetric) > 1)

	for i := 1; i < len(g.YMetric); i++ {
		assert.GreaterOrEqual(t, g.YMetric[i], g.YMetric[i-1])
	}
	assert.False(t, math.IsInf(g.YMetric[len(g.YMetric)-1], 1))
}

func TestBuildClampsXSampleToFrameBounds(t *testing.T) {
	c := &calib.Calibration{Ya: 0, Yb: 100, X0: []float64{-50, 1000}, M: []float64{0, 0}}
	g := Build(c, 320, 240, 1.0)

	row := g.XSample[0]
	assert.Equal(t, int32(0), row[0])
	assert.Equal(t, int32(319), row[1])
}

func TestBuildSlopeShiftsSampleColumnByRow(t *testing.T) {
	c := &calib.Calibration{Ya: 0, Yb: 100, X0: []float64{100}, M: []float64{1}}
	g := Build(c, 320, 240, 1.0)

	x0 := g.XSample[0][0]
	x10 := g.XSample[10][0]
	assert.Equal(t, x0+10, x10)
}
