package calib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() RequiredConfig {
	return RequiredConfig{
		FOVy:             1.0,
		MountAngle:       0.2,
		MountDistance:    0.2,
		Width:            640,
		Height:           480,
		Rotation:         0,
		LaserCount:       3,
		TranslationTable: []int{0, 1, 2},
	}
}

// R1: saving a Calibration and loading it yields identical ya, yb, x0, m.
func TestSaveLoadRoundTrip(t *testing.T) {
	rc := testConfig()
	c := &Calibration{
		Ya: 0,
		Yb: 480,
		X0: []float64{200, 300, 400},
		M:  []float64{-0.1, 0, 0.1},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	require.NoError(t, Save(path, c, rc))

	got, err := Load(path, rc)
	require.NoError(t, err)
	assert.Equal(t, c.Ya, got.Ya)
	assert.Equal(t, c.Yb, got.Yb)
	assert.Equal(t, c.X0, got.X0)
	assert.Equal(t, c.M, got.M)
}

func TestLoadRejectsConfigMismatch(t *testing.T) {
	rc := testConfig()
	c := &Calibration{Ya: 0, Yb: 480, X0: []float64{200}, M: []float64{0}}

	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	require.NoError(t, Save(path, c, rc))

	other := rc
	other.LaserCount = 4
	_, err := Load(path, other)
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestValidRejectsSteepSlope(t *testing.T) {
	c := &Calibration{Ya: 0, Yb: 480, X0: []float64{0}, M: []float64{0.9}}
	assert.False(t, c.Valid())
}

func TestValidRejectsInvertedRows(t *testing.T) {
	c := &Calibration{Ya: 480, Yb: 0, X0: []float64{0}, M: []float64{0}}
	assert.False(t, c.Valid())
}

func TestDigestStableAcrossCalls(t *testing.T) {
	rc := testConfig()
	assert.Equal(t, rc.Digest(), rc.Digest())

	changed := rc
	changed.LaserCount = 4
	assert.NotEqual(t, rc.Digest(), changed.Digest())
}
