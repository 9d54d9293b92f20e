// Package calib defines the Calibration Record: the
// per-beam affine line parameters and elevation-pinning rows that convert
// camera pixels into metric beam length.
package calib

import (
	"errors"
	"hash/fnv"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigMismatch is returned when a persisted Calibration's
// required-config digest doesn't match the live hardware configuration,
// so a fresh calibration is demanded.
var ErrConfigMismatch = errors.New("calib: persisted calibration does not match current configuration")

// Calibration is the fixed-size per-instance geometric calibration record.
type Calibration struct {
	Ya, Yb float64   // pixel rows pinning the 0° / 90° elevation lines
	X0     []float64 // per-beam line intercept
	M      []float64 // per-beam line slope: x = x0 + m*y
}

// Valid checks the invariants a usable Calibration must satisfy:
// ya < yb and |m| <= 0.8 for every beam (the slope-gate bound applied at
// acceptance time by the Calibrator, re-checked here for any Calibration
// regardless of source).
func (c *Calibration) Valid() bool {
	if c.Ya >= c.Yb {
		return false
	}
	if len(c.X0) != len(c.M) {
		return false
	}
	for _, m := range c.M {
		if m > 0.8 || m < -0.8 {
			return false
		}
	}
	return true
}

// RequiredConfig is the digest input: the hardware/geometry parameters a
// persisted Calibration must match before it is trusted.
type RequiredConfig struct {
	FOVy             float64
	MountAngle       float64
	MountDistance    float64
	Width, Height    int
	Rotation         int
	LaserCount       int
	TranslationTable []int
}

// Digest computes a deterministic FNV-1a hash over the canonical encoding
// of a RequiredConfig.
func (rc RequiredConfig) Digest() uint64 {
	h := fnv.New64a()
	writeFloat := func(f float64) { writeUint64(h, mathFloat64bits(f)) }
	writeFloat(rc.FOVy)
	writeFloat(rc.MountAngle)
	writeFloat(rc.MountDistance)
	writeInt(h, rc.Width)
	writeInt(h, rc.Height)
	writeInt(h, rc.Rotation)
	writeInt(h, rc.LaserCount)
	for _, t := range rc.TranslationTable {
		writeInt(h, t)
	}
	return h.Sum64()
}

// document is the on-disk shape: a Calibration plus the digest of the
// configuration it was fitted against.
type document struct {
	Digest uint64    `yaml:"digest"`
	Ya     float64   `yaml:"ya"`
	Yb     float64   `yaml:"yb"`
	X0     []float64 `yaml:"x0"`
	M      []float64 `yaml:"m"`
}

// Save persists c to path alongside rc's digest.
func Save(path string, c *Calibration, rc RequiredConfig) error {
	d := document{Digest: rc.Digest(), Ya: c.Ya, Yb: c.Yb, X0: c.X0, M: c.M}
	raw, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Load reads a Calibration from path and validates it was fitted against
// rc; a digest mismatch returns ErrConfigMismatch.
func Load(path string, rc RequiredConfig) (*Calibration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d document
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if d.Digest != rc.Digest() {
		return nil, ErrConfigMismatch
	}
	c := &Calibration{Ya: d.Ya, Yb: d.Yb, X0: d.X0, M: d.M}
	if !c.Valid() {
		return nil, ErrConfigMismatch
	}
	return c, nil
}
