// Package calibrator drives the laser array one beam at a time, captures
// differential images against a laser-off baseline, fits a line per beam,
// and emits a Calibration Record.
package calibrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kestrelharp/laserharp/internal/calib"
	"github.com/kestrelharp/laserharp/internal/camera"
	"github.com/kestrelharp/laserharp/internal/laserlink"
)

// ErrCoverageTooLow is the retryable gate failure when too few rows of a
// beam's differential image exceed the brightness threshold.
var ErrCoverageTooLow = errors.New("calibrator: coverage too low")

// ErrSlopeTooSteep is the retryable gate failure when a fitted line's
// slope exceeds the acceptance bound.
var ErrSlopeTooSteep = errors.New("calibrator: slope too steep")

// ErrCalibrationExhausted is returned when a beam fails its gates on every
// attempt up to Options.MaxAttemptsPerBeam.
var ErrCalibrationExhausted = errors.New("calibrator: exceeded max attempts for beam")

// LaserController is the subset of laserlink.Link the Calibrator needs to
// drive individual beams and restore array-wide state afterward.
type LaserController interface {
	SetOne(idx, brightness, fadeTenths int) error
	SetAll(brightness, fadeTenths int) error
}

// Options configures one calibration run.
type Options struct {
	FOVy          float64 // camera vertical field of view, radians
	MountAngle    float64 // camera mount angle, radians
	MountDistance float64 // camera-to-plane distance, meters
	Width, Height int
	Beams         int

	FullBrightness     int           // brightness driving the probed beam
	BrightnessThreshold float64      // fraction of peak a row must exceed to count (0..1)
	MinCoverage         float64      // minimum fraction of rows that must pass the threshold
	NBase               int          // frames combined into the laser-off baseline
	NBeam               int          // frames combined per beam capture
	CaptureInterval     time.Duration
	MaxAttemptsPerBeam  int
}

// DefaultOptions returns reasonable capture/gate parameters; FOVy,
// MountAngle, MountDistance, Width, Height, and Beams are always
// caller-supplied geometry and are left zero here.
func DefaultOptions() Options {
	return Options{
		FullBrightness:      127,
		BrightnessThreshold: 0.5,
		MinCoverage:         0.3,
		NBase:               8,
		NBeam:               8,
		CaptureInterval:     50 * time.Millisecond,
		MaxAttemptsPerBeam:  20,
	}
}

// Calibrate runs the full calibration sequence: it pushes the array's
// current brightness state onto stack, probes each beam in turn, and pops
// the stack to restore that state before returning (on both success and
// failure). restoreBrightness/restoreFadeTenths describe the state being
// pushed, since the Calibrator itself has no way to read back the array's
// live brightness.
func Calibrate(ctx context.Context, cam camera.Source, laser LaserController, stack *laserlink.BrightnessStack, restoreBrightness, restoreFadeTenths int, opt Options) (*calib.Calibration, error) {
	stack.Push(restoreBrightness, restoreFadeTenths)
	defer func() {
		if brightness, fade, ok := stack.Pop(); ok {
			laser.SetAll(brightness, fade)
		}
	}()

	ya, yb := staticGeometry(opt.FOVy, opt.MountAngle, opt.Height)

	if err := laser.SetAll(0, 0); err != nil {
		return nil, errors.Join(laserlink.ErrUnavailable, err)
	}
	base, err := captureMaxCombined(ctx, cam, opt.NBase, opt.CaptureInterval)
	if err != nil {
		return nil, err
	}

	x0 := make([]float64, opt.Beams)
	m := make([]float64, opt.Beams)

	for i := 0; i < opt.Beams; i++ {
		bx0, bm, err := calibrateBeam(ctx, cam, laser, base, i, opt)
		if err != nil {
			return nil, fmt.Errorf("calibrator: beam %d: %w", i, err)
		}
		x0[i] = bx0
		m[i] = bm
		if err := laser.SetOne(i, 0, 0); err != nil {
			return nil, errors.Join(laserlink.ErrUnavailable, err)
		}
	}

	c := &calib.Calibration{Ya: ya, Yb: yb, X0: x0, M: m}
	if !c.Valid() {
		return nil, fmt.Errorf("calibrator: fitted calibration failed validation")
	}
	return c, nil
}

// staticGeometry pins the 0-degree and 90-degree elevation lines to pixel
// rows for the given camera field of view, mount angle, and frame height.
func staticGeometry(fovY, mountAngle float64, height int) (ya, yb float64) {
	base := math.Pi/2 - mountAngle - fovY/2
	ya = (-base / fovY) * float64(height)
	yb = ((math.Pi/2 - base) / fovY) * float64(height)
	return ya, yb
}

func calibrateBeam(ctx context.Context, cam camera.Source, laser LaserController, base *camera.Frame, beam int, opt Options) (x0, m float64, err error) {
	if err := laser.SetAll(0, 0); err != nil {
		return 0, 0, errors.Join(laserlink.ErrUnavailable, err)
	}
	if err := laser.SetOne(beam, opt.FullBrightness, 0); err != nil {
		return 0, 0, errors.Join(laserlink.ErrUnavailable, err)
	}

	var lastGateErr error
	for attempt := 0; attempt < opt.MaxAttemptsPerBeam; attempt++ {
		captured, err := captureMaxCombined(ctx, cam, opt.NBeam, opt.CaptureInterval)
		if err != nil {
			return 0, 0, err
		}
		diff := subtractClamped(captured, base)

		rows, cols, peak := rowArgmax(diff)
		if peak == 0 {
			lastGateErr = ErrCoverageTooLow
			continue
		}

		weights := make([]float64, len(rows))
		covered := 0
		for row := range weights {
			if float64(cols[row].value) > opt.BrightnessThreshold*float64(peak) {
				weights[row] = 1
				covered++
			}
		}
		if float64(covered)/float64(len(rows)) < opt.MinCoverage {
			lastGateErr = ErrCoverageTooLow
			continue
		}

		fitM, fitX0 := weightedLineFit(rows, cols, weights)
		if fitM > 0.8 || fitM < -0.8 {
			lastGateErr = ErrSlopeTooSteep
			continue
		}

		return fitX0, fitM, nil
	}

	if lastGateErr == nil {
		lastGateErr = ErrCalibrationExhausted
	}
	return 0, 0, errors.Join(ErrCalibrationExhausted, lastGateErr)
}

func captureMaxCombined(ctx context.Context, cam camera.Source, count int, interval time.Duration) (*camera.Frame, error) {
	var combined *camera.Frame
	for n := 0; n < count; n++ {
		f, err := cam.Capture(ctx)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			combined = &camera.Frame{Width: f.Width, Height: f.Height, Pix: append([]byte(nil), f.Pix...)}
		} else {
			for i := range combined.Pix {
				if f.Pix[i] > combined.Pix[i] {
					combined.Pix[i] = f.Pix[i]
				}
			}
		}
		if n < count-1 && interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return combined, nil
}

func subtractClamped(a, b *camera.Frame) *camera.Frame {
	out := &camera.Frame{Width: a.Width, Height: a.Height, Pix: make([]byte, len(a.Pix))}
	for i := range a.Pix {
		if a.Pix[i] > b.Pix[i] {
			out.Pix[i] = a.Pix[i] - b.Pix[i]
		}
	}
	return out
}

type colValue struct {
	col   int
	value byte
}

// rowArgmax finds, for every row of frame, the column of maximum
// brightness and that value, plus the peak value seen across all rows.
func rowArgmax(frame *camera.Frame) (rows []int, cols []colValue, peak byte) {
	rows = make([]int, frame.Height)
	cols = make([]colValue, frame.Height)
	for y := 0; y < frame.Height; y++ {
		rows[y] = y
		bestCol := 0
		bestVal := byte(0)
		for x := 0; x < frame.Width; x++ {
			v := frame.Pix[y*frame.Width+x]
			if v > bestVal {
				bestVal = v
				bestCol = x
			}
		}
		cols[y] = colValue{col: bestCol, value: bestVal}
		if bestVal > peak {
			peak = bestVal
		}
	}
	return rows, cols, peak
}
