// Package pipeline wires camera frames through detection, filtering, and
// orchestration into outbound MIDI, drains the ingress MIDI transport into
// the orchestrator, and coordinates the transient exclusive calibration
// task with the frame producer.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kestrelharp/laserharp/internal/camera"
	"github.com/kestrelharp/laserharp/internal/detect"
	"github.com/kestrelharp/laserharp/internal/filterbank"
	"github.com/kestrelharp/laserharp/internal/grid"
	"github.com/kestrelharp/laserharp/internal/midiwire"
	"github.com/kestrelharp/laserharp/internal/orchestrator"
	"github.com/kestrelharp/laserharp/internal/settings"
)

// DefaultPreblur is the Gaussian pre-blur kernel size applied before
// per-beam sampling. It is not an operator-settable parameter.
const DefaultPreblur = 3

// MIDIWriter is the outbound side of a MIDI transport (hardware UART or
// RTP-MIDI session).
type MIDIWriter interface {
	Write(data []byte) error
}

// MIDIReader is the inbound side of a MIDI transport, satisfied by
// *serialport.Port.
type MIDIReader interface {
	Read(buf []byte, deadline time.Duration) (int, error)
}

// Runtime holds the shared state the three pipeline tasks coordinate
// over: the live Grid/Bank pair (replaced atomically by a successful
// calibration), the calibration-exclusive suspension flag, and the
// Orchestrator all three tasks ultimately feed or drain.
type Runtime struct {
	Camera       camera.Source
	MIDIEgress   MIDIWriter
	Orchestrator *orchestrator.Orchestrator
	Settings     *settings.Store

	grid   atomic.Pointer[grid.Grid]
	filter atomic.Pointer[filterbank.Bank]

	suspended atomic.Bool
}

// NewRuntime constructs a Runtime with no calibration loaded yet; the
// frame producer parks until SetCalibration is called.
func NewRuntime(cam camera.Source, midiEgress MIDIWriter, orch *orchestrator.Orchestrator, s *settings.Store) *Runtime {
	return &Runtime{Camera: cam, MIDIEgress: midiEgress, Orchestrator: orch, Settings: s}
}

// SetCalibration installs a new Grid/Bank pair atomically, as the result
// of a successful calibration.
func (r *Runtime) SetCalibration(g *grid.Grid, bank *filterbank.Bank) {
	r.grid.Store(g)
	r.filter.Store(bank)
}

// BeginCalibration suspends the frame producer and returns a function the
// caller must invoke (typically via defer) to resume it once calibration
// finishes or aborts.
func (r *Runtime) BeginCalibration() (resume func()) {
	r.suspended.Store(true)
	return func() { r.suspended.Store(false) }
}

// RunFramePipeline drives camera.Capture -> detect -> filter -> orchestrate
// at the camera's frame rate until ctx is cancelled or a fatal error
// occurs. Camera/detector errors are treated as fatal, matching the
// CameraUnavailable error kind; the caller decides whether to retry by
// reconstructing the Runtime with a freshly reopened camera.
func (r *Runtime) RunFramePipeline(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.suspended.Load() {
			if !sleep(ctx, 10*time.Millisecond) {
				return nil
			}
			continue
		}
		g := r.grid.Load()
		bank := r.filter.Load()
		if g == nil || bank == nil {
			if !sleep(ctx, 50*time.Millisecond) {
				return nil
			}
			continue
		}

		frame, err := r.Camera.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		raw, err := detect.Detect(frame, g, detect.Options{
			Preblur:   DefaultPreblur,
			Threshold: r.Settings.Threshold(),
			LengthMin: r.Settings.LengthMin(),
			LengthMax: r.Settings.LengthMax(),
		})
		if err != nil {
			return err
		}

		sample := bank.Step(raw)
		r.Orchestrator.MaybeRebuildNoteTable()
		out := r.Orchestrator.Process(sample)
		if err := r.emit(out.MIDI); err != nil {
			return err
		}
	}
}

// Shutdown emits a final all-notes-off/pitch-bend-reset, for the
// cooperative stop path.
func (r *Runtime) Shutdown() error {
	out := r.Orchestrator.Stop()
	return r.emit(out.MIDI)
}

func (r *Runtime) emit(messages []midiwire.Message) error {
	for _, m := range messages {
		raw := m.Encode()
		if err := r.MIDIEgress.Write(raw[:]); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
