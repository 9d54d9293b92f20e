// Package orchestrator turns filtered
// interception samples plus operator-settable scale/mode/key/octave into
// MIDI note-on/off and pitch-bend messages, handles the three logical
// ingress MIDI channels, and drives laser brightness feedback.
package orchestrator

import (
	"github.com/kestrelharp/laserharp/internal/settings"
)

// LaserController is the subset of laserlink.Link the Orchestrator needs
// to drive brightness feedback.
type LaserController interface {
	SetOne(idx, brightness, fadeTenths int) error
}

// diatonicMajor is the chromatic-pitch-class offset of each step of the
// major scale.
var diatonicMajor = [7]int{0, 2, 4, 5, 7, 9, 11}

// inverseDiatonic maps a chromatic pitch class to its nearest diatonic
// step below it.
var inverseDiatonic = [12]int{0, 0, 1, 1, 2, 3, 3, 4, 4, 5, 5, 6}

// Orchestrator owns the note lookup tables and per-frame MIDI/brightness
// state exclusively; it is driven by a single pipeline
// goroutine and never mutated concurrently.
type Orchestrator struct {
	n        int
	settings *settings.Store
	laser    LaserController

	noteOfLaser []int8    // laser index -> MIDI note, -1 if unbound
	laserOfNote [128]int8 // MIDI note -> laser index, -1 if unbound

	brightnessOverrideCache [128]int8
	emulateOverrideCache    [128]int8

	brightnessOverridePresent []bool
	brightnessOverrideValue   []int

	emulatePresent []bool
	emulateActive  []bool
	emulateLength  []float64

	velocityPrev [128]int
	pitchPrev    int

	lastBrightness []int // -1 sentinel: not yet sent
}

// New constructs an Orchestrator for n lasers. laser may be nil in tests
// that don't exercise brightness feedback.
func New(n int, s *settings.Store, laser LaserController) *Orchestrator {
	o := &Orchestrator{
		n:                         n,
		settings:                  s,
		laser:                     laser,
		brightnessOverridePresent: make([]bool, n),
		brightnessOverrideValue:   make([]int, n),
		emulatePresent:            make([]bool, n),
		emulateActive:             make([]bool, n),
		emulateLength:             make([]float64, n),
		lastBrightness:            make([]int, n),
	}
	for i := range o.lastBrightness {
		o.lastBrightness[i] = -1
	}
	for i := range o.laserOfNote {
		o.laserOfNote[i] = -1
		o.brightnessOverrideCache[i] = -1
		o.emulateOverrideCache[i] = -1
	}
	o.RebuildNoteTable()
	return o
}

// NoteOfLaser exposes the current laser->note mapping, primarily for P7's
// inverse-mapping property test.
func (o *Orchestrator) NoteOfLaser() []int8 {
	out := make([]int8, len(o.noteOfLaser))
	copy(out, o.noteOfLaser)
	return out
}

// LaserOfNote exposes the current note->laser mapping.
func (o *Orchestrator) LaserOfNote() [128]int8 {
	return o.laserOfNote
}

// RebuildNoteTable recomputes noteOfLaser/laserOfNote from the current
// key/mode/octave/flipped settings. The override caches are left intact,
// so a note-off arriving after the rebuild still resolves to the laser
// its note-on was bound to.
func (o *Orchestrator) RebuildNoteTable() {
	key := o.settings.Key()
	mode := o.settings.Mode()
	octave := o.settings.Octave()
	flipped := o.settings.Flipped()

	var scale [7]int
	for s := 0; s < 7; s++ {
		idx := ((s+7-inverseDiatonic[key])%7 + 7) % 7
		scale[s] = (diatonicMajor[idx] + key) % 12
	}

	noteOfLaser := make([]int8, o.n)
	for i := range noteOfLaser {
		noteOfLaser[i] = -1
	}
	var laserOfNote [128]int8
	for i := range laserOfNote {
		laserOfNote[i] = -1
	}

	for i := 0; i < o.n; i++ {
		step := i + mode
		octaveOff := step / 7
		s := step % 7
		note := (octave+octaveOff)*12 + scale[s]
		if note <= 0 || note > 127 {
			continue
		}
		j := i
		if flipped {
			j = o.n - 1 - i
		}
		noteOfLaser[j] = int8(note)
		laserOfNote[note] = int8(j)
	}

	o.noteOfLaser = noteOfLaser
	o.laserOfNote = laserOfNote
}

// MaybeRebuildNoteTable rebuilds the lookup tables if a setting that
// affects them changed since the last frame boundary (a
// setting change that affects the note table causes a rebuild at the next
// frame boundary rather than mid-step"). Reports whether it rebuilt.
func (o *Orchestrator) MaybeRebuildNoteTable() bool {
	if o.settings.TakeRebuildPending() {
		o.RebuildNoteTable()
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
