package orchestrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelharp/laserharp/internal/filterbank"
	"github.com/kestrelharp/laserharp/internal/settings"
)

func sampleAllActive(n int) filterbank.Sample {
	s := filterbank.Sample{
		Active:     make([]bool, n),
		Length:     make([]float64, n),
		Modulation: make([]float64, n),
	}
	for i := range s.Active {
		s.Active[i] = true
		s.Length[i] = 0.2
	}
	return s
}

func sampleNoneActive(n int) filterbank.Sample {
	s := filterbank.Sample{
		Active:     make([]bool, n),
		Length:     make([]float64, n),
		Modulation: make([]float64, n),
	}
	for i := range s.Length {
		s.Length[i] = math.NaN()
	}
	return s
}

// TestNoteTableInverse checks P7: noteOfLaser and laserOfNote agree with
// each other everywhere a laser is bound to a note.
func TestNoteTableInverse(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	noteOfLaser := o.NoteOfLaser()
	laserOfNote := o.LaserOfNote()
	for laser, note := range noteOfLaser {
		if note == -1 {
			continue
		}
		assert.Equal(t, laser, int(laserOfNote[note]), "laser %d maps to note %d but not back", laser, note)
	}
}

// TestMiddleBeamBoundToDiatonicStepOne documents the concrete note table
// output under default settings (see DESIGN.md "Note-table scenario
// numbers") rather than the spec narrative's illustrative value.
func TestMiddleBeamBoundToDiatonicStepOne(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	notes := o.NoteOfLaser()
	require.Len(t, notes, 3)
	assert.Equal(t, int8(48), notes[0])
	assert.Equal(t, int8(50), notes[1])
	assert.Equal(t, int8(52), notes[2])
}

// TestStopSilencesEverySoundingNote covers P6: after Stop, no note remains
// on, and Stop is idempotent.
func TestStopSilencesEverySoundingNote(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	out := o.Process(sampleAllActive(3))
	require.NotEmpty(t, out.MIDI)

	stopOut := o.Stop()
	offCount := 0
	for _, m := range stopOut.MIDI {
		if m.Status == 0x80 {
			offCount++
		}
	}
	assert.Equal(t, 3, offCount)

	second := o.Stop()
	assert.Empty(t, second.MIDI)
}

// TestProcessNoteCounts covers P8: the number of note-offs emitted in a
// frame never exceeds the number of notes sounding before it, and the
// number of note-ons never exceeds the number of beams newly active.
func TestProcessNoteCounts(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	out1 := o.Process(sampleAllActive(3))
	onCount := 0
	for _, m := range out1.MIDI {
		if m.Status == 0x90 {
			onCount++
		}
	}
	assert.LessOrEqual(t, onCount, 3)

	out2 := o.Process(sampleNoneActive(3))
	offCount := 0
	for _, m := range out2.MIDI {
		if m.Status == 0x80 {
			offCount++
		}
	}
	assert.LessOrEqual(t, offCount, onCount)
}

// TestFlippedTwiceRestoresNoteOfLaser covers R2: toggling flipped twice
// leaves noteOfLaser unchanged.
func TestFlippedTwiceRestoresNoteOfLaser(t *testing.T) {
	s := settings.Default()
	o := New(4, s, nil)
	before := o.NoteOfLaser()

	s.SetFlipped(true)
	o.MaybeRebuildNoteTable()
	s.SetFlipped(false)
	o.MaybeRebuildNoteTable()

	after := o.NoteOfLaser()
	assert.Equal(t, before, after)
}

// TestReapplyingSameConfigEmitsNoMIDI covers R3: applying the same
// key/mode/octave twice produces no MIDI output on the second application,
// since the sounding notes don't change.
func TestReapplyingSameConfigEmitsNoMIDI(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	o.Process(sampleAllActive(3))

	s.SetKeyModeOctaveFlipped(0, 0, 4, false)
	o.MaybeRebuildNoteTable()
	out := o.Process(sampleAllActive(3))
	assert.Empty(t, out.MIDI)
}

// TestKeyChangeRetargetsHeldBeam covers S5: a channel-1 key change while a
// beam is held causes a note-off for the old note and a note-on for the
// new note on the next frame.
func TestKeyChangeRetargetsHeldBeam(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	held := sampleAllActive(3)
	out1 := o.Process(held)
	require.NotEmpty(t, out1.MIDI)
	oldNote := o.NoteOfLaser()[1]

	o.HandleIngress(1, true, 1, 100) // key=1
	rebuilt := o.MaybeRebuildNoteTable()
	require.True(t, rebuilt)
	newNote := o.NoteOfLaser()[1]
	require.NotEqual(t, oldNote, newNote)

	out2 := o.Process(held)

	sawOldOff := false
	sawNewOn := false
	for _, m := range out2.MIDI {
		if m.Status == 0x80 && m.Data1 == byte(oldNote) {
			sawOldOff = true
		}
		if m.Status == 0x90 && m.Data1 == byte(newNote) {
			sawNewOn = true
		}
	}
	assert.True(t, sawOldOff, "expected note-off for old note %d", oldNote)
	assert.True(t, sawNewOn, "expected note-on for new note %d", newNote)
}

// TestFullResetOnNote127 covers the channel-1 "reset" command: it restores
// default key/mode/octave and clears live overrides.
func TestFullResetOnNote127(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	o.HandleIngress(1, true, 5, 100)
	o.MaybeRebuildNoteTable()
	o.HandleIngress(0, true, 48, 80) // brightness override on whatever laser maps to note 48

	o.HandleIngress(1, true, 127, 0)
	o.MaybeRebuildNoteTable()

	assert.Equal(t, 0, s.Key())
	assert.Equal(t, 0, s.Mode())
	assert.Equal(t, 4, s.Octave())
	for _, present := range o.brightnessOverridePresent {
		assert.False(t, present)
	}
}

// TestEmulateChannelOverridesDetection covers the channel-2 emulation path:
// a note-on on channel 2 substitutes an emulated interception for the real
// sample regardless of what the detector reported.
func TestEmulateChannelOverridesDetection(t *testing.T) {
	s := settings.Default()
	o := New(3, s, nil)

	note := o.NoteOfLaser()[1]
	o.HandleIngress(2, true, int(note), 50) // length = min(0.5, 0.5) = 0.5

	out := o.Process(sampleNoneActive(3))
	sawOn := false
	for _, m := range out.MIDI {
		if m.Status == 0x90 && m.Data1 == byte(note) {
			sawOn = true
		}
	}
	assert.True(t, sawOn, "expected emulated note-on despite no real detection")

	o.HandleIngress(2, false, int(note), 0)
	out2 := o.Process(sampleNoneActive(3))
	sawOff := false
	for _, m := range out2.MIDI {
		if m.Status == 0x80 && m.Data1 == byte(note) {
			sawOff = true
		}
	}
	assert.True(t, sawOff, "expected emulated note-off once channel-2 note-off arrives")

	// A real interception arriving after the emulated release must be
	// honored again, not permanently masked by the stale override.
	out3 := o.Process(sampleAllActive(3))
	sawRealOn := false
	for _, m := range out3.MIDI {
		if m.Status == 0x90 && m.Data1 == byte(note) {
			sawRealOn = true
		}
	}
	assert.True(t, sawRealOn, "expected a real detection to resume driving beam 1 after emulation release")
}

// TestBrightnessOverrideTakesPriority covers the channel-0 override: it
// takes priority over the default plucked/unplucked brightness rule.
func TestBrightnessOverrideTakesPriority(t *testing.T) {
	s := settings.Default()
	fake := &fakeLaser{}
	o := New(3, s, fake)

	note := o.NoteOfLaser()[0]
	o.HandleIngress(0, true, int(note), 100)
	o.Process(sampleNoneActive(3)) // beam 0 inactive, but override present

	assert.Equal(t, 100, fake.last[0])
}

type fakeLaser struct {
	last [3]int
}

func (f *fakeLaser) SetOne(idx, brightness, fadeTenths int) error {
	f.last[idx] = brightness
	return nil
}
