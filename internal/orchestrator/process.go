package orchestrator

import (
	"math"

	"github.com/kestrelharp/laserharp/internal/filterbank"
	"github.com/kestrelharp/laserharp/internal/midiwire"
)

// Output is the set of outbound MIDI messages produced by one Process or
// Stop call, in emission order: note-offs, then note-ons, then
// pitch-bend, per frame.
type Output struct {
	MIDI []midiwire.Message
}

// Process advances the Orchestrator by one frame.
func (o *Orchestrator) Process(sample filterbank.Sample) Output {
	o.applyEmulateOverrides(&sample)

	var velocity [128]int
	for i := 0; i < o.n && i < len(sample.Active); i++ {
		if sample.Active[i] && o.noteOfLaser[i] != -1 {
			velocity[o.noteOfLaser[i]] = 127
		}
	}

	var out Output
	for note := 0; note < 128; note++ {
		if o.velocityPrev[note] > 0 && velocity[note] == 0 {
			out.MIDI = append(out.MIDI, midiwire.NoteOff(0, note))
		}
	}
	for note := 0; note < 128; note++ {
		if o.velocityPrev[note] == 0 && velocity[note] > 0 {
			out.MIDI = append(out.MIDI, midiwire.NoteOn(0, note, velocity[note]))
		}
	}
	o.velocityPrev = velocity

	pitch := o.averagePitchBend(sample)
	if pitch != o.pitchPrev {
		out.MIDI = append(out.MIDI, midiwire.PitchBend(0, pitch))
		o.pitchPrev = pitch
	}

	o.updateBrightness(sample)

	return out
}

func (o *Orchestrator) averagePitchBend(sample filterbank.Sample) int {
	sum := 0.0
	count := 0
	for i := 0; i < o.n && i < len(sample.Active); i++ {
		if sample.Active[i] {
			sum += sample.Modulation[i]
			count++
		}
	}
	denom := count
	if denom < 1 {
		denom = 1
	}
	modAvg := sum / float64(denom)
	pitch := int(math.Round(modAvg * 8192))
	return clampInt(pitch, -8192, 8191)
}

// applyEmulateOverrides substitutes a channel-2-emulated interception for
// the real detector/filter output on any beam with an active override
// for that beam.
func (o *Orchestrator) applyEmulateOverrides(sample *filterbank.Sample) {
	for i := 0; i < o.n && i < len(sample.Active); i++ {
		if !o.emulatePresent[i] {
			continue
		}
		sample.Active[i] = o.emulateActive[i]
		sample.Length[i] = o.emulateLength[i]
		sample.Modulation[i] = 0
	}
}

// updateBrightness sends a laser brightness command to every laser whose
// target brightness changed. Default target is
// plucked_brightness while a beam is actively intercepted and
// unplucked_brightness otherwise; a channel-0 override (see ingress.go)
// takes priority over both.
func (o *Orchestrator) updateBrightness(sample filterbank.Sample) {
	if o.laser == nil {
		return
	}
	unplucked := o.settings.UnpluckedBrightness()
	plucked := o.settings.PluckedBrightness()

	for i := 0; i < o.n; i++ {
		target := unplucked
		if i < len(sample.Active) && sample.Active[i] {
			target = plucked
		}
		if o.brightnessOverridePresent[i] {
			target = o.brightnessOverrideValue[i]
		}
		if target == o.lastBrightness[i] {
			continue
		}
		if err := o.laser.SetOne(i, target, 0); err == nil {
			o.lastBrightness[i] = target
		}
	}
}

// Stop emits note-off for every still-sounding note and resets pitch-bend
// to 0, leaving no note sounding.
func (o *Orchestrator) Stop() Output {
	var out Output
	for note := 0; note < 128; note++ {
		if o.velocityPrev[note] > 0 {
			out.MIDI = append(out.MIDI, midiwire.NoteOff(0, note))
			o.velocityPrev[note] = 0
		}
	}
	if o.pitchPrev != 0 {
		out.MIDI = append(out.MIDI, midiwire.PitchBend(0, 0))
		o.pitchPrev = 0
	}
	return out
}
