package orchestrator

import "math"

// HandleIngress dispatches one received ingress MIDI event to the
// appropriate logical channel handler. isNoteOn distinguishes note-on from
// note-off; other message types are the caller's concern to filter out
// before calling this.
func (o *Orchestrator) HandleIngress(channel int, isNoteOn bool, note, velocity int) {
	switch channel {
	case 0:
		o.handleBrightnessOverride(isNoteOn, note, velocity)
	case 1:
		if isNoteOn {
			o.handleConfig(note)
		}
	case 2:
		o.handleEmulate(isNoteOn, note, velocity)
	default:
		// Other channels carry no meaning and are ignored.
	}
}

// resolveLaser implements the shared override-cache resolution rule used
// by both channel 0 and channel 2: the cache is keyed by MIDI note and
// invalidated only on note-off arrival. On note-on it
// resolves via the live note table and populates the cache; on note-off
// it prefers the cached value (so a straddling key/mode change doesn't
// orphan the release) and always invalidates the cache entry.
func resolveLaser(cache *[128]int8, laserOfNote [128]int8, note int, isNoteOn bool) (int, bool) {
	if note < 0 || note > 127 {
		return 0, false
	}

	if isNoteOn {
		laser := laserOfNote[note]
		if laser == -1 {
			return 0, false
		}
		cache[note] = laser
		return int(laser), true
	}

	laser := cache[note]
	if laser == -1 {
		laser = laserOfNote[note]
	}
	cache[note] = -1
	if laser == -1 {
		return 0, false
	}
	return int(laser), true
}

func (o *Orchestrator) handleBrightnessOverride(isNoteOn bool, note, velocity int) {
	laser, ok := resolveLaser(&o.brightnessOverrideCache, o.laserOfNote, note, isNoteOn)
	if !ok {
		return
	}

	if isNoteOn {
		o.brightnessOverridePresent[laser] = true
		o.brightnessOverrideValue[laser] = clampInt(velocity, o.settings.UnpluckedBrightness(), 127)
	} else {
		o.brightnessOverridePresent[laser] = false
	}
}

func (o *Orchestrator) handleConfig(note int) {
	key, mode, octave, flipped := o.settings.Key(), o.settings.Mode(), o.settings.Octave(), o.settings.Flipped()

	switch {
	case note >= 0 && note <= 11:
		key = note
	case note >= 12 && note <= 23:
		mode = inverseDiatonic[note-12]
	case note >= 24 && note <= 33:
		octave = note - 24
	case note == 127:
		o.settings.ResetToDefaultKeyModeOctave()
		o.resetRuntimeState()
		return
	default:
		return
	}

	o.settings.SetKeyModeOctaveFlipped(key, mode, octave, flipped)
}

func (o *Orchestrator) handleEmulate(isNoteOn bool, note, velocity int) {
	laser, ok := resolveLaser(&o.emulateOverrideCache, o.laserOfNote, note, isNoteOn)
	if !ok {
		return
	}

	if isNoteOn {
		o.emulatePresent[laser] = true
		o.emulateActive[laser] = true
		o.emulateLength[laser] = math.Min(0.5, float64(velocity)*0.01)
	} else {
		o.emulatePresent[laser] = false
		o.emulateActive[laser] = false
		o.emulateLength[laser] = math.NaN()
	}
}

// resetRuntimeState clears override caches and live overrides on a
// channel-1 note==127 full reset.
func (o *Orchestrator) resetRuntimeState() {
	for i := range o.brightnessOverrideCache {
		o.brightnessOverrideCache[i] = -1
		o.emulateOverrideCache[i] = -1
	}
	for i := range o.brightnessOverridePresent {
		o.brightnessOverridePresent[i] = false
		o.emulatePresent[i] = false
		o.emulateActive[i] = false
		o.emulateLength[i] = math.NaN()
	}
}
