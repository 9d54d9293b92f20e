// Package settings holds the operator-settable scale/key/octave and
// detection/filter tuning parameters behind atomic fields, so FramePipeline
// can read them every frame without torn values while MidiIngress and
// external operators write them concurrently.
package settings

import (
	"math"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Store holds one field per tunable setting. The fields that affect the
// note table (Key, Mode, Octave, Flipped) share one rebuild-pending flag
// that consumers read via TakeRebuildPending at a frame boundary: a
// change to one of those fields
// causes a rebuild at the next frame boundary rather than mid-step.
type Store struct {
	key     atomic.Int32 // 0..11
	mode    atomic.Int32 // 0..6
	octave  atomic.Int32 // 0..9
	flipped atomic.Bool

	unpluckedBrightness atomic.Int32
	pluckedBrightness   atomic.Int32
	threshold           atomic.Int32 // 0..255 luminance cutoff

	lengthMin atomic.Uint64 // float64 bits
	lengthMax atomic.Uint64 // float64 bits

	filterSize     atomic.Int32 // K, odd
	filterCutoff   atomic.Uint64
	modulationGain atomic.Uint64
	modulationDelay atomic.Uint64

	rebuildPending atomic.Bool
}

// doc is the YAML-serializable snapshot of a Store, used for persistence
// only; the live Store itself is never (de)serialized directly so that the
// atomic fields stay lock-free.
type doc struct {
	Key     int  `yaml:"key"`
	Mode    int  `yaml:"mode"`
	Octave  int  `yaml:"octave"`
	Flipped bool `yaml:"flipped"`

	UnpluckedBrightness int `yaml:"unplucked_brightness"`
	PluckedBrightness   int `yaml:"plucked_brightness"`
	Threshold           int `yaml:"threshold"`

	LengthMin float64 `yaml:"length_min"`
	LengthMax float64 `yaml:"length_max"`

	FilterSize      int     `yaml:"filter_size"`
	FilterCutoff    float64 `yaml:"filter_cutoff"`
	ModulationGain  float64 `yaml:"modulation_gain"`
	ModulationDelay float64 `yaml:"modulation_delay"`
}

// Default returns a Store populated with reasonable defaults: a C root
// (MIDI note 48 on laser 0) at key=0/mode=0/octave=4, matching the
// channel-1 configuration reset.
func Default() *Store {
	s := &Store{}
	s.key.Store(0)
	s.mode.Store(0)
	s.octave.Store(4)
	s.flipped.Store(false)
	s.unpluckedBrightness.Store(10)
	s.pluckedBrightness.Store(127)
	s.threshold.Store(128)
	s.lengthMin.Store(math.Float64bits(0.02))
	s.lengthMax.Store(math.Float64bits(1.0))
	s.filterSize.Store(23)
	s.filterCutoff.Store(math.Float64bits(6))
	s.modulationGain.Store(math.Float64bits(8))
	s.modulationDelay.Store(math.Float64bits(0.3))
	return s
}

func (s *Store) Key() int     { return int(s.key.Load()) }
func (s *Store) Mode() int    { return int(s.mode.Load()) }
func (s *Store) Octave() int  { return int(s.octave.Load()) }
func (s *Store) Flipped() bool { return s.flipped.Load() }

func (s *Store) UnpluckedBrightness() int { return int(s.unpluckedBrightness.Load()) }
func (s *Store) PluckedBrightness() int   { return int(s.pluckedBrightness.Load()) }
func (s *Store) Threshold() int           { return int(s.threshold.Load()) }

func (s *Store) LengthMin() float64 { return math.Float64frombits(s.lengthMin.Load()) }
func (s *Store) LengthMax() float64 { return math.Float64frombits(s.lengthMax.Load()) }

func (s *Store) FilterSize() int        { return int(s.filterSize.Load()) }
func (s *Store) FilterCutoff() float64  { return math.Float64frombits(s.filterCutoff.Load()) }
func (s *Store) ModulationGain() float64 { return math.Float64frombits(s.modulationGain.Load()) }
func (s *Store) ModulationDelay() float64 {
	return math.Float64frombits(s.modulationDelay.Load())
}

// SetKeyModeOctaveFlipped applies a note-table-affecting change atomically
// with respect to RebuildPending: after this call, TakeRebuildPending
// reports true exactly once.
func (s *Store) SetKeyModeOctaveFlipped(key, mode, octave int, flipped bool) {
	s.key.Store(int32(key))
	s.mode.Store(int32(mode))
	s.octave.Store(int32(octave))
	s.flipped.Store(flipped)
	s.rebuildPending.Store(true)
}

// SetFlipped toggles only the flipped bit, used by the physical flip
// button/animation trigger.
func (s *Store) SetFlipped(flipped bool) {
	s.flipped.Store(flipped)
	s.rebuildPending.Store(true)
}

// ResetToDefaultKeyModeOctave restores key=0, mode=0, octave=4, the
// channel-1 note==127 reset command's target configuration.
func (s *Store) ResetToDefaultKeyModeOctave() {
	s.SetKeyModeOctaveFlipped(0, 0, 4, s.Flipped())
}

// TakeRebuildPending reports and clears whether a note-table-affecting
// setting changed since the last call.
func (s *Store) TakeRebuildPending() bool {
	return s.rebuildPending.Swap(false)
}

func (s *Store) SetUnpluckedBrightness(v int) { s.unpluckedBrightness.Store(int32(v)) }
func (s *Store) SetPluckedBrightness(v int)   { s.pluckedBrightness.Store(int32(v)) }
func (s *Store) SetThreshold(v int)           { s.threshold.Store(int32(v)) }

// Load reads a YAML settings document from path into a fresh Store.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d doc
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	s := &Store{}
	s.key.Store(int32(d.Key))
	s.mode.Store(int32(d.Mode))
	s.octave.Store(int32(d.Octave))
	s.flipped.Store(d.Flipped)
	s.unpluckedBrightness.Store(int32(d.UnpluckedBrightness))
	s.pluckedBrightness.Store(int32(d.PluckedBrightness))
	s.threshold.Store(int32(d.Threshold))
	s.lengthMin.Store(math.Float64bits(d.LengthMin))
	s.lengthMax.Store(math.Float64bits(d.LengthMax))
	s.filterSize.Store(int32(d.FilterSize))
	s.filterCutoff.Store(math.Float64bits(d.FilterCutoff))
	s.modulationGain.Store(math.Float64bits(d.ModulationGain))
	s.modulationDelay.Store(math.Float64bits(d.ModulationDelay))
	return s, nil
}

// Save writes the current settings to path as YAML.
func (s *Store) Save(path string) error {
	d := doc{
		Key:                 s.Key(),
		Mode:                s.Mode(),
		Octave:              s.Octave(),
		Flipped:             s.Flipped(),
		UnpluckedBrightness: s.UnpluckedBrightness(),
		PluckedBrightness:   s.PluckedBrightness(),
		Threshold:           s.Threshold(),
		LengthMin:           s.LengthMin(),
		LengthMax:           s.LengthMax(),
		FilterSize:          s.FilterSize(),
		FilterCutoff:        s.FilterCutoff(),
		ModulationGain:      s.ModulationGain(),
		ModulationDelay:     s.ModulationDelay(),
	}
	raw, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
