// Package filterbank implements the temporal filter bank:
// a per-beam tapped FIR with NaN-aware reset that separates coarse beam
// length from high-frequency "vibrato" modulation.
package filterbank

import "math"

// Coefficients builds a K-tap, blackman-windowed sinc low-pass filter for
// the given cutoff and sampling frequency, normalized to sum to one so
// that a constant input passes through unchanged.
func Coefficients(k int, cutoff, sampling float64) []float64 {
	if k%2 == 0 {
		k++
	}
	c := make([]float64, k)
	half := (k - 1) / 2
	fc := cutoff / sampling

	sum := 0.0
	for i := 0; i < k; i++ {
		n := i - half
		var sinc float64
		if n == 0 {
			sinc = 2 * fc
		} else {
			sinc = math.Sin(2*math.Pi*fc*float64(n)) / (math.Pi * float64(n))
		}
		w := blackman(i, k)
		c[i] = sinc * w
		sum += c[i]
	}
	if sum != 0 {
		for i := range c {
			c[i] /= sum
		}
	}
	return c
}

func blackman(i, k int) float64 {
	n := float64(k - 1)
	a0, a1, a2 := 0.42, 0.5, 0.08
	x := 2 * math.Pi * float64(i) / n
	return a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
}

// Bank holds the per-beam ring of taps and rise-ramp state for N beams.
// It lives for exactly as long as one Calibration is in force; a new
// Calibration means a new Bank, which resets taps and clears wasActive.
type Bank struct {
	coeffs          []float64
	modulationGain  float64
	modulationDelay float64
	samplingHz      float64

	taps          [][]float64 // taps[beam][tap]
	wasActive     []bool
	activeSince   []float64 // accumulated active duration, seconds
}

// New builds a Bank for n beams with the given tap coefficients and
// modulation shaping parameters.
func New(n int, coeffs []float64, modulationGain, modulationDelay, samplingHz float64) *Bank {
	b := &Bank{
		coeffs:          coeffs,
		modulationGain:  modulationGain,
		modulationDelay: modulationDelay,
		samplingHz:      samplingHz,
		taps:            make([][]float64, n),
		wasActive:       make([]bool, n),
		activeSince:     make([]float64, n),
	}
	for i := range b.taps {
		t := make([]float64, len(coeffs))
		for j := range t {
			t[j] = math.NaN()
		}
		b.taps[i] = t
	}
	return b
}

// Sample is the per-beam output of one Step call.
type Sample struct {
	Active     []bool
	Length     []float64
	Modulation []float64
}

// Step advances the filter bank by one frame.
func (b *Bank) Step(raw []float64) Sample {
	n := len(raw)
	out := Sample{
		Active:     make([]bool, n),
		Length:     make([]float64, n),
		Modulation: make([]float64, n),
	}

	dt := 0.0
	if b.samplingHz > 0 {
		dt = 1.0 / b.samplingHz
	}

	for i := 0; i < n; i++ {
		active := !math.IsNaN(raw[i])
		rising := active && !b.wasActive[i]
		out.Active[i] = active

		taps := b.taps[i]
		// Shift the ring by one, insert raw[i] at tap 0.
		copy(taps[1:], taps[:len(taps)-1])
		taps[0] = raw[i]

		if !active {
			for j := range taps {
				taps[j] = math.NaN()
			}
		} else if rising {
			for j := range taps {
				taps[j] = raw[i]
			}
			b.activeSince[i] = 0
		}

		length := weightedSumSkippingNaN(taps, b.coeffs)
		if !active {
			length = math.NaN()
		}
		out.Length[i] = length

		modulation := 0.0
		if active {
			modulation = math.Tanh(b.modulationGain * (raw[i] - length))

			if rising {
				// activeSince already reset to 0 above.
			} else {
				b.activeSince[i] += dt
			}
			ramp := 0.5 + 0.5*math.Tanh(10*(b.activeSince[i]-b.modulationDelay))
			modulation *= ramp
		} else {
			b.activeSince[i] = 0
		}
		out.Modulation[i] = modulation

		b.wasActive[i] = active
	}

	return out
}

// weightedSumSkippingNaN computes sum(c[k]*taps[k]) renormalized over the
// taps that are finite, so a partially-primed window still sums to one
// over its populated entries.
func weightedSumSkippingNaN(taps, coeffs []float64) float64 {
	sum := 0.0
	weight := 0.0
	any := false
	for k, v := range taps {
		if math.IsNaN(v) {
			continue
		}
		sum += coeffs[k] * v
		weight += coeffs[k]
		any = true
	}
	if !any || weight == 0 {
		return math.NaN()
	}
	return sum / weight
}
