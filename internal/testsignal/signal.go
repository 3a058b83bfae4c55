// Package testsignal builds deterministic synthetic audio for tests.
package testsignal

import "math"

// Rate is the sample rate every helper uses unless told otherwise
const Rate = 16000

// Silence returns dur seconds of zeros
func Silence(dur float64, rate int) []float64 {
	return make([]float64, int(math.Round(dur*float64(rate))))
}

// Tone returns a sine of freq Hz lasting dur seconds with a short fade in/out
func Tone(freq, dur, amp float64, rate int) []float64 {
	n := int(math.Round(dur * float64(rate)))
	out := make([]float64, n)
	fade := min(n/2, rate/200)
	for i := range out {
		g := amp
		if i < fade {
			g *= float64(i) / float64(fade)
		} else if n-i <= fade {
			g *= float64(n-i-1) / float64(fade)
		}
		t := float64(i) / float64(rate)
		out[i] = g * (math.Sin(2*math.Pi*freq*t) + 0.3*math.Sin(2*math.Pi*2.7*freq*t))
	}
	return out
}

// Syllables renders one tone per frequency, each lasting syllable seconds and
// followed by gap seconds of silence. Distinct frequencies give the aligner
// an unambiguous sequence to follow.
func Syllables(freqs []float64, syllable, gap float64, rate int) []float64 {
	var out []float64
	for _, f := range freqs {
		out = append(out, Tone(f, syllable, 0.5, rate)...)
		out = append(out, Silence(gap, rate)...)
	}
	return out
}

// Concat joins signals
func Concat(parts ...[]float64) []float64 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]float64, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Noise returns low-level deterministic pseudo-random noise (LCG) so that
// "silence" is not digital zero
func Noise(dur, amp float64, rate int, seed uint32) []float64 {
	n := int(math.Round(dur * float64(rate)))
	out := make([]float64, n)
	state := seed | 1
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = amp * (float64(state)/float64(math.MaxUint32)*2 - 1)
	}
	return out
}
