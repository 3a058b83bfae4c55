package spectral

import (
	"fmt"
	"math"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilter is one triangular filter stored sparsely: weights start at bin first
type melFilter struct {
	first   int
	weights []float64
}

// MelFilterBank is a bank of triangular filters equally spaced on the mel scale.
// It is immutable after construction.
type MelFilterBank struct {
	filters []melFilter
	bins    int
}

// NewMelFilterBank builds numFilters triangular filters between lowFreq and highFreq
// for a power spectrum of fftSize/2+1 bins.
func NewMelFilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64) (*MelFilterBank, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filter bank parameters: filters=%d fft=%d rate=%d", numFilters, fftSize, sampleRate)
	}
	nyquist := float64(sampleRate) / 2.0
	if highFreq <= 0 || highFreq > nyquist {
		highFreq = nyquist
	}
	if lowFreq < 0 || lowFreq >= highFreq {
		return nil, fmt.Errorf("invalid frequency range: [%.1f, %.1f]", lowFreq, highFreq)
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)
	melStep := (highMel - lowMel) / float64(numFilters+1)

	bins := fftSize/2 + 1
	binWidth := float64(sampleRate) / float64(fftSize)

	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = MelToHz(lowMel + float64(i)*melStep)
	}

	bank := &MelFilterBank{
		filters: make([]melFilter, numFilters),
		bins:    bins,
	}

	for m := 0; m < numFilters; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]

		first := int(math.Ceil(left / binWidth))
		last := int(math.Floor(right / binWidth))
		if last >= bins {
			last = bins - 1
		}

		var weights []float64
		start := -1
		for k := first; k <= last; k++ {
			freq := float64(k) * binWidth
			var w float64
			switch {
			case freq < left || freq > right:
				w = 0
			case freq <= center:
				w = (freq - left) / (center - left)
			default:
				w = (right - freq) / (right - center)
			}
			if w <= 0 && start == -1 {
				continue
			}
			if start == -1 {
				start = k
			}
			weights = append(weights, w)
		}
		if start == -1 {
			// Filter narrower than one bin: fall back to the nearest bin.
			start = int(math.Round(center / binWidth))
			if start >= bins {
				start = bins - 1
			}
			weights = []float64{1.0}
		}
		bank.filters[m] = melFilter{first: start, weights: weights}
	}

	return bank, nil
}

// NumFilters returns the number of filters in the bank
func (b *MelFilterBank) NumFilters() int {
	return len(b.filters)
}

// Apply projects a power spectrum onto the filter bank, writing one energy per filter into dst
func (b *MelFilterBank) Apply(powerSpectrum []float64, dst []float64) []float64 {
	if len(dst) < len(b.filters) {
		dst = make([]float64, len(b.filters))
	}
	for i, f := range b.filters {
		sum := 0.0
		for j, w := range f.weights {
			k := f.first + j
			if k >= len(powerSpectrum) {
				break
			}
			sum += powerSpectrum[k] * w
		}
		dst[i] = sum
	}
	return dst[:len(b.filters)]
}
