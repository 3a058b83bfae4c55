package spectral

import (
	"fmt"
	"math"
)

// logFloor keeps log() finite on empty filter outputs
const logFloor = 1e-10

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	// NumCoefficients counts the cepstral coefficients kept, C0 included
	NumCoefficients int     `json:"num_coefficients" toml:"num_coefficients"`
	NumMelFilters   int     `json:"num_mel_filters" toml:"num_mel_filters"`
	LowFreq         float64 `json:"low_freq" toml:"low_freq"`

	// HighFreq of 0 means Nyquist
	HighFreq float64 `json:"high_freq" toml:"high_freq"`

	// LifterCoeff of 0 disables liftering
	LifterCoeff float64 `json:"lifter_coeff" toml:"lifter_coeff"`
}

// DefaultMFCCParams returns the parameters used for speech alignment
func DefaultMFCCParams() MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   40,
		LowFreq:         133.3333,
		HighFreq:        6855.4976,
		LifterCoeff:     0,
	}
}

// MFCC computes Mel-Frequency Cepstral Coefficients from power spectra.
// An initialized MFCC is read-only and may be shared by concurrent workers
// as long as each supplies its own scratch buffers.
type MFCC struct {
	params     MFCCParams
	filterBank *MelFilterBank
	dctMatrix  [][]float64
	lifter     []float64
}

// NewMFCC prepares filter bank and DCT matrix for the given FFT size and sample rate
func NewMFCC(params MFCCParams, fftSize, sampleRate int) (*MFCC, error) {
	if params.NumCoefficients <= 0 {
		return nil, fmt.Errorf("number of coefficients must be positive: %d", params.NumCoefficients)
	}
	if params.NumMelFilters < params.NumCoefficients {
		return nil, fmt.Errorf("mel filters (%d) must be >= coefficients (%d)", params.NumMelFilters, params.NumCoefficients)
	}

	bank, err := NewMelFilterBank(params.NumMelFilters, fftSize, sampleRate, params.LowFreq, params.HighFreq)
	if err != nil {
		return nil, fmt.Errorf("failed to create mel filter bank: %w", err)
	}

	m := &MFCC{
		params:     params,
		filterBank: bank,
	}
	m.createDCTMatrix()
	m.createLifter()
	return m, nil
}

// NumCoefficients returns the output vector length
func (m *MFCC) NumCoefficients() int {
	return m.params.NumCoefficients
}

// NumMelFilters returns the filter count; callers size scratch buffers with it
func (m *MFCC) NumMelFilters() int {
	return m.filterBank.NumFilters()
}

// Compute writes the cepstral vector of powerSpectrum into dst.
// melScratch must hold NumMelFilters() values and is overwritten.
func (m *MFCC) Compute(powerSpectrum, melScratch, dst []float64) []float64 {
	mel := m.filterBank.Apply(powerSpectrum, melScratch)
	for i, v := range mel {
		if v < logFloor {
			v = logFloor
		}
		mel[i] = math.Log(v)
	}

	if len(dst) < m.params.NumCoefficients {
		dst = make([]float64, m.params.NumCoefficients)
	}
	for k, row := range m.dctMatrix {
		sum := 0.0
		for n, c := range row {
			sum += mel[n] * c
		}
		dst[k] = sum * m.lifter[k]
	}
	return dst[:m.params.NumCoefficients]
}

// createDCTMatrix creates the orthonormal DCT-II matrix
func (m *MFCC) createDCTMatrix() {
	numFilters := m.filterBank.NumFilters()
	m.dctMatrix = make([][]float64, m.params.NumCoefficients)

	for k := range m.dctMatrix {
		m.dctMatrix[k] = make([]float64, numFilters)
		norm := math.Sqrt(2.0 / float64(numFilters))
		if k == 0 {
			norm = math.Sqrt(1.0 / float64(numFilters))
		}
		for n := 0; n < numFilters; n++ {
			m.dctMatrix[k][n] = norm * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numFilters))
		}
	}
}

// createLifter precomputes sinusoidal liftering weights; C0 is never liftered
func (m *MFCC) createLifter() {
	m.lifter = make([]float64, m.params.NumCoefficients)
	for i := range m.lifter {
		m.lifter[i] = 1.0
		if i > 0 && m.params.LifterCoeff > 0 {
			m.lifter[i] = 1.0 + (m.params.LifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.params.LifterCoeff)
		}
	}
}
