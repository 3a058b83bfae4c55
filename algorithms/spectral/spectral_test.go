package spectral_test

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return out
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, spectral.NextPowerOfTwo(1))
	assert.Equal(t, 1024, spectral.NextPowerOfTwo(1000))
	assert.Equal(t, 2048, spectral.NextPowerOfTwo(1600))
	assert.Equal(t, 512, spectral.NextPowerOfTwo(512))
}

func TestPowerSpectrumPeaksAtToneBin(t *testing.T) {
	const rate, size = 16000, 512
	f := spectral.NewFFT(size)
	// 1000 Hz falls exactly on bin 32 for a 512-point transform at 16 kHz.
	power := f.PowerSpectrum(sine(1000, rate, size), nil)
	require.Len(t, power, f.Bins())

	peak := 0
	for k := range power {
		if power[k] > power[peak] {
			peak = k
		}
	}
	assert.Equal(t, 32, peak)
}

func TestPowerSpectrumZeroPadsShortFrames(t *testing.T) {
	f := spectral.NewFFT(64)
	power := f.PowerSpectrum([]float64{1, 1, 1, 1}, nil)
	assert.Len(t, power, 33)
	assert.InDelta(t, 16.0, power[0], 1e-9)
}

func TestMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 133.3333, 1000, 6855.4976} {
		assert.InDelta(t, hz, spectral.MelToHz(spectral.HzToMel(hz)), 1e-6)
	}
}

func TestMelFilterBankRejectsBadRange(t *testing.T) {
	_, err := spectral.NewMelFilterBank(40, 512, 16000, 9000, 8000)
	assert.Error(t, err)

	_, err = spectral.NewMelFilterBank(0, 512, 16000, 0, 8000)
	assert.Error(t, err)
}

func TestMelFilterBankCoversTone(t *testing.T) {
	bank, err := spectral.NewMelFilterBank(26, 512, 16000, 0, 8000)
	require.NoError(t, err)
	assert.Equal(t, 26, bank.NumFilters())

	power := make([]float64, 257)
	power[32] = 1.0
	energies := bank.Apply(power, nil)

	total := 0.0
	for _, e := range energies {
		total += e
	}
	assert.Greater(t, total, 0.0)
}

func TestMFCCIsDeterministicAndSized(t *testing.T) {
	const rate, size = 16000, 512
	params := spectral.DefaultMFCCParams()
	m, err := spectral.NewMFCC(params, size, rate)
	require.NoError(t, err)

	power := spectral.NewFFT(size).PowerSpectrum(sine(440, rate, 400), nil)
	scratch := make([]float64, m.NumMelFilters())

	a := m.Compute(power, scratch, nil)
	b := m.Compute(power, scratch, nil)
	require.Len(t, a, params.NumCoefficients)
	assert.Equal(t, a, b)
}

func TestMFCCOfSilenceIsFlat(t *testing.T) {
	m, err := spectral.NewMFCC(spectral.DefaultMFCCParams(), 512, 16000)
	require.NoError(t, err)

	power := make([]float64, 257)
	coeffs := m.Compute(power, make([]float64, m.NumMelFilters()), nil)

	// A constant log-mel vector only excites C0.
	for k := 1; k < len(coeffs); k++ {
		assert.InDelta(t, 0.0, coeffs[k], 1e-9)
	}
	assert.Less(t, coeffs[0], 0.0)
}

func TestMFCCRejectsTooFewFilters(t *testing.T) {
	params := spectral.DefaultMFCCParams()
	params.NumMelFilters = 8
	_, err := spectral.NewMFCC(params, 512, 16000)
	assert.Error(t, err)
}
