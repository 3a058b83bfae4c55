package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT computes spectra of fixed-size frames using mjibson/go-dsp.
// Frames shorter than the FFT size are zero padded.
type FFT struct {
	size int
}

// NewFFT creates an FFT calculator for the given transform size
func NewFFT(size int) *FFT {
	return &FFT{size: size}
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Bins returns the number of non-negative frequency bins (size/2 + 1)
func (f *FFT) Bins() int {
	return f.size/2 + 1
}

// Compute returns the complex spectrum of x, zero padded or truncated to the FFT size
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	if len(x) != f.size {
		padded := make([]float64, f.size)
		copy(padded, x)
		x = padded
	}
	return fft.FFTReal(x)
}

// PowerSpectrum writes |X[k]|^2 for the non-negative bins of x into dst.
// dst must hold Bins() values; it is returned for convenience.
func (f *FFT) PowerSpectrum(x []float64, dst []float64) []float64 {
	bins := f.Bins()
	if len(dst) < bins {
		dst = make([]float64, bins)
	}
	spectrum := f.Compute(x)
	for k := 0; k < bins && k < len(spectrum); k++ {
		re, im := real(spectrum[k]), imag(spectrum[k])
		dst[k] = re*re + im*im
	}
	return dst[:bins]
}
