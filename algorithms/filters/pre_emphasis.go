package filters

import "fmt"

// PreEmphasis implements a first-order pre-emphasis filter.
//
// The filter implements the transfer function:
// H(z) = 1 - α*z^-1
//
// With the difference equation:
// y[n] = x[n] - α*x[n-1]
//
// Where α is the pre-emphasis coefficient (typically 0.95-0.97 for speech).
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
//
// A PreEmphasis is stateless between calls: every Apply starts from x[-1] = 0
// so whole tracks and synthesized clips are filtered identically.
type PreEmphasis struct {
	coefficient float64
}

// NewPreEmphasis creates a pre-emphasis filter with coefficient α in [0, 1)
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient < 0 || coefficient >= 1 {
		return nil, fmt.Errorf("pre-emphasis coefficient must be in [0, 1): %f", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// Coefficient returns α
func (p *PreEmphasis) Coefficient() float64 {
	return p.coefficient
}

// Apply filters src into a new slice
func (p *PreEmphasis) Apply(src []float64) []float64 {
	out := make([]float64, len(src))
	if len(src) == 0 {
		return out
	}

	out[0] = src[0]
	for i := 1; i < len(src); i++ {
		out[i] = src[i] - p.coefficient*src[i-1]
	}
	return out
}
