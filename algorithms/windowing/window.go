package windowing

import (
	"fmt"
	"math"
)

// Type names a supported analysis window
type Type string

const (
	TypeHamming     Type = "hamming"
	TypeHann        Type = "hann"
	TypeBlackman    Type = "blackman"
	TypeRectangular Type = "rectangular"
)

// ParseType validates a window name
func ParseType(name string) (Type, error) {
	switch t := Type(name); t {
	case TypeHamming, TypeHann, TypeBlackman, TypeRectangular:
		return t, nil
	case "":
		return TypeHamming, nil
	default:
		return "", fmt.Errorf("unknown window type: %q", name)
	}
}

// Function holds precomputed window coefficients for a fixed frame length.
// It is read-only after construction and safe for concurrent use.
type Function struct {
	kind         Type
	size         int
	symmetric    bool
	coefficients []float64
}

// New creates window coefficients of the given type and length
func New(kind Type, size int, symmetric bool) (*Function, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}
	if _, err := ParseType(string(kind)); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = TypeHamming
	}

	w := &Function{
		kind:      kind,
		size:      size,
		symmetric: symmetric,
	}
	w.generate()
	return w, nil
}

func (w *Function) generate() {
	w.coefficients = make([]float64, w.size)

	denominator := float64(w.size)
	if w.symmetric && w.size > 1 {
		denominator = float64(w.size - 1)
	}

	for i := range w.size {
		phase := 2 * math.Pi * float64(i) / denominator
		switch w.kind {
		case TypeHamming:
			w.coefficients[i] = 0.54 - 0.46*math.Cos(phase)
		case TypeHann:
			w.coefficients[i] = 0.5 * (1.0 - math.Cos(phase))
		case TypeBlackman:
			w.coefficients[i] = 0.42 - 0.5*math.Cos(phase) + 0.08*math.Cos(2*phase)
		default:
			w.coefficients[i] = 1.0
		}
	}
}

// ApplyInPlace multiplies signal by the window
func (w *Function) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i := 0; i < w.size; i++ {
		signal[i] *= w.coefficients[i]
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Function) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}
