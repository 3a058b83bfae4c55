package features

import (
	"fmt"
	"math"
)

// Matrix is a time-indexed sequence of cepstral vectors with one log energy
// value per frame. Frame i starts at i*Shift() seconds. A Matrix is never
// modified after Extract returns it, so it can be shared without locking.
type Matrix struct {
	data   []float64
	energy []float64
	dim    int
	shift  float64
	offset float64
}

// NewMatrix wraps precomputed vectors. Every vector must have the same length.
func NewMatrix(vectors [][]float64, energy []float64, shift float64) (*Matrix, error) {
	if len(vectors) != len(energy) {
		return nil, fmt.Errorf("vectors (%d) and energies (%d) differ in length", len(vectors), len(energy))
	}
	if shift <= 0 {
		return nil, fmt.Errorf("frame shift must be positive: %f", shift)
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	data := make([]float64, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
		data = append(data, v...)
	}
	e := make([]float64, len(energy))
	copy(e, energy)
	return &Matrix{data: data, energy: e, dim: dim, shift: shift}, nil
}

// Len returns the number of frames
func (m *Matrix) Len() int {
	return len(m.energy)
}

// Dim returns the cepstral vector length
func (m *Matrix) Dim() int {
	return m.dim
}

// Shift returns the frame shift in seconds
func (m *Matrix) Shift() float64 {
	return m.shift
}

// Offset returns the time of frame 0 relative to the start of the full track
func (m *Matrix) Offset() float64 {
	return m.offset
}

// Duration returns Len()*Shift()
func (m *Matrix) Duration() float64 {
	return float64(m.Len()) * m.shift
}

// Vector returns the cepstral vector of frame i. The slice must not be modified.
func (m *Matrix) Vector(i int) []float64 {
	return m.data[i*m.dim : (i+1)*m.dim : (i+1)*m.dim]
}

// Energy returns the log10 energy of frame i
func (m *Matrix) Energy(i int) float64 {
	return m.energy[i]
}

// Energies returns a copy of all frame energies
func (m *Matrix) Energies() []float64 {
	out := make([]float64, len(m.energy))
	copy(out, m.energy)
	return out
}

// TimeOf returns the time of frame i relative to this matrix
func (m *Matrix) TimeOf(i int) float64 {
	return float64(i) * m.shift
}

// FrameAt returns the frame containing time t, clamped to [0, Len()]
func (m *Matrix) FrameAt(t float64) int {
	if t <= 0 || math.IsNaN(t) {
		return 0
	}
	f := int(math.Floor(t/m.shift + 1e-9))
	if f > m.Len() {
		return m.Len()
	}
	return f
}

// Slice returns frames [from, to) as a new Matrix sharing storage with m.
// The returned matrix remembers its time offset in the full track.
func (m *Matrix) Slice(from, to int) (*Matrix, error) {
	if from < 0 || to > m.Len() || from > to {
		return nil, fmt.Errorf("invalid frame range [%d, %d) for %d frames", from, to, m.Len())
	}
	return &Matrix{
		data:   m.data[from*m.dim : to*m.dim : to*m.dim],
		energy: m.energy[from:to:to],
		dim:    m.dim,
		shift:  m.shift,
		offset: m.offset + float64(from)*m.shift,
	}, nil
}
