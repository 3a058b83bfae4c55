package dtw

import (
	"github.com/RyanBlaney/sonido-sync/features"
	"gonum.org/v1/gonum/floats"
)

// minNorm treats numerically flat frames, such as digital silence, as having no direction
const minNorm = 1e-9

// Normalized holds unit-length cepstral vectors with C0 dropped. The dot
// product of two rows is their cosine similarity.
type Normalized struct {
	data []float64
	dim  int
	n    int
}

// Normalize copies coefficients 1..D-1 of every frame of m and scales them to unit length.
// Vectors shorter than minNorm become zero and therefore have similarity 0 with everything.
func Normalize(m *features.Matrix) *Normalized {
	dim := m.Dim() - 1
	if dim < 0 {
		dim = 0
	}
	out := &Normalized{
		data: make([]float64, m.Len()*dim),
		dim:  dim,
		n:    m.Len(),
	}
	for i := 0; i < m.Len(); i++ {
		row := out.data[i*dim : (i+1)*dim]
		copy(row, m.Vector(i)[1:])
		if norm := floats.Norm(row, 2); norm > minNorm {
			floats.Scale(1/norm, row)
		}
	}
	return out
}

// Len returns the number of frames
func (n *Normalized) Len() int {
	return n.n
}

// Row returns the unit vector of frame i
func (n *Normalized) Row(i int) []float64 {
	return n.data[i*n.dim : (i+1)*n.dim]
}

// slice returns frames [from, to) sharing storage
func (n *Normalized) slice(from, to int) *Normalized {
	return &Normalized{
		data: n.data[from*n.dim : to*n.dim],
		dim:  n.dim,
		n:    to - from,
	}
}

// Cost returns 1 - cosine similarity between frame i of n and frame j of other
func (n *Normalized) Cost(i int, other *Normalized, j int) float64 {
	return 1.0 - floats.Dot(n.Row(i), other.Row(j))
}
