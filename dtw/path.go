package dtw

import (
	"fmt"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// Point pairs a real-audio frame with a synthesized-audio frame
type Point struct {
	Real  int `json:"real"`
	Synth int `json:"synth"`
}

// Path is a monotonic alignment from (0,0) to (R-1,S-1). It is immutable once returned.
type Path []Point

// Validate checks anchoring and that every step is one of (1,1), (1,0), (0,1)
func (p Path) Validate(realLen, synthLen int) error {
	if len(p) == 0 {
		return alignerr.New(alignerr.AlignmentFailure, "dtw", "empty path")
	}
	if p[0] != (Point{}) {
		return alignerr.New(alignerr.AlignmentFailure, "dtw", "path starts at %v, not (0,0)", p[0])
	}
	last := Point{Real: realLen - 1, Synth: synthLen - 1}
	if p[len(p)-1] != last {
		return alignerr.New(alignerr.AlignmentFailure, "dtw", "path ends at %v, not %v", p[len(p)-1], last)
	}
	for i := 1; i < len(p); i++ {
		dr := p[i].Real - p[i-1].Real
		ds := p[i].Synth - p[i-1].Synth
		if dr < 0 || ds < 0 || dr > 1 || ds > 1 || (dr == 0 && ds == 0) {
			return alignerr.New(alignerr.AlignmentFailure, "dtw",
				"invalid step %v -> %v", p[i-1], p[i]).AtFrame(p[i].Real)
		}
	}
	return nil
}

// RealFramesBySynth returns, for every synth frame s in [0, synthLen), the
// first real frame the path pairs with s. The result is non-decreasing.
func (p Path) RealFramesBySynth(synthLen int) ([]int, error) {
	out := make([]int, synthLen)
	next := 0
	for _, pt := range p {
		if pt.Synth == next {
			out[next] = pt.Real
			next++
		}
	}
	if next != synthLen {
		return nil, fmt.Errorf("path covers %d of %d synth frames", next, synthLen)
	}
	return out, nil
}
