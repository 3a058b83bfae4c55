// Package adjust refines the internal boundaries of an aligned sync map.
package adjust

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/RyanBlaney/sonido-sync/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/syncmap"
)

// Algorithm names a boundary adjustment strategy
type Algorithm string

const (
	Auto           Algorithm = "auto"
	Offset         Algorithm = "offset"
	Percent        Algorithm = "percent"
	Rate           Algorithm = "rate"
	RateAggressive Algorithm = "rateaggressive"
	AfterCurrent   Algorithm = "aftercurrent"
	BeforeNext     Algorithm = "beforenext"
)

// Algorithms lists every supported strategy
func Algorithms() []Algorithm {
	return []Algorithm{Auto, Offset, Percent, Rate, RateAggressive, AfterCurrent, BeforeNext}
}

// Config selects the algorithm and its single parameter. Value is seconds for
// offset, aftercurrent and beforenext, a percentage for percent and
// characters per second for the rate algorithms.
type Config struct {
	Algorithm Algorithm `json:"algorithm" toml:"algorithm"`
	Value     float64   `json:"value" toml:"value"`
}

// DefaultConfig keeps raw boundaries
func DefaultConfig() Config {
	return Config{Algorithm: Auto}
}

// Span is a quiet region in seconds
type Span struct {
	Begin float64
	End   float64
}

// Evidence is the local audio information boundaries are moved against
type Evidence struct {
	// Quiet holds non-overlapping quiet regions sorted by Begin
	Quiet []Span
}

// NewEvidence finds the quiet regions of the real track
func NewEvidence(real *features.Matrix, vad *temporal.VAD) Evidence {
	var ev Evidence
	for _, iv := range vad.Nonspeech(real.Energies(), real.Shift()) {
		ev.Quiet = append(ev.Quiet, Span{
			Begin: real.Offset() + real.TimeOf(iv.Begin),
			End:   real.Offset() + real.TimeOf(iv.End),
		})
	}
	return ev
}

// quietAround returns the quiet region containing t, if any
func (e Evidence) quietAround(t float64) (Span, bool) {
	i := sort.Search(len(e.Quiet), func(i int) bool { return e.Quiet[i].End >= t })
	if i < len(e.Quiet) && e.Quiet[i].Begin <= t {
		return e.Quiet[i], true
	}
	return Span{}, false
}

// boundary is what every strategy sees for the boundary between leaf Index and Index+1
type boundary struct {
	Index int
	// Raw is the unadjusted end of the left fragment
	Raw float64
	// Lo and Hi bound the legal position: the adjusted begin of the left
	// fragment and the raw end of the right one
	Lo, Hi float64
	Left   *syncmap.Fragment
	Right  *syncmap.Fragment
}

type strategy func(b boundary, ev Evidence) float64

// Adjuster applies one strategy, chosen at construction
type Adjuster struct {
	algorithm Algorithm
	value     float64
	move      strategy
	clamp     bool
	logger    logging.Logger
}

// New validates cfg and binds its strategy
func New(cfg Config) (*Adjuster, error) {
	a := &Adjuster{
		algorithm: cfg.Algorithm,
		value:     cfg.Value,
		logger: logging.WithFields(logging.Fields{
			"component": "boundary_adjuster",
			"algorithm": string(cfg.Algorithm),
		}),
	}

	invalid := func(format string, args ...any) error {
		return alignerr.New(alignerr.InvalidBoundaryAdjustment, "adjust", format, args...)
	}
	v := cfg.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalid("%s value must be finite, got %v", cfg.Algorithm, v)
	}

	switch cfg.Algorithm {
	case Auto, "":
		a.algorithm = Auto
		a.move = func(b boundary, _ Evidence) float64 { return b.Raw }
	case Offset:
		a.clamp = true
		a.move = func(b boundary, _ Evidence) float64 { return b.Raw + v }
	case Percent:
		if v < 0 || v > 100 {
			return nil, invalid("percent must be in [0, 100], got %v", v)
		}
		a.move = func(b boundary, ev Evidence) float64 {
			q, ok := ev.quietAround(b.Raw)
			if !ok {
				return b.Raw
			}
			return q.Begin + v/100*(q.End-q.Begin)
		}
	case Rate, RateAggressive:
		if v <= 0 {
			return nil, invalid("%s needs a positive characters-per-second limit, got %v", cfg.Algorithm, v)
		}
		aggressive := cfg.Algorithm == RateAggressive
		a.move = func(b boundary, _ Evidence) float64 {
			return rateBoundary(b, v, aggressive)
		}
	case AfterCurrent:
		if v < 0 {
			return nil, invalid("aftercurrent offset cannot be negative, got %v", v)
		}
		a.move = func(b boundary, ev Evidence) float64 {
			q, ok := ev.quietAround(b.Raw)
			if !ok {
				return b.Raw
			}
			return math.Min(q.Begin+v, q.End)
		}
	case BeforeNext:
		if v < 0 {
			return nil, invalid("beforenext offset cannot be negative, got %v", v)
		}
		a.move = func(b boundary, ev Evidence) float64 {
			q, ok := ev.quietAround(b.Raw)
			if !ok {
				return b.Raw
			}
			return math.Max(q.End-v, q.Begin)
		}
	default:
		return nil, invalid("unknown algorithm %q", cfg.Algorithm)
	}
	return a, nil
}

// Algorithm returns the bound strategy name
func (a *Adjuster) Algorithm() Algorithm {
	return a.algorithm
}

// Adjust rewrites internal leaf boundaries left to right, in place. The
// fragment count and order never change. Candidates outside the legal range
// are clamped for offset. Other algorithms fall back to the midpoint of the
// raw end and the raw next begin, which for contiguous fragments is the raw
// boundary.
func (a *Adjuster) Adjust(sm *syncmap.SyncMap, ev Evidence) error {
	if err := sm.Validate(); err != nil {
		return err
	}
	if a.algorithm == Auto {
		return nil
	}

	leaves := sm.Leaves()
	moved := 0
	for i := 0; i+1 < len(leaves); i++ {
		left, right := leaves[i], leaves[i+1]
		b := boundary{
			Index: i,
			Raw:   left.End,
			Lo:    left.Begin,
			Hi:    right.End,
			Left:  left,
			Right: right,
		}

		// right.Begin is still raw here; only left.Begin was rewritten
		rawBegin := right.Begin
		pos := a.move(b, ev)
		switch {
		case a.clamp:
			pos = math.Max(b.Lo, math.Min(pos, b.Hi))
		case pos < b.Lo || pos > b.Hi || math.IsNaN(pos):
			pos = (b.Raw + rawBegin) / 2
		}

		if pos != b.Raw {
			moved++
		}
		left.End = pos
		right.Begin = pos
	}
	sm.UpdateParents()

	a.logger.Debug("adjusted boundaries", logging.Fields{
		"boundaries": len(leaves) - 1,
		"moved":      moved,
	})

	if err := sm.Validate(); err != nil {
		return fmt.Errorf("boundary adjustment broke ordering: %w", err)
	}
	return nil
}

// Characters counts the runes of a fragment's text in NFC form
func Characters(f *syncmap.Fragment) int {
	return utf8.RuneCountInString(norm.NFC.String(f.Text()))
}

// rateBoundary lengthens the left fragment when it is spoken faster than
// maxRate. It takes time from the right fragment's slack, and with aggressive
// set, from the right fragment itself.
func rateBoundary(b boundary, maxRate float64, aggressive bool) float64 {
	leftChars := float64(Characters(b.Left))
	leftDur := b.Raw - b.Lo
	if leftChars == 0 || (leftDur > 0 && leftChars/leftDur <= maxRate) {
		return b.Raw
	}

	need := leftChars/maxRate - leftDur
	rightDur := b.Hi - b.Raw
	available := rightDur - float64(Characters(b.Right))/maxRate
	if aggressive {
		available = rightDur
	}
	if available <= 0 {
		return b.Raw
	}
	return b.Raw + math.Min(need, available)
}
