// Package headtail estimates where speech starts and stops in the real track
// so lead-in and lead-out audio can be excluded from alignment.
package headtail

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-sync/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/dtw"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/logging"
)

// Window is a search range in seconds. For the tail it is measured back from
// the end of the track.
type Window struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

// Config selects detection windows and fixed trims. A nil window skips
// detection on that side; a fixed length then applies if set.
type Config struct {
	Head *Window `json:"head,omitempty" toml:"head,omitempty"`
	Tail *Window `json:"tail,omitempty" toml:"tail,omitempty"`

	HeadLength    float64 `json:"head_length" toml:"head_length"`
	TailLength    float64 `json:"tail_length" toml:"tail_length"`
	ProcessLength float64 `json:"process_length" toml:"process_length"`
}

// Validate checks window ordering and signs
func (c Config) Validate() error {
	for name, w := range map[string]*Window{"head": c.Head, "tail": c.Tail} {
		if w == nil {
			continue
		}
		if w.Min < 0 || w.Max < w.Min || math.IsNaN(w.Min) || math.IsNaN(w.Max) {
			return fmt.Errorf("%s window [%v, %v] is invalid", name, w.Min, w.Max)
		}
	}
	if c.HeadLength < 0 || c.TailLength < 0 || c.ProcessLength < 0 {
		return fmt.Errorf("head, tail and process lengths cannot be negative")
	}
	return nil
}

// Result holds the effective start and end of the spoken audio, in seconds
type Result struct {
	Head float64
	Tail float64
}

// Detector finds head and tail offsets
type Detector struct {
	cfg    Config
	vad    *temporal.VAD
	logger logging.Logger
}

// New creates a Detector
func New(cfg Config, vad *temporal.VAD) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg: cfg,
		vad: vad,
		logger: logging.WithFields(logging.Fields{
			"component": "head_tail_detector",
		}),
	}, nil
}

// Query holds synthesized features for the first and last fragments. Either
// may be nil; onsets are then ranked by the quiet run next to them.
type Query struct {
	First *features.Matrix
	Last  *features.Matrix
}

// Detect returns the span of real to align. Without windows or fixed lengths
// that is the whole track.
func (d *Detector) Detect(real *features.Matrix, q Query) (Result, error) {
	duration := real.Duration()
	res := Result{Head: 0, Tail: duration}

	mask := d.vad.SpeechMask(real.Energies(), real.Shift())
	quietBefore, quietAfter := quietRuns(mask)

	var norm *dtw.Normalized
	if (d.cfg.Head != nil && q.First != nil) || (d.cfg.Tail != nil && q.Last != nil) {
		norm = dtw.Normalize(real)
	}

	if w := d.cfg.Head; w != nil {
		lo := clampFrame(real, w.Min)
		hi := clampFrame(real, w.Max)
		frame := d.detectHead(mask, quietBefore, lo, hi, norm, q.First)
		res.Head = float64(frame) * real.Shift()
	} else {
		res.Head = math.Min(d.cfg.HeadLength, duration)
	}

	if w := d.cfg.Tail; w != nil {
		lo := clampFrame(real, duration-w.Max)
		hi := clampFrame(real, duration-w.Min)
		frame := d.detectTail(mask, quietAfter, lo, hi, norm, q.Last)
		res.Tail = float64(frame) * real.Shift()
	} else {
		res.Tail = duration - math.Min(d.cfg.TailLength, duration)
	}

	if d.cfg.ProcessLength > 0 {
		res.Tail = math.Min(res.Tail, res.Head+d.cfg.ProcessLength)
	}

	// detection runs on a full track, so shift by its own offset
	res.Head += real.Offset()
	res.Tail += real.Offset()

	if res.Tail <= res.Head {
		return res, alignerr.New(alignerr.InsufficientAudio, "headtail",
			"no audio left between head %.3fs and tail %.3fs", res.Head, res.Tail)
	}

	d.logger.Debug("detected speech span", logging.Fields{
		"head": res.Head,
		"tail": res.Tail,
	})
	return res, nil
}

func clampFrame(m *features.Matrix, t float64) int {
	f := int(math.Round(t / m.Shift()))
	return max(0, min(f, m.Len()))
}

// detectHead picks a speech onset in frames [lo, hi]. A window with no speech
// yields hi; speech throughout yields lo.
func (d *Detector) detectHead(mask []bool, quietBefore []int, lo, hi int, real *dtw.Normalized, query *features.Matrix) int {
	if !anySpeech(mask, lo, hi) {
		return hi
	}
	var candidates []int
	for k := lo + 1; k <= hi && k < len(mask); k++ {
		if mask[k] && !mask[k-1] {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return lo
	}
	if real != nil && query != nil {
		return bestMatch(candidates, real, dtw.Normalize(query), false)
	}
	return longestQuiet(candidates, quietBefore)
}

// detectTail mirrors detectHead: candidates are the first quiet frames after
// speech. A window with no speech yields lo; speech throughout yields hi.
func (d *Detector) detectTail(mask []bool, quietAfter []int, lo, hi int, real *dtw.Normalized, query *features.Matrix) int {
	if !anySpeech(mask, lo, hi) {
		return lo
	}
	var candidates []int
	for k := lo + 1; k <= hi && k < len(mask); k++ {
		if mask[k-1] && !mask[k] {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return hi
	}
	if real != nil && query != nil {
		return bestMatch(candidates, real, dtw.Normalize(query), true)
	}
	return longestQuiet(candidates, quietAfter)
}

func anySpeech(mask []bool, lo, hi int) bool {
	for k := lo; k < hi && k < len(mask); k++ {
		if mask[k] {
			return true
		}
	}
	return false
}

// quietRuns returns, per frame, the quiet run length ending just before it
// and the one starting at it
func quietRuns(mask []bool) (before, after []int) {
	n := len(mask)
	before = make([]int, n+1)
	after = make([]int, n+1)
	for k := 1; k <= n; k++ {
		if !mask[k-1] {
			before[k] = before[k-1] + 1
		}
	}
	for k := n - 1; k >= 0; k-- {
		if !mask[k] {
			after[k] = after[k+1] + 1
		}
	}
	return before, after
}

// longestQuiet returns the candidate with the longest adjacent quiet run, earliest on ties
func longestQuiet(candidates []int, run []int) int {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if run[c] > run[best] {
			best = c
		}
	}
	return best
}

// bestMatch scores each candidate by the mean cosine cost of a diagonal match
// against the query, starting at the candidate or ending at it when
// backwards is set
func bestMatch(candidates []int, real, query *dtw.Normalized, backwards bool) int {
	best, bestCost := candidates[0], math.Inf(1)
	for _, c := range candidates {
		var costs []float64
		for j := 0; j < query.Len(); j++ {
			r, s := c+j, j
			if backwards {
				r, s = c-1-j, query.Len()-1-j
			}
			if r < 0 || r >= real.Len() {
				break
			}
			costs = append(costs, real.Cost(r, query, s))
		}
		if len(costs) == 0 {
			continue
		}
		if mean := stat.Mean(costs, nil); mean < bestCost {
			best, bestCost = c, mean
		}
	}
	return best
}

// Crop returns the part of real between the detected head and tail
func Crop(real *features.Matrix, res Result) (*features.Matrix, error) {
	from := real.FrameAt(res.Head - real.Offset())
	to := real.FrameAt(res.Tail - real.Offset())
	if to <= from {
		return nil, alignerr.New(alignerr.InsufficientAudio, "headtail",
			"cropped span [%.3f, %.3f] holds no frames", res.Head, res.Tail)
	}
	return real.Slice(from, to)
}
