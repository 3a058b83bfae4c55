// Package timemap projects synthesized fragment boundaries through an
// alignment path into real-audio time.
package timemap

import (
	"math"

	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/dtw"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/syncmap"
)

// Interval is a [Begin, End] span in seconds of real audio
type Interval struct {
	Begin float64
	End   float64
}

// Mapper converts per-fragment synthesized durations into real boundaries
type Mapper struct {
	logger logging.Logger
}

// New creates a Mapper
func New() *Mapper {
	return &Mapper{
		logger: logging.WithFields(logging.Fields{"component": "time_mapper"}),
	}
}

// Map returns one interval per duration. real may be a slice of the full
// track; its offset and duration are the head and tail every result is
// clamped to. The first begin is pinned to the head and the last end to the
// tail. Zero durations collapse onto the previous end.
func (m *Mapper) Map(path dtw.Path, real, synth *features.Matrix, durations []float64) ([]Interval, error) {
	if len(durations) == 0 {
		return nil, alignerr.New(alignerr.AlignmentFailure, "timemap", "no fragments to map")
	}
	if err := path.Validate(real.Len(), synth.Len()); err != nil {
		return nil, err
	}

	shift := synth.Shift()
	total := 0.0
	for i, d := range durations {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, alignerr.New(alignerr.AlignmentFailure, "timemap", "invalid synthesized duration %v", d).AtFragment(i)
		}
		total += d
	}
	if total == 0 {
		return nil, alignerr.New(alignerr.AlignmentFailure, "timemap", "all synthesized durations are zero")
	}

	synthTotal := float64(synth.Len()) * shift
	if math.Abs(total-synthTotal) > shift+1e-6 {
		return nil, alignerr.New(alignerr.AlignmentFailure, "timemap",
			"durations sum to %.3fs but synthesized audio spans %.3fs", total, synthTotal)
	}

	realAt, err := path.RealFramesBySynth(synth.Len())
	if err != nil {
		return nil, alignerr.Wrap(alignerr.AlignmentFailure, "timemap", err)
	}
	// sentinel so a boundary at the very end interpolates toward the last real frame
	realAt = append(realAt, real.Len())

	head := real.Offset()
	tail := real.Offset() + real.Duration()
	eps := shift * 1e-6

	boundaries := make([]float64, len(durations)+1)
	cumulative := 0.0
	for k := range boundaries {
		if k > 0 {
			cumulative += durations[k-1]
		}

		var b float64
		switch {
		case cumulative <= eps:
			b = head
		case cumulative >= total-eps:
			b = tail
		default:
			b = head + project(realAt, cumulative/shift)*real.Shift()
		}

		b = math.Max(head, math.Min(b, tail))
		if k > 0 {
			b = math.Max(b, boundaries[k-1])
		}
		boundaries[k] = b
	}

	out := make([]Interval, len(durations))
	for i := range durations {
		out[i] = Interval{Begin: boundaries[i], End: boundaries[i+1]}
		if durations[i] == 0 {
			out[i].End = out[i].Begin
		}
	}

	m.logger.Debug("mapped fragments", logging.Fields{
		"fragments":   len(out),
		"synth_total": total,
		"head":        head,
		"tail":        tail,
	})
	return out, nil
}

// project maps a fractional synth frame to a fractional real frame by
// interpolating between the first real frames of its neighboring synth frames
func project(realAt []int, x float64) float64 {
	last := len(realAt) - 1
	if x <= 0 {
		return float64(realAt[0])
	}
	if x >= float64(last) {
		return float64(realAt[last])
	}
	s := int(math.Floor(x))
	frac := x - float64(s)
	return float64(realAt[s]) + frac*float64(realAt[s+1]-realAt[s])
}

// Apply writes intervals onto the leaves of sm in order and refreshes parent spans
func Apply(sm *syncmap.SyncMap, intervals []Interval) error {
	leaves := sm.Leaves()
	if len(leaves) != len(intervals) {
		return alignerr.New(alignerr.AlignmentFailure, "timemap",
			"%d intervals for %d fragments", len(intervals), len(leaves))
	}
	for i, leaf := range leaves {
		leaf.Begin = intervals[i].Begin
		leaf.End = intervals[i].End
	}
	sm.UpdateParents()
	return sm.Validate()
}
