// Package dtw computes monotonic alignment paths between the feature matrix
// of the real recording and that of the synthesized text.
package dtw

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/logging"
)

// Mode selects the path algorithm
type Mode string

const (
	// ModeExact solves the whole banded problem at once
	ModeExact Mode = "exact"
	// ModeStripe solves overlapping windows along the real axis and stitches them
	ModeStripe Mode = "stripe"
	// ModeAuto uses exact when the band fits in MemoryBudget, stripe otherwise
	ModeAuto Mode = "auto"
)

// ParseMode accepts the mode names plus the empty string for auto
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeExact, ModeStripe:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown dtw algorithm %q", name)
}

// Config controls path computation
type Config struct {
	Mode Mode `json:"mode" toml:"mode"`

	// Margin is the band half width in seconds
	Margin float64 `json:"margin" toml:"margin"`

	// MemoryBudget bounds band storage in bytes for ModeAuto
	MemoryBudget int64 `json:"memory_budget" toml:"memory_budget"`

	// StripeWindow and StripeOverlap are in seconds of real audio
	StripeWindow  float64 `json:"stripe_window" toml:"stripe_window"`
	StripeOverlap float64 `json:"stripe_overlap" toml:"stripe_overlap"`

	// AbortCheckRows is how many rows pass between cancellation checks
	AbortCheckRows int `json:"abort_check_rows" toml:"abort_check_rows"`

	Workers int `json:"workers" toml:"workers"`
}

// DefaultConfig returns a 60 s margin with a 1 GiB budget
func DefaultConfig() Config {
	return Config{
		Mode:           ModeAuto,
		Margin:         60.0,
		MemoryBudget:   1 << 30,
		StripeWindow:   600.0,
		StripeOverlap:  120.0,
		AbortCheckRows: 256,
		Workers:        0,
	}
}

// Validate checks ranges
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if !(c.Margin > 0) || math.IsInf(c.Margin, 0) {
		return fmt.Errorf("dtw margin must be positive, got %v", c.Margin)
	}
	if c.MemoryBudget <= 0 {
		return fmt.Errorf("dtw memory budget must be positive, got %d", c.MemoryBudget)
	}
	if !(c.StripeWindow > 0) {
		return fmt.Errorf("stripe window must be positive, got %v", c.StripeWindow)
	}
	if !(c.StripeOverlap > 0) || c.StripeOverlap >= c.StripeWindow {
		return fmt.Errorf("stripe overlap must be in (0, %v), got %v", c.StripeWindow, c.StripeOverlap)
	}
	if c.AbortCheckRows < 0 || c.Workers < 0 {
		return fmt.Errorf("abort check rows and workers cannot be negative")
	}
	return nil
}

// Aligner computes a path between two feature matrices. margin is the band
// half width in seconds.
type Aligner interface {
	ComputePath(ctx context.Context, real, synth *features.Matrix, margin float64) (Path, error)
}

// New returns the aligner for cfg.Mode. ModeAuto decides per call.
func New(cfg Config) (Aligner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	solver := bandSolver{workers: cfg.Workers, abortRows: cfg.AbortCheckRows}
	exact := &ExactAligner{solver: solver, logger: componentLogger("exact")}
	stripe := &StripeAligner{
		solver:  solver,
		window:  cfg.StripeWindow,
		overlap: cfg.StripeOverlap,
		logger:  componentLogger("stripe"),
	}

	switch cfg.Mode {
	case ModeExact:
		return exact, nil
	case ModeStripe:
		return stripe, nil
	default:
		return &autoAligner{exact: exact, stripe: stripe, budget: cfg.MemoryBudget}, nil
	}
}

func componentLogger(mode string) logging.Logger {
	return logging.WithFields(logging.Fields{
		"component": "dtw",
		"mode":      mode,
	})
}

// HalfWidth converts a margin in seconds to a band half width in frames
func HalfWidth(margin, shift float64) int {
	return int(math.Ceil(margin/shift - 1e-9))
}

// BandBytes estimates the storage an exact solve needs
func BandBytes(realLen, synthLen, halfWidth int) int64 {
	width := min(2*halfWidth+1, synthLen)
	return int64(realLen) * int64(width) * bytesPerCell
}

// prepare checks the inputs and returns their normalized forms with the band half width
func prepare(real, synth *features.Matrix, margin float64) (*Normalized, *Normalized, int, error) {
	if real == nil || synth == nil || real.Len() == 0 || synth.Len() == 0 {
		return nil, nil, 0, alignerr.New(alignerr.AlignmentFailure, "dtw", "empty feature matrix")
	}
	if real.Dim() != synth.Dim() {
		return nil, nil, 0, alignerr.New(alignerr.AlignmentFailure, "dtw",
			"feature dimensions differ: real %d, synth %d", real.Dim(), synth.Dim())
	}
	if real.Dim() < 2 {
		return nil, nil, 0, alignerr.New(alignerr.AlignmentFailure, "dtw", "need at least 2 coefficients, got %d", real.Dim())
	}
	if math.Abs(real.Shift()-synth.Shift()) > 1e-9 {
		return nil, nil, 0, alignerr.New(alignerr.AlignmentFailure, "dtw",
			"frame shifts differ: real %v, synth %v", real.Shift(), synth.Shift())
	}
	if !(margin > 0) || math.IsInf(margin, 0) {
		return nil, nil, 0, alignerr.New(alignerr.AlignmentFailure, "dtw", "margin %v yields an empty band", margin)
	}
	return Normalize(real), Normalize(synth), HalfWidth(margin, real.Shift()), nil
}

// ExactAligner solves the full banded problem in one pass
type ExactAligner struct {
	solver bandSolver
	logger logging.Logger
}

// ComputePath implements Aligner
func (a *ExactAligner) ComputePath(ctx context.Context, real, synth *features.Matrix, margin float64) (Path, error) {
	r, s, hw, err := prepare(real, synth, margin)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("computing path", logging.Fields{
		"real_frames":  r.Len(),
		"synth_frames": s.Len(),
		"half_width":   hw,
	})
	path, err := a.solver.solve(ctx, r, s, hw)
	if err != nil {
		return nil, err
	}
	return path, path.Validate(r.Len(), s.Len())
}

// StripeAligner bounds memory by solving overlapping windows of the real axis.
// Each window is anchored at the last point committed by the one before it, so
// windows run in order.
type StripeAligner struct {
	solver  bandSolver
	window  float64
	overlap float64
	logger  logging.Logger
}

// ComputePath implements Aligner
func (a *StripeAligner) ComputePath(ctx context.Context, real, synth *features.Matrix, margin float64) (Path, error) {
	r, s, hw, err := prepare(real, synth, margin)
	if err != nil {
		return nil, err
	}

	shift := real.Shift()
	window := max(2, int(math.Round(a.window/shift)))
	step := window - max(1, int(math.Round(a.overlap/shift)))
	if step < 1 {
		step = 1
	}

	R, S := r.Len(), s.Len()
	path := make(Path, 0, R+S-1)
	anchor := Point{}
	windows := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		endReal := min(R-1, anchor.Real+window-1)
		endSynth := S - 1
		if endReal < R-1 {
			// guess the window's synth end from the remaining rate
			remainReal := (R - 1) - anchor.Real
			remainSynth := (S - 1) - anchor.Synth
			endSynth = anchor.Synth + int(math.Round(float64(endReal-anchor.Real)*float64(remainSynth)/float64(remainReal)))
			endSynth = max(anchor.Synth, min(endSynth, S-1))
		}

		sub, err := a.solver.solve(ctx,
			r.slice(anchor.Real, endReal+1),
			s.slice(anchor.Synth, endSynth+1),
			hw)
		if err != nil {
			return nil, err
		}
		windows++

		if endReal == R-1 {
			for _, p := range sub {
				path = append(path, Point{Real: p.Real + anchor.Real, Synth: p.Synth + anchor.Synth})
			}
			break
		}

		// commit everything before the commit row; the first point on it anchors the next window
		idx := 0
		for idx < len(sub) && sub[idx].Real < step {
			path = append(path, Point{Real: sub[idx].Real + anchor.Real, Synth: sub[idx].Synth + anchor.Synth})
			idx++
		}
		anchor = Point{Real: sub[idx].Real + anchor.Real, Synth: sub[idx].Synth + anchor.Synth}
	}

	a.logger.Debug("stitched path", logging.Fields{
		"windows":    windows,
		"half_width": hw,
		"points":     len(path),
	})
	return path, path.Validate(R, S)
}

type autoAligner struct {
	exact  *ExactAligner
	stripe *StripeAligner
	budget int64
}

// ComputePath implements Aligner
func (a *autoAligner) ComputePath(ctx context.Context, real, synth *features.Matrix, margin float64) (Path, error) {
	if real != nil && synth != nil && real.Shift() > 0 && margin > 0 {
		hw := HalfWidth(margin, real.Shift())
		if BandBytes(real.Len(), synth.Len(), hw) > a.budget {
			return a.stripe.ComputePath(ctx, real, synth, margin)
		}
	}
	return a.exact.ComputePath(ctx, real, synth, margin)
}
