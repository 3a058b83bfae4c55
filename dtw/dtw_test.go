package dtw

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShift = 0.04

// blocks builds a matrix where symbol i occupies lengths[i] frames and points
// along its own cepstral axis
func blocks(t *testing.T, symbols []int, lengths []int) *features.Matrix {
	t.Helper()
	require.Equal(t, len(symbols), len(lengths))

	var vectors [][]float64
	var energy []float64
	for i, sym := range symbols {
		for range lengths[i] {
			v := make([]float64, 8)
			v[0] = 3
			v[1+sym%7] = 1
			vectors = append(vectors, v)
			energy = append(energy, -1)
		}
	}
	m, err := features.NewMatrix(vectors, energy, testShift)
	require.NoError(t, err)
	return m
}

func constant(t *testing.T, n int) *features.Matrix {
	t.Helper()
	vectors := make([][]float64, n)
	for i := range vectors {
		vectors[i] = make([]float64, 4)
	}
	m, err := features.NewMatrix(vectors, make([]float64, n), testShift)
	require.NoError(t, err)
	return m
}

func exactAligner(t *testing.T) Aligner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mode = ModeExact
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestExactFollowsStretchedSymbols(t *testing.T) {
	symbols := []int{0, 1, 2, 3}
	real := blocks(t, symbols, []int{10, 3, 7, 5})
	synth := blocks(t, symbols, []int{5, 5, 5, 5})

	path, err := exactAligner(t).ComputePath(context.Background(), real, synth, 1.0)
	require.NoError(t, err)
	require.NoError(t, path.Validate(real.Len(), synth.Len()))

	first, err := path.RealFramesBySynth(synth.Len())
	require.NoError(t, err)
	assert.Equal(t, 0, first[0])
	assert.Equal(t, 10, first[5])
	assert.Equal(t, 13, first[10])
	assert.Equal(t, 20, first[15])
}

func TestTiesPreferDiagonal(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		m := constant(t, 5)
		path, err := exactAligner(t).ComputePath(context.Background(), m, constant(t, 5), 1.0)
		require.NoError(t, err)
		want := Path{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}}
		assert.Equal(t, want, path)
	})

	t.Run("wide", func(t *testing.T) {
		path, err := exactAligner(t).ComputePath(context.Background(), constant(t, 3), constant(t, 5), 1.0)
		require.NoError(t, err)
		want := Path{{0, 0}, {0, 1}, {0, 2}, {1, 3}, {2, 4}}
		assert.Equal(t, want, path)
	})

	t.Run("tall", func(t *testing.T) {
		path, err := exactAligner(t).ComputePath(context.Background(), constant(t, 5), constant(t, 3), 1.0)
		require.NoError(t, err)
		want := Path{{0, 0}, {1, 0}, {2, 0}, {3, 1}, {4, 2}}
		assert.Equal(t, want, path)
	})
}

func TestSingleFrameInputs(t *testing.T) {
	path, err := exactAligner(t).ComputePath(context.Background(), constant(t, 1), constant(t, 4), 1.0)
	require.NoError(t, err)
	assert.Equal(t, Path{{0, 0}, {0, 1}, {0, 2}, {0, 3}}, path)
}

func TestFailures(t *testing.T) {
	a := exactAligner(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		real   *features.Matrix
		synth  *features.Matrix
		margin float64
	}{
		{"disconnected band", constant(t, 10), constant(t, 100), testShift},
		{"zero margin", constant(t, 10), constant(t, 10), 0},
		{"negative margin", constant(t, 10), constant(t, 10), -1},
		{"nil synth", constant(t, 10), nil, 1},
		{"dimension mismatch", constant(t, 10), blocks(t, []int{0}, []int{10}), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ComputePath(ctx, tt.real, tt.synth, tt.margin)
			require.Error(t, err)
			assert.ErrorIs(t, err, alignerr.ErrAlignmentFailure)
		})
	}
}

func TestNarrowBandStaysConnected(t *testing.T) {
	// 1 frame half width is enough when lengths match
	real := blocks(t, []int{0, 1, 2}, []int{20, 20, 20})
	synth := blocks(t, []int{0, 1, 2}, []int{20, 20, 20})
	path, err := exactAligner(t).ComputePath(context.Background(), real, synth, testShift)
	require.NoError(t, err)
	assert.Len(t, path, 60)
	for _, p := range path {
		assert.LessOrEqual(t, abs(p.Real-p.Synth), 1)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exactAligner(t).ComputePath(ctx, constant(t, 300), constant(t, 300), 1.0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStripeMatchesExactOnIdenticalInput(t *testing.T) {
	symbols := make([]int, 30)
	lengths := make([]int, 30)
	for i := range symbols {
		symbols[i] = i
		lengths[i] = 4 + i%5
	}
	real := blocks(t, symbols, lengths)
	synth := blocks(t, symbols, lengths)

	cfg := DefaultConfig()
	cfg.Mode = ModeStripe
	cfg.StripeWindow = 2.0
	cfg.StripeOverlap = 0.4
	stripe, err := New(cfg)
	require.NoError(t, err)

	want, err := exactAligner(t).ComputePath(context.Background(), real, synth, 1.0)
	require.NoError(t, err)
	got, err := stripe.ComputePath(context.Background(), real, synth, 1.0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStripeProducesValidPath(t *testing.T) {
	symbols := make([]int, 25)
	realLengths := make([]int, 25)
	synthLengths := make([]int, 25)
	for i := range symbols {
		symbols[i] = i
		realLengths[i] = 8
		synthLengths[i] = 6
	}
	real := blocks(t, symbols, realLengths)
	synth := blocks(t, symbols, synthLengths)

	cfg := DefaultConfig()
	cfg.Mode = ModeStripe
	cfg.StripeWindow = 2.0
	cfg.StripeOverlap = 0.8
	stripe, err := New(cfg)
	require.NoError(t, err)

	path, err := stripe.ComputePath(context.Background(), real, synth, 1.0)
	require.NoError(t, err)
	assert.NoError(t, path.Validate(real.Len(), synth.Len()))
}

func randomMatrix(t *testing.T, rng *rand.Rand, n int) *features.Matrix {
	t.Helper()
	vectors := make([][]float64, n)
	energy := make([]float64, n)
	for i := range vectors {
		v := make([]float64, 6)
		for k := range v {
			v[k] = rng.NormFloat64()
		}
		vectors[i] = v
		energy[i] = rng.Float64()
	}
	m, err := features.NewMatrix(vectors, energy, testShift)
	require.NoError(t, err)
	return m
}

func TestRandomInputsGiveAnchoredPaths(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	cfg := DefaultConfig()
	cfg.Mode = ModeStripe
	cfg.StripeWindow = 1.0
	cfg.StripeOverlap = 0.2
	stripe, err := New(cfg)
	require.NoError(t, err)
	exact := exactAligner(t)

	for n := 0; n < 100; n++ {
		rows := 1 + rng.IntN(120)
		cols := 1 + rng.IntN(120)
		if rows == cols {
			cols++
		}
		real := randomMatrix(t, rng, rows)
		synth := randomMatrix(t, rng, cols)

		for name, a := range map[string]Aligner{"exact": exact, "stripe": stripe} {
			path, err := a.ComputePath(context.Background(), real, synth, 10.0)
			require.NoError(t, err, "%s %dx%d", name, rows, cols)
			require.NoError(t, path.Validate(rows, cols), "%s %dx%d", name, rows, cols)
			assert.Equal(t, Point{}, path[0])
			assert.Equal(t, Point{Real: rows - 1, Synth: cols - 1}, path[len(path)-1])
		}
	}
}

func TestAutoFallsBackToStripe(t *testing.T) {
	m := constant(t, 200)

	cfg := DefaultConfig()
	cfg.MemoryBudget = 100
	cfg.StripeWindow = 1.0
	cfg.StripeOverlap = 0.2
	a, err := New(cfg)
	require.NoError(t, err)

	auto, ok := a.(*autoAligner)
	require.True(t, ok)
	assert.Greater(t, BandBytes(200, 200, HalfWidth(1.0, testShift)), auto.budget)

	path, err := a.ComputePath(context.Background(), m, constant(t, 200), 1.0)
	require.NoError(t, err)
	assert.Len(t, path, 200)
}

func TestPathValidate(t *testing.T) {
	assert.NoError(t, Path{{0, 0}, {1, 1}, {1, 2}}.Validate(2, 3))
	assert.Error(t, Path{}.Validate(1, 1))
	assert.Error(t, Path{{0, 1}, {1, 2}}.Validate(2, 3))
	assert.Error(t, Path{{0, 0}, {1, 1}}.Validate(2, 3))
	assert.Error(t, Path{{0, 0}, {2, 2}}.Validate(3, 3))
	assert.Error(t, Path{{0, 0}, {0, 0}, {1, 1}}.Validate(2, 2))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Mode = "quantum"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.StripeOverlap = cfg.StripeWindow
	assert.Error(t, cfg.Validate())

	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, mode)
}

func TestHalfWidth(t *testing.T) {
	assert.Equal(t, 1500, HalfWidth(60, 0.04))
	assert.Equal(t, 1, HalfWidth(0.04, 0.04))
	assert.Equal(t, 2, HalfWidth(0.05, 0.04))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
