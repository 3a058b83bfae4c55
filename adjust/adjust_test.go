package adjust

import (
	"math"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-sync/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// aligned builds a flat map whose boundaries are the given times
func aligned(times []float64, texts ...string) *syncmap.SyncMap {
	lines := make([][]string, len(texts))
	for i, t := range texts {
		lines[i] = []string{t}
	}
	sm := syncmap.New("eng", lines...)
	for i, f := range sm.Fragments {
		f.Begin, f.End = times[i], times[i+1]
	}
	return sm
}

func bounds(sm *syncmap.SyncMap) []float64 {
	leaves := sm.Leaves()
	out := []float64{leaves[0].Begin}
	for _, f := range leaves {
		out = append(out, f.End)
	}
	return out
}

func adjuster(t *testing.T, algo Algorithm, value float64) *Adjuster {
	t.Helper()
	a, err := New(Config{Algorithm: algo, Value: value})
	require.NoError(t, err)
	return a
}

func TestOffsetShiftsEveryBoundary(t *testing.T) {
	sm := aligned([]float64{0, 2, 5, 9}, "one", "two", "three")
	require.NoError(t, adjuster(t, Offset, 0.2).Adjust(sm, Evidence{}))

	got := bounds(sm)
	want := []float64{0, 2.2, 5.2, 9}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}

func TestOffsetClampsToNextFragment(t *testing.T) {
	sm := aligned([]float64{0, 2, 2.1, 4}, "one", "two", "three")
	require.NoError(t, adjuster(t, Offset, 0.2).Adjust(sm, Evidence{}))

	got := bounds(sm)
	assert.InDelta(t, 2.1, got[1], 1e-9)
	assert.InDelta(t, 2.3, got[2], 1e-9)
	require.NoError(t, sm.Validate())

	sm = aligned([]float64{0, 0.1, 3}, "one", "two")
	require.NoError(t, adjuster(t, Offset, -0.5).Adjust(sm, Evidence{}))
	assert.InDelta(t, 0.0, bounds(sm)[1], 1e-9)
}

func TestAutoKeepsRawBoundaries(t *testing.T) {
	sm := aligned([]float64{0, 1.5, 3}, "one", "two")
	a, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, Auto, a.Algorithm())
	require.NoError(t, a.Adjust(sm, Evidence{Quiet: []Span{{1, 2}}}))
	assert.Equal(t, []float64{0, 1.5, 3}, bounds(sm))
}

func TestQuietRegionAlgorithms(t *testing.T) {
	ev := Evidence{Quiet: []Span{{0.2, 0.5}, {1.8, 2.4}, {4, 4.5}}}

	tests := []struct {
		algo  Algorithm
		value float64
		want  float64
	}{
		{Percent, 50, 2.1},
		{Percent, 0, 1.8},
		{AfterCurrent, 0.1, 1.9},
		{AfterCurrent, 5, 2.4},
		{BeforeNext, 0.1, 2.3},
		{BeforeNext, 5, 1.8},
	}

	for _, tt := range tests {
		sm := aligned([]float64{0, 2, 5}, "one", "two")
		require.NoError(t, adjuster(t, tt.algo, tt.value).Adjust(sm, ev))
		assert.InDelta(t, tt.want, bounds(sm)[1], 1e-9, "%s %v", tt.algo, tt.value)
	}

	t.Run("no quiet region", func(t *testing.T) {
		sm := aligned([]float64{0, 3, 5}, "one", "two")
		require.NoError(t, adjuster(t, AfterCurrent, 0.1).Adjust(sm, ev))
		assert.InDelta(t, 3.0, bounds(sm)[1], 1e-9)
	})

	t.Run("out of range candidate keeps raw boundary", func(t *testing.T) {
		sm := aligned([]float64{0, 2, 3}, "one", "two")
		wide := Evidence{Quiet: []Span{{1.9, 6}}}
		require.NoError(t, adjuster(t, Percent, 100).Adjust(sm, wide))
		assert.InDelta(t, 2.0, bounds(sm)[1], 1e-9)
	})

	t.Run("fallback never moves against the heuristic", func(t *testing.T) {
		sm := aligned([]float64{0, 5, 5.1, 9}, "one", "two", "three")
		shared := Evidence{Quiet: []Span{{4.9, 7}}}
		require.NoError(t, adjuster(t, AfterCurrent, 0.5).Adjust(sm, shared))

		got := bounds(sm)
		assert.InDelta(t, 5.0, got[1], 1e-9)
		assert.InDelta(t, 5.4, got[2], 1e-9)
		require.NoError(t, sm.Validate())
	})

	t.Run("fallback uses raw midpoint when fragments are apart", func(t *testing.T) {
		sm := aligned([]float64{0, 2, 5}, "one", "two")
		sm.Fragments[1].Begin = 2.4
		wide := Evidence{Quiet: []Span{{1.9, 8}}}
		require.NoError(t, adjuster(t, Percent, 100).Adjust(sm, wide))
		assert.InDelta(t, 2.2, sm.Fragments[0].End, 1e-9)
		assert.InDelta(t, 2.2, sm.Fragments[1].Begin, 1e-9)
	})
}

func TestRateAlgorithms(t *testing.T) {
	fast := strings.Repeat("a", 20)

	t.Run("rate uses slack", func(t *testing.T) {
		sm := aligned([]float64{0, 1, 5}, fast, "abcd")
		require.NoError(t, adjuster(t, Rate, 10).Adjust(sm, Evidence{}))
		assert.InDelta(t, 2.0, bounds(sm)[1], 1e-9)
	})

	t.Run("rate stops at slack", func(t *testing.T) {
		sm := aligned([]float64{0, 1, 5}, fast, strings.Repeat("b", 36))
		require.NoError(t, adjuster(t, Rate, 10).Adjust(sm, Evidence{}))
		assert.InDelta(t, 1.4, bounds(sm)[1], 1e-9)
	})

	t.Run("aggressive takes from next fragment", func(t *testing.T) {
		sm := aligned([]float64{0, 1, 5}, fast, strings.Repeat("b", 36))
		require.NoError(t, adjuster(t, RateAggressive, 10).Adjust(sm, Evidence{}))
		assert.InDelta(t, 2.0, bounds(sm)[1], 1e-9)
	})

	t.Run("slow fragment unchanged", func(t *testing.T) {
		sm := aligned([]float64{0, 3, 5}, "abc", "def")
		require.NoError(t, adjuster(t, Rate, 10).Adjust(sm, Evidence{}))
		assert.InDelta(t, 3.0, bounds(sm)[1], 1e-9)
	})
}

func TestCharactersUseNFC(t *testing.T) {
	f := &syncmap.Fragment{Lines: []string{"café"}}
	assert.Equal(t, 4, Characters(f))
}

func TestInvalidConfigs(t *testing.T) {
	tests := []Config{
		{Algorithm: "magic"},
		{Algorithm: Percent, Value: 150},
		{Algorithm: Rate, Value: 0},
		{Algorithm: RateAggressive, Value: -3},
		{Algorithm: AfterCurrent, Value: -1},
		{Algorithm: BeforeNext, Value: -0.1},
		{Algorithm: Offset, Value: math.NaN()},
	}
	for _, cfg := range tests {
		_, err := New(cfg)
		assert.ErrorIs(t, err, alignerr.ErrInvalidBoundaryAdjustment, "%+v", cfg)
	}
}

func TestAdjustRejectsOverlappingInput(t *testing.T) {
	sm := aligned([]float64{0, 2, 5}, "one", "two")
	sm.Fragments[1].Begin = 1
	err := adjuster(t, Offset, 0.1).Adjust(sm, Evidence{})
	assert.ErrorIs(t, err, alignerr.ErrAlignmentFailure)
}

func TestNewEvidence(t *testing.T) {
	energy := make([]float64, 30)
	vectors := make([][]float64, 30)
	for i := range energy {
		energy[i] = -5
		if i >= 10 && i < 20 {
			energy[i] = 0
		}
		vectors[i] = []float64{0, 1}
	}
	m, err := features.NewMatrix(vectors, energy, 0.04)
	require.NoError(t, err)
	vad, err := temporal.NewVAD(temporal.DefaultVADParams())
	require.NoError(t, err)

	ev := NewEvidence(m, vad)
	require.Len(t, ev.Quiet, 2)
	assert.InDelta(t, 0.0, ev.Quiet[0].Begin, 1e-9)
	assert.InDelta(t, 0.4, ev.Quiet[0].End, 1e-9)
	assert.InDelta(t, 0.8, ev.Quiet[1].Begin, 1e-9)
	assert.InDelta(t, 1.2, ev.Quiet[1].End, 1e-9)
}
