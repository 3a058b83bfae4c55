package dtw

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// Back-pointer codes. The numeric order is the tie-break order.
const (
	moveDiagonal uint8 = iota
	moveReal
	moveSynth
	moveStart
)

// bytesPerCell is the band storage cost: one float64 accumulator plus one back pointer
const bytesPerCell = 9

// band describes the reachable cells: row i spans synth columns [start[i], start[i]+width)
type band struct {
	rows  int
	cols  int
	width int
	start []int
}

// newBand centers each row on the proportional diagonal and clamps it to the
// synth range, so (0,0) and (rows-1,cols-1) are always inside.
func newBand(rows, cols, halfWidth int) (*band, error) {
	if rows <= 0 || cols <= 0 {
		return nil, alignerr.New(alignerr.AlignmentFailure, "dtw", "empty input: %d real x %d synth frames", rows, cols)
	}
	if halfWidth < 0 {
		return nil, alignerr.New(alignerr.AlignmentFailure, "dtw", "empty band: negative half width %d", halfWidth)
	}

	width := min(2*halfWidth+1, cols)
	b := &band{
		rows:  rows,
		cols:  cols,
		width: width,
		start: make([]int, rows),
	}

	for i := 0; i < rows; i++ {
		center := 0
		if rows > 1 {
			center = (i*(cols-1) + (rows-1)/2) / (rows - 1)
		}
		s := center - halfWidth
		s = max(0, min(s, cols-width))
		b.start[i] = s

		if i > 0 && s > b.start[i-1]+width {
			return nil, alignerr.New(alignerr.AlignmentFailure, "dtw",
				"band of %d frames cannot follow a %d:%d rate difference", width, rows, cols).AtFrame(i)
		}
	}
	return b, nil
}

// cells returns the number of stored cells
func (b *band) cells() int {
	return b.rows * b.width
}

// bandSolver runs the banded dynamic program over normalized features
type bandSolver struct {
	workers   int
	abortRows int
}

func (s *bandSolver) workerCount(rows int) int {
	if s.workers > 0 {
		return min(s.workers, rows)
	}
	if rows < 100 {
		return 1
	}
	return runtime.NumCPU()
}

// solve returns the minimum-cost path between real and synth inside the band
// with the given half width. Only rows x width cells are allocated.
func (s *bandSolver) solve(ctx context.Context, real, synth *Normalized, halfWidth int) (Path, error) {
	b, err := newBand(real.Len(), synth.Len(), halfWidth)
	if err != nil {
		return nil, err
	}

	acc := make([]float64, b.cells())
	back := make([]uint8, b.cells())

	if err := s.fillCosts(ctx, b, real, synth, acc); err != nil {
		return nil, err
	}
	if err := s.accumulate(ctx, b, acc, back); err != nil {
		return nil, err
	}
	return backtrack(b, acc, back)
}

// fillCosts writes the local cost of every band cell into acc. Rows are
// independent, so they are split across workers.
func (s *bandSolver) fillCosts(ctx context.Context, b *band, real, synth *Normalized, acc []float64) error {
	numWorkers := s.workerCount(b.rows)
	chunk := (b.rows + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	errs := make([]error, numWorkers)

	for w := range numWorkers {
		from := w * chunk
		to := min(from+chunk, b.rows)
		if from >= to {
			continue
		}
		wg.Add(1)
		go func(w, from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				if s.abortRows > 0 && (i-from)%s.abortRows == 0 {
					if err := ctx.Err(); err != nil {
						errs[w] = err
						return
					}
				}
				row := acc[i*b.width : (i+1)*b.width]
				for k := range row {
					row[k] = real.Cost(i, synth, b.start[i]+k)
				}
			}
		}(w, from, to)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// accumulate turns local costs into accumulated costs in place, recording
// the chosen predecessor of every cell. Ties prefer the diagonal, then the
// real-axis step, then the synth-axis step.
func (s *bandSolver) accumulate(ctx context.Context, b *band, acc []float64, back []uint8) error {
	inf := math.Inf(1)
	w := b.width

	back[0] = moveStart
	for k := 1; k < w; k++ {
		acc[k] += acc[k-1]
		back[k] = moveSynth
	}

	for i := 1; i < b.rows; i++ {
		if s.abortRows > 0 && i%s.abortRows == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		prev := acc[(i-1)*w : i*w]
		cur := acc[i*w : (i+1)*w]
		curBack := back[i*w : (i+1)*w]
		shift := b.start[i] - b.start[i-1]

		for k := 0; k < w; k++ {
			// column j = start[i]+k sits at prevK = k+shift in the previous row
			prevK := k + shift

			diag := inf
			if pk := prevK - 1; pk >= 0 && pk < w {
				diag = prev[pk]
			}
			up := inf
			if prevK >= 0 && prevK < w {
				up = prev[prevK]
			}
			left := inf
			if k > 0 {
				left = cur[k-1]
			}

			best, move := diag, moveDiagonal
			if up < best {
				best, move = up, moveReal
			}
			if left < best {
				best, move = left, moveSynth
			}

			cur[k] += best
			curBack[k] = move
		}
	}
	return nil
}

// backtrack follows back pointers from (rows-1, cols-1) to (0,0)
func backtrack(b *band, acc []float64, back []uint8) (Path, error) {
	i := b.rows - 1
	k := (b.cols - 1) - b.start[i]
	if math.IsInf(acc[i*b.width+k], 1) {
		return nil, alignerr.New(alignerr.AlignmentFailure, "dtw", "end point unreachable inside band").AtFrame(i)
	}

	path := make(Path, 0, b.rows+b.cols-1)
	for {
		path = append(path, Point{Real: i, Synth: b.start[i] + k})
		switch back[i*b.width+k] {
		case moveStart:
			reverse(path)
			return path, nil
		case moveDiagonal:
			j := b.start[i] + k - 1
			i--
			k = j - b.start[i]
		case moveReal:
			j := b.start[i] + k
			i--
			k = j - b.start[i]
		case moveSynth:
			k--
		}
	}
}

func reverse(p Path) {
	for l, r := 0, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
}
