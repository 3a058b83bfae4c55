// Package features turns PCM audio into the cepstral feature matrices the
// aligner compares.
package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-sync/algorithms/filters"
	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/logging"
)

// ErrSampleRate is returned when the PCM stream does not match the configured rate
var ErrSampleRate = errors.New("sample rate does not match extractor configuration")

// energyFloor keeps log10 finite on digital silence
const energyFloor = 1e-10

// Config describes the analysis frames
type Config struct {
	SampleRate   int                 `json:"sample_rate" toml:"sample_rate"`
	WindowLength float64             `json:"window_length" toml:"window_length"` // seconds
	WindowShift  float64             `json:"window_shift" toml:"window_shift"`   // seconds
	WindowType   windowing.Type      `json:"window_type" toml:"window_type"`
	PreEmphasis  float64             `json:"pre_emphasis" toml:"pre_emphasis"`
	MFCC         spectral.MFCCParams `json:"mfcc" toml:"mfcc"`
	Workers      int                 `json:"workers" toml:"workers"` // 0 picks from runtime.NumCPU
}

// DefaultConfig returns 100 ms Hamming frames every 40 ms at 16 kHz
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		WindowLength: 0.100,
		WindowShift:  0.040,
		WindowType:   windowing.TypeHamming,
		PreEmphasis:  0.97,
		MFCC:         spectral.DefaultMFCCParams(),
	}
}

// Extractor computes feature matrices. It holds only read-only tables and is
// safe for concurrent use.
type Extractor struct {
	config   Config
	frameLen int
	shiftLen int
	fft      *spectral.FFT
	mfcc     *spectral.MFCC
	window   *windowing.Function
	emphasis *filters.PreEmphasis
	logger   logging.Logger
}

// NewExtractor validates cfg and precomputes window, filter bank and DCT tables
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", cfg.SampleRate)
	}
	if cfg.WindowLength <= 0 || cfg.WindowShift <= 0 {
		return nil, fmt.Errorf("window length and shift must be positive: %f/%f", cfg.WindowLength, cfg.WindowShift)
	}
	if cfg.WindowShift > cfg.WindowLength {
		return nil, fmt.Errorf("window shift (%f) must not exceed window length (%f)", cfg.WindowShift, cfg.WindowLength)
	}
	emphasis, err := filters.NewPreEmphasis(cfg.PreEmphasis)
	if err != nil {
		return nil, err
	}

	frameLen := int(math.Round(cfg.WindowLength * float64(cfg.SampleRate)))
	shiftLen := int(math.Round(cfg.WindowShift * float64(cfg.SampleRate)))
	if frameLen <= 0 || shiftLen <= 0 {
		return nil, fmt.Errorf("window too short for sample rate %d", cfg.SampleRate)
	}

	window, err := windowing.New(cfg.WindowType, frameLen, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis window: %w", err)
	}

	fftSize := spectral.NextPowerOfTwo(frameLen)
	mfcc, err := spectral.NewMFCC(cfg.MFCC, fftSize, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
	}

	return &Extractor{
		config:   cfg,
		frameLen: frameLen,
		shiftLen: shiftLen,
		fft:      spectral.NewFFT(fftSize),
		mfcc:     mfcc,
		window:   window,
		emphasis: emphasis,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
	}, nil
}

// Shift returns the frame shift in seconds as realized in samples
func (e *Extractor) Shift() float64 {
	return float64(e.shiftLen) / float64(e.config.SampleRate)
}

// FrameCount returns how many frames Extract produces for n samples
func (e *Extractor) FrameCount(n int) int {
	if n < e.frameLen {
		return 0
	}
	return n / e.shiftLen
}

// Extract computes the feature matrix of a mono PCM stream.
// Frame i covers samples [i*shift, i*shift+length), zero padded past the end,
// so the matrix spans the whole track.
func (e *Extractor) Extract(ctx context.Context, pcm []float64, sampleRate int) (*Matrix, error) {
	if sampleRate != e.config.SampleRate {
		return nil, fmt.Errorf("%w: got %d Hz, expected %d Hz", ErrSampleRate, sampleRate, e.config.SampleRate)
	}

	numFrames := e.FrameCount(len(pcm))
	if numFrames == 0 {
		return nil, alignerr.New(alignerr.InsufficientAudio, "features",
			"%d samples is shorter than one %d-sample frame", len(pcm), e.frameLen)
	}

	emphasized := e.emphasis.Apply(pcm)
	dim := e.mfcc.NumCoefficients()
	data := make([]float64, numFrames*dim)
	energy := make([]float64, numFrames)

	numWorkers := e.workerCount(numFrames)
	chunk := (numFrames + numWorkers - 1) / numWorkers

	logger := e.logger.WithFields(logging.Fields{
		"function": "Extract",
		"frames":   numFrames,
		"workers":  numWorkers,
	})
	logger.Debug("Extracting features")

	var wg sync.WaitGroup
	errs := make([]error, numWorkers)

	for w := range numWorkers {
		start := w * chunk
		end := min(start+chunk, numFrames)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()

			frame := make([]float64, e.frameLen)
			power := make([]float64, e.fft.Bins())
			mel := make([]float64, e.mfcc.NumMelFilters())

			for i := start; i < end; i++ {
				if (i-start)%256 == 0 {
					if err := ctx.Err(); err != nil {
						errs[w] = err
						return
					}
				}
				offset := i * e.shiftLen
				energy[i] = frameEnergy(pcm, offset, e.frameLen)

				clear(frame)
				if offset < len(emphasized) {
					copy(frame, emphasized[offset:min(offset+e.frameLen, len(emphasized))])
				}
				if err := e.window.ApplyInPlace(frame); err != nil {
					errs[w] = err
					return
				}
				e.fft.PowerSpectrum(frame, power)
				e.mfcc.Compute(power, mel, data[i*dim:(i+1)*dim])
			}
		}(w, start, end)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("feature extraction aborted: %w", err)
	}

	logger.Debug("Features extracted")

	return &Matrix{
		data:   data,
		energy: energy,
		dim:    dim,
		shift:  e.Shift(),
	}, nil
}

// frameEnergy returns log10 of the mean square of the frame starting at offset
func frameEnergy(pcm []float64, offset, length int) float64 {
	end := min(offset+length, len(pcm))
	sum := 0.0
	for j := offset; j < end; j++ {
		sum += pcm[j] * pcm[j]
	}
	return math.Log10(sum/float64(length) + energyFloor)
}

// workerCount mirrors the STFT heuristic: small inputs are not worth fanning out
func (e *Extractor) workerCount(numFrames int) int {
	if e.config.Workers > 0 {
		return min(e.config.Workers, numFrames)
	}
	numCPU := runtime.NumCPU()
	switch {
	case numFrames < 100:
		return 1
	case numFrames < 1000:
		return min(numCPU, 8)
	default:
		return numCPU
	}
}
