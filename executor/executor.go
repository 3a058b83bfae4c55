// Package executor runs an alignment task end to end: decode, analyze,
// synthesize, align, adjust and serialize.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-sync/adjust"
	"github.com/RyanBlaney/sonido-sync/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/RyanBlaney/sonido-sync/config"
	"github.com/RyanBlaney/sonido-sync/dtw"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/headtail"
	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/RyanBlaney/sonido-sync/textfile"
	"github.com/RyanBlaney/sonido-sync/timemap"
	"github.com/RyanBlaney/sonido-sync/transcode"
	"github.com/RyanBlaney/sonido-sync/tts"
	"github.com/google/uuid"
)

// Task names the inputs and output of one alignment run
type Task struct {
	ID         string
	AudioPath  string
	TextPath   string
	OutputPath string
}

// NewTask creates a task with a fresh ID
func NewTask(audioPath, textPath, outputPath string) *Task {
	return &Task{
		ID:         uuid.NewString(),
		AudioPath:  audioPath,
		TextPath:   textPath,
		OutputPath: outputPath,
	}
}

// Result is the outcome of an alignment
type Result struct {
	SyncMap *syncmap.SyncMap
	// Head and Tail bound the audio that was aligned, in seconds
	Head float64
	Tail float64
	// PathLength is the number of points in the alignment path
	PathLength int
	Elapsed    time.Duration
}

// Executor holds the components built from one configuration. It is safe
// for concurrent use when its synthesizer is.
type Executor struct {
	cfg       config.Config
	decoder   *transcode.Decoder
	synth     tts.Synthesizer
	extractor *features.Extractor
	aligner   dtw.Aligner
	vad       *temporal.VAD
	detector  *headtail.Detector
	adjuster  *adjust.Adjuster
	mapper    *timemap.Mapper
	preparer  *textfile.Preparer
	logger    logging.Logger
}

// Option customizes an Executor
type Option func(*Executor)

// WithSynthesizer replaces the espeak-ng synthesizer
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(e *Executor) {
		e.synth = s
	}
}

// New validates cfg and builds every pipeline component
func New(cfg config.Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Executor{
		cfg:     cfg,
		decoder: transcode.NewDecoder(cfg.DecoderConfig()),
		mapper:  timemap.New(),
		logger: logging.WithFields(logging.Fields{
			"component": "executor",
		}),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.synth == nil {
		if e.synth, err = tts.NewEspeak(cfg.TTS, e.decoder); err != nil {
			return nil, err
		}
	}
	if e.extractor, err = features.NewExtractor(cfg.MFCC); err != nil {
		return nil, err
	}
	if e.aligner, err = dtw.New(cfg.DTW); err != nil {
		return nil, err
	}
	if e.vad, err = temporal.NewVAD(cfg.VAD); err != nil {
		return nil, err
	}
	if e.detector, err = headtail.New(cfg.HeadTail, e.vad); err != nil {
		return nil, err
	}
	if e.adjuster, err = adjust.New(cfg.Adjust); err != nil {
		return nil, err
	}

	var translit textfile.Transliteration
	if cfg.Text.TransliterateMap != "" {
		if translit, err = textfile.LoadTransliterationFile(cfg.Text.TransliterateMap); err != nil {
			return nil, err
		}
	}
	if e.preparer, err = textfile.NewPreparer(cfg.Text.IgnoreRegex, translit); err != nil {
		return nil, err
	}
	return e, nil
}

// Execute reads the task inputs, aligns them and writes the sync map
func (e *Executor) Execute(ctx context.Context, task *Task) (*Result, error) {
	ctx = logging.ContextWithFields(ctx, logging.Fields{"task_id": task.ID})
	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Execute",
		"audio":    task.AudioPath,
		"text":     task.TextPath,
	})

	audio, err := e.decoder.DecodeFile(ctx, task.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	sm, err := textfile.ReadFile(task.TextPath, e.cfg.TextOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	logger.Info("Inputs loaded", logging.Fields{
		"duration":  audio.Seconds(),
		"fragments": len(sm.Leaves()),
	})

	res, err := e.Align(ctx, audio, sm)
	if err != nil {
		return nil, err
	}

	if task.OutputPath != "" {
		if err := e.write(task.OutputPath, res.SyncMap); err != nil {
			return nil, err
		}
		logger.Info("Sync map written", logging.Fields{
			"output": task.OutputPath,
			"format": string(e.cfg.Output.Format),
		})
	}
	return res, nil
}

func (e *Executor) write(path string, sm *syncmap.SyncMap) error {
	format, err := syncmap.ParseFormat(string(e.cfg.Output.Format))
	if err != nil {
		return err
	}
	data, err := syncmap.Marshal(sm, format, e.cfg.OutputOptions())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sync map: %w", err)
	}
	return nil
}

// Align computes fragment intervals for sm against mono audio at the
// analysis rate. sm is not modified; the result holds an aligned copy.
func (e *Executor) Align(ctx context.Context, audio *transcode.AudioData, sm *syncmap.SyncMap) (*Result, error) {
	start := time.Now()
	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Align",
	})

	rate := e.cfg.MFCC.SampleRate
	if len(audio.PCM) == 0 {
		return nil, alignerr.New(alignerr.InsufficientAudio, "executor", "audio holds no samples")
	}
	if err := audio.Validate(rate, 1); err != nil {
		return nil, err
	}
	leaves := sm.Leaves()
	if len(leaves) == 0 {
		return nil, errors.New("sync map has no fragments")
	}

	real, err := e.extractor.Extract(ctx, audio.PCM, rate)
	if err != nil {
		return nil, fmt.Errorf("real audio: %w", err)
	}

	texts := make([]string, len(leaves))
	for i, leaf := range leaves {
		texts[i] = e.preparer.Text(leaf)
	}
	synthesis, err := tts.SynthesizeAll(ctx, e.synth, texts, e.cfg.Language, rate)
	if err != nil {
		return nil, err
	}
	synth, err := e.extractor.Extract(ctx, synthesis.Audio.PCM, rate)
	if err != nil {
		return nil, fmt.Errorf("synthesized audio: %w", err)
	}
	logger.Debug("Features ready", logging.Fields{
		"real_frames":  real.Len(),
		"synth_frames": synth.Len(),
	})

	span, err := e.detector.Detect(real, e.query(synth, synthesis.Durations))
	if err != nil {
		return nil, err
	}
	cropped, err := headtail.Crop(real, span)
	if err != nil {
		return nil, err
	}

	path, err := e.aligner.ComputePath(ctx, cropped, synth, e.cfg.DTW.Margin)
	if err != nil {
		return nil, err
	}

	intervals, err := e.mapper.Map(path, cropped, synth, synthesis.Durations)
	if err != nil {
		return nil, err
	}
	out := sm.Clone()
	if err := timemap.Apply(out, intervals); err != nil {
		return nil, err
	}

	if err := e.adjuster.Adjust(out, adjust.NewEvidence(real, e.vad)); err != nil {
		return nil, err
	}

	res := &Result{
		SyncMap:    out,
		Head:       span.Head,
		Tail:       span.Tail,
		PathLength: len(path),
		Elapsed:    time.Since(start),
	}
	logger.Info("Alignment completed", logging.Fields{
		"fragments": len(leaves),
		"head":      res.Head,
		"tail":      res.Tail,
		"path":      res.PathLength,
		"elapsed":   res.Elapsed.String(),
	})
	return res, nil
}

// query returns the synthesized features of the first and last fragments
// for ranking head and tail candidates
func (e *Executor) query(synth *features.Matrix, durations []float64) headtail.Query {
	var q headtail.Query
	if e.cfg.HeadTail.Head == nil && e.cfg.HeadTail.Tail == nil {
		return q
	}

	first := synth.FrameAt(durations[0])
	if m, err := synth.Slice(0, first); err == nil && first > 0 {
		q.First = m
	}
	last := synth.FrameAt(synth.Duration() - durations[len(durations)-1])
	if m, err := synth.Slice(last, synth.Len()); err == nil && last < synth.Len() {
		q.Last = m
	}
	return q
}
