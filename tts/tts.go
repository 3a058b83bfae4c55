// Package tts turns fragment text into the synthesized waveform the aligner
// compares against the real recording.
package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/transcode"
)

// Synthesizer renders one piece of text as mono speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) (*transcode.AudioData, error)
}

// Result is the concatenated synthesis of a fragment list
type Result struct {
	Audio *transcode.AudioData
	// Durations holds one entry per input text, in seconds
	Durations []float64
}

// SynthesizeAll renders each text in order and concatenates the clips.
// Blank texts contribute a zero-length clip. Every clip must be mono at
// sampleRate.
func SynthesizeAll(ctx context.Context, s Synthesizer, texts []string, language string, sampleRate int) (*Result, error) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "tts",
		"function":  "SynthesizeAll",
		"fragments": len(texts),
		"language":  language,
	})

	if len(texts) == 0 {
		return nil, fmt.Errorf("no text to synthesize")
	}

	clips := make([]*transcode.AudioData, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if strings.TrimSpace(text) == "" {
			clips[i] = transcode.NewAudioData(nil, sampleRate, 1)
			continue
		}

		clip, err := s.Synthesize(ctx, text, language)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize fragment %d: %w", i, err)
		}
		if clip.SampleRate != sampleRate || clip.Channels != 1 {
			return nil, fmt.Errorf("fragment %d synthesized as %d Hz/%d ch, expected %d Hz mono",
				i, clip.SampleRate, clip.Channels, sampleRate)
		}
		clips[i] = clip
	}

	audio, durations, err := transcode.Concat(clips...)
	if err != nil {
		return nil, err
	}

	logger.Debug("Synthesis completed", logging.Fields{
		"duration": audio.Seconds(),
	})
	return &Result{Audio: audio, Durations: durations}, nil
}
