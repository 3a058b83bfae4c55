package transcode

import (
	"fmt"
	"time"
)

// AudioData holds decoded PCM in [-1, 1]. Multi-channel data is interleaved.
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// NewAudioData wraps mono or interleaved PCM and derives its duration
func NewAudioData(pcm []float64, sampleRate, channels int) *AudioData {
	a := &AudioData{PCM: pcm, SampleRate: sampleRate, Channels: channels}
	if sampleRate > 0 && channels > 0 {
		frames := len(pcm) / channels
		a.Duration = time.Duration(frames) * time.Second / time.Duration(sampleRate)
	}
	return a
}

// Seconds returns the duration as float seconds, exact to the sample
func (a *AudioData) Seconds() float64 {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	return float64(len(a.PCM)/a.Channels) / float64(a.SampleRate)
}

// Validate rejects audio that does not match the expected rate and channel count
func (a *AudioData) Validate(sampleRate, channels int) error {
	if a.SampleRate != sampleRate {
		return fmt.Errorf("audio sample rate %d Hz, expected %d Hz", a.SampleRate, sampleRate)
	}
	if a.Channels != channels {
		return fmt.Errorf("audio has %d channels, expected %d", a.Channels, channels)
	}
	if len(a.PCM) == 0 {
		return fmt.Errorf("audio holds no samples")
	}
	return nil
}

// Mono averages interleaved channels into a new mono AudioData
func (a *AudioData) Mono() *AudioData {
	if a.Channels <= 1 {
		return a
	}
	frames := len(a.PCM) / a.Channels
	out := make([]float64, frames)
	for i := range out {
		sum := 0.0
		for c := 0; c < a.Channels; c++ {
			sum += a.PCM[i*a.Channels+c]
		}
		out[i] = sum / float64(a.Channels)
	}
	mono := NewAudioData(out, a.SampleRate, 1)
	mono.Metadata = a.Metadata
	return mono
}

// Concat joins mono clips of one sample rate and returns each clip's duration in seconds
func Concat(clips ...*AudioData) (*AudioData, []float64, error) {
	if len(clips) == 0 {
		return nil, nil, fmt.Errorf("nothing to concatenate")
	}
	rate := clips[0].SampleRate
	total := 0
	for i, c := range clips {
		if c.SampleRate != rate || c.Channels != 1 {
			return nil, nil, fmt.Errorf("clip %d is %d Hz/%d ch, expected %d Hz mono", i, c.SampleRate, c.Channels, rate)
		}
		total += len(c.PCM)
	}

	pcm := make([]float64, 0, total)
	durations := make([]float64, len(clips))
	for i, c := range clips {
		pcm = append(pcm, c.PCM...)
		durations[i] = c.Seconds()
	}
	return NewAudioData(pcm, rate, 1), durations, nil
}
