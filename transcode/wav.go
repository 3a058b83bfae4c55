package transcode

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCMFormat is the WAVE_FORMAT_PCM tag
const wavPCMFormat = 1

// ReadWAV decodes an integer PCM WAV stream into floats in [-1, 1]
func ReadWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wav stream has no channel information")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}

	scale := 1.0 / math.Exp2(float64(bitDepth-1))
	pcm := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float64(v) * scale
	}

	a := NewAudioData(pcm, buf.Format.SampleRate, buf.Format.NumChannels)
	a.Metadata = &AudioMetadata{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Codec:      "pcm",
		Duration:   a.Seconds(),
		Format:     "wav",
	}
	return a, nil
}

// ReadWAVFile opens and decodes a WAV file
func ReadWAVFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// WriteWAV encodes a as 16-bit PCM. Samples are clipped to [-1, 1].
func WriteWAV(w io.WriteSeeker, a *AudioData) error {
	if a.Channels <= 0 || a.SampleRate <= 0 {
		return fmt.Errorf("invalid audio format %d Hz/%d ch", a.SampleRate, a.Channels)
	}

	const bitDepth = 16
	peak := math.Exp2(bitDepth-1) - 1
	data := make([]int, len(a.PCM))
	for i, v := range a.PCM {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, v)) * peak))
	}

	enc := wav.NewEncoder(w, a.SampleRate, bitDepth, a.Channels, wavPCMFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: a.Channels,
			SampleRate:  a.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile writes a to path as a 16-bit PCM WAV
func WriteWAVFile(path string, a *AudioData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	if err := WriteWAV(f, a); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
