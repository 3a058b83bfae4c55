package transcode_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-sync/internal/testsignal"
	"github.com/RyanBlaney/sonido-sync/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAudioDataDuration(t *testing.T) {
	a := transcode.NewAudioData(make([]float64, 24000), 16000, 1)
	assert.Equal(t, 1500*time.Millisecond, a.Duration)
	assert.InDelta(t, 1.5, a.Seconds(), 1e-12)

	stereo := transcode.NewAudioData(make([]float64, 32000), 16000, 2)
	assert.InDelta(t, 1.0, stereo.Seconds(), 1e-12)
}

func TestValidate(t *testing.T) {
	a := transcode.NewAudioData([]float64{0, 0.1}, 16000, 1)
	assert.NoError(t, a.Validate(16000, 1))
	assert.Error(t, a.Validate(22050, 1))
	assert.Error(t, a.Validate(16000, 2))
	assert.Error(t, transcode.NewAudioData(nil, 16000, 1).Validate(16000, 1))
}

func TestMonoAveragesChannels(t *testing.T) {
	a := transcode.NewAudioData([]float64{1, 0, 0.5, 0.5, -1, 0}, 8000, 2)
	m := a.Mono()
	assert.Equal(t, 1, m.Channels)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, -0.5}, m.PCM, 1e-12)

	assert.Same(t, m, m.Mono())
}

func TestConcatReportsClipDurations(t *testing.T) {
	a := transcode.NewAudioData(make([]float64, 8000), 16000, 1)
	b := transcode.NewAudioData(nil, 16000, 1)
	c := transcode.NewAudioData(make([]float64, 4000), 16000, 1)

	out, durations, err := transcode.Concat(a, b, c)
	require.NoError(t, err)
	assert.Len(t, out.PCM, 12000)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.25}, durations, 1e-12)

	_, _, err = transcode.Concat(a, transcode.NewAudioData(make([]float64, 10), 22050, 1))
	assert.Error(t, err)
	_, _, err = transcode.Concat()
	assert.Error(t, err)
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	pcm := testsignal.Tone(440, 0.25, 0.5, testsignal.Rate)
	require.NoError(t, transcode.WriteWAVFile(path, transcode.NewAudioData(pcm, testsignal.Rate, 1)))

	got, err := transcode.ReadWAVFile(path)
	require.NoError(t, err)
	assert.Equal(t, testsignal.Rate, got.SampleRate)
	assert.Equal(t, 1, got.Channels)
	require.Len(t, got.PCM, len(pcm))
	for i := range pcm {
		assert.InDelta(t, pcm[i], got.PCM[i], 1e-4)
	}
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "wav", got.Metadata.Format)
}

func TestWriteWAVClipsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	require.NoError(t, transcode.WriteWAVFile(path, transcode.NewAudioData([]float64{2, -2, 0}, 8000, 1)))

	got, err := transcode.ReadWAVFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.PCM[0], 1e-4)
	assert.InDelta(t, -1.0, got.PCM[1], 1e-4)
	assert.InDelta(t, 0.0, got.PCM[2], 1e-12)
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.wav")
	_, err := transcode.ReadWAVFile(path)
	assert.Error(t, err)
}

func TestDecodeFileReadsMatchingWAVDirectly(t *testing.T) {
	dir := t.TempDir()

	mono := filepath.Join(dir, "mono.wav")
	require.NoError(t, transcode.WriteWAVFile(mono, transcode.NewAudioData(testsignal.Tone(300, 0.5, 0.4, 16000), 16000, 1)))

	stereoPCM := make([]float64, 0, 16000)
	for _, v := range testsignal.Tone(300, 0.5, 0.4, 16000) {
		stereoPCM = append(stereoPCM, v, v)
	}
	stereo := filepath.Join(dir, "stereo.wav")
	require.NoError(t, transcode.WriteWAVFile(stereo, transcode.NewAudioData(stereoPCM, 16000, 2)))

	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = filepath.Join(dir, "no-ffmpeg")
	cfg.FFprobePath = filepath.Join(dir, "no-ffprobe")
	d := transcode.NewDecoder(cfg)

	for _, path := range []string{mono, stereo} {
		a, err := d.DecodeFile(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, 16000, a.SampleRate)
		assert.Equal(t, 1, a.Channels)
		assert.InDelta(t, 0.5, a.Seconds(), 1e-9)
	}
}

func TestDecodeFileNeedsFFmpegForOtherRates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fast.wav")
	require.NoError(t, transcode.WriteWAVFile(path, transcode.NewAudioData(make([]float64, 4410), 44100, 1)))

	cfg := transcode.DefaultDecoderConfig()
	cfg.FFprobePath = filepath.Join(dir, "no-ffprobe")
	_, err := transcode.NewDecoder(cfg).DecodeFile(context.Background(), path)
	assert.Error(t, err)
}
