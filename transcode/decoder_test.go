package transcode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToFloat64(t *testing.T) {
	want := []float64{0, 0.5, -1, 0.25}
	data := make([]byte, 8*len(want)+3)
	for i, v := range want {
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}

	assert.Equal(t, want, bytesToFloat64(data))
	assert.Nil(t, bytesToFloat64([]byte{1, 2}))
}

func TestParseFFprobeOutput(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","codec_long_name":"MP3 (MPEG audio layer 3)",
		"sample_rate":"44100","channels":2,"duration":"12.500000","bit_rate":"128000"}]}`)

	md, err := parseFFprobeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, 44100, md.SampleRate)
	assert.Equal(t, 2, md.Channels)
	assert.Equal(t, "mp3", md.Codec)
	assert.InDelta(t, 12.5, md.Duration, 1e-9)
	assert.Equal(t, 128000, md.Bitrate)
}

func TestParseFFprobeOutputErrors(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{`,
		"no streams":   `{"streams":[]}`,
		"video":        `{"streams":[{"codec_type":"video","sample_rate":"44100","channels":2}]}`,
		"bad rate":     `{"streams":[{"codec_type":"audio","sample_rate":"x","channels":2}]}`,
		"bad channels": `{"streams":[{"codec_type":"audio","sample_rate":"8000","channels":0}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseFFprobeOutput([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	d := NewDecoder(nil)

	args := d.buildFFmpegArgs(&AudioMetadata{SampleRate: 16000, Channels: 1})
	assert.Equal(t, []string{"-vn", "-f", "f64le", "-ac", "1", "-ar", "16000", "-v", "error"}, args)

	args = d.buildFFmpegArgs(&AudioMetadata{SampleRate: 44100, Channels: 2})
	assert.Contains(t, args, "aresample=resampler=soxr:precision=20")

	cfg := DefaultDecoderConfig()
	cfg.EnableNormalization = true
	cfg.NormalizationMethod = "loudnorm"
	args = NewDecoder(cfg).buildFFmpegArgs(&AudioMetadata{SampleRate: 16000})
	assert.Contains(t, args, "loudnorm=I=-20.0:TP=-3.0:LRA=5.0")
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, NewDecoder(nil).ValidateConfig())

	for _, mutate := range []func(*DecoderConfig){
		func(c *DecoderConfig) { c.TargetSampleRate = 0 },
		func(c *DecoderConfig) { c.TargetChannels = 9 },
		func(c *DecoderConfig) { c.Timeout = -1 },
		func(c *DecoderConfig) { c.ResampleQuality = "best" },
	} {
		cfg := DefaultDecoderConfig()
		mutate(cfg)
		assert.Error(t, NewDecoder(cfg).ValidateConfig())
	}
}
