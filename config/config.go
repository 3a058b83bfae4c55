// Package config holds the immutable engine configuration and its loaders.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-sync/adjust"
	"github.com/RyanBlaney/sonido-sync/algorithms/temporal"
	"github.com/RyanBlaney/sonido-sync/dtw"
	"github.com/RyanBlaney/sonido-sync/features"
	"github.com/RyanBlaney/sonido-sync/headtail"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/RyanBlaney/sonido-sync/textfile"
	"github.com/RyanBlaney/sonido-sync/transcode"
	"github.com/RyanBlaney/sonido-sync/tts"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Audio configures input decoding
type Audio struct {
	FFmpegPath          string `toml:"ffmpeg_path"`
	FFprobePath         string `toml:"ffprobe_path"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	ResampleQuality     string `toml:"resample_quality"`
	Normalize           bool   `toml:"normalize"`
	NormalizationMethod string `toml:"normalization_method"`
}

// Text configures how the input text is read and prepared for synthesis
type Text struct {
	Type    textfile.Type      `toml:"type"`
	IDRegex string             `toml:"id_regex"`
	IDSort  textfile.SortOrder `toml:"id_sort"`
	// IgnoreRegex removes matching text before synthesis only
	IgnoreRegex string `toml:"ignore_regex"`
	// TransliterateMap is a path to a codepoint replacement file
	TransliterateMap string `toml:"transliterate_map"`
}

// Output configures the sync map file
type Output struct {
	Format   syncmap.Format `toml:"format"`
	IDFormat string         `toml:"id_format"`
	AudioRef string         `toml:"audio_ref"`
	PageRef  string         `toml:"page_ref"`
}

// Logging configures log output
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full engine configuration. Treat it as a value: the
// Apply and Load helpers return modified copies.
//
// Sections:
//   - Audio: ffmpeg decoding to the analysis rate
//   - TTS: espeak-ng synthesis
//   - MFCC: analysis frames
//   - DTW: path computation and memory policy
//   - VAD: energy thresholds for quiet regions
//   - Adjust: boundary adjustment algorithm
//   - HeadTail: leading and trailing non-content handling
//   - Text: input text parsing and preparation
//   - Output: sync map format
type Config struct {
	Language string             `toml:"language"`
	Audio    Audio              `toml:"audio"`
	TTS      tts.EspeakConfig   `toml:"tts"`
	MFCC     features.Config    `toml:"mfcc"`
	DTW      dtw.Config         `toml:"dtw"`
	VAD      temporal.VADParams `toml:"vad"`
	Adjust   adjust.Config      `toml:"adjust"`
	HeadTail headtail.Config    `toml:"head_tail"`
	Text     Text               `toml:"text"`
	Output   Output             `toml:"output"`
	Logging  Logging            `toml:"logging"`
}

// Default returns a Config populated with engine defaults
func Default() Config {
	decoder := transcode.DefaultDecoderConfig()
	return Config{
		Language: "eng",
		Audio: Audio{
			FFmpegPath:          decoder.FFmpegPath,
			FFprobePath:         decoder.FFprobePath,
			TimeoutSeconds:      int(decoder.Timeout / time.Second),
			ResampleQuality:     decoder.ResampleQuality,
			NormalizationMethod: decoder.NormalizationMethod,
		},
		TTS:    tts.DefaultEspeakConfig(),
		MFCC:   features.DefaultConfig(),
		DTW:    dtw.DefaultConfig(),
		VAD:    temporal.DefaultVADParams(),
		Adjust: adjust.DefaultConfig(),
		Text: Text{
			Type:   textfile.TypePlain,
			IDSort: textfile.SortNumeric,
		},
		Output: Output{
			Format: syncmap.FormatJSON,
		},
		Logging: Logging{Level: "info"},
	}
}

// SampleConfig returns a commented TOML file holding the defaults
func SampleConfig() string {
	return sampleConfig
}

// LoadFile decodes the TOML file at path over the defaults and validates the result
func LoadFile(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecoderConfig builds the transcode settings for the analysis rate
func (c Config) DecoderConfig() *transcode.DecoderConfig {
	d := transcode.DefaultDecoderConfig()
	d.TargetSampleRate = c.MFCC.SampleRate
	d.TargetChannels = 1
	d.FFmpegPath = c.Audio.FFmpegPath
	d.FFprobePath = c.Audio.FFprobePath
	d.Timeout = time.Duration(c.Audio.TimeoutSeconds) * time.Second
	d.ResampleQuality = c.Audio.ResampleQuality
	d.EnableNormalization = c.Audio.Normalize
	d.NormalizationMethod = c.Audio.NormalizationMethod
	return d
}

// TextOptions returns the text parser options
func (c Config) TextOptions() textfile.Options {
	return textfile.Options{
		Type:     c.Text.Type,
		Language: c.Language,
		IDRegex:  c.Text.IDRegex,
		IDSort:   c.Text.IDSort,
	}
}

// OutputOptions returns the serializer options
func (c Config) OutputOptions() syncmap.Options {
	return syncmap.Options{
		IDFormat: c.Output.IDFormat,
		AudioRef: c.Output.AudioRef,
		PageRef:  c.Output.PageRef,
	}
}

// normalize maps format aliases to their canonical names
func (c *Config) normalize() {
	if f, err := syncmap.ParseFormat(string(c.Output.Format)); err == nil {
		c.Output.Format = f
	}
}
