package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/RyanBlaney/sonido-sync/adjust"
	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/RyanBlaney/sonido-sync/transcode"
	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable
func (c Config) Validate() error {
	if _, err := c.LanguageTag(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateMFCC(); err != nil {
		return err
	}
	if err := c.DTW.Validate(); err != nil {
		return fmt.Errorf("dtw: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad: %w", err)
	}
	if _, err := adjust.New(c.Adjust); err != nil {
		return fmt.Errorf("adjust: %w", err)
	}
	if err := c.HeadTail.Validate(); err != nil {
		return fmt.Errorf("head_tail: %w", err)
	}
	if err := c.validateText(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("logging.level %q is not a level", c.Logging.Level)
	}
	return nil
}

// LanguageTag parses Language as a BCP 47 or ISO 639-3 code
func (c Config) LanguageTag() (language.Tag, error) {
	if c.Language == "" {
		return language.Und, errors.New("language must be set")
	}
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und, fmt.Errorf("language %q: %w", c.Language, err)
	}
	return tag, nil
}

func (c Config) validateAudio() error {
	if c.Audio.FFmpegPath == "" || c.Audio.FFprobePath == "" {
		return errors.New("audio.ffmpeg_path and audio.ffprobe_path must be set")
	}
	if c.Audio.TimeoutSeconds < 0 {
		return errors.New("audio.timeout_seconds cannot be negative")
	}
	if err := transcode.NewDecoder(c.DecoderConfig()).ValidateConfig(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return nil
}

func (c Config) validateMFCC() error {
	m := c.MFCC
	if m.SampleRate <= 0 {
		return fmt.Errorf("mfcc.sample_rate must be positive: %d", m.SampleRate)
	}
	if m.WindowLength <= 0 || m.WindowShift <= 0 || m.WindowShift > m.WindowLength {
		return fmt.Errorf("mfcc window %v/%v: shift must be positive and not exceed length", m.WindowLength, m.WindowShift)
	}
	if m.MFCC.NumCoefficients < 2 {
		return fmt.Errorf("mfcc.mfcc.num_coefficients must be at least 2: %d", m.MFCC.NumCoefficients)
	}
	return nil
}

func (c Config) validateText() error {
	if err := c.TextOptions().Validate(); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if c.Text.IgnoreRegex != "" {
		if _, err := regexp.Compile(c.Text.IgnoreRegex); err != nil {
			return fmt.Errorf("text.ignore_regex: %w", err)
		}
	}
	return nil
}

func (c Config) validateOutput() error {
	format, err := syncmap.ParseFormat(string(c.Output.Format))
	if err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if format == syncmap.FormatSMIL && (c.Output.AudioRef == "" || c.Output.PageRef == "") {
		return errors.New("output.audio_ref and output.page_ref are required for smil")
	}
	if c.Output.IDFormat != "" {
		if err := syncmap.ValidateIDFormat(c.Output.IDFormat); err != nil {
			return fmt.Errorf("output.id_format: %w", err)
		}
	}
	return nil
}
