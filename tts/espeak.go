package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/transcode"
	"golang.org/x/text/language"
)

// EspeakConfig configures the espeak-ng command line synthesizer
type EspeakConfig struct {
	Path string `json:"path" toml:"path"`
	// Voice overrides the voice derived from the fragment language
	Voice string `json:"voice" toml:"voice"`
	// Speed in words per minute; zero keeps the espeak default
	Speed int `json:"speed" toml:"speed"`
}

// DefaultEspeakConfig returns the espeak-ng binary on PATH with default voice settings
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{Path: "espeak-ng"}
}

// Espeak synthesizes text by running espeak-ng into a temporary WAV file,
// which the decoder then brings to the target rate
type Espeak struct {
	config  EspeakConfig
	decoder *transcode.Decoder
}

// NewEspeak creates an espeak-ng synthesizer whose output is normalized by decoder
func NewEspeak(cfg EspeakConfig, decoder *transcode.Decoder) (*Espeak, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("espeak path is required")
	}
	if cfg.Speed < 0 {
		return nil, fmt.Errorf("espeak speed must be >= 0: %d", cfg.Speed)
	}
	if decoder == nil {
		decoder = transcode.NewDecoder(nil)
	}
	return &Espeak{config: cfg, decoder: decoder}, nil
}

// Voice maps a language code such as "eng", "en-GB" or "it" to an espeak voice name
func Voice(lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("unknown language %q: %w", lang, err)
	}
	base, _ := tag.Base()
	if region, conf := tag.Region(); conf == language.Exact {
		return base.String() + "-" + region.String(), nil
	}
	return base.String(), nil
}

func (e *Espeak) args(text, lang, out string) ([]string, error) {
	voice := e.config.Voice
	if voice == "" {
		v, err := Voice(lang)
		if err != nil {
			return nil, err
		}
		voice = v
	}

	args := []string{"-v", voice, "-w", out}
	if e.config.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(e.config.Speed))
	}
	return append(args, "--", text), nil
}

// Synthesize runs espeak-ng for one text
func (e *Espeak) Synthesize(ctx context.Context, text, lang string) (*transcode.AudioData, error) {
	tempFile, err := os.CreateTemp("", "sonido-tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}
	tempFile.Close()
	defer func() {
		if err := os.Remove(tempFile.Name()); err != nil {
			logging.Warn("Failed to remove tts temp file", logging.Fields{
				"component": "tts",
				"path":      tempFile.Name(),
				"error":     err.Error(),
			})
		}
	}()

	args, err := e.args(text, lang, tempFile.Name())
	if err != nil {
		return nil, err
	}

	// #nosec G204 -- text is passed after "--" as a single argument
	cmd := exec.CommandContext(ctx, e.config.Path, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("espeak execution failed: %w - output: %s", err, string(output))
	}

	return e.decoder.DecodeFile(ctx, tempFile.Name())
}
