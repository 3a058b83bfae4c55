package temporal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// VADParams configures energy-based voice activity detection on per-frame
// log10 energies
type VADParams struct {
	// LogEnergyThreshold is added to the minimum frame energy; frames below
	// the sum are nonspeech. 0.699 means "less than 5x the quietest frame".
	LogEnergyThreshold float64 `json:"log_energy_threshold" toml:"log_energy_threshold"`
	// MinNonspeechLength is the shortest quiet run, in seconds, reported as a region
	MinNonspeechLength float64 `json:"min_nonspeech_length" toml:"min_nonspeech_length"`
	// ExtendSpeechBefore/After grow speech into adjacent quiet frames, in seconds
	ExtendSpeechBefore float64 `json:"extend_speech_before" toml:"extend_speech_before"`
	ExtendSpeechAfter  float64 `json:"extend_speech_after" toml:"extend_speech_after"`
}

// DefaultVADParams returns the detection thresholds used for boundary adjustment
func DefaultVADParams() VADParams {
	return VADParams{
		LogEnergyThreshold: 0.699,
		MinNonspeechLength: 0.200,
	}
}

// Validate checks parameter ranges
func (p VADParams) Validate() error {
	if p.LogEnergyThreshold < 0 || math.IsNaN(p.LogEnergyThreshold) {
		return fmt.Errorf("log energy threshold must be >= 0: %f", p.LogEnergyThreshold)
	}
	if p.MinNonspeechLength < 0 {
		return fmt.Errorf("min nonspeech length must be >= 0: %f", p.MinNonspeechLength)
	}
	if p.ExtendSpeechBefore < 0 || p.ExtendSpeechAfter < 0 {
		return fmt.Errorf("speech extension must be >= 0")
	}
	return nil
}

// Interval is a half-open frame range [Begin, End)
type Interval struct {
	Begin int
	End   int
}

// VAD classifies frames as speech or nonspeech
type VAD struct {
	params VADParams
}

// NewVAD creates a detector
func NewVAD(params VADParams) (*VAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &VAD{params: params}, nil
}

// Threshold returns the energy below which a frame is nonspeech
func (v *VAD) Threshold(energy []float64) float64 {
	if len(energy) == 0 {
		return math.Inf(-1)
	}
	return floats.Min(energy) + v.params.LogEnergyThreshold
}

// SpeechMask returns one flag per frame, true for speech
func (v *VAD) SpeechMask(energy []float64, shift float64) []bool {
	mask := make([]bool, len(energy))
	if len(energy) == 0 {
		return mask
	}
	threshold := v.Threshold(energy)
	for i, e := range energy {
		mask[i] = e >= threshold
	}

	before := secondsToFrames(v.params.ExtendSpeechBefore, shift)
	after := secondsToFrames(v.params.ExtendSpeechAfter, shift)
	if before == 0 && after == 0 {
		return mask
	}

	extended := make([]bool, len(mask))
	for i, speech := range mask {
		if !speech {
			continue
		}
		lo := max(0, i-before)
		hi := min(len(mask)-1, i+after)
		for j := lo; j <= hi; j++ {
			extended[j] = true
		}
	}
	return extended
}

// Nonspeech returns the quiet runs lasting at least MinNonspeechLength, in order
func (v *VAD) Nonspeech(energy []float64, shift float64) []Interval {
	mask := v.SpeechMask(energy, shift)
	minFrames := max(1, secondsToFrames(v.params.MinNonspeechLength, shift))
	return runs(mask, false, minFrames)
}

// runs groups consecutive frames whose flag equals want into intervals of at least minLen
func runs(mask []bool, want bool, minLen int) []Interval {
	var out []Interval
	start := -1
	for i, flag := range mask {
		if flag == want && start == -1 {
			start = i
		} else if flag != want && start != -1 {
			if i-start >= minLen {
				out = append(out, Interval{Begin: start, End: i})
			}
			start = -1
		}
	}
	if start != -1 && len(mask)-start >= minLen {
		out = append(out, Interval{Begin: start, End: len(mask)})
	}
	return out
}

func secondsToFrames(seconds, shift float64) int {
	if seconds <= 0 || shift <= 0 {
		return 0
	}
	return int(math.Ceil(seconds/shift - 1e-9))
}
