package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-sync/adjust"
	"github.com/RyanBlaney/sonido-sync/dtw"
	"github.com/RyanBlaney/sonido-sync/headtail"
	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/RyanBlaney/sonido-sync/textfile"
)

// Task string keys, "key=value" pairs joined by "|"
const (
	KeyLanguage           = "task_language"
	KeyTextType           = "is_text_type"
	KeyOutputFormat       = "os_task_file_format"
	KeyAdjustAlgorithm    = "task_adjust_boundary_algorithm"
	KeyAdjustOffset       = "task_adjust_boundary_offset_value"
	KeyAdjustPercent      = "task_adjust_boundary_percent_value"
	KeyAdjustRate         = "task_adjust_boundary_rate_value"
	KeyAdjustAfterCurrent = "task_adjust_boundary_aftercurrent_value"
	KeyAdjustBeforeNext   = "task_adjust_boundary_beforenext_value"
	KeyHeadMin            = "is_audio_file_detect_head_min"
	KeyHeadMax            = "is_audio_file_detect_head_max"
	KeyTailMin            = "is_audio_file_detect_tail_min"
	KeyTailMax            = "is_audio_file_detect_tail_max"
	KeyHeadLength         = "is_audio_file_head_length"
	KeyTailLength         = "is_audio_file_tail_length"
	KeyProcessLength      = "is_audio_file_process_length"
	KeyDTWMargin          = "dtw_margin"
	KeyDTWAlgorithm       = "dtw_algorithm"
	KeyMFCCWindowLength   = "mfcc_window_length"
	KeyMFCCWindowShift    = "mfcc_window_shift"
	KeyIDFormat           = "os_task_file_id_regex"
	KeyIgnoreRegex        = "is_text_file_ignore_regex"
	KeyTransliterateMap   = "is_text_file_transliterate_map"
	KeyUnparsedIDRegex    = "is_text_unparsed_id_regex"
	KeyUnparsedIDSort     = "is_text_unparsed_id_sort"
	KeySMILAudioRef       = "os_task_file_smil_audio_ref"
	KeySMILPageRef        = "os_task_file_smil_page_ref"
	taskPairSeparator     = "|"
	taskKeyValueSeparator = "="
)

var adjustValueKeys = map[string]adjust.Algorithm{
	KeyAdjustOffset:       adjust.Offset,
	KeyAdjustPercent:      adjust.Percent,
	KeyAdjustRate:         adjust.Rate,
	KeyAdjustAfterCurrent: adjust.AfterCurrent,
	KeyAdjustBeforeNext:   adjust.BeforeNext,
}

// ApplyTaskString returns a copy of c updated from a task string such as
//
//	task_language=eng|is_text_type=plain|os_task_file_format=srt
//
// Unknown keys are logged and skipped. The result is validated.
func (c Config) ApplyTaskString(task string) (Config, error) {
	out := c
	if out.HeadTail.Head != nil {
		w := *out.HeadTail.Head
		out.HeadTail.Head = &w
	}
	if out.HeadTail.Tail != nil {
		w := *out.HeadTail.Tail
		out.HeadTail.Tail = &w
	}

	values := make(map[adjust.Algorithm]float64)
	for _, pair := range strings.Split(task, taskPairSeparator) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, taskKeyValueSeparator)
		if !ok {
			return Config{}, fmt.Errorf("task pair %q has no %q", pair, taskKeyValueSeparator)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if alg, ok := adjustValueKeys[key]; ok {
			v, err := parseFloat(key, value)
			if err != nil {
				return Config{}, err
			}
			values[alg] = v
			continue
		}
		if err := out.applyTaskKey(key, value); err != nil {
			return Config{}, err
		}
	}

	valueAlg := out.Adjust.Algorithm
	if valueAlg == adjust.RateAggressive {
		valueAlg = adjust.Rate
	}
	if v, ok := values[valueAlg]; ok {
		out.Adjust.Value = v
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (c *Config) applyTaskKey(key, value string) error {
	var err error
	switch key {
	case KeyLanguage:
		c.Language = value
	case KeyTextType:
		c.Text.Type = textfile.Type(value)
	case KeyOutputFormat:
		c.Output.Format, err = syncmap.ParseFormat(value)
	case KeyAdjustAlgorithm:
		c.Adjust.Algorithm = adjust.Algorithm(value)
	case KeyHeadMin:
		err = setWindow(&c.HeadTail.Head, key, value, false)
	case KeyHeadMax:
		err = setWindow(&c.HeadTail.Head, key, value, true)
	case KeyTailMin:
		err = setWindow(&c.HeadTail.Tail, key, value, false)
	case KeyTailMax:
		err = setWindow(&c.HeadTail.Tail, key, value, true)
	case KeyHeadLength:
		c.HeadTail.HeadLength, err = parseFloat(key, value)
	case KeyTailLength:
		c.HeadTail.TailLength, err = parseFloat(key, value)
	case KeyProcessLength:
		c.HeadTail.ProcessLength, err = parseFloat(key, value)
	case KeyDTWMargin:
		c.DTW.Margin, err = parseFloat(key, value)
	case KeyDTWAlgorithm:
		c.DTW.Mode, err = dtw.ParseMode(value)
	case KeyMFCCWindowLength:
		c.MFCC.WindowLength, err = parseFloat(key, value)
	case KeyMFCCWindowShift:
		c.MFCC.WindowShift, err = parseFloat(key, value)
	case KeyIDFormat:
		c.Output.IDFormat = value
	case KeyIgnoreRegex:
		c.Text.IgnoreRegex = value
	case KeyTransliterateMap:
		c.Text.TransliterateMap = value
	case KeyUnparsedIDRegex:
		c.Text.IDRegex = value
	case KeyUnparsedIDSort:
		c.Text.IDSort = textfile.SortOrder(value)
	case KeySMILAudioRef:
		c.Output.AudioRef = value
	case KeySMILPageRef:
		c.Output.PageRef = value
	default:
		logging.Warn("Ignoring unknown task key", logging.Fields{
			"component": "config",
			"key":       key,
		})
	}
	return err
}

// setWindow creates the window on first use; a lone max gets min 0
func setWindow(w **headtail.Window, key, value string, isMax bool) error {
	v, err := parseFloat(key, value)
	if err != nil {
		return err
	}
	if *w == nil {
		*w = &headtail.Window{}
	}
	if isMax {
		(*w).Max = v
	} else {
		(*w).Min = v
	}
	return nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("task key %s: %q is not a number", key, value)
	}
	return v, nil
}
