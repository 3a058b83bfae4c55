package syncmap

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// Format names an output format. Every format round-trips ids and times.
// FormatSMIL carries no fragment text, so Unmarshal of SMIL returns
// fragments with empty Lines.
type Format string

const (
	FormatAUD  Format = "aud"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatSBV  Format = "sbv"
	FormatSMIL Format = "smil"
	FormatSRT  Format = "srt"
	FormatSSV  Format = "ssv"
	FormatTSV  Format = "tsv"
	FormatTTML Format = "ttml"
	FormatTXT  Format = "txt"
	FormatVTT  Format = "vtt"
	FormatXML  Format = "xml"
)

// Options tune serialization
type Options struct {
	// IDFormat renumbers leaves 1-based when set, e.g. "Word%03d"
	IDFormat string `json:"id_format" toml:"id_format"`

	// AudioRef and PageRef are required by SMIL
	AudioRef string `json:"audio_ref" toml:"audio_ref"`
	PageRef  string `json:"page_ref" toml:"page_ref"`

	// Language overrides the document language when set
	Language string `json:"language" toml:"language"`
}

type codec struct {
	write func(buf *bytes.Buffer, sm *SyncMap, opts Options) error
	read  func(data []byte) (*SyncMap, error)
}

var codecs = map[Format]codec{
	FormatAUD:  {write: writeAUD, read: readAUD},
	FormatCSV:  {write: writeCSV, read: readCSV},
	FormatJSON: {write: writeJSON, read: readJSON},
	FormatSBV:  {write: writeSBV, read: readSBV},
	FormatSMIL: {write: writeSMIL, read: readSMIL},
	FormatSRT:  {write: writeSRT, read: readSRT},
	FormatSSV:  {write: writeSSV, read: readSSV},
	FormatTSV:  {write: writeTSV, read: readTSV},
	FormatTTML: {write: writeTTML, read: readTTML},
	FormatTXT:  {write: writeTXT, read: readTXT},
	FormatVTT:  {write: writeVTT, read: readVTT},
	FormatXML:  {write: writeXML, read: readXML},
}

// Formats lists every supported format in name order
func Formats() []Format {
	out := make([]Format, 0, len(codecs))
	for f := range codecs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat resolves a format name, case-insensitively. "dfxp" is TTML.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "dfxp" {
		return FormatTTML, nil
	}
	if _, ok := codecs[f]; !ok {
		return "", fmt.Errorf("unsupported sync map format %q", name)
	}
	return f, nil
}

// FormatFromPath guesses the format from a file extension
func FormatFromPath(path string) (Format, error) {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return "", fmt.Errorf("no extension in %q", path)
	}
	return ParseFormat(path[dot+1:])
}

// Marshal serializes sm. The output depends only on sm and opts.
func Marshal(sm *SyncMap, format Format, opts Options) ([]byte, error) {
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("unsupported sync map format %q", format)
	}
	prepared, err := prepare(sm, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.write(&buf, prepared, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes sm to w. Nothing is written when serialization fails.
func Write(w io.Writer, sm *SyncMap, format Format, opts Options) error {
	data, err := Marshal(sm, format, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Unmarshal parses data in the given format
func Unmarshal(data []byte, format Format) (*SyncMap, error) {
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("unsupported sync map format %q", format)
	}
	sm, err := c.read(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", format, err)
	}
	sm.UpdateParents()
	return sm, nil
}

// Read parses a whole stream in the given format
func Read(r io.Reader, format Format) (*SyncMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, format)
}

// ValidateIDFormat checks that tmpl formats exactly one integer
func ValidateIDFormat(tmpl string) error {
	id := fmt.Sprintf(tmpl, 1)
	if strings.Contains(id, "%!") {
		return fmt.Errorf("identifier template %q does not format one integer: %s", tmpl, id)
	}
	if id == fmt.Sprintf(tmpl, 2) {
		return fmt.Errorf("identifier template %q yields the same id for every fragment", tmpl)
	}
	return nil
}

// prepare copies sm, applies the ID template and rejects anything no format can carry
func prepare(sm *SyncMap, opts Options) (*SyncMap, error) {
	out := sm.Clone()
	if opts.Language != "" {
		out.Metadata.Language = opts.Language
	}

	if opts.IDFormat != "" {
		if err := ValidateIDFormat(opts.IDFormat); err != nil {
			return nil, alignerr.Wrap(alignerr.FormatSerialization, "syncmap", err)
		}
		for i, leaf := range out.Leaves() {
			leaf.ID = fmt.Sprintf(opts.IDFormat, i+1)
		}
	}

	index := 0
	var check func([]*Fragment) error
	check = func(frags []*Fragment) error {
		for _, f := range frags {
			if !validTime(f.Begin) || !validTime(f.End) {
				return alignerr.New(alignerr.FormatSerialization, "syncmap",
					"timestamp [%v, %v] cannot be serialized", f.Begin, f.End).AtFragment(index)
			}
			if !utf8.ValidString(f.ID) {
				return alignerr.New(alignerr.FormatSerialization, "syncmap", "identifier is not valid UTF-8").AtFragment(index)
			}
			for _, line := range f.Lines {
				if !utf8.ValidString(line) {
					return alignerr.New(alignerr.FormatSerialization, "syncmap", "text is not valid UTF-8").AtFragment(index)
				}
			}
			index++
			if err := check(f.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(out.Fragments); err != nil {
		return nil, err
	}
	return out, nil
}

// millis rounds seconds to whole milliseconds
func millis(t float64) int64 {
	return int64(math.Round(t * 1000))
}

// formatSeconds renders "S.mmm"
func formatSeconds(t float64) string {
	ms := millis(t)
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

// formatClock renders HH:MM:SS<sep>mmm, with at least hourDigits hour digits
func formatClock(t float64, sep byte, hourDigits int) string {
	ms := millis(t)
	h := ms / 3600000
	m := (ms / 60000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%0*d:%02d:%02d%c%03d", hourDigits, h, m, s, sep, ms%1000)
}

// parseClock accepts [[H:]MM:]SS[.mmm] with '.' or ',' before the fraction,
// and an optional trailing "s"
func parseClock(value string) (float64, error) {
	v := strings.TrimSuffix(strings.TrimSpace(value), "s")
	v = strings.Replace(v, ",", ".", 1)
	parts := strings.Split(v, ":")
	if len(parts) > 3 || v == "" {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	total := 0.0
	for i, p := range parts {
		var n float64
		var err error
		if i == len(parts)-1 {
			n, err = strconv.ParseFloat(p, 64)
		} else {
			var whole int
			whole, err = strconv.Atoi(p)
			n = float64(whole)
		}
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total = total*60 + n
	}
	return total, nil
}

// checkSingleLine rejects text that would break a one-record-per-line format
func checkSingleLine(format Format, index int, fields ...string) error {
	for _, f := range fields {
		if strings.ContainsAny(f, "\t\r\n") {
			return alignerr.New(alignerr.FormatSerialization, "syncmap",
				"%s cannot encode tabs or line breaks in %q", format, f).AtFragment(index)
		}
	}
	return nil
}

func newLeaf(index int, begin, end float64, lines []string) *Fragment {
	return &Fragment{
		ID:    fmt.Sprintf(DefaultIDFormat, index+1),
		Lines: lines,
		Begin: begin,
		End:   end,
	}
}
