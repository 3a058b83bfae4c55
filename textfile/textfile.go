// Package textfile reads the input text into an unaligned sync map and
// prepares fragment text for synthesis.
package textfile

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/RyanBlaney/sonido-sync/syncmap"
)

// Type is the layout of the input text
type Type string

const (
	// TypePlain is one fragment per non-empty line
	TypePlain Type = "plain"
	// TypeParsed is one "id|text" fragment per line
	TypeParsed Type = "parsed"
	// TypeSubtitles is multi-line fragments separated by blank lines
	TypeSubtitles Type = "subtitles"
	// TypeUnparsed is XHTML whose elements with a matching id become fragments
	TypeUnparsed Type = "unparsed"
)

// SortOrder orders unparsed fragments by id
type SortOrder string

const (
	SortNumeric       SortOrder = "numeric"
	SortLexicographic SortOrder = "lexicographic"
	SortUnsorted      SortOrder = "unsorted"
)

// Options control parsing
type Options struct {
	Type     Type      `json:"type" toml:"type"`
	Language string    `json:"language" toml:"language"`
	IDRegex  string    `json:"id_regex" toml:"id_regex"`
	IDSort   SortOrder `json:"id_sort" toml:"id_sort"`
}

// Validate checks the type and, for unparsed input, the id regex and sort
func (o Options) Validate() error {
	switch o.Type {
	case TypePlain, TypeParsed, TypeSubtitles:
		return nil
	case TypeUnparsed:
		if o.IDRegex == "" {
			return fmt.Errorf("unparsed text needs an id regex")
		}
		if _, err := regexp.Compile(o.IDRegex); err != nil {
			return fmt.Errorf("invalid id regex: %w", err)
		}
		switch o.IDSort {
		case "", SortNumeric, SortLexicographic, SortUnsorted:
			return nil
		}
		return fmt.Errorf("unknown id sort %q", o.IDSort)
	}
	return fmt.Errorf("unknown text type %q", o.Type)
}

// ReadFile parses the file at path
func ReadFile(path string, opts Options) (*syncmap.SyncMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %w", err)
	}
	defer f.Close()
	return Parse(f, opts)
}

// Parse reads text in the layout opts.Type names. Text is NFC-normalized.
func Parse(r io.Reader, opts Options) (*syncmap.SyncMap, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	data = norm.NFC.Bytes(bytes.TrimPrefix(data, []byte("\ufeff")))

	var frags []*syncmap.Fragment
	switch opts.Type {
	case TypePlain:
		frags = parsePlain(data)
	case TypeParsed:
		frags, err = parseParsed(data)
	case TypeSubtitles:
		frags = parseSubtitles(data)
	case TypeUnparsed:
		frags, err = parseUnparsed(data, opts)
	}
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 {
		return nil, fmt.Errorf("no fragments found in %s text", opts.Type)
	}

	for _, f := range frags {
		f.Language = opts.Language
	}
	return &syncmap.SyncMap{
		Fragments: frags,
		Metadata:  syncmap.Metadata{Language: opts.Language},
	}, nil
}

func lines(data []byte) []string {
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
}

func newFragment(index int, text ...string) *syncmap.Fragment {
	return &syncmap.Fragment{
		ID:    fmt.Sprintf(syncmap.DefaultIDFormat, index+1),
		Lines: text,
	}
}

func parsePlain(data []byte) []*syncmap.Fragment {
	var out []*syncmap.Fragment
	for _, line := range lines(data) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, newFragment(len(out), line))
	}
	return out
}

func parseParsed(data []byte) ([]*syncmap.Fragment, error) {
	var out []*syncmap.Fragment
	for n, line := range lines(data) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, text, ok := strings.Cut(line, "|")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("line %d: expected id|text", n+1)
		}
		out = append(out, &syncmap.Fragment{ID: strings.TrimSpace(id), Lines: []string{strings.TrimSpace(text)}})
	}
	return out, nil
}

func parseSubtitles(data []byte) []*syncmap.Fragment {
	var out []*syncmap.Fragment
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, newFragment(len(out), cur...))
			cur = nil
		}
	}
	for _, line := range lines(data) {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

// parseUnparsed collects the text of every element whose id matches
// opts.IDRegex. Nested matches are not collected twice: an inner match ends
// up only in its own fragment.
func parseUnparsed(data []byte, opts Options) ([]*syncmap.Fragment, error) {
	re := regexp.MustCompile("^(?:" + opts.IDRegex + ")$")

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	type open struct {
		frag  *syncmap.Fragment
		text  strings.Builder
		depth int
	}
	var stack []*open
	var out []*syncmap.Fragment
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid xhtml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			for _, a := range t.Attr {
				if a.Name.Local == "id" && re.MatchString(a.Value) {
					f := &syncmap.Fragment{ID: a.Value}
					out = append(out, f)
					stack = append(stack, &open{frag: f, depth: depth})
					break
				}
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) > 0 && stack[len(stack)-1].depth == depth {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if text := strings.Join(strings.Fields(top.text.String()), " "); text != "" {
					top.frag.Lines = []string{text}
				}
			}
			depth--
		}
	}

	sortFragments(out, opts.IDSort)
	return out, nil
}

var digits = regexp.MustCompile(`[0-9]+`)

func sortFragments(frags []*syncmap.Fragment, order SortOrder) {
	switch order {
	case SortLexicographic:
		sort.SliceStable(frags, func(i, j int) bool { return frags[i].ID < frags[j].ID })
	case SortNumeric, "":
		key := func(id string) int64 {
			n, _ := strconv.ParseInt(strings.Join(digits.FindAllString(id, -1), ""), 10, 64)
			return n
		}
		sort.SliceStable(frags, func(i, j int) bool { return key(frags[i].ID) < key(frags[j].ID) })
	}
}
