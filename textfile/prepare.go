package textfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/RyanBlaney/sonido-sync/syncmap"
)

// Transliteration replaces single code points before synthesis. A mapping to
// the empty string deletes the code point.
type Transliteration map[rune]string

// LoadTransliteration reads a map file: one "SOURCE TARGET" pair per line,
// where each side is a literal character or U+XXXX. A missing target deletes
// the source. Lines starting with '#' are comments.
func LoadTransliteration(r io.Reader) (Transliteration, error) {
	out := Transliteration{}
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		src, err := parseCodePoint(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		dst := ""
		for _, f := range fields[1:] {
			r, err := parseCodePoint(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			dst += string(r)
		}
		out[src] = dst
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTransliterationFile reads a map file from disk
func LoadTransliterationFile(path string) (Transliteration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transliteration map: %w", err)
	}
	defer f.Close()
	return LoadTransliteration(f)
}

func parseCodePoint(s string) (rune, error) {
	if hex, ok := strings.CutPrefix(strings.ToUpper(s), "U+"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, fmt.Errorf("invalid code point %q", s)
		}
		return rune(v), nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("expected one character or U+XXXX, got %q", s)
	}
	return r, nil
}

// Preparer turns fragment text into what the synthesizer should speak. The
// fragment itself is never modified.
type Preparer struct {
	ignore   *regexp.Regexp
	translit Transliteration
}

// NewPreparer compiles ignoreRegex, which may be empty
func NewPreparer(ignoreRegex string, translit Transliteration) (*Preparer, error) {
	p := &Preparer{translit: translit}
	if ignoreRegex != "" {
		re, err := regexp.Compile(ignoreRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore regex: %w", err)
		}
		p.ignore = re
	}
	return p, nil
}

// Text returns the synthesis text of f: ignored spans removed, code points
// transliterated and whitespace collapsed
func (p *Preparer) Text(f *syncmap.Fragment) string {
	text := norm.NFC.String(f.Text())
	if p.ignore != nil {
		text = p.ignore.ReplaceAllString(text, " ")
	}
	if len(p.translit) > 0 {
		var b strings.Builder
		for _, r := range text {
			if rep, ok := p.translit[r]; ok {
				b.WriteString(rep)
				continue
			}
			b.WriteRune(r)
		}
		text = b.String()
	}
	return strings.Join(strings.Fields(text), " ")
}
