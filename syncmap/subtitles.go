package syncmap

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// cueLines returns the non-empty lines of a leaf, rejecting embedded line breaks
func cueLines(format Format, index int, f *Fragment) ([]string, error) {
	out := make([]string, 0, len(f.Lines))
	for _, line := range f.Lines {
		if strings.ContainsAny(line, "\r\n") {
			return nil, alignerr.New(alignerr.FormatSerialization, "syncmap",
				"%s cannot encode a line break inside a line", format).AtFragment(index)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func writeSRT(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		lines, err := cueLines(FormatSRT, i, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%d\n%s --> %s\n", i+1, formatClock(f.Begin, ',', 2), formatClock(f.End, ',', 2))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return nil
}

func writeVTT(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	buf.WriteString("WEBVTT\n\n")
	for i, f := range sm.Leaves() {
		lines, err := cueLines(FormatVTT, i, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%d\n%s --> %s\n", i+1, formatClock(f.Begin, '.', 2), formatClock(f.End, '.', 2))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return nil
}

func writeSBV(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		lines, err := cueLines(FormatSBV, i, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s,%s\n", formatClock(f.Begin, '.', 1), formatClock(f.End, '.', 1))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return nil
}

// blocks splits text into groups of lines separated by blank lines
func blocks(data []byte) [][]string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	var out [][]string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// parseArrowTiming reads "BEGIN --> END [settings]"
func parseArrowTiming(line string) (float64, float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[1] != "-->" {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	begin, err := parseClock(fields[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(fields[2])
	if err != nil {
		return 0, 0, err
	}
	return begin, end, nil
}

// readArrowCues handles SRT and VTT cues: an optional identifier line, a timing line, then text
func readArrowCues(cues [][]string) (*SyncMap, error) {
	sm := &SyncMap{}
	for n, cue := range cues {
		timing := 0
		if !strings.Contains(cue[0], "-->") {
			timing = 1
		}
		if timing >= len(cue) {
			return nil, fmt.Errorf("cue %d has no timing line", n+1)
		}
		begin, end, err := parseArrowTiming(cue[timing])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		lines := append([]string{}, cue[timing+1:]...)
		sm.Fragments = append(sm.Fragments, newLeaf(len(sm.Fragments), begin, end, lines))
	}
	return sm, nil
}

func readSRT(data []byte) (*SyncMap, error) {
	return readArrowCues(blocks(data))
}

func readVTT(data []byte) (*SyncMap, error) {
	all := blocks(data)
	if len(all) == 0 || !strings.HasPrefix(all[0][0], "WEBVTT") {
		return nil, fmt.Errorf("missing WEBVTT header")
	}

	var cues [][]string
	for i, b := range all {
		if i == 0 || strings.HasPrefix(b[0], "NOTE") || strings.HasPrefix(b[0], "STYLE") || strings.HasPrefix(b[0], "REGION") {
			continue
		}
		cues = append(cues, b)
	}
	return readArrowCues(cues)
}

func readSBV(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	for n, cue := range blocks(data) {
		parts := strings.Split(strings.TrimSpace(cue[0]), ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("cue %d: invalid timing line %q", n+1, cue[0])
		}
		begin, err := parseClock(parts[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", n+1, err)
		}
		lines := append([]string{}, cue[1:]...)
		sm.Fragments = append(sm.Fragments, newLeaf(n, begin, end, lines))
	}
	return sm, nil
}
