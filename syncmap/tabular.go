package syncmap

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// eachLine calls fn for every non-blank line with its 1-based number
func eachLine(data []byte, fn func(n int, line string) error) error {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(i+1, line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

func checkID(format Format, index int, id string) error {
	if id == "" || strings.ContainsAny(id, " \t\r\n") {
		return alignerr.New(alignerr.FormatSerialization, "syncmap",
			"%s needs a non-empty identifier without whitespace, got %q", format, id).AtFragment(index)
	}
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func textLines(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

func writeAUD(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		text := f.Text()
		if err := checkSingleLine(FormatAUD, i, text); err != nil {
			return err
		}
		fmt.Fprintf(buf, "%.6f\t%.6f\t%s\n", f.Begin, f.End, text)
	}
	return nil
}

func readAUD(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	err := eachLine(data, func(_ int, line string) error {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			return fmt.Errorf("expected begin, end and label")
		}
		begin, err := parseClock(parts[0])
		if err != nil {
			return err
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return err
		}
		text := ""
		if len(parts) == 3 {
			text = parts[2]
		}
		sm.Fragments = append(sm.Fragments, newLeaf(len(sm.Fragments), begin, end, textLines(text)))
		return nil
	})
	return sm, err
}

func writeCSV(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	w := csv.NewWriter(buf)
	for _, f := range sm.Leaves() {
		if err := w.Write([]string{f.ID, formatSeconds(f.Begin), formatSeconds(f.End), f.Text()}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(data []byte) (*SyncMap, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 4
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	sm := &SyncMap{}
	for n, rec := range records {
		begin, err := parseClock(rec[1])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n+1, err)
		}
		end, err := parseClock(rec[2])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n+1, err)
		}
		sm.Fragments = append(sm.Fragments, &Fragment{ID: rec[0], Lines: textLines(rec[3]), Begin: begin, End: end})
	}
	return sm, nil
}

func writeTXT(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		if err := checkID(FormatTXT, i, f.ID); err != nil {
			return err
		}
		if err := checkSingleLine(FormatTXT, i, f.Text()); err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s %s %s \"%s\"\n", f.ID, formatSeconds(f.Begin), formatSeconds(f.End), f.Text())
	}
	return nil
}

func readTXT(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	err := eachLine(data, func(_ int, line string) error {
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 3 {
			return fmt.Errorf("expected id, begin, end and text")
		}
		begin, err := parseClock(parts[1])
		if err != nil {
			return err
		}
		end, err := parseClock(parts[2])
		if err != nil {
			return err
		}
		text := ""
		if len(parts) == 4 {
			text = unquote(parts[3])
		}
		sm.Fragments = append(sm.Fragments, &Fragment{ID: parts[0], Lines: textLines(text), Begin: begin, End: end})
		return nil
	})
	return sm, err
}

func writeSSV(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		if err := checkID(FormatSSV, i, f.ID); err != nil {
			return err
		}
		if err := checkSingleLine(FormatSSV, i, f.Text()); err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s %s %s \"%s\"\n", formatSeconds(f.Begin), formatSeconds(f.End), f.ID, f.Text())
	}
	return nil
}

func readSSV(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	err := eachLine(data, func(_ int, line string) error {
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 3 {
			return fmt.Errorf("expected begin, end, id and text")
		}
		begin, err := parseClock(parts[0])
		if err != nil {
			return err
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return err
		}
		text := ""
		if len(parts) == 4 {
			text = unquote(parts[3])
		}
		sm.Fragments = append(sm.Fragments, &Fragment{ID: parts[2], Lines: textLines(text), Begin: begin, End: end})
		return nil
	})
	return sm, err
}

func writeTSV(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	for i, f := range sm.Leaves() {
		if err := checkSingleLine(FormatTSV, i, f.ID, f.Text()); err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s\t%s\t%s\t%s\n", formatSeconds(f.Begin), formatSeconds(f.End), f.ID, f.Text())
	}
	return nil
}

func readTSV(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	err := eachLine(data, func(_ int, line string) error {
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) < 3 {
			return fmt.Errorf("expected begin, end and id")
		}
		begin, err := parseClock(parts[0])
		if err != nil {
			return err
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return err
		}
		text := ""
		if len(parts) == 4 {
			text = parts[3]
		}
		sm.Fragments = append(sm.Fragments, &Fragment{ID: parts[2], Lines: textLines(text), Begin: begin, End: end})
		return nil
	})
	return sm, err
}
