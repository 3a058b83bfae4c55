package syncmap

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
)

type jsonFragment struct {
	Begin    string         `json:"begin"`
	Children []jsonFragment `json:"children"`
	End      string         `json:"end"`
	ID       string         `json:"id"`
	Language string         `json:"language"`
	Lines    []string       `json:"lines"`
}

type jsonDocument struct {
	Fragments []jsonFragment `json:"fragments"`
}

func toJSON(frags []*Fragment) []jsonFragment {
	out := make([]jsonFragment, 0, len(frags))
	for _, f := range frags {
		lines := f.Lines
		if lines == nil {
			lines = []string{}
		}
		out = append(out, jsonFragment{
			Begin:    formatSeconds(f.Begin),
			Children: toJSON(f.Children),
			End:      formatSeconds(f.End),
			ID:       f.ID,
			Language: f.Language,
			Lines:    lines,
		})
	}
	return out
}

func fromJSON(frags []jsonFragment) ([]*Fragment, error) {
	var out []*Fragment
	for _, jf := range frags {
		begin, err := strconv.ParseFloat(jf.Begin, 64)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: invalid begin %q", jf.ID, jf.Begin)
		}
		end, err := strconv.ParseFloat(jf.End, 64)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: invalid end %q", jf.ID, jf.End)
		}
		children, err := fromJSON(jf.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, &Fragment{
			ID:       jf.ID,
			Language: jf.Language,
			Lines:    jf.Lines,
			Begin:    begin,
			End:      end,
			Children: children,
		})
	}
	return out, nil
}

func writeJSON(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonDocument{Fragments: toJSON(sm.Fragments)})
}

func readJSON(data []byte) (*SyncMap, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	frags, err := fromJSON(doc.Fragments)
	if err != nil {
		return nil, err
	}
	sm := &SyncMap{Fragments: frags}
	if len(frags) > 0 {
		sm.Metadata.Language = frags[0].Language
	}
	return sm, nil
}

type xmlFragment struct {
	ID       string        `xml:"id,attr"`
	Begin    string        `xml:"begin,attr"`
	End      string        `xml:"end,attr"`
	Lines    []string      `xml:"line"`
	Children []xmlFragment `xml:"children>fragment,omitempty"`
}

type xmlDocument struct {
	XMLName   xml.Name      `xml:"map"`
	Fragments []xmlFragment `xml:"fragment"`
}

func toXML(frags []*Fragment) []xmlFragment {
	out := make([]xmlFragment, 0, len(frags))
	for _, f := range frags {
		out = append(out, xmlFragment{
			ID:       f.ID,
			Begin:    formatSeconds(f.Begin),
			End:      formatSeconds(f.End),
			Lines:    f.Lines,
			Children: toXML(f.Children),
		})
	}
	return out
}

func fromXML(frags []xmlFragment) ([]*Fragment, error) {
	var out []*Fragment
	for _, xf := range frags {
		begin, err := parseClock(xf.Begin)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", xf.ID, err)
		}
		end, err := parseClock(xf.End)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", xf.ID, err)
		}
		children, err := fromXML(xf.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, &Fragment{ID: xf.ID, Lines: xf.Lines, Begin: begin, End: end, Children: children})
	}
	return out, nil
}

func writeXML(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(xmlDocument{Fragments: toXML(sm.Fragments)}); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return nil
}

func readXML(data []byte) (*SyncMap, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	frags, err := fromXML(doc.Fragments)
	if err != nil {
		return nil, err
	}
	return &SyncMap{Fragments: frags}, nil
}
