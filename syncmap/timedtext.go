package syncmap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

const (
	xmlPrologue = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n"
	smilNS      = "http://www.w3.org/ns/SMIL"
	epubNS      = "http://www.idpf.org/2007/ops"
	ttmlNS      = "http://www.w3.org/ns/ttml"
)

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func indent(buf *bytes.Buffer, depth int) {
	buf.WriteString(strings.Repeat(" ", depth))
}

// writeSMIL emits par/seq clips; text lives in the referenced page, not here
func writeSMIL(buf *bytes.Buffer, sm *SyncMap, opts Options) error {
	audioRef := firstNonEmpty(opts.AudioRef, sm.Metadata.AudioRef)
	pageRef := firstNonEmpty(opts.PageRef, sm.Metadata.PageRef)
	if audioRef == "" || pageRef == "" {
		return alignerr.New(alignerr.FormatSerialization, "syncmap", "smil needs both an audio and a page reference")
	}

	seq, par := 0, 0
	var write func(frags []*Fragment, depth int)
	write = func(frags []*Fragment, depth int) {
		for _, f := range frags {
			if !f.IsLeaf() {
				seq++
				indent(buf, depth)
				fmt.Fprintf(buf, "<seq id=\"seq%06d\" epub:textref=\"%s#%s\">\n", seq, escape(pageRef), escape(f.ID))
				write(f.Children, depth+1)
				indent(buf, depth)
				buf.WriteString("</seq>\n")
				continue
			}
			par++
			indent(buf, depth)
			fmt.Fprintf(buf, "<par id=\"par%06d\">\n", par)
			indent(buf, depth+1)
			fmt.Fprintf(buf, "<text src=\"%s#%s\"/>\n", escape(pageRef), escape(f.ID))
			indent(buf, depth+1)
			fmt.Fprintf(buf, "<audio clipBegin=\"%s\" clipEnd=\"%s\" src=\"%s\"/>\n",
				formatClock(f.Begin, '.', 2), formatClock(f.End, '.', 2), escape(audioRef))
			indent(buf, depth)
			buf.WriteString("</par>\n")
		}
	}

	buf.WriteString(xmlPrologue)
	fmt.Fprintf(buf, "<smil xmlns=\"%s\" xmlns:epub=\"%s\" version=\"3.0\">\n", smilNS, epubNS)
	buf.WriteString(" <body>\n")
	seq++
	fmt.Fprintf(buf, "  <seq id=\"seq%06d\" epub:textref=\"%s\">\n", seq, escape(pageRef))
	write(sm.Fragments, 3)
	buf.WriteString("  </seq>\n </body>\n</smil>\n")
	return nil
}

type smilText struct {
	Src string `xml:"src,attr"`
}

type smilAudio struct {
	Src       string `xml:"src,attr"`
	ClipBegin string `xml:"clipBegin,attr"`
	ClipEnd   string `xml:"clipEnd,attr"`
}

type smilNode struct {
	XMLName  xml.Name
	ID       string     `xml:"id,attr"`
	TextRef  string     `xml:"textref,attr"`
	Text     *smilText  `xml:"text"`
	Audio    *smilAudio `xml:"audio"`
	Children []smilNode `xml:",any"`
}

type smilDocument struct {
	XMLName xml.Name `xml:"smil"`
	Body    smilNode `xml:"body"`
}

func readSMIL(data []byte) (*SyncMap, error) {
	var doc smilDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	sm := &SyncMap{}
	frags, err := fromSMIL(doc.Body.Children, &sm.Metadata)
	if err != nil {
		return nil, err
	}
	sm.Fragments = frags
	return sm, nil
}

func fromSMIL(nodes []smilNode, meta *Metadata) ([]*Fragment, error) {
	var out []*Fragment
	for _, n := range nodes {
		switch n.XMLName.Local {
		case "seq":
			children, err := fromSMIL(n.Children, meta)
			if err != nil {
				return nil, err
			}
			page, id, grouped := strings.Cut(n.TextRef, "#")
			if meta.PageRef == "" {
				meta.PageRef = page
			}
			if !grouped {
				out = append(out, children...)
				continue
			}
			out = append(out, &Fragment{ID: id, Children: children})
		case "par":
			if n.Text == nil || n.Audio == nil {
				return nil, fmt.Errorf("par %q needs text and audio", n.ID)
			}
			begin, err := parseClock(n.Audio.ClipBegin)
			if err != nil {
				return nil, fmt.Errorf("par %q: %w", n.ID, err)
			}
			end, err := parseClock(n.Audio.ClipEnd)
			if err != nil {
				return nil, fmt.Errorf("par %q: %w", n.ID, err)
			}
			page, id, _ := strings.Cut(n.Text.Src, "#")
			if meta.PageRef == "" {
				meta.PageRef = page
			}
			if meta.AudioRef == "" {
				meta.AudioRef = n.Audio.Src
			}
			out = append(out, &Fragment{ID: id, Begin: begin, End: end})
		}
	}
	return out, nil
}

func writeTTML(buf *bytes.Buffer, sm *SyncMap, _ Options) error {
	var write func(frags []*Fragment, depth int)
	write = func(frags []*Fragment, depth int) {
		for _, f := range frags {
			indent(buf, depth)
			if !f.IsLeaf() {
				fmt.Fprintf(buf, "<div xml:id=\"%s\">\n", escape(f.ID))
				write(f.Children, depth+1)
				indent(buf, depth)
				buf.WriteString("</div>\n")
				continue
			}
			escaped := make([]string, len(f.Lines))
			for i, line := range f.Lines {
				escaped[i] = escape(line)
			}
			fmt.Fprintf(buf, "<p xml:id=\"%s\" begin=\"%ss\" end=\"%ss\">%s</p>\n",
				escape(f.ID), formatSeconds(f.Begin), formatSeconds(f.End), strings.Join(escaped, "<br/>"))
		}
	}

	buf.WriteString(xmlPrologue)
	fmt.Fprintf(buf, "<tt xmlns=\"%s\" xml:lang=\"%s\">\n", ttmlNS, escape(sm.Metadata.Language))
	buf.WriteString(" <body>\n  <div>\n")
	write(sm.Fragments, 3)
	buf.WriteString("  </div>\n </body>\n</tt>\n")
	return nil
}

func attr(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// readTTML walks tokens because <p> holds mixed text and <br/> content
func readTTML(data []byte) (*SyncMap, error) {
	sm := &SyncMap{}
	dec := xml.NewDecoder(bytes.NewReader(data))

	// nil entries are divs without an identifier
	var groups []*Fragment
	var para *Fragment
	var line strings.Builder

	appendFragment := func(f *Fragment) {
		for i := len(groups) - 1; i >= 0; i-- {
			if groups[i] != nil {
				groups[i].Children = append(groups[i].Children, f)
				return
			}
		}
		sm.Fragments = append(sm.Fragments, f)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tt":
				if lang, ok := attr(t, "lang"); ok {
					sm.Metadata.Language = lang
				}
			case "div":
				var g *Fragment
				if id, ok := attr(t, "id"); ok {
					g = &Fragment{ID: id}
				}
				groups = append(groups, g)
			case "p":
				id, _ := attr(t, "id")
				beginAttr, _ := attr(t, "begin")
				endAttr, _ := attr(t, "end")
				begin, err := parseClock(beginAttr)
				if err != nil {
					return nil, fmt.Errorf("p %q: %w", id, err)
				}
				end, err := parseClock(endAttr)
				if err != nil {
					return nil, fmt.Errorf("p %q: %w", id, err)
				}
				para = &Fragment{ID: id, Begin: begin, End: end}
				line.Reset()
			case "br":
				if para != nil {
					para.Lines = append(para.Lines, line.String())
					line.Reset()
				}
			}
		case xml.CharData:
			if para != nil {
				line.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if para == nil {
					continue
				}
				if line.Len() > 0 || len(para.Lines) > 0 {
					para.Lines = append(para.Lines, line.String())
				}
				appendFragment(para)
				para = nil
			case "div":
				if len(groups) == 0 {
					continue
				}
				g := groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				if g != nil {
					appendFragment(g)
				}
			}
		}
	}
	return sm, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
