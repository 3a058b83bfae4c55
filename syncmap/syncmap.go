// Package syncmap holds the aligned fragment tree and reads and writes it in
// the supported subtitle, markup and tabular formats.
package syncmap

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-sync/alignerr"
)

// DefaultIDFormat names fragments created without an explicit identifier
const DefaultIDFormat = "f%06d"

// orderTolerance absorbs float noise when comparing shared boundaries
const orderTolerance = 1e-9

// Fragment is one unit of text with its interval in seconds. Fragments with
// children are groups; their interval spans their children.
type Fragment struct {
	ID       string      `json:"id"`
	Language string      `json:"language"`
	Lines    []string    `json:"lines"`
	Begin    float64     `json:"begin"`
	End      float64     `json:"end"`
	Children []*Fragment `json:"children,omitempty"`
}

// Text returns the lines joined by a single space
func (f *Fragment) Text() string {
	return strings.Join(f.Lines, " ")
}

// Duration returns End - Begin
func (f *Fragment) Duration() float64 {
	return f.End - f.Begin
}

// IsLeaf reports whether the fragment has no children
func (f *Fragment) IsLeaf() bool {
	return len(f.Children) == 0
}

func (f *Fragment) clone() *Fragment {
	c := *f
	c.Lines = append([]string(nil), f.Lines...)
	if f.Children != nil {
		c.Children = make([]*Fragment, len(f.Children))
		for i, child := range f.Children {
			c.Children[i] = child.clone()
		}
	}
	return &c
}

// Metadata describes the whole document
type Metadata struct {
	Language string `json:"language"`
	AudioRef string `json:"audio_ref"`
	PageRef  string `json:"page_ref"`
}

// SyncMap is the ordered fragment tree plus document metadata
type SyncMap struct {
	Fragments []*Fragment
	Metadata  Metadata
}

// New builds a flat SyncMap with one fragment per entry of lines. IDs follow
// DefaultIDFormat.
func New(language string, lines ...[]string) *SyncMap {
	sm := &SyncMap{Metadata: Metadata{Language: language}}
	for i, l := range lines {
		sm.Fragments = append(sm.Fragments, &Fragment{
			ID:       fmt.Sprintf(DefaultIDFormat, i+1),
			Language: language,
			Lines:    l,
		})
	}
	return sm
}

// Clone returns a deep copy
func (m *SyncMap) Clone() *SyncMap {
	c := &SyncMap{Metadata: m.Metadata}
	c.Fragments = make([]*Fragment, len(m.Fragments))
	for i, f := range m.Fragments {
		c.Fragments[i] = f.clone()
	}
	return c
}

// Leaves returns the leaf fragments in document order. The pointers are shared with m.
func (m *SyncMap) Leaves() []*Fragment {
	var out []*Fragment
	var walk func([]*Fragment)
	walk = func(frags []*Fragment) {
		for _, f := range frags {
			if f.IsLeaf() {
				out = append(out, f)
				continue
			}
			walk(f.Children)
		}
	}
	walk(m.Fragments)
	return out
}

// UpdateParents sets every group's interval to the span of its children
func (m *SyncMap) UpdateParents() {
	var update func(f *Fragment)
	update = func(f *Fragment) {
		if f.IsLeaf() {
			return
		}
		for _, c := range f.Children {
			update(c)
		}
		f.Begin = f.Children[0].Begin
		f.End = f.Children[len(f.Children)-1].End
	}
	for _, f := range m.Fragments {
		update(f)
	}
}

// Validate checks that leaf intervals are finite, non-negative, and ordered
// with no overlap. A violation is an alignment defect.
func (m *SyncMap) Validate() error {
	leaves := m.Leaves()
	for i, f := range leaves {
		if !validTime(f.Begin) || !validTime(f.End) {
			return alignerr.New(alignerr.AlignmentFailure, "syncmap",
				"invalid interval [%v, %v]", f.Begin, f.End).AtFragment(i)
		}
		if f.Begin > f.End+orderTolerance {
			return alignerr.New(alignerr.AlignmentFailure, "syncmap",
				"begin %.3f after end %.3f", f.Begin, f.End).AtFragment(i)
		}
		if i > 0 && leaves[i-1].End > f.Begin+orderTolerance {
			return alignerr.New(alignerr.AlignmentFailure, "syncmap",
				"overlaps previous fragment: %.3f > %.3f", leaves[i-1].End, f.Begin).AtFragment(i)
		}
	}
	return nil
}

func validTime(t float64) bool {
	return t >= 0 && !math.IsNaN(t) && !math.IsInf(t, 0)
}
