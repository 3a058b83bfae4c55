// Package alignerr defines the error kinds reported by the alignment engine.
//
// Every failure carries the operation that produced it and, where known, the
// fragment and frame index involved. Kinds are compared with errors.Is against
// the exported sentinels:
//
//	if errors.Is(err, alignerr.ErrAlignmentFailure) { ... }
package alignerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an engine failure
type Kind int

const (
	// InsufficientAudio means a track or synthesized waveform is too short
	// to yield a single analysis frame.
	InsufficientAudio Kind = iota + 1
	// AlignmentFailure covers empty bands, dimension mismatches and paths
	// that break monotonicity.
	AlignmentFailure
	// InvalidBoundaryAdjustment means an unknown algorithm or a parameter
	// outside its range.
	InvalidBoundaryAdjustment
	// FormatSerialization means a fragment cannot be represented in the
	// requested output format.
	FormatSerialization
)

func (k Kind) String() string {
	switch k {
	case InsufficientAudio:
		return "insufficient audio"
	case AlignmentFailure:
		return "alignment failure"
	case InvalidBoundaryAdjustment:
		return "invalid boundary adjustment"
	case FormatSerialization:
		return "format serialization error"
	default:
		return "unknown error"
	}
}

// NoIndex marks an unset fragment or frame index
const NoIndex = -1

// Error is a classified engine error
type Error struct {
	Kind     Kind
	Op       string
	Fragment int
	Frame    int
	Err      error
}

// Sentinels usable with errors.Is
var (
	ErrInsufficientAudio         = &Error{Kind: InsufficientAudio, Fragment: NoIndex, Frame: NoIndex}
	ErrAlignmentFailure          = &Error{Kind: AlignmentFailure, Fragment: NoIndex, Frame: NoIndex}
	ErrInvalidBoundaryAdjustment = &Error{Kind: InvalidBoundaryAdjustment, Fragment: NoIndex, Frame: NoIndex}
	ErrFormatSerialization       = &Error{Kind: FormatSerialization, Fragment: NoIndex, Frame: NoIndex}
)

// New builds an error of the given kind without index context
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Op:       op,
		Fragment: NoIndex,
		Frame:    NoIndex,
		Err:      fmt.Errorf(format, args...),
	}
}

// Wrap classifies err under kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Fragment: NoIndex, Frame: NoIndex, Err: err}
}

// AtFragment returns a copy of e annotated with a fragment index
func (e *Error) AtFragment(index int) *Error {
	c := *e
	c.Fragment = index
	return &c
}

// AtFrame returns a copy of e annotated with a frame index
func (e *Error) AtFrame(index int) *Error {
	c := *e
	c.Frame = index
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Fragment != NoIndex {
		fmt.Fprintf(&b, " (fragment %d)", e.Fragment)
	}
	if e.Frame != NoIndex {
		fmt.Fprintf(&b, " (frame %d)", e.Frame)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
