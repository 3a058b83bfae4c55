package syncmap

import (
	"bytes"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-sync/alignerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *SyncMap {
	sm := New("eng",
		[]string{"Hello there", "General Kenobi"},
		[]string{"Yes, indeed"},
		[]string{"Bye"},
	)
	sm.Metadata.AudioRef = "audio.mp3"
	sm.Metadata.PageRef = "page.xhtml"
	times := [][2]float64{{0, 1.234}, {1.234, 2.5}, {2.5, 3661.007}}
	for i, f := range sm.Fragments {
		f.Begin, f.End = times[i][0], times[i][1]
	}
	return sm
}

func grouped() *SyncMap {
	sm := sample()
	group := &Fragment{ID: "p001", Language: "eng", Children: sm.Fragments[:2]}
	sm.Fragments = []*Fragment{group, sm.Fragments[2]}
	sm.UpdateParents()
	return sm
}

func assertSameLeaves(t *testing.T, want, got *SyncMap, withText bool) {
	t.Helper()
	wl, gl := want.Leaves(), got.Leaves()
	require.Len(t, gl, len(wl))
	for i := range wl {
		assert.Equal(t, wl[i].ID, gl[i].ID, "fragment %d id", i)
		assert.InDelta(t, wl[i].Begin, gl[i].Begin, 0.001, "fragment %d begin", i)
		assert.InDelta(t, wl[i].End, gl[i].End, 0.001, "fragment %d end", i)
		if withText {
			assert.Equal(t, wl[i].Text(), gl[i].Text(), "fragment %d text", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			src := sample()

			first, err := Marshal(src, format, Options{})
			require.NoError(t, err)

			parsed, err := Unmarshal(first, format)
			require.NoError(t, err)
			assertSameLeaves(t, src, parsed, format != FormatSMIL)
			if format == FormatSMIL {
				for _, f := range parsed.Leaves() {
					assert.Empty(t, f.Lines, "smil carries no text")
				}
			}

			second, err := Marshal(parsed, format, Options{})
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))

			reparsed, err := Unmarshal(second, format)
			require.NoError(t, err)
			assertSameLeaves(t, parsed, reparsed, true)
		})
	}
}

func TestHierarchyRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatXML, FormatSMIL, FormatTTML} {
		t.Run(string(format), func(t *testing.T) {
			src := grouped()
			data, err := Marshal(src, format, Options{})
			require.NoError(t, err)

			parsed, err := Unmarshal(data, format)
			require.NoError(t, err)
			require.Len(t, parsed.Fragments, 2)

			group := parsed.Fragments[0]
			assert.Equal(t, "p001", group.ID)
			require.Len(t, group.Children, 2)
			assert.InDelta(t, 0.0, group.Begin, 0.001)
			assert.InDelta(t, 2.5, group.End, 0.001)
			assertSameLeaves(t, src, parsed, format != FormatSMIL)
			if format == FormatSMIL {
				for _, f := range parsed.Leaves() {
					assert.Empty(t, f.Lines, "smil carries no text")
				}
			}
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	for _, format := range Formats() {
		a, err := Marshal(grouped(), format, Options{})
		require.NoError(t, err)
		b, err := Marshal(grouped(), format, Options{})
		require.NoError(t, err)
		assert.Equal(t, a, b, string(format))
	}
}

func TestSRTLayout(t *testing.T) {
	data, err := Marshal(sample(), FormatSRT, Options{})
	require.NoError(t, err)
	want := "1\n00:00:00,000 --> 00:00:01,234\nHello there\nGeneral Kenobi\n\n" +
		"2\n00:00:01,234 --> 00:00:02,500\nYes, indeed\n\n" +
		"3\n00:00:02,500 --> 01:01:01,007\nBye\n\n"
	assert.Equal(t, want, string(data))
}

func TestVTTAndSBVLayout(t *testing.T) {
	sm := New("eng", []string{"Hello"})
	sm.Fragments[0].End = 1.5

	vtt, err := Marshal(sm, FormatVTT, Options{})
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n1\n00:00:00.000 --> 00:00:01.500\nHello\n\n", string(vtt))

	sbv, err := Marshal(sm, FormatSBV, Options{})
	require.NoError(t, err)
	assert.Equal(t, "0:00:00.000,0:00:01.500\nHello\n\n", string(sbv))
}

func TestJSONLayout(t *testing.T) {
	sm := New("eng", []string{"Hello"})
	sm.Fragments[0].End = 1.234

	data, err := Marshal(sm, FormatJSON, Options{})
	require.NoError(t, err)
	want := `{
 "fragments": [
  {
   "begin": "0.000",
   "children": [],
   "end": "1.234",
   "id": "f000001",
   "language": "eng",
   "lines": [
    "Hello"
   ]
  }
 ]
}
`
	assert.Equal(t, want, string(data))
}

func TestTabularLayout(t *testing.T) {
	sm := New("eng", []string{"Hello", "world"})
	sm.Fragments[0].Begin = 0.5
	sm.Fragments[0].End = 1.25

	tests := map[Format]string{
		FormatTXT: "f000001 0.500 1.250 \"Hello world\"\n",
		FormatSSV: "0.500 1.250 f000001 \"Hello world\"\n",
		FormatTSV: "0.500\t1.250\tf000001\tHello world\n",
		FormatCSV: "f000001,0.500,1.250,Hello world\n",
		FormatAUD: "0.500000\t1.250000\tHello world\n",
	}
	for format, want := range tests {
		data, err := Marshal(sm, format, Options{})
		require.NoError(t, err)
		assert.Equal(t, want, string(data), string(format))
	}
}

func TestTTMLLayout(t *testing.T) {
	sm := New("eng", []string{"a < b", "c"})
	sm.Fragments[0].End = 2

	data, err := Marshal(sm, FormatTTML, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `<tt xmlns="http://www.w3.org/ns/ttml" xml:lang="eng">`)
	assert.Contains(t, string(data), `<p xml:id="f000001" begin="0.000s" end="2.000s">a &lt; b<br/>c</p>`)

	parsed, err := Unmarshal(data, FormatTTML)
	require.NoError(t, err)
	assert.Equal(t, "eng", parsed.Metadata.Language)
	assert.Equal(t, []string{"a < b", "c"}, parsed.Leaves()[0].Lines)
}

func TestIDFormat(t *testing.T) {
	data, err := Marshal(grouped(), FormatTXT, Options{IDFormat: "Word%03d"})
	require.NoError(t, err)

	parsed, err := Unmarshal(data, FormatTXT)
	require.NoError(t, err)
	ids := []string{}
	for _, f := range parsed.Leaves() {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"Word001", "Word002", "Word003"}, ids)
}

func TestIDFormatRejectsBadTemplates(t *testing.T) {
	for _, tmpl := range []string{"Word%s", "Word%03d%03d", "Word", "Word%[2]d"} {
		assert.Error(t, ValidateIDFormat(tmpl), tmpl)

		var buf bytes.Buffer
		err := Write(&buf, sample(), FormatTXT, Options{IDFormat: tmpl})
		assert.ErrorIs(t, err, alignerr.ErrFormatSerialization, tmpl)
		assert.Zero(t, buf.Len(), tmpl)
	}

	assert.NoError(t, ValidateIDFormat("Word%03d"))
	assert.NoError(t, ValidateIDFormat("f%06d"))
}

func TestSerializationErrors(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		mutate   func(sm *SyncMap)
		opts     Options
		fragment int
	}{
		{"negative begin", FormatSRT, func(sm *SyncMap) { sm.Fragments[1].Begin = -1 }, Options{}, 1},
		{"nan end", FormatJSON, func(sm *SyncMap) { sm.Fragments[2].End = math.NaN() }, Options{}, 2},
		{"inf end", FormatCSV, func(sm *SyncMap) { sm.Fragments[0].End = math.Inf(1) }, Options{}, 0},
		{"tab in tsv text", FormatTSV, func(sm *SyncMap) { sm.Fragments[1].Lines = []string{"a\tb"} }, Options{}, 1},
		{"invalid utf8", FormatXML, func(sm *SyncMap) { sm.Fragments[0].Lines = []string{"\xff"} }, Options{}, 0},
		{"space in txt id", FormatTXT, func(sm *SyncMap) { sm.Fragments[2].ID = "a b" }, Options{}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := sample()
			tt.mutate(sm)
			_, err := Marshal(sm, tt.format, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, alignerr.ErrFormatSerialization)

			var ae *alignerr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.fragment, ae.Fragment)
		})
	}

	t.Run("smil without refs", func(t *testing.T) {
		sm := sample()
		sm.Metadata = Metadata{}
		_, err := Marshal(sm, FormatSMIL, Options{})
		assert.ErrorIs(t, err, alignerr.ErrFormatSerialization)

		_, err = Marshal(sm, FormatSMIL, Options{AudioRef: "a.mp3", PageRef: "p.xhtml"})
		assert.NoError(t, err)
	})
}

func TestValidate(t *testing.T) {
	sm := sample()
	assert.NoError(t, sm.Validate())

	sm.Fragments[1].Begin = 1.0
	err := sm.Validate()
	assert.ErrorIs(t, err, alignerr.ErrAlignmentFailure)

	sm = sample()
	sm.Fragments[2].End = 2.0
	assert.Error(t, sm.Validate())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("DFXP")
	require.NoError(t, err)
	assert.Equal(t, FormatTTML, f)

	f, err = FormatFromPath("out/map.srt")
	require.NoError(t, err)
	assert.Equal(t, FormatSRT, f)

	_, err = ParseFormat("sub")
	assert.Error(t, err)
	assert.Len(t, Formats(), 12)
}

func TestParseClock(t *testing.T) {
	tests := map[string]float64{
		"00:00:01,640": 1.64,
		"0:01:01.500":  61.5,
		"01:02.250":    62.25,
		"3.000s":       3,
		"12":           12,
	}
	for in, want := range tests {
		got, err := parseClock(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, bad := range []string{"", "a:b", "1:2:3:4", "-1"} {
		_, err := parseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadVTTSkipsNotes(t *testing.T) {
	data := "WEBVTT\n\nNOTE a comment\n\n00:01.000 --> 00:02.000 align:start\nHi\n"
	sm, err := Unmarshal([]byte(data), FormatVTT)
	require.NoError(t, err)
	require.Len(t, sm.Fragments, 1)
	assert.InDelta(t, 1.0, sm.Fragments[0].Begin, 1e-9)
	assert.Equal(t, "Hi", sm.Fragments[0].Text())
}
