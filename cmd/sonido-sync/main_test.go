package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-sync/syncmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sampleMap() *syncmap.SyncMap {
	sm := syncmap.New("eng", []string{"Hello there"}, []string{"General", "Kenobi"})
	sm.Fragments[0].Begin, sm.Fragments[0].End = 0, 1.25
	sm.Fragments[1].Begin, sm.Fragments[1].End = 1.25, 3.5
	return sm
}

func TestFormatsCommand(t *testing.T) {
	out, err := run(t, "formats")
	require.NoError(t, err)

	lines := strings.Fields(out)
	assert.Len(t, lines, len(syncmap.Formats()))
	assert.Contains(t, lines, "srt")
	assert.Contains(t, lines, "smil")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "map.json")
	outPath := filepath.Join(dir, "map.srt")

	data, err := syncmap.Marshal(sampleMap(), syncmap.FormatJSON, syncmap.Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, data, 0o644))

	out, err := run(t, "convert", in, outPath, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "Converted 2 fragments from json to srt")
	assert.Contains(t, out, "f000001")
	assert.Contains(t, out, "1.250")

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "00:00:01,250 --> 00:00:03,500\nGeneral\nKenobi")
}

func TestConvertCommandFormatFlags(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "map.data")
	outPath := filepath.Join(dir, "map.out")

	data, err := syncmap.Marshal(sampleMap(), syncmap.FormatCSV, syncmap.Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(in, data, 0o644))

	_, err = run(t, "convert", in, outPath, "--no-color")
	assert.Error(t, err, "no usable extension")

	_, err = run(t, "convert", in, outPath, "--from", "csv", "--to", "vtt")
	require.NoError(t, err)
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(written), "WEBVTT"))
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonido.toml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "config", "init", path)
	assert.Error(t, err, "existing file is kept")

	out, err = run(t, "--config", path, "--task", "task_language=ita|os_task_file_format=ttml", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Language: ita")
	assert.Contains(t, out, "Output format: ttml")
	assert.Contains(t, out, "Configuration valid")
}

func TestInvalidTaskIsReported(t *testing.T) {
	_, err := run(t, "--task", "dtw_margin=wide", "formats")
	assert.ErrorContains(t, err, "task")

	_, err = run(t, "--log-level", "chatty", "formats")
	assert.Error(t, err)
}

func TestAlignCommandNeedsThreeArgs(t *testing.T) {
	_, err := run(t, "align", "audio.wav")
	assert.Error(t, err)
}

func TestRenderSyncMap(t *testing.T) {
	out := renderSyncMap(sampleMap())
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Hello there")
	assert.Contains(t, out, "General Kenobi")
	assert.Contains(t, out, "3.500")
	assert.Contains(t, out, "2.250")
}
