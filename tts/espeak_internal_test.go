package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEspeakArgs(t *testing.T) {
	e, err := NewEspeak(EspeakConfig{Path: "espeak-ng", Speed: 160}, nil)
	require.NoError(t, err)

	args, err := e.args("-dash first", "eng", "/tmp/out.wav")
	require.NoError(t, err)
	assert.Equal(t, []string{"-v", "en", "-w", "/tmp/out.wav", "-s", "160", "--", "-dash first"}, args)

	e.config.Voice = "mb-en1"
	args, err = e.args("x", "not a language", "o.wav")
	require.NoError(t, err)
	assert.Equal(t, "mb-en1", args[1])
}
