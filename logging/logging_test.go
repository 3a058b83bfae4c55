package logging_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/stretchr/testify/assert"
)

func TestWriterLoggerFormatsFieldsInKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf).WithFields(logging.Fields{"component": "dtw"})

	logger.Info("path computed", logging.Fields{"frames": 12, "band": 4})

	assert.Equal(t, "[INFO] path computed {band=4 component=dtw frames=12}\n", buf.String())
}

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(logging.DebugLevel)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logging.NewWriterLogger(&buf).Error(errors.New("boom"), "stage failed")

	assert.Equal(t, "[ERROR] stage failed: boom\n", buf.String())
}

func TestWithContextMergesFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.ContextWithFields(context.Background(), logging.Fields{"task": "a"})
	ctx = logging.ContextWithFields(ctx, logging.Fields{"run": "b"})

	logging.NewWriterLogger(&buf).WithContext(ctx).Info("hello")

	assert.Equal(t, "[INFO] hello {run=b task=a}\n", buf.String())
}

func TestParseLevel(t *testing.T) {
	level, ok := logging.ParseLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, logging.WarnLevel, level)

	_, ok = logging.ParseLevel("loud")
	assert.False(t, ok)
}
