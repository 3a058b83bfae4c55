package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisableColorsTurnsOffGlobalColors(t *testing.T) {
	saved := globalLogger
	t.Cleanup(func() { globalLogger = saved })

	colored := NewDefaultLogger()
	colored.useColors = true
	globalLogger = colored

	DisableColors()
	assert.False(t, colored.useColors)
}
