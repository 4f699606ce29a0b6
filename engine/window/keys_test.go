package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDigit(t *testing.T) {
	n, ok := Key7.Digit()
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = KeyW.Digit()
	assert.False(t, ok)
}

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{}
	for _, opt := range []WindowBuilderOption{
		WithTitle("demo"),
		WithSize(800, 600),
		WithMinSize(320, 240),
	} {
		opt(w)
	}
	assert.Equal(t, "demo", w.title)
	assert.Equal(t, 800, w.width)
	assert.Equal(t, 600, w.height)
	assert.Equal(t, 320, w.minWidth)
	assert.Equal(t, 240, w.minHeight)
	assert.InDelta(t, 800.0/600.0, w.Aspect(), 1e-6)
}
