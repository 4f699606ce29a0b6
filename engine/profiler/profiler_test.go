package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickReportsAfterInterval(t *testing.T) {
	p := NewProfiler()
	p.SetInterval(time.Hour)
	assert.False(t, p.Tick())
	assert.Zero(t, p.Last().FPS)

	p.SetInterval(0)
	assert.True(t, p.Tick())
	s := p.Last()
	assert.Greater(t, s.FPS, 0.0)
	assert.Greater(t, s.SysMB, 0.0)
	assert.GreaterOrEqual(t, s.MaxPause, uint64(0))
}
