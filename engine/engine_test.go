package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-zen/engine/config"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadless(t *testing.T) (headless.Backend, renderer.Context) {
	t.Helper()
	b := headless.NewBackend(headless.WithSurfaceSize(320, 200))
	ctx := renderer.NewContext(b)
	t.Cleanup(ctx.Close)
	return b, ctx
}

func TestRunFramesCallsRenderBetweenFrameBoundaries(t *testing.T) {
	b, ctx := newHeadless(t)
	img, err := ctx.Image(8, 8, "rgba8unorm")
	require.NoError(t, err)

	var frames []Frame
	e := NewEngine(WithContext(ctx))
	e.SetRenderCallback(func(f Frame) {
		frames = append(frames, f)
		require.NoError(t, img.Clear())
	})

	b.ResetCommands()
	require.NoError(t, e.RunFrames(3))
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i), f.Index)
		assert.Equal(t, 320, f.Width)
		assert.Equal(t, 200, f.Height)
		assert.GreaterOrEqual(t, f.Delta, float32(0))
	}
	assert.Equal(t, float32(0), frames[0].Delta)
	assert.LessOrEqual(t, frames[0].Time, frames[2].Time)
	assert.Equal(t, 3, b.Frames())

	var kinds []headless.CommandKind
	for _, c := range b.Commands() {
		if c.Kind == headless.CmdNewFrame || c.Kind == headless.CmdClear || c.Kind == headless.CmdEndFrame {
			kinds = append(kinds, c.Kind)
		}
	}
	require.Len(t, kinds, 9)
	assert.Equal(t, []headless.CommandKind{headless.CmdNewFrame, headless.CmdClear, headless.CmdEndFrame}, kinds[:3])
}

func TestRunFramesWithoutContext(t *testing.T) {
	e := NewEngine()
	assert.ErrorIs(t, e.RunFrames(1), ErrNoContext)
	assert.Error(t, e.Run())
}

func TestRenderPanicEndsFrame(t *testing.T) {
	b, ctx := newHeadless(t)
	e := NewEngine(WithContext(ctx))
	e.SetRenderCallback(func(Frame) {
		panic("boom")
	})

	err := e.RunFrames(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, b.Frames())
}

func TestFrameAspect(t *testing.T) {
	assert.InDelta(t, 1.6, Frame{Width: 320, Height: 200}.Aspect(), 1e-6)
	assert.Equal(t, float32(1), Frame{}.Aspect())
}

func TestBuilderOptions(t *testing.T) {
	_, ctx := newHeadless(t)
	e := NewEngine(
		WithContext(ctx),
		WithConfig(config.EngineConfig{TickRate: 30, FrameLimit: 50, Profiling: true}),
	).(*engine)
	assert.Same(t, ctx, e.Context())
	assert.Nil(t, e.Window())
	assert.Equal(t, time.Second/30, e.engineTickRate)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
	assert.True(t, e.profilingEnabled)

	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
	e.SetRenderFrameLimit(0)
	assert.Equal(t, time.Duration(0), e.renderFrameLimit)
}
