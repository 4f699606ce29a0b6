package state

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend/headless"
	"github.com/stretchr/testify/assert"
)

func kinds(cmds []headless.Command) []headless.CommandKind {
	out := make([]headless.CommandKind, len(cmds))
	for i, c := range cmds {
		out[i] = c.Kind
	}
	return out
}

func TestCacheEmitsOnlyChanges(t *testing.T) {
	b := headless.NewBackend()
	c := New(b)

	fixed := backend.FixedState{Topology: common.TopologyTriangles, ColorMask: common.ColorMaskAll}
	vp := common.Viewport{Width: 4, Height: 4}

	for range 2 {
		c.SetViewport(vp)
		c.BindFixedState(fixed)
		c.BindFramebuffer(7)
		c.BindProgram(3)
		c.BindVertexBuffer(0, 11, 0)
		c.BindVertexBuffer(1, 12, 0)
		c.BindIndexBuffer(13, true)
		c.BindResourceSet(0, 21)
	}

	assert.Equal(t, []headless.CommandKind{
		headless.CmdSetViewport,
		headless.CmdBindFixedState,
		headless.CmdBindFramebuffer,
		headless.CmdBindProgram,
		headless.CmdBindVertexBuffer,
		headless.CmdBindVertexBuffer,
		headless.CmdBindIndexBuffer,
		headless.CmdBindResourceSet,
	}, kinds(b.Commands()))
	assert.Equal(t, 8, c.Emitted)

	fb, ok := c.Framebuffer()
	assert.True(t, ok)
	assert.Equal(t, backend.Handle(7), fb)
}

func TestCacheDiffsPerSlot(t *testing.T) {
	b := headless.NewBackend()
	c := New(b)

	assert.True(t, c.BindVertexBuffer(0, 11, 0))
	assert.False(t, c.BindVertexBuffer(0, 11, 0))
	assert.True(t, c.BindVertexBuffer(0, 11, 16))
	assert.True(t, c.BindVertexBuffer(1, 11, 16))

	assert.True(t, c.BindIndexBuffer(5, false))
	assert.True(t, c.BindIndexBuffer(5, true))

	assert.True(t, c.BindResourceSet(0, 9))
	assert.True(t, c.BindResourceSet(1, 9))
	assert.False(t, c.BindResourceSet(1, 9))

	fixed := backend.FixedState{Topology: common.TopologyTriangles}
	assert.True(t, c.BindFixedState(fixed))
	fixed.Depth = common.DepthState{Test: true, Write: true, Func: common.CompareLess}
	assert.True(t, c.BindFixedState(fixed))
	assert.False(t, c.BindFixedState(fixed))
}

func TestCacheKeepsViewportAcrossFramebuffers(t *testing.T) {
	b := headless.NewBackend()
	c := New(b)
	vp := common.Viewport{Width: 2, Height: 2}

	assert.True(t, c.SetViewport(vp))
	assert.True(t, c.BindFramebuffer(1))
	assert.True(t, c.BindFramebuffer(2))
	assert.False(t, c.SetViewport(vp))
}

func TestCacheInvalidate(t *testing.T) {
	b := headless.NewBackend()
	c := New(b)

	c.BindFramebuffer(1)
	c.BindProgram(2)
	c.BindVertexBuffer(0, 3, 0)
	c.Invalidate()

	_, ok := c.Framebuffer()
	assert.False(t, ok)
	assert.True(t, c.BindFramebuffer(1))
	assert.True(t, c.BindProgram(2))
	assert.True(t, c.BindVertexBuffer(0, 3, 0))
}
