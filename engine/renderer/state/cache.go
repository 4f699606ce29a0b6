// Package state implements the state-diff cache that sits between pipelines and the backend.
// Every bind request is compared with the value last applied; a backend command is emitted only
// when the value changes.
package state

import (
	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
)

type vertexBinding struct {
	buf    backend.Handle
	offset int
}

type indexBinding struct {
	buf   backend.Handle
	short bool
}

// Cache remembers the last value applied to every piece of bindable state. It is owned by a
// single Context and used from the render thread only.
type Cache struct {
	b backend.Backend

	framebuffer    backend.Handle
	hasFramebuffer bool

	viewport    common.Viewport
	hasViewport bool

	fixed    backend.FixedState
	hasFixed bool

	program backend.Handle

	vertexBuffers map[int]vertexBinding
	index         indexBinding
	hasIndex      bool
	resourceSets  map[int]backend.Handle

	// Emitted counts the commands forwarded to the backend since creation.
	Emitted int
}

// New creates an empty Cache in front of b.
//
// Parameters:
//   - b: the backend receiving the commands
//
// Returns:
//   - *Cache: the new cache
func New(b backend.Backend) *Cache {
	return &Cache{
		b:             b,
		vertexBuffers: make(map[int]vertexBinding),
		resourceSets:  make(map[int]backend.Handle),
	}
}

// Backend returns the backend commands are forwarded to.
func (c *Cache) Backend() backend.Backend {
	return c.b
}

// BindFramebuffer switches the render target if fb is not the bound one.
//
// Returns:
//   - bool: true if a command was emitted
func (c *Cache) BindFramebuffer(fb backend.Handle) bool {
	if c.hasFramebuffer && c.framebuffer == fb {
		return false
	}
	logger.Logger().Debug("state: bind framebuffer", "framebuffer", fb)
	c.framebuffer, c.hasFramebuffer = fb, true
	c.b.BindFramebuffer(fb)
	c.Emitted++
	return true
}

// SetViewport applies vp if it differs from the current viewport.
func (c *Cache) SetViewport(vp common.Viewport) bool {
	if c.hasViewport && c.viewport == vp {
		return false
	}
	c.viewport, c.hasViewport = vp, true
	c.b.SetViewport(vp)
	c.Emitted++
	return true
}

// BindFixedState applies s if it differs from the current fixed state.
func (c *Cache) BindFixedState(s backend.FixedState) bool {
	if c.hasFixed && c.fixed == s {
		return false
	}
	c.fixed, c.hasFixed = s, true
	c.b.BindFixedState(s)
	c.Emitted++
	return true
}

// BindProgram binds program if it is not the bound one.
func (c *Cache) BindProgram(program backend.Handle) bool {
	if c.program == program {
		return false
	}
	c.program = program
	c.b.BindProgram(program)
	c.Emitted++
	return true
}

// BindVertexBuffer binds buf to a vertex slot if the slot holds something else.
func (c *Cache) BindVertexBuffer(slot int, buf backend.Handle, offset int) bool {
	want := vertexBinding{buf: buf, offset: offset}
	if cur, ok := c.vertexBuffers[slot]; ok && cur == want {
		return false
	}
	c.vertexBuffers[slot] = want
	c.b.BindVertexBuffer(slot, buf, offset)
	c.Emitted++
	return true
}

// BindIndexBuffer binds the index buffer if it differs from the bound one.
func (c *Cache) BindIndexBuffer(buf backend.Handle, short bool) bool {
	want := indexBinding{buf: buf, short: short}
	if c.hasIndex && c.index == want {
		return false
	}
	c.index, c.hasIndex = want, true
	c.b.BindIndexBuffer(buf, short)
	c.Emitted++
	return true
}

// BindResourceSet binds set to a group if the group holds something else.
func (c *Cache) BindResourceSet(group int, set backend.Handle) bool {
	if cur, ok := c.resourceSets[group]; ok && cur == set {
		return false
	}
	c.resourceSets[group] = set
	c.b.BindResourceSet(group, set)
	c.Emitted++
	return true
}

// Framebuffer returns the bound framebuffer.
func (c *Cache) Framebuffer() (backend.Handle, bool) {
	return c.framebuffer, c.hasFramebuffer
}

// Invalidate forgets every cached value so the next bind of each item is always emitted.
func (c *Cache) Invalidate() {
	logger.Logger().Debug("state: invalidate")
	c.hasFramebuffer = false
	c.hasViewport = false
	c.hasFixed = false
	c.program = 0
	c.hasIndex = false
	clear(c.vertexBuffers)
	clear(c.resourceSets)
}
