package pipeline

import (
	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShaders sets the expanded vertex and fragment shaders the program was compiled from.
//
// Parameters:
//   - vertex: the vertex shader
//   - fragment: the fragment shader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shaders for this pipeline
func WithShaders(vertex, fragment shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = vertex
		p.fragmentShader = fragment
	}
}

// WithProgram sets the compiled backend program.
//
// Parameters:
//   - program: the program handle
//
// Returns:
//   - PipelineBuilderOption: a function that sets the program for this pipeline
func WithProgram(program backend.Handle) PipelineBuilderOption {
	return func(p *pipeline) {
		p.program = program
	}
}

// WithFramebuffer sets the framebuffer the pipeline renders into.
//
// Parameters:
//   - fb: the framebuffer handle
//
// Returns:
//   - PipelineBuilderOption: a function that sets the framebuffer for this pipeline
func WithFramebuffer(fb backend.Handle) PipelineBuilderOption {
	return func(p *pipeline) {
		p.framebuffer = fb
	}
}

// WithFixedState sets the blend, cull, topology, depth, stencil and color mask state.
//
// Parameters:
//   - s: the fixed state
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fixed state for this pipeline
func WithFixedState(s backend.FixedState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fixedState = s
	}
}

// WithVertexSlots sets the vertex buffers, one per program slot in slot order.
//
// Parameters:
//   - slots: the vertex buffers
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex buffers for this pipeline
func WithVertexSlots(slots ...VertexSlot) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexSlots = append(p.vertexSlots, slots...)
	}
}

// WithIndexBuffer makes draws indexed. The index size comes from the fixed state's ShortIndex.
//
// Parameters:
//   - buf: the index buffer
//
// Returns:
//   - PipelineBuilderOption: a function that sets the index buffer for this pipeline
func WithIndexBuffer(buf resource.Buffer) PipelineBuilderOption {
	return func(p *pipeline) {
		p.indexBuffer = buf
	}
}

// WithResourceSets sets the resource sets bound before each draw.
//
// Parameters:
//   - sets: the resource sets, in group order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the resource sets for this pipeline
func WithResourceSets(sets ...ResourceSet) PipelineBuilderOption {
	return func(p *pipeline) {
		p.resourceSets = append(p.resourceSets, sets...)
	}
}

// WithDraw sets the default draw parameters of Render.
//
// Parameters:
//   - vertexCount: the number of vertices (or indices)
//   - instanceCount: the number of instances
//   - firstVertex: the first vertex (or index)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the draw parameters for this pipeline
func WithDraw(vertexCount, instanceCount, firstVertex int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexCount = vertexCount
		p.instanceCount = instanceCount
		p.firstVertex = firstVertex
	}
}

// WithViewport sets the default viewport of Render.
func WithViewport(vp common.Viewport) PipelineBuilderOption {
	return func(p *pipeline) {
		p.viewport = vp
	}
}

// WithMappedCheck makes Render fail with ErrMappedBuffers whenever mapped returns true.
func WithMappedCheck(mapped func() bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.mapped = mapped
	}
}

// WithReleaseHook sets the function Release calls once to free backend objects.
func WithReleaseHook(hook func()) PipelineBuilderOption {
	return func(p *pipeline) {
		p.onRelease = hook
	}
}

// RenderOption overrides a draw parameter for a single Render call.
type RenderOption func(*renderCall)

type renderCall struct {
	vertexCount   int
	instanceCount int
	firstVertex   int
	viewport      common.Viewport
}

// WithInstanceCount draws n instances instead of the pipeline's instance count.
func WithInstanceCount(n int) RenderOption {
	return func(c *renderCall) {
		c.instanceCount = n
	}
}

// WithVertexCount draws n vertices instead of the pipeline's vertex count.
func WithVertexCount(n int) RenderOption {
	return func(c *renderCall) {
		c.vertexCount = n
	}
}

// WithFirstVertex starts drawing at vertex (or index) n.
func WithFirstVertex(n int) RenderOption {
	return func(c *renderCall) {
		c.firstVertex = n
	}
}

// WithRenderViewport draws into vp instead of the pipeline's viewport.
func WithRenderViewport(vp common.Viewport) RenderOption {
	return func(c *renderCall) {
		c.viewport = vp
	}
}
