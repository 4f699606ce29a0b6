package pipeline

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/state"
)

var (
	// ErrMappedBuffers is returned by Render while a buffer of the owning Context is mapped.
	ErrMappedBuffers = errors.New("pipeline: cannot render while buffers are mapped")

	// ErrReleased is returned by Render on a released pipeline.
	ErrReleased = errors.New("pipeline: pipeline was released")
)

// VertexSlot is a vertex buffer bound to one slot of the program.
type VertexSlot struct {
	Buffer resource.Buffer
	Offset int
}

// ResourceSet is the backend resource set bound to one group of the program.
type ResourceSet struct {
	Group  int
	Handle backend.Handle
}

// pipeline is the implementation of the Pipeline interface.
// Everything except the released flag is fixed at construction.
type pipeline struct {
	mu *sync.Mutex

	// pipelineKey identifies the pipeline in logs and in the Context's program cache
	pipelineKey string

	vertexShader, fragmentShader shader.Shader

	cache       *state.Cache
	program     backend.Handle
	framebuffer backend.Handle
	fixedState  backend.FixedState

	vertexSlots  []VertexSlot
	indexBuffer  resource.Buffer
	resourceSets []ResourceSet

	vertexCount   int
	instanceCount int
	firstVertex   int
	viewport      common.Viewport

	// mapped reports whether any buffer of the owning Context is mapped
	mapped func() bool
	// onRelease frees the pipeline's backend objects
	onRelease func()
	released  bool
}

// Pipeline is an immutable compiled render pipeline: shaders, fixed state, resource bindings,
// vertex buffers and a framebuffer, exposing a single draw operation.
type Pipeline interface {
	// PipelineKey returns the key of the pipeline, used for labels and the program cache.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// Shader retrieves the expanded shader of a stage.
	//
	// Parameters:
	//   - stage: shader.StageVertex or shader.StageFragment
	//
	// Returns:
	//   - shader.Shader: the shader, or nil for an unknown stage
	Shader(stage shader.Stage) shader.Shader

	// Program returns the backend program of the pipeline.
	//
	// Returns:
	//   - backend.Handle: the program handle
	Program() backend.Handle

	// Framebuffer returns the framebuffer the pipeline renders into.
	//
	// Returns:
	//   - backend.Handle: the framebuffer handle
	Framebuffer() backend.Handle

	// FixedState returns the non-programmable state applied before each draw.
	//
	// Returns:
	//   - backend.FixedState: the fixed state
	FixedState() backend.FixedState

	// VertexCount returns the declared or inferred number of vertices drawn by Render.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// InstanceCount returns the number of instances drawn by Render.
	//
	// Returns:
	//   - int: the instance count
	InstanceCount() int

	// Viewport returns the viewport applied by Render.
	//
	// Returns:
	//   - common.Viewport: the viewport
	Viewport() common.Viewport

	// Render applies the pipeline's state through the Context state cache and issues one
	// instanced draw. Only state that differs from what is currently applied is re-emitted.
	// Calling Render twice draws twice over the same target.
	//
	// Parameters:
	//   - opts: per-call overrides, see WithInstanceCount, WithVertexCount, WithFirstVertex and WithViewport
	//
	// Returns:
	//   - error: ErrMappedBuffers, ErrReleased or a backend draw error
	Render(opts ...RenderOption) error

	// Release frees the pipeline's resource sets. The program stays in the Context shader cache.
	Release()

	// Released reports whether Release was called.
	Released() bool
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline from already compiled backend objects. Pipelines are normally
// created by a rendering Context from a descriptor.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - cache: the state cache of the owning Context
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline
func NewPipeline(pipelineKey string, cache *state.Cache, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:            &sync.Mutex{},
		pipelineKey:   pipelineKey,
		cache:         cache,
		instanceCount: 1,
		fixedState: backend.FixedState{
			Topology:  common.TopologyTriangles,
			CullFace:  common.CullNone,
			FrontFace: common.FrontFaceCCW,
			ColorMask: common.ColorMaskAll,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(stage shader.Stage) shader.Shader {
	switch stage {
	case shader.StageVertex:
		return p.vertexShader
	case shader.StageFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) Program() backend.Handle {
	return p.program
}

func (p *pipeline) Framebuffer() backend.Handle {
	return p.framebuffer
}

func (p *pipeline) FixedState() backend.FixedState {
	return p.fixedState
}

func (p *pipeline) VertexCount() int {
	return p.vertexCount
}

func (p *pipeline) InstanceCount() int {
	return p.instanceCount
}

func (p *pipeline) Viewport() common.Viewport {
	return p.viewport
}

func (p *pipeline) Render(opts ...RenderOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return ErrReleased
	}
	if p.mapped != nil && p.mapped() {
		return ErrMappedBuffers
	}

	call := renderCall{
		vertexCount:   p.vertexCount,
		instanceCount: p.instanceCount,
		firstVertex:   p.firstVertex,
		viewport:      p.viewport,
	}
	for _, opt := range opts {
		opt(&call)
	}

	c := p.cache
	c.SetViewport(call.viewport)
	c.BindFixedState(p.fixedState)
	c.BindFramebuffer(p.framebuffer)
	c.BindProgram(p.program)
	for slot, vs := range p.vertexSlots {
		c.BindVertexBuffer(slot, vs.Buffer.Handle(), vs.Offset)
	}
	if p.indexBuffer != nil {
		c.BindIndexBuffer(p.indexBuffer.Handle(), p.fixedState.ShortIndex)
	}
	for _, set := range p.resourceSets {
		c.BindResourceSet(set.Group, set.Handle)
	}

	return c.Backend().Draw(backend.DrawCall{
		First:     call.firstVertex,
		Count:     call.vertexCount,
		Instances: call.instanceCount,
		Indexed:   p.indexBuffer != nil,
	})
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return
	}
	p.released = true
	if p.onRelease != nil {
		p.onRelease()
	}
}

func (p *pipeline) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
