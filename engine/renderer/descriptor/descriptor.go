// Package descriptor holds the declarative description of a render pipeline and its validator.
//
// A PipelineDescriptor lists everything a pipeline needs: shader text, the binding layout, the
// resources bound to it, fixed-function state, vertex buffers and framebuffer attachments.
// Resolve checks it without touching the GPU and returns the normalized form the pipeline
// compiler consumes.
package descriptor

import (
	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
)

// ResourceType is the kind of a bound resource.
type ResourceType string

const (
	ResourceUniformBuffer ResourceType = "uniform_buffer"
	ResourceStorageBuffer ResourceType = "storage_buffer"
	ResourceSampler       ResourceType = "sampler"
)

// Valid reports whether t is a recognized resource type.
func (t ResourceType) Valid() bool {
	return t == ResourceUniformBuffer || t == ResourceStorageBuffer || t == ResourceSampler
}

// LayoutEntry names a resource block of the shaders and the binding it lives at.
type LayoutEntry struct {
	Name    string `toml:"name" yaml:"name"`
	Binding int    `toml:"binding" yaml:"binding"`
	Group   int    `toml:"group" yaml:"group"`
}

// Resource binds a buffer range or a sampled image to a shader binding.
//
// A sampler resource binds Image as the texture at Binding; when the shaders declare a sampler
// variable at Binding+1 it is created from Sampler.
type Resource struct {
	Type    ResourceType
	Binding int
	Group   int

	Buffer resource.Buffer
	Offset int
	// Size is the bound range in bytes; 0 binds the rest of the buffer.
	Size int

	Image   resource.Image
	Sampler common.SamplerState
}

// VertexBuffer feeds one vertex buffer slot. Layout is a vertex format string such as
// "3f 3f 2f" or "4f /i"; Locations holds one shader location per attribute, -1 to skip one.
type VertexBuffer struct {
	Buffer    resource.Buffer
	Layout    string
	Locations []int
	Offset    int
}

// Bind describes the attributes of buffer, in the form a descriptor's VertexBuffers expects.
//
// Parameters:
//   - buffer: the vertex buffer
//   - layout: the vertex format string
//   - locations: one shader location per attribute, -1 to skip an attribute
//
// Returns:
//   - []VertexBuffer: the binding, ready to be appended to other bindings
func Bind(buffer resource.Buffer, layout string, locations ...int) []VertexBuffer {
	return []VertexBuffer{{Buffer: buffer, Layout: layout, Locations: locations}}
}

// PipelineDescriptor is the full description of a render pipeline. Zero values select the
// defaults noted on each field.
type PipelineDescriptor struct {
	// Label is used for diagnostics and backend object names.
	Label string

	VertexShader   string
	FragmentShader string

	Layout    []LayoutEntry
	Resources []Resource

	// Depth defaults to a less-than test with writes when the framebuffer has a depth
	// attachment, and to no test otherwise.
	Depth   *common.DepthState
	Stencil *common.StencilState
	// Blending is disabled when nil.
	Blending      *common.BlendState
	PolygonOffset common.PolygonOffset
	// ColorMask defaults to all channels.
	ColorMask *common.ColorMask

	// Framebuffer lists the color attachments followed by at most one depth attachment.
	Framebuffer []resource.Image

	VertexBuffers []VertexBuffer
	IndexBuffer   resource.Buffer
	ShortIndex    bool
	// PrimitiveRestart defaults to true. It only affects indexed strip topologies.
	PrimitiveRestart *bool

	FrontFace common.FrontFace
	CullFace  common.CullFace
	Topology  common.Topology

	// VertexCount is inferred from the index buffer or the per-vertex buffers when 0.
	VertexCount int
	// InstanceCount defaults to 1.
	InstanceCount int
	FirstVertex   int
	// LineWidth defaults to 1, the only width supported.
	LineWidth float32
	// Viewport defaults to the full framebuffer.
	Viewport common.Viewport
}
