package blur

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/descriptor"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
)

const (
	// IncludeX and IncludeY name the kernel includes registered for each pass.
	IncludeX = "blur_kernel_x"
	IncludeY = "blur_kernel_y"
)

// fullscreenVertex draws one triangle covering the viewport; no vertex buffers are needed.
const fullscreenVertex = `struct VertexOut {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOut {
    var out: VertexOut;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    return out;
}
`

const passFragment = `#include "%s"

@group(0) @binding(0) var source: texture_2d<f32>;
@group(0) @binding(1) var source_sampler: sampler;

const DIRECTION: vec2<f32> = vec2<f32>(%.1f, %.1f);

@fragment
fn fs_main(@builtin(position) position: vec4<f32>) -> @location(0) vec4<f32> {
    let size = vec2<f32>(textureDimensions(source));
    var sum = vec4<f32>(0.0);
    for (var i = 0; i < N; i++) {
        let offset = DIRECTION * f32(i - N / 2);
        sum += coeff[i] * textureSampleLevel(source, source_sampler, (position.xy + offset) / size, 0.0);
    }
    return sum;
}
`

// AliasingError is returned when two images of a separable blur are the same resource.
type AliasingError struct {
	First, Second string
}

func (e *AliasingError) Error() string {
	return fmt.Sprintf("blur: %s and %s images must be distinct", e.First, e.Second)
}

// separable is the implementation of the Separable interface.
type separable struct {
	mu *sync.Mutex

	radiusX, radiusY int
	label            string
	sampler          common.SamplerState

	passX, passY pipeline.Pipeline
}

// Separable is a two-pass blur. The horizontal pass reads the source image into the
// intermediate image and the vertical pass reads the intermediate image into the output.
type Separable interface {
	// Render issues the horizontal pass then the vertical pass. It draws nothing else, so the
	// caller orders it against the passes producing the source and consuming the output.
	//
	// Returns:
	//   - error: the first render error
	Render() error

	// Passes returns the horizontal and vertical pipelines.
	//
	// Returns:
	//   - pipeline.Pipeline: the blur_x pipeline
	//   - pipeline.Pipeline: the blur_y pipeline
	Passes() (pipeline.Pipeline, pipeline.Pipeline)

	// Radius returns the horizontal and vertical kernel radii.
	Radius() (int, int)

	// Release frees both pipelines. The images stay owned by the caller.
	Release()
}

var _ Separable = &separable{}

// NewSeparable registers the kernel includes on ctx and compiles both passes. Source and
// intermediate images must be textures; intermediate and output share one size.
//
// Parameters:
//   - ctx: the Context owning the images
//   - source: the image to blur
//   - temp: the intermediate image written by the horizontal pass
//   - output: the image written by the vertical pass
//   - opts: variadic list of SeparableBuilderOption functions
//
// Returns:
//   - Separable: the two-pass blur
//   - error: *AliasingError, ErrInvalidRadius or any error of renderer.Context.Pipeline
func NewSeparable(ctx renderer.Context, source, temp, output resource.Image, opts ...SeparableBuilderOption) (Separable, error) {
	s := &separable{
		mu:      &sync.Mutex{},
		radiusX: 5,
		radiusY: 5,
		label:   "blur",
		sampler: common.SamplerState{
			MinFilter:    common.FilterNearest,
			MagFilter:    common.FilterNearest,
			MipmapFilter: common.FilterNearest,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case source.Handle() == temp.Handle():
		return nil, &AliasingError{First: "source", Second: "intermediate"}
	case temp.Handle() == output.Handle():
		return nil, &AliasingError{First: "intermediate", Second: "output"}
	case source.Handle() == output.Handle():
		return nil, &AliasingError{First: "source", Second: "output"}
	}

	kx, err := KernelSource(s.radiusX)
	if err != nil {
		return nil, err
	}
	ky, err := KernelSource(s.radiusY)
	if err != nil {
		return nil, err
	}
	ctx.Includes().Set(IncludeX, kx)
	ctx.Includes().Set(IncludeY, ky)

	s.passX, err = ctx.Pipeline(s.pass("x", IncludeX, 1, 0, source, temp))
	if err != nil {
		return nil, err
	}
	s.passY, err = ctx.Pipeline(s.pass("y", IncludeY, 0, 1, temp, output))
	if err != nil {
		s.passX.Release()
		return nil, err
	}
	logger.Logger().Debug("blur: separable passes created", "label", s.label, "radius_x", s.radiusX, "radius_y", s.radiusY)
	return s, nil
}

func (s *separable) pass(axis, include string, dx, dy float64, from, to resource.Image) descriptor.PipelineDescriptor {
	return descriptor.PipelineDescriptor{
		Label:          s.label + "_" + axis,
		VertexShader:   fullscreenVertex,
		FragmentShader: fmt.Sprintf(passFragment, include, dx, dy),
		Layout:         []descriptor.LayoutEntry{{Name: "source", Binding: 0}},
		Resources: []descriptor.Resource{{
			Type:    descriptor.ResourceSampler,
			Binding: 0,
			Image:   from,
			Sampler: s.sampler,
		}},
		Framebuffer: []resource.Image{to},
		VertexCount: 3,
	}
}

func (s *separable) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.passX.Render(); err != nil {
		return err
	}
	return s.passY.Render()
}

func (s *separable) Passes() (pipeline.Pipeline, pipeline.Pipeline) {
	return s.passX, s.passY
}

func (s *separable) Radius() (int, int) {
	return s.radiusX, s.radiusY
}

func (s *separable) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passX.Release()
	s.passY.Release()
}
