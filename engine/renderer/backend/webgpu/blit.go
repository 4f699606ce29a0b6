package webgpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/cogentcore/webgpu/wgpu"
)

// blitShader draws one triangle covering the viewport and samples the source rectangle across it.
// source_rect holds the uv offset in xy and the uv scale in zw.
const blitShader = `
struct BlitParams {
    source_rect: vec4<f32>,
};

@group(0) @binding(0) var<uniform> params: BlitParams;
@group(0) @binding(1) var source: texture_2d<f32>;
@group(0) @binding(2) var source_sampler: sampler;

struct VertexOut {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOut {
    let corner = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOut;
    out.position = vec4<f32>(corner * 2.0 - 1.0, 0.0, 1.0);
    out.uv = params.source_rect.xy + vec2<f32>(corner.x, 1.0 - corner.y) * params.source_rect.zw;
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return textureSample(source, source_sampler, in.uv);
}
`

type blitDraw struct {
	source       *wgpu.TextureView
	sourceWidth  int
	sourceHeight int
	sourceRect   common.Viewport

	target       *wgpu.TextureView
	targetFormat wgpu.TextureFormat
	targetWidth  int
	targetHeight int
	targetRect   common.Viewport

	filter common.FilterMode
}

// blitter owns the pipelines used by scaled image copies, one per target format.
type blitter struct {
	device    *wgpu.Device
	queue     *wgpu.Queue
	module    *wgpu.ShaderModule
	layout    *wgpu.BindGroupLayout
	pipeline  *wgpu.PipelineLayout
	pipelines map[wgpu.TextureFormat]*wgpu.RenderPipeline
	samplers  map[common.FilterMode]*wgpu.Sampler
}

func newBlitter(device *wgpu.Device, queue *wgpu.Queue) *blitter {
	return &blitter{
		device:    device,
		queue:     queue,
		pipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
		samplers:  make(map[common.FilterMode]*wgpu.Sampler),
	}
}

func (bl *blitter) init() error {
	if bl.module != nil {
		return nil
	}
	module, err := bl.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "blit",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blitShader,
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: blit shader: %w", err)
	}

	layout, err := bl.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "blit",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 16,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		module.Release()
		return err
	}

	pipelineLayout, err := bl.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "blit",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		module.Release()
		return err
	}
	bl.module, bl.layout, bl.pipeline = module, layout, pipelineLayout
	return nil
}

func (bl *blitter) pipelineFor(tf wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := bl.pipelines[tf]; ok {
		return p, nil
	}
	p, err := bl.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "blit",
		Layout: bl.pipeline,
		Vertex: wgpu.VertexState{
			Module:     bl.module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     bl.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    tf,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: blit pipeline for %v: %w", tf, err)
	}
	bl.pipelines[tf] = p
	return p, nil
}

func (bl *blitter) samplerFor(filter common.FilterMode) (*wgpu.Sampler, error) {
	filter = common.Coalesce(filter, common.FilterNearest)
	if s, ok := bl.samplers[filter]; ok {
		return s, nil
	}
	s, err := bl.device.CreateSampler(samplerDescriptor("blit "+string(filter), common.SamplerState{
		MinFilter:    filter,
		MagFilter:    filter,
		MipmapFilter: common.FilterNearest,
		WrapX:        common.AddressClampToEdge,
		WrapY:        common.AddressClampToEdge,
		WrapZ:        common.AddressClampToEdge,
		MaxLod:       32,
	}))
	if err != nil {
		return nil, err
	}
	bl.samplers[filter] = s
	return s, nil
}

// sourceRectUniform returns the uv offset and scale of a pixel rectangle of a w x h image.
func sourceRectUniform(rect common.Viewport, w, h int) [4]float32 {
	if rect.IsZero() {
		return [4]float32{0, 0, 1, 1}
	}
	fw, fh := float32(w), float32(h)
	return [4]float32{
		float32(rect.X) / fw,
		float32(rect.Y) / fh,
		float32(rect.Width) / fw,
		float32(rect.Height) / fh,
	}
}

// draw records a blit pass into encoder. The returned function releases the per-draw objects
// once the commands have been submitted.
func (bl *blitter) draw(encoder *wgpu.CommandEncoder, d blitDraw) (func(), error) {
	if err := bl.init(); err != nil {
		return nil, err
	}
	pipeline, err := bl.pipelineFor(d.targetFormat)
	if err != nil {
		return nil, err
	}
	sampler, err := bl.samplerFor(d.filter)
	if err != nil {
		return nil, err
	}

	rect := sourceRectUniform(d.sourceRect, d.sourceWidth, d.sourceHeight)
	data, err := format.Pack(rect)
	if err != nil {
		return nil, err
	}
	params, err := bl.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "blit params",
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	bl.queue.WriteBuffer(params, 0, data)
	bindGroup, err := bl.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "blit",
		Layout: bl.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: params, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: d.source},
			{Binding: 2, Sampler: sampler},
		},
	})
	if err != nil {
		params.Release()
		return nil, err
	}

	vp := d.targetRect
	if vp.IsZero() {
		vp = common.Viewport{Width: d.targetWidth, Height: d.targetHeight}
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    d.target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()

	return func() {
		bindGroup.Release()
		params.Release()
	}, nil
}

func (bl *blitter) release() {
	for _, p := range bl.pipelines {
		p.Release()
	}
	for _, s := range bl.samplers {
		s.Release()
	}
	if bl.module == nil {
		return
	}
	bl.pipeline.Release()
	bl.layout.Release()
	bl.module.Release()
}
