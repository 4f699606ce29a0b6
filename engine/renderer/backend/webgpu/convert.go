package webgpu

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureFormatMap maps image format names to wgpu texture formats.
var textureFormatMap = map[string]wgpu.TextureFormat{
	"r8unorm":              wgpu.TextureFormatR8Unorm,
	"rg8unorm":             wgpu.TextureFormatRG8Unorm,
	"rgba8unorm":           wgpu.TextureFormatRGBA8Unorm,
	"r8snorm":              wgpu.TextureFormatR8Snorm,
	"rg8snorm":             wgpu.TextureFormatRG8Snorm,
	"rgba8snorm":           wgpu.TextureFormatRGBA8Snorm,
	"r8uint":               wgpu.TextureFormatR8Uint,
	"rg8uint":              wgpu.TextureFormatRG8Uint,
	"rgba8uint":            wgpu.TextureFormatRGBA8Uint,
	"r8sint":               wgpu.TextureFormatR8Sint,
	"rg8sint":              wgpu.TextureFormatRG8Sint,
	"rgba8sint":            wgpu.TextureFormatRGBA8Sint,
	"r16uint":              wgpu.TextureFormatR16Uint,
	"rg16uint":             wgpu.TextureFormatRG16Uint,
	"rgba16uint":           wgpu.TextureFormatRGBA16Uint,
	"r16sint":              wgpu.TextureFormatR16Sint,
	"rg16sint":             wgpu.TextureFormatRG16Sint,
	"rgba16sint":           wgpu.TextureFormatRGBA16Sint,
	"r16float":             wgpu.TextureFormatR16Float,
	"rg16float":            wgpu.TextureFormatRG16Float,
	"rgba16float":          wgpu.TextureFormatRGBA16Float,
	"r32uint":              wgpu.TextureFormatR32Uint,
	"rg32uint":             wgpu.TextureFormatRG32Uint,
	"rgba32uint":           wgpu.TextureFormatRGBA32Uint,
	"r32sint":              wgpu.TextureFormatR32Sint,
	"rg32sint":             wgpu.TextureFormatRG32Sint,
	"rgba32sint":           wgpu.TextureFormatRGBA32Sint,
	"r32float":             wgpu.TextureFormatR32Float,
	"rg32float":            wgpu.TextureFormatRG32Float,
	"rgba32float":          wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":           wgpu.TextureFormatBGRA8Unorm,
	"rgba8unorm-srgb":      wgpu.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm-srgb":      wgpu.TextureFormatBGRA8UnormSrgb,
	"depth16unorm":         wgpu.TextureFormatDepth16Unorm,
	"depth24plus":          wgpu.TextureFormatDepth24Plus,
	"depth24plus-stencil8": wgpu.TextureFormatDepth24PlusStencil8,
	"depth32float":         wgpu.TextureFormatDepth32Float,
}

// vertexFormatMap maps vertex attribute format names to wgpu vertex formats.
var vertexFormatMap = map[format.VertexFormat]wgpu.VertexFormat{
	"uint8x2":   wgpu.VertexFormatUint8x2,
	"uint8x4":   wgpu.VertexFormatUint8x4,
	"sint8x2":   wgpu.VertexFormatSint8x2,
	"sint8x4":   wgpu.VertexFormatSint8x4,
	"unorm8x2":  wgpu.VertexFormatUnorm8x2,
	"unorm8x4":  wgpu.VertexFormatUnorm8x4,
	"snorm8x2":  wgpu.VertexFormatSnorm8x2,
	"snorm8x4":  wgpu.VertexFormatSnorm8x4,
	"uint16x2":  wgpu.VertexFormatUint16x2,
	"uint16x4":  wgpu.VertexFormatUint16x4,
	"sint16x2":  wgpu.VertexFormatSint16x2,
	"sint16x4":  wgpu.VertexFormatSint16x4,
	"unorm16x2": wgpu.VertexFormatUnorm16x2,
	"unorm16x4": wgpu.VertexFormatUnorm16x4,
	"snorm16x2": wgpu.VertexFormatSnorm16x2,
	"snorm16x4": wgpu.VertexFormatSnorm16x4,
	"float16x2": wgpu.VertexFormatFloat16x2,
	"float16x4": wgpu.VertexFormatFloat16x4,
	"float32":   wgpu.VertexFormatFloat32,
	"float32x2": wgpu.VertexFormatFloat32x2,
	"float32x3": wgpu.VertexFormatFloat32x3,
	"float32x4": wgpu.VertexFormatFloat32x4,
	"uint32":    wgpu.VertexFormatUint32,
	"uint32x2":  wgpu.VertexFormatUint32x2,
	"uint32x3":  wgpu.VertexFormatUint32x3,
	"uint32x4":  wgpu.VertexFormatUint32x4,
	"sint32":    wgpu.VertexFormatSint32,
	"sint32x2":  wgpu.VertexFormatSint32x2,
	"sint32x3":  wgpu.VertexFormatSint32x3,
	"sint32x4":  wgpu.VertexFormatSint32x4,
}

var topologyMap = map[common.Topology]wgpu.PrimitiveTopology{
	common.TopologyPoints:        wgpu.PrimitiveTopologyPointList,
	common.TopologyLines:         wgpu.PrimitiveTopologyLineList,
	common.TopologyLineStrip:     wgpu.PrimitiveTopologyLineStrip,
	common.TopologyTriangles:     wgpu.PrimitiveTopologyTriangleList,
	common.TopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
}

var cullModeMap = map[common.CullFace]wgpu.CullMode{
	common.CullNone:  wgpu.CullModeNone,
	common.CullFront: wgpu.CullModeFront,
	common.CullBack:  wgpu.CullModeBack,
}

var frontFaceMap = map[common.FrontFace]wgpu.FrontFace{
	common.FrontFaceCCW: wgpu.FrontFaceCCW,
	common.FrontFaceCW:  wgpu.FrontFaceCW,
}

var blendFactorMap = map[common.BlendFactor]wgpu.BlendFactor{
	common.BlendZero:                  wgpu.BlendFactorZero,
	common.BlendOne:                   wgpu.BlendFactorOne,
	common.BlendSrcColor:              wgpu.BlendFactorSrc,
	common.BlendOneMinusSrcColor:      wgpu.BlendFactorOneMinusSrc,
	common.BlendDstColor:              wgpu.BlendFactorDst,
	common.BlendOneMinusDstColor:      wgpu.BlendFactorOneMinusDst,
	common.BlendSrcAlpha:              wgpu.BlendFactorSrcAlpha,
	common.BlendOneMinusSrcAlpha:      wgpu.BlendFactorOneMinusSrcAlpha,
	common.BlendDstAlpha:              wgpu.BlendFactorDstAlpha,
	common.BlendOneMinusDstAlpha:      wgpu.BlendFactorOneMinusDstAlpha,
	common.BlendConstantColor:         wgpu.BlendFactorConstant,
	common.BlendOneMinusConstantColor: wgpu.BlendFactorOneMinusConstant,
	common.BlendSrcAlphaSaturate:      wgpu.BlendFactorSrcAlphaSaturated,
}

var blendOpMap = map[common.BlendOp]wgpu.BlendOperation{
	common.BlendOpAdd:             wgpu.BlendOperationAdd,
	common.BlendOpSubtract:        wgpu.BlendOperationSubtract,
	common.BlendOpReverseSubtract: wgpu.BlendOperationReverseSubtract,
	common.BlendOpMin:             wgpu.BlendOperationMin,
	common.BlendOpMax:             wgpu.BlendOperationMax,
}

var compareMap = map[common.CompareFunc]wgpu.CompareFunction{
	common.CompareNever:    wgpu.CompareFunctionNever,
	common.CompareLess:     wgpu.CompareFunctionLess,
	common.CompareEqual:    wgpu.CompareFunctionEqual,
	common.CompareLEqual:   wgpu.CompareFunctionLessEqual,
	common.CompareGreater:  wgpu.CompareFunctionGreater,
	common.CompareNotEqual: wgpu.CompareFunctionNotEqual,
	common.CompareGEqual:   wgpu.CompareFunctionGreaterEqual,
	common.CompareAlways:   wgpu.CompareFunctionAlways,
}

var stencilOpMap = map[common.StencilOp]wgpu.StencilOperation{
	common.StencilZero:     wgpu.StencilOperationZero,
	common.StencilKeep:     wgpu.StencilOperationKeep,
	common.StencilReplace:  wgpu.StencilOperationReplace,
	common.StencilIncr:     wgpu.StencilOperationIncrementClamp,
	common.StencilDecr:     wgpu.StencilOperationDecrementClamp,
	common.StencilInvert:   wgpu.StencilOperationInvert,
	common.StencilIncrWrap: wgpu.StencilOperationIncrementWrap,
	common.StencilDecrWrap: wgpu.StencilOperationDecrementWrap,
}

var addressModeMap = map[common.AddressMode]wgpu.AddressMode{
	common.AddressRepeat:         wgpu.AddressModeRepeat,
	common.AddressMirroredRepeat: wgpu.AddressModeMirrorRepeat,
	common.AddressClampToEdge:    wgpu.AddressModeClampToEdge,
}

var viewDimensionMap = map[shader.TextureDimension]wgpu.TextureViewDimension{
	shader.Dimension1D:        wgpu.TextureViewDimension1D,
	shader.Dimension2D:        wgpu.TextureViewDimension2D,
	shader.Dimension2DArray:   wgpu.TextureViewDimension2DArray,
	shader.Dimension3D:        wgpu.TextureViewDimension3D,
	shader.DimensionCube:      wgpu.TextureViewDimensionCube,
	shader.DimensionCubeArray: wgpu.TextureViewDimensionCubeArray,
}

var sampleTypeMap = map[shader.SampleType]wgpu.TextureSampleType{
	shader.SampleFloat: wgpu.TextureSampleTypeFloat,
	shader.SampleSint:  wgpu.TextureSampleTypeSint,
	shader.SampleUint:  wgpu.TextureSampleTypeUint,
	shader.SampleDepth: wgpu.TextureSampleTypeDepth,
}

var storageAccessMap = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// TextureFormat returns the wgpu format of an image format.
//
// Parameters:
//   - f: the image format
//
// Returns:
//   - wgpu.TextureFormat: the matching texture format
//   - error: backend.ErrUnsupported (wrapped) when the format has no wgpu counterpart
func TextureFormat(f format.ImageFormat) (wgpu.TextureFormat, error) {
	tf, ok := textureFormatMap[f.Name]
	if !ok {
		return wgpu.TextureFormatUndefined, fmt.Errorf("webgpu: image format %q: %w", f.Name, backend.ErrUnsupported)
	}
	return tf, nil
}

// VertexFormat returns the wgpu format of a vertex attribute format.
func VertexFormat(f format.VertexFormat) (wgpu.VertexFormat, error) {
	vf, ok := vertexFormatMap[f]
	if !ok {
		return wgpu.VertexFormatUndefined, fmt.Errorf("webgpu: vertex format %q: %w", f, backend.ErrUnsupported)
	}
	return vf, nil
}

func shaderStages(s shader.Stage) wgpu.ShaderStage {
	out := wgpu.ShaderStageNone
	if s&shader.StageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&shader.StageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	return out
}

func colorWriteMask(m common.ColorMask) wgpu.ColorWriteMask {
	var out wgpu.ColorWriteMask
	if m&common.ColorMaskRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&common.ColorMaskGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&common.ColorMaskBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&common.ColorMaskAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

// blendState returns nil when blending is disabled, which wgpu treats as replace.
func blendState(b common.BlendState) *wgpu.BlendState {
	if !b.Enable {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: blendFactorMap[common.Coalesce(b.SrcColor, common.BlendOne)],
			DstFactor: blendFactorMap[common.Coalesce(b.DstColor, common.BlendZero)],
			Operation: blendOpMap[common.Coalesce(b.OpColor, common.BlendOpAdd)],
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: blendFactorMap[common.Coalesce(b.SrcAlpha, common.BlendOne)],
			DstFactor: blendFactorMap[common.Coalesce(b.DstAlpha, common.BlendZero)],
			Operation: blendOpMap[common.Coalesce(b.OpAlpha, common.BlendOpAdd)],
		},
	}
}

func stencilFace(f common.StencilFace) wgpu.StencilFaceState {
	return wgpu.StencilFaceState{
		Compare:     compareMap[common.Coalesce(f.Compare, common.CompareAlways)],
		FailOp:      stencilOpMap[common.Coalesce(f.FailOp, common.StencilKeep)],
		DepthFailOp: stencilOpMap[common.Coalesce(f.DepthFailOp, common.StencilKeep)],
		PassOp:      stencilOpMap[common.Coalesce(f.PassOp, common.StencilKeep)],
	}
}

// depthStencilState converts the depth, stencil and polygon offset parts of a fixed state for a
// depth attachment of format df.
func depthStencilState(s backend.FixedState, df wgpu.TextureFormat) *wgpu.DepthStencilState {
	ds := &wgpu.DepthStencilState{
		Format:              df,
		DepthWriteEnabled:   s.Depth.Test && s.Depth.Write,
		DepthCompare:        wgpu.CompareFunctionAlways,
		DepthBias:           int32(s.PolygonOffset.Units),
		DepthBiasSlopeScale: s.PolygonOffset.Factor,
		StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilReadMask:     0xFFFFFFFF,
		StencilWriteMask:    0xFFFFFFFF,
	}
	if s.Depth.Test {
		ds.DepthCompare = compareMap[common.Coalesce(s.Depth.Func, common.CompareLess)]
	}
	if s.Stencil.Test {
		ds.StencilFront = stencilFace(s.Stencil.Front)
		ds.StencilBack = stencilFace(s.Stencil.Back)
		// wgpu has one mask pair for both faces
		ds.StencilReadMask = common.Coalesce(s.Stencil.Front.CompareMask, 0xFF)
		ds.StencilWriteMask = common.Coalesce(s.Stencil.Front.WriteMask, 0xFF)
	}
	return ds
}

func samplerDescriptor(label string, s common.SamplerState) *wgpu.SamplerDescriptor {
	s = s.WithDefaults()
	mipmap := wgpu.MipmapFilterModeLinear
	if s.MipmapFilter == common.FilterNearest {
		mipmap = wgpu.MipmapFilterModeNearest
	}
	desc := &wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  addressModeMap[s.WrapX],
		AddressModeV:  addressModeMap[s.WrapY],
		AddressModeW:  addressModeMap[s.WrapZ],
		MagFilter:     filterMode(s.MagFilter),
		MinFilter:     filterMode(s.MinFilter),
		MipmapFilter:  mipmap,
		LodMinClamp:   s.MinLod,
		LodMaxClamp:   s.MaxLod,
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
	}
	if s.Compare != "" {
		desc.Compare = compareMap[s.Compare]
	}
	return desc
}

func filterMode(f common.FilterMode) wgpu.FilterMode {
	if f == common.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

// layoutEntry converts one reflected binding into a bind group layout entry.
func layoutEntry(b shader.Binding) (wgpu.BindGroupLayoutEntry, error) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(b.Binding),
		Visibility: shaderStages(b.Visibility),
	}
	switch b.Kind {
	case shader.BindingUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = b.Size
	case shader.BindingStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case shader.BindingReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case shader.BindingSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.BindingComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case shader.BindingTexture:
		entry.Texture.SampleType = sampleTypeMap[common.Coalesce(b.SampleType, shader.SampleFloat)]
		entry.Texture.ViewDimension = viewDimensionMap[common.Coalesce(b.Dimension, shader.Dimension2D)]
		entry.Texture.Multisampled = b.Multisampled
	case shader.BindingStorageTexture:
		tf, ok := textureFormatMap[b.StorageFormat]
		if !ok {
			return entry, fmt.Errorf("webgpu: storage texture %q format %q: %w", b.Name, b.StorageFormat, backend.ErrUnsupported)
		}
		entry.StorageTexture.Format = tf
		entry.StorageTexture.Access = storageAccessMap[common.Coalesce(b.StorageAccess, "write")]
		entry.StorageTexture.ViewDimension = viewDimensionMap[common.Coalesce(b.Dimension, shader.Dimension2D)]
	default:
		return entry, fmt.Errorf("webgpu: binding %q has an unknown kind: %w", b.Name, backend.ErrUnsupported)
	}
	return entry, nil
}

// bindGroupLayouts groups reflected bindings into one layout descriptor per group. Bindings
// arrive already merged across stages with their visibility ORed.
func bindGroupLayouts(label string, bindings []shader.Binding) (map[int]wgpu.BindGroupLayoutDescriptor, error) {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, b := range bindings {
		entry, err := layoutEntry(b)
		if err != nil {
			return nil, err
		}
		desc := out[b.Group]
		desc.Label = fmt.Sprintf("%s group %d", label, b.Group)
		desc.Entries = append(desc.Entries, entry)
		out[b.Group] = desc
	}
	for g, desc := range out {
		sort.Slice(desc.Entries, func(i, j int) bool {
			return desc.Entries[i].Binding < desc.Entries[j].Binding
		})
		out[g] = desc
	}
	return out, nil
}

func vertexBufferLayouts(layouts []backend.VertexLayout) ([]wgpu.VertexBufferLayout, error) {
	out := make([]wgpu.VertexBufferLayout, 0, len(layouts))
	for _, l := range layouts {
		attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
		for _, a := range l.Attributes {
			vf, err := VertexFormat(a.Format)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vf,
				Offset:         uint64(a.Offset),
				ShaderLocation: uint32(a.Location),
			})
		}
		step := wgpu.VertexStepModeVertex
		if l.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    step,
			Attributes:  attrs,
		})
	}
	return out, nil
}

// primitiveState converts topology, winding and culling. Strip topologies need the index format
// when primitive restart is on.
func primitiveState(s backend.FixedState) wgpu.PrimitiveState {
	ps := wgpu.PrimitiveState{
		Topology:  topologyMap[common.Coalesce(s.Topology, common.TopologyTriangles)],
		FrontFace: frontFaceMap[common.Coalesce(s.FrontFace, common.FrontFaceCCW)],
		CullMode:  cullModeMap[common.Coalesce(s.CullFace, common.CullNone)],
	}
	if s.Topology.IsStrip() && s.PrimitiveRestart {
		ps.StripIndexFormat = indexFormat(s.ShortIndex)
	}
	return ps
}

func indexFormat(short bool) wgpu.IndexFormat {
	if short {
		return wgpu.IndexFormatUint16
	}
	return wgpu.IndexFormatUint32
}

// clearColor converts an RGBA clear value; missing components are zero.
func clearColor(v common.ClearValue) wgpu.Color {
	var c [4]float64
	copy(c[:], v)
	return wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// alignedRowBytes rounds a row size up to the copy alignment required for texture readback.
func alignedRowBytes(rowBytes int) int {
	a := int(wgpu.CopyBytesPerRowAlignment)
	return (rowBytes + a - 1) / a * a
}
