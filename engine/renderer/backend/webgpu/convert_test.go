package webgpu

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureFormatCoversRegistry(t *testing.T) {
	for _, name := range format.ImageFormats() {
		f, err := format.LookupImage(name)
		require.NoError(t, err)
		tf, err := TextureFormat(f)
		require.NoError(t, err, name)
		assert.NotEqual(t, wgpu.TextureFormatUndefined, tf, name)
	}

	_, err := TextureFormat(format.ImageFormat{Name: "rgb9e5"})
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestVertexFormat(t *testing.T) {
	vf, err := VertexFormat("float32x3")
	require.NoError(t, err)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, vf)

	_, err = VertexFormat("float64x3")
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestBlendState(t *testing.T) {
	assert.Nil(t, blendState(common.BlendState{}))

	b := blendState(common.BlendState{
		Enable:   true,
		SrcColor: common.BlendSrcAlpha,
		DstColor: common.BlendOneMinusSrcAlpha,
	})
	require.NotNil(t, b)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, b.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, b.Color.DstFactor)
	assert.Equal(t, wgpu.BlendOperationAdd, b.Color.Operation)
	assert.Equal(t, wgpu.BlendFactorOne, b.Alpha.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorZero, b.Alpha.DstFactor)
}

func TestColorWriteMask(t *testing.T) {
	assert.Equal(t, wgpu.ColorWriteMaskAll, colorWriteMask(common.ColorMaskRed|common.ColorMaskGreen|common.ColorMaskBlue|common.ColorMaskAlpha))
	assert.Equal(t, wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskAlpha, colorWriteMask(common.ColorMaskRed|common.ColorMaskAlpha))
}

func TestDepthStencilState(t *testing.T) {
	ds := depthStencilState(backend.FixedState{}, wgpu.TextureFormatDepth24Plus)
	assert.False(t, ds.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionAlways, ds.DepthCompare)

	// writes without the depth test are ignored
	ds = depthStencilState(backend.FixedState{Depth: common.DepthState{Write: true}}, wgpu.TextureFormatDepth24Plus)
	assert.False(t, ds.DepthWriteEnabled)

	ds = depthStencilState(backend.FixedState{
		Depth:         common.DepthState{Test: true, Write: true, Func: common.CompareLEqual},
		PolygonOffset: common.PolygonOffset{Factor: 1.5, Units: 4},
		Stencil: common.StencilState{
			Test:  true,
			Front: common.StencilFace{PassOp: common.StencilIncr, Compare: common.CompareEqual},
		},
	}, wgpu.TextureFormatDepth24PlusStencil8)
	assert.True(t, ds.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, ds.DepthCompare)
	assert.Equal(t, int32(4), ds.DepthBias)
	assert.Equal(t, float32(1.5), ds.DepthBiasSlopeScale)
	assert.Equal(t, wgpu.StencilOperationIncrementClamp, ds.StencilFront.PassOp)
	assert.Equal(t, wgpu.CompareFunctionEqual, ds.StencilFront.Compare)
	assert.Equal(t, wgpu.StencilOperationKeep, ds.StencilBack.PassOp)
	assert.Equal(t, uint32(0xFF), ds.StencilReadMask)
	assert.Equal(t, uint32(0xFF), ds.StencilWriteMask)
}

func TestPrimitiveState(t *testing.T) {
	ps := primitiveState(backend.FixedState{})
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, ps.Topology)
	assert.Equal(t, wgpu.CullModeNone, ps.CullMode)
	assert.Equal(t, wgpu.IndexFormatUndefined, ps.StripIndexFormat)

	ps = primitiveState(backend.FixedState{
		Topology:         common.TopologyTriangleStrip,
		CullFace:         common.CullBack,
		PrimitiveRestart: true,
		ShortIndex:       true,
	})
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, ps.Topology)
	assert.Equal(t, wgpu.CullModeBack, ps.CullMode)
	assert.Equal(t, wgpu.IndexFormatUint16, ps.StripIndexFormat)
}

func TestBindGroupLayouts(t *testing.T) {
	bindings := []shader.Binding{
		{Group: 0, Binding: 2, Name: "smp", Kind: shader.BindingSampler, Visibility: shader.StageFragment},
		{Group: 0, Binding: 0, Name: "params", Kind: shader.BindingUniform, Size: 64, Visibility: shader.StageVertex | shader.StageFragment},
		{Group: 0, Binding: 1, Name: "tex", Kind: shader.BindingTexture, Visibility: shader.StageFragment},
		{Group: 2, Binding: 0, Name: "data", Kind: shader.BindingReadOnlyStorage, Visibility: shader.StageVertex},
	}
	layouts, err := bindGroupLayouts("prog", bindings)
	require.NoError(t, err)
	require.Len(t, layouts, 2)

	g0 := layouts[0]
	require.Len(t, g0.Entries, 3)
	for i, e := range g0.Entries {
		assert.Equal(t, uint32(i), e.Binding)
	}
	assert.Equal(t, wgpu.BufferBindingTypeUniform, g0.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(64), g0.Entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, g0.Entries[0].Visibility)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, g0.Entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, g0.Entries[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, g0.Entries[2].Sampler.Type)

	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, layouts[2].Entries[0].Buffer.Type)

	_, err = bindGroupLayouts("prog", []shader.Binding{{Name: "img", Kind: shader.BindingStorageTexture, StorageFormat: "rgb9e5"}})
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestVertexBufferLayouts(t *testing.T) {
	layouts, err := vertexBufferLayouts([]backend.VertexLayout{
		{Stride: 20, Attributes: []backend.VertexAttribute{
			{Location: 0, Format: "float32x3", Offset: 0},
			{Location: 1, Format: "float32x2", Offset: 12},
		}},
		{Stride: 16, PerInstance: true, Attributes: []backend.VertexAttribute{
			{Location: 2, Format: "float32x4"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, layouts, 2)
	assert.Equal(t, uint64(20), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0].StepMode)
	assert.Equal(t, uint64(12), layouts[0].Attributes[1].Offset)
	assert.Equal(t, uint32(1), layouts[0].Attributes[1].ShaderLocation)
	assert.Equal(t, wgpu.VertexStepModeInstance, layouts[1].StepMode)
}

func TestSamplerDescriptor(t *testing.T) {
	desc := samplerDescriptor("s", common.SamplerState{MinFilter: common.FilterNearest, MagFilter: common.FilterLinear, WrapX: common.AddressRepeat})
	assert.Equal(t, wgpu.FilterModeNearest, desc.MinFilter)
	assert.Equal(t, wgpu.FilterModeLinear, desc.MagFilter)
	assert.Equal(t, wgpu.AddressModeRepeat, desc.AddressModeU)
	assert.Equal(t, uint16(1), desc.MaxAnisotropy)
}

func TestClearColorAndRowAlignment(t *testing.T) {
	assert.Equal(t, wgpu.Color{R: 0.5, G: 1}, clearColor(common.ClearValue{0.5, 1}))
	assert.Equal(t, 256, alignedRowBytes(4))
	assert.Equal(t, 256, alignedRowBytes(256))
	assert.Equal(t, 512, alignedRowBytes(260))
	assert.Equal(t, 8, align4(5))
}

func TestSourceRectUniform(t *testing.T) {
	assert.Equal(t, [4]float32{0, 0, 1, 1}, sourceRectUniform(common.Viewport{}, 64, 32))
	assert.Equal(t, [4]float32{0.25, 0.5, 0.5, 0.5}, sourceRectUniform(common.Viewport{X: 16, Y: 16, Width: 32, Height: 16}, 64, 32))
}

func TestParsePresentMode(t *testing.T) {
	assert.Equal(t, PresentModeUncapped, ParsePresentMode("uncapped"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode("vsync"))
	assert.Equal(t, PresentModeVSync, ParsePresentMode("bogus"))
	assert.Equal(t, wgpu.PresentModeFifo, PresentModeVSync.wgpu())
	assert.Equal(t, wgpu.PresentModeImmediate, PresentModeUncapped.wgpu())
}
