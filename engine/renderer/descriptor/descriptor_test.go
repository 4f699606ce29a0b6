package descriptor

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOwner struct {
	b     headless.Backend
	cache *state.Cache
}

func (o *testOwner) Backend() backend.Backend  { return o.b }
func (o *testOwner) State() *state.Cache       { return o.cache }
func (o *testOwner) MapChanged(int)            {}
func (o *testOwner) Released(h backend.Handle) {}
func (o *testOwner) Framebuffer(attachments []backend.Handle) (backend.Handle, error) {
	return o.b.CreateFramebuffer(attachments)
}

type fixture struct {
	owner    *testOwner
	color    resource.Image
	depth    resource.Image
	texture  resource.Image
	uniform  resource.Buffer
	vertices resource.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := headless.NewBackend()
	o := &testOwner{b: b, cache: state.New(b)}
	f := &fixture{owner: o}
	var err error
	f.color, err = resource.NewImage(o, 16, 16, "rgba8unorm")
	require.NoError(t, err)
	f.depth, err = resource.NewImage(o, 16, 16, "depth24plus")
	require.NoError(t, err)
	f.texture, err = resource.NewImage(o, 8, 8, "rgba8unorm")
	require.NoError(t, err)
	f.uniform, err = resource.NewBuffer(o, resource.WithSize(16))
	require.NoError(t, err)
	f.vertices, err = resource.NewBuffer(o, resource.WithSize(3*24))
	require.NoError(t, err)
	return f
}

func (f *fixture) descriptor() PipelineDescriptor {
	return PipelineDescriptor{
		Label:          "test",
		VertexShader:   "vs",
		FragmentShader: "fs",
		Layout:         []LayoutEntry{{Name: "Common", Binding: 0}},
		Resources:      []Resource{{Type: ResourceUniformBuffer, Binding: 0, Buffer: f.uniform}},
		Framebuffer:    []resource.Image{f.color, f.depth},
		VertexBuffers:  Bind(f.vertices, "3f 3f", 0, 1),
	}
}

func TestResolveDefaults(t *testing.T) {
	f := newFixture(t)
	r, err := Resolve(f.descriptor())
	require.NoError(t, err)

	assert.Equal(t, common.TopologyTriangles, r.State.Topology)
	assert.Equal(t, common.CullNone, r.State.CullFace)
	assert.Equal(t, common.FrontFaceCCW, r.State.FrontFace)
	assert.Equal(t, common.ColorMaskAll, r.State.ColorMask)
	assert.Equal(t, common.DepthState{Test: true, Write: true, Func: common.CompareLess}, r.State.Depth)
	assert.False(t, r.State.Blend.Enable)

	assert.Equal(t, 3, r.VertexCount)
	assert.Equal(t, 1, r.InstanceCount)
	assert.Equal(t, common.Viewport{Width: 16, Height: 16}, r.Viewport)
	require.Len(t, r.ColorFormats, 1)
	require.NotNil(t, r.DepthFormat)
	assert.Equal(t, "depth24plus", r.DepthFormat.Name)
	assert.Equal(t, 16, r.Resources[0].Size)

	require.Len(t, r.Slots, 1)
	assert.Equal(t, 24, r.Slots[0].Layout.Stride)
	assert.Equal(t, []backend.VertexAttribute{
		{Location: 0, Format: "float32x3", Offset: 0},
		{Location: 1, Format: "float32x3", Offset: 12},
	}, r.Slots[0].Layout.Attributes)
}

func TestResolveBlendingDefaults(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.Blending = &common.BlendState{Enable: true, SrcColor: common.BlendSrcAlpha, DstColor: common.BlendOneMinusSrcAlpha}
	r, err := Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, common.BlendState{
		Enable:   true,
		SrcColor: common.BlendSrcAlpha,
		DstColor: common.BlendOneMinusSrcAlpha,
		SrcAlpha: common.BlendSrcAlpha,
		DstAlpha: common.BlendOneMinusSrcAlpha,
		OpColor:  common.BlendOpAdd,
		OpAlpha:  common.BlendOpAdd,
	}, r.State.Blend)
}

func TestValidateBindingMismatchBeforeAnyDriverCall(t *testing.T) {
	f := newFixture(t)
	live := f.owner.b.Live()
	f.owner.b.ResetCommands()

	d := f.descriptor()
	d.Resources = nil
	err := Validate(d)
	var bm *BindingMismatchError
	require.True(t, errors.As(err, &bm))
	assert.Equal(t, 0, bm.Binding)
	assert.Equal(t, live, f.owner.b.Live())
	assert.Empty(t, f.owner.b.Commands())

	d = f.descriptor()
	d.Layout = nil
	assert.True(t, errors.As(Validate(d), &bm))

	d = f.descriptor()
	d.Layout = append(d.Layout, LayoutEntry{Name: "Again", Binding: 0})
	assert.True(t, errors.As(Validate(d), &bm))
}

func TestValidateIsDeterministic(t *testing.T) {
	f := newFixture(t)
	good := f.descriptor()
	bad := f.descriptor()
	bad.Topology = "quads"

	for range 3 {
		assert.NoError(t, Validate(good))
		assert.Error(t, Validate(bad))
	}
}

func TestValidateErrors(t *testing.T) {
	f := newFixture(t)
	small, err := resource.NewImage(f.owner, 8, 8, "rgba8unorm")
	require.NoError(t, err)
	ms, err := resource.NewImage(f.owner, 16, 16, "rgba8unorm", resource.WithSamples(4))
	require.NoError(t, err)
	odd, err := resource.NewBuffer(f.owner, resource.WithSize(25))
	require.NoError(t, err)
	width := float32(2)

	tests := []struct {
		name   string
		mutate func(d *PipelineDescriptor)
		target any
	}{
		{"malformed layout", func(d *PipelineDescriptor) { d.VertexBuffers = Bind(f.vertices, "3q", 0) }, new(*FormatParseError)},
		{"location count", func(d *PipelineDescriptor) { d.VertexBuffers = Bind(f.vertices, "3f 3f", 0) }, new(*FormatParseError)},
		{"duplicate location", func(d *PipelineDescriptor) { d.VertexBuffers = Bind(f.vertices, "3f 3f", 1, 1) }, new(*FormatParseError)},
		{"no attachments", func(d *PipelineDescriptor) { d.Framebuffer = nil }, new(*FramebufferMismatchError)},
		{"size mismatch", func(d *PipelineDescriptor) { d.Framebuffer = []resource.Image{f.color, small} }, new(*FramebufferMismatchError)},
		{"sample mismatch", func(d *PipelineDescriptor) { d.Framebuffer = []resource.Image{f.color, ms} }, new(*FramebufferMismatchError)},
		{"color after depth", func(d *PipelineDescriptor) { d.Framebuffer = []resource.Image{f.depth, f.color} }, new(*FramebufferMismatchError)},
		{"depth without attachment", func(d *PipelineDescriptor) {
			d.Framebuffer = []resource.Image{f.color}
			d.Depth = &common.DepthState{Test: true}
		}, new(*FramebufferMismatchError)},
		{"stencil without attachment", func(d *PipelineDescriptor) { d.Stencil = &common.StencilState{Test: true} }, new(*FramebufferMismatchError)},
		{"topology", func(d *PipelineDescriptor) { d.Topology = "quads" }, new(*UnsupportedOptionError)},
		{"cull face", func(d *PipelineDescriptor) { d.CullFace = "sideways" }, new(*UnsupportedOptionError)},
		{"front face", func(d *PipelineDescriptor) { d.FrontFace = "clockwise" }, new(*UnsupportedOptionError)},
		{"blend factor", func(d *PipelineDescriptor) {
			d.Blending = &common.BlendState{Enable: true, SrcColor: "src_alpha", DstColor: "bogus"}
		}, new(*UnsupportedOptionError)},
		{"disabled blend factor", func(d *PipelineDescriptor) {
			d.Blending = &common.BlendState{SrcColor: "bogus", DstColor: "nonsense"}
		}, new(*UnsupportedOptionError)},
		{"disabled blend operation", func(d *PipelineDescriptor) {
			d.Blending = &common.BlendState{OpAlpha: "max_of_both"}
		}, new(*UnsupportedOptionError)},
		{"disabled stencil operation", func(d *PipelineDescriptor) {
			d.Stencil = &common.StencilState{Back: common.StencilFace{PassOp: "explode"}}
		}, new(*UnsupportedOptionError)},
		{"disabled stencil function", func(d *PipelineDescriptor) {
			d.Stencil = &common.StencilState{Front: common.StencilFace{Compare: "sometimes"}}
		}, new(*UnsupportedOptionError)},
		{"line width", func(d *PipelineDescriptor) { d.LineWidth = width }, new(*UnsupportedOptionError)},
		{"resource type", func(d *PipelineDescriptor) { d.Resources[0].Type = "texture_buffer" }, new(*UnsupportedOptionError)},
		{"viewport", func(d *PipelineDescriptor) { d.Viewport = common.Viewport{Width: 32, Height: 32} }, new(*UnsupportedOptionError)},
		{"sampler filter", func(d *PipelineDescriptor) {
			d.Layout = append(d.Layout, LayoutEntry{Name: "Texture", Binding: 1})
			d.Resources = append(d.Resources, Resource{Type: ResourceSampler, Binding: 1, Image: f.texture, Sampler: common.SamplerState{MinFilter: "cubic"}})
		}, new(*UnsupportedOptionError)},
		{"feedback hazard", func(d *PipelineDescriptor) {
			d.Layout = append(d.Layout, LayoutEntry{Name: "Texture", Binding: 1})
			d.Resources = append(d.Resources, Resource{Type: ResourceSampler, Binding: 1, Image: f.color})
		}, new(*FeedbackHazardError)},
		{"uneven vertex buffer", func(d *PipelineDescriptor) { d.VertexBuffers = Bind(odd, "3f 3f", 0, 1) }, new(*VertexCountError)},
		{"nothing to infer from", func(d *PipelineDescriptor) { d.VertexBuffers = nil }, new(*VertexCountError)},
		{"buffer range", func(d *PipelineDescriptor) { d.Resources[0].Offset = 8; d.Resources[0].Size = 16 }, new(*BindingMismatchError)},
		{"storage usage", func(d *PipelineDescriptor) { d.Resources[0].Type = ResourceStorageBuffer }, new(*BindingMismatchError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.descriptor()
			d.Resources = append([]Resource(nil), d.Resources...)
			tt.mutate(&d)
			err := Validate(d)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %v", err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestVertexCountInference(t *testing.T) {
	f := newFixture(t)

	d := f.descriptor()
	d.VertexCount = 2
	r, err := Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, 2, r.VertexCount)

	instances, err := resource.NewBuffer(f.owner, resource.WithSize(40))
	require.NoError(t, err)
	d = f.descriptor()
	d.VertexBuffers = append(d.VertexBuffers, Bind(instances, "4f /i", 2)...)
	r, err = Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, 3, r.VertexCount)
	require.Len(t, r.Slots, 2)
	assert.True(t, r.Slots[1].Layout.PerInstance)

	index, err := resource.NewBuffer(f.owner, resource.WithSize(12), resource.WithUsage(resource.UsageIndex))
	require.NoError(t, err)
	d = f.descriptor()
	d.IndexBuffer = index
	d.ShortIndex = true
	r, err = Resolve(d)
	require.NoError(t, err)
	assert.Equal(t, 6, r.VertexCount)
	assert.True(t, r.State.ShortIndex)
	assert.True(t, r.State.PrimitiveRestart)

	d.IndexBuffer = f.uniform
	var uo *UnsupportedOptionError
	assert.True(t, errors.As(Validate(d), &uo))
}

func TestSkippedLocations(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.VertexBuffers = Bind(f.vertices, "3f 3f", 0, -1)
	r, err := Resolve(d)
	require.NoError(t, err)
	require.Len(t, r.Slots[0].Layout.Attributes, 1)
	assert.Equal(t, 24, r.Slots[0].Layout.Stride)
}

func TestReleasedResourcesAreRejected(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	f.uniform.Release()
	assert.ErrorIs(t, Validate(d), resource.ErrReleased)
}

func TestCheckReflection(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.Layout = append(d.Layout, LayoutEntry{Name: "Texture", Binding: 1})
	d.Resources = append(d.Resources, Resource{Type: ResourceSampler, Binding: 1, Image: f.texture})
	r, err := Resolve(d)
	require.NoError(t, err)

	bindings := []shader.Binding{
		{Group: 0, Binding: 0, Name: "common", Type: "Common", Kind: shader.BindingUniform, Size: 16},
		{Group: 0, Binding: 1, Name: "tex", Type: "texture_2d<f32>", Kind: shader.BindingTexture},
		{Group: 0, Binding: 2, Name: "samp", Type: "sampler", Kind: shader.BindingSampler},
	}
	inputs := []shader.VertexInput{{Location: 0, Type: "vec3<f32>"}, {Location: 1, Type: "vec3<f32>"}}
	require.NoError(t, CheckReflection(r, bindings, inputs))

	var bm *BindingMismatchError
	big := append([]shader.Binding(nil), bindings...)
	big[0].Size = 32
	assert.True(t, errors.As(CheckReflection(r, big, inputs), &bm))

	assert.True(t, errors.As(CheckReflection(r, bindings[1:], inputs), &bm))

	extra := append(append([]shader.Binding(nil), bindings...), shader.Binding{Group: 1, Binding: 0, Name: "lights", Type: "Lights", Kind: shader.BindingUniform})
	assert.True(t, errors.As(CheckReflection(r, extra, inputs), &bm))

	wrongKind := append([]shader.Binding(nil), bindings...)
	wrongKind[0].Kind = shader.BindingStorage
	assert.True(t, errors.As(CheckReflection(r, wrongKind, inputs), &bm))

	var fp *FormatParseError
	assert.True(t, errors.As(CheckReflection(r, bindings, append(inputs, shader.VertexInput{Location: 4})), &fp))
}
