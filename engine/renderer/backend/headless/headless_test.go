package headless

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const fragmentSource = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func mustFormat(t *testing.T, name string) format.ImageFormat {
	t.Helper()
	f, err := format.LookupImage(name)
	require.NoError(t, err)
	return f
}

func newImage(t *testing.T, b Backend, w, h int, name string) backend.Handle {
	t.Helper()
	img, err := b.CreateImage(backend.ImageDesc{Width: w, Height: h, Format: mustFormat(t, name), Samples: 1, Texture: true})
	require.NoError(t, err)
	return img
}

func TestBufferMirror(t *testing.T) {
	b := NewBackend()
	buf, err := b.CreateBuffer(backend.BufferDesc{Size: 8, Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	require.NoError(t, b.WriteBuffer(buf, 4, []byte{9, 9}))
	data, err := b.ReadBuffer(buf, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0, 9, 9, 0, 0}, data)

	assert.Error(t, b.WriteBuffer(buf, 7, []byte{1, 2}))
	_, err = b.ReadBuffer(buf, 4, 5)
	assert.Error(t, err)

	b.Release(buf)
	assert.ErrorIs(t, b.WriteBuffer(buf, 0, []byte{1}), backend.ErrInvalidHandle)
	assert.Equal(t, 0, b.Live())
}

func TestImageClearWriteRead(t *testing.T) {
	b := NewBackend()
	img := newImage(t, b, 2, 2, "rgba8unorm")

	require.NoError(t, b.ClearImage(img, common.ClearValue{1, 0, 0, 1}))
	px, err := b.ReadImage(backend.ImageRegion{Image: img})
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255, 255, 0, 0, 255}, px)

	require.NoError(t, b.WriteImage(backend.ImageRegion{Image: img, Rect: common.Viewport{X: 1, Y: 1, Width: 1, Height: 1}}, []byte{0, 0, 255, 255}))
	px, err = b.ReadImage(backend.ImageRegion{Image: img, Rect: common.Viewport{X: 1, Y: 1, Width: 1, Height: 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, px)

	assert.Error(t, b.WriteImage(backend.ImageRegion{Image: img}, []byte{1, 2, 3}))
	_, err = b.ReadImage(backend.ImageRegion{Image: img, Rect: common.Viewport{X: 1, Width: 2, Height: 1}})
	assert.Error(t, err)

	cmds := b.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, CmdClear, cmds[0].Kind)
}

func TestCompileProgram(t *testing.T) {
	b := NewBackend()
	desc := backend.ProgramDesc{
		Label:          "triangle",
		VertexSource:   vertexSource,
		FragmentSource: fragmentSource,
		VertexEntry:    "vs_main",
		FragmentEntry:  "fs_main",
		ColorFormats:   []format.ImageFormat{mustFormat(t, "rgba8unorm")},
		Samples:        1,
	}
	_, err := b.CompileProgram(desc)
	require.NoError(t, err)

	desc.FragmentSource = "@fragment fn fs_main( -> {"
	_, err = b.CompileProgram(desc)
	var ce *backend.ShaderCompilationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, shader.StageFragment, ce.Stage)
	assert.NotEmpty(t, ce.Diagnostic)

	desc.FragmentSource = fragmentSource
	desc.VertexEntry = ""
	_, err = b.CompileProgram(desc)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, shader.StageVertex, ce.Stage)
}

func TestDrawValidatesBoundState(t *testing.T) {
	b := NewBackend(WithShaderCompiler(nil))
	img := newImage(t, b, 4, 4, "rgba8unorm")
	fb, err := b.CreateFramebuffer([]backend.Handle{img})
	require.NoError(t, err)
	prog, err := b.CompileProgram(backend.ProgramDesc{
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		ColorFormats:  []format.ImageFormat{mustFormat(t, "rgba8unorm")},
		Samples:       1,
	})
	require.NoError(t, err)

	assert.Error(t, b.Draw(backend.DrawCall{Count: 3, Instances: 1}))

	b.BindFramebuffer(fb)
	b.BindProgram(prog)
	require.NoError(t, b.Draw(backend.DrawCall{Count: 3, Instances: 1}))
	assert.Error(t, b.Draw(backend.DrawCall{Count: 3, Instances: 1, Indexed: true}))

	other := newImage(t, b, 4, 4, "r32float")
	fb2, err := b.CreateFramebuffer([]backend.Handle{other})
	require.NoError(t, err)
	b.BindFramebuffer(fb2)
	assert.Error(t, b.Draw(backend.DrawCall{Count: 3, Instances: 1}))
}

func TestCreateFramebufferValidation(t *testing.T) {
	b := NewBackend()
	color := newImage(t, b, 4, 4, "rgba8unorm")
	small := newImage(t, b, 2, 2, "rgba8unorm")
	depth := newImage(t, b, 4, 4, "depth24plus")

	_, err := b.CreateFramebuffer([]backend.Handle{color, depth})
	assert.NoError(t, err)
	_, err = b.CreateFramebuffer([]backend.Handle{color, small})
	assert.Error(t, err)
	_, err = b.CreateFramebuffer([]backend.Handle{depth, color})
	assert.Error(t, err)
	_, err = b.CreateFramebuffer(nil)
	assert.Error(t, err)
}

func TestBlitToSurfaceAndImage(t *testing.T) {
	b := NewBackend(WithSurfaceSize(4, 4))
	src := newImage(t, b, 2, 2, "rgba8unorm")
	require.NoError(t, b.ClearImage(src, common.ClearValue{0, 1, 0, 1}))

	require.NoError(t, b.NewFrame())
	require.NoError(t, b.BlitImage(backend.BlitDesc{
		Source:         src,
		SourceViewport: common.Viewport{Width: 2, Height: 2},
		TargetViewport: common.Viewport{Width: 4, Height: 4},
		Filter:         common.FilterNearest,
	}))
	require.NoError(t, b.EndFrame())
	assert.Equal(t, 1, b.Presented())
	assert.Equal(t, 1, b.Frames())

	surface := b.Surface()
	assert.Equal(t, []byte{0, 255, 0, 255}, surface.Pix[surface.PixOffset(3, 3):surface.PixOffset(3, 3)+4])

	dst := newImage(t, b, 2, 2, "bgra8unorm")
	require.NoError(t, b.BlitImage(backend.BlitDesc{
		Source:         src,
		Target:         dst,
		SourceViewport: common.Viewport{Width: 2, Height: 2},
		TargetViewport: common.Viewport{Width: 2, Height: 2},
	}))
	px, err := b.ReadImage(backend.ImageRegion{Image: dst, Rect: common.Viewport{Width: 1, Height: 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0, 255}, px)

	float := newImage(t, b, 2, 2, "rgba32float")
	err = b.BlitImage(backend.BlitDesc{Source: float, SourceViewport: common.Viewport{Width: 2, Height: 2}, TargetViewport: common.Viewport{Width: 2, Height: 2}})
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestGenerateMipmaps(t *testing.T) {
	b := NewBackend()
	img := newImage(t, b, 2, 2, "rgba8unorm")
	require.NoError(t, b.WriteImage(backend.ImageRegion{Image: img}, []byte{
		0, 0, 0, 255, 100, 0, 0, 255,
		0, 100, 0, 255, 0, 0, 100, 255,
	}))
	require.NoError(t, b.GenerateMipmaps(img, 0, 4))

	mip, err := b.Mip(img, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{25, 25, 25, 255}, mip)
	_, err = b.Mip(img, 2, 0)
	assert.Error(t, err)
}
