package renderer

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/descriptor"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonInclude = `struct Common {
    color: vec4<f32>,
};
@group(0) @binding(0) var<uniform> params: Common;`

const vertexSource = `#include "common"

struct VertexOut {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) normal: vec3<f32>) -> VertexOut {
    var out: VertexOut;
    out.position = vec4<f32>(position + normal * 0.0, 1.0);
    return out;
}`

const fragmentSource = `#include "common"

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return params.color;
}`

const texturedFragmentSource = `#include "common"
@group(0) @binding(1) var tex: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, pos.xy) * params.color;
}`

// rejectBroken fails any stage whose source contains "broken".
func rejectBroken(_ shader.Stage, source string) error {
	if strings.Contains(source, "broken") {
		return errors.New("unexpected token 'broken'")
	}
	return nil
}

type fixture struct {
	b        headless.Backend
	ctx      Context
	color    resource.Image
	uniform  resource.Buffer
	vertices resource.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := headless.NewBackend(headless.WithSurfaceSize(16, 16), headless.WithShaderCompiler(rejectBroken))
	ctx := NewContext(b, WithInclude("common", commonInclude))
	t.Cleanup(ctx.Close)

	f := &fixture{b: b, ctx: ctx}
	var err error
	f.color, err = ctx.Image(16, 16, "rgba8unorm")
	require.NoError(t, err)
	f.uniform, err = ctx.Buffer(resource.WithSize(16))
	require.NoError(t, err)
	f.vertices, err = ctx.Buffer(resource.WithSize(3 * 24))
	require.NoError(t, err)
	return f
}

func (f *fixture) descriptor() descriptor.PipelineDescriptor {
	return descriptor.PipelineDescriptor{
		Label:          "flat",
		VertexShader:   vertexSource,
		FragmentShader: fragmentSource,
		Layout:         []descriptor.LayoutEntry{{Name: "Common", Binding: 0}},
		Resources:      []descriptor.Resource{{Type: descriptor.ResourceUniformBuffer, Binding: 0, Buffer: f.uniform}},
		Framebuffer:    []resource.Image{f.color},
		VertexBuffers:  descriptor.Bind(f.vertices, "3f 3f", 0, 1),
	}
}

func countKind(cmds []headless.Command, kind headless.CommandKind) int {
	n := 0
	for _, c := range cmds {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func TestPipelineRenderEmitsOnlyChangedState(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)
	assert.Equal(t, 3, p.VertexCount())
	assert.Equal(t, 1, p.InstanceCount())
	assert.Equal(t, "vs_main", p.Shader(shader.StageVertex).EntryPoint())

	f.b.ResetCommands()
	require.NoError(t, p.Render())
	first := f.b.Commands()
	assert.Equal(t, 1, countKind(first, headless.CmdBindProgram))
	assert.Equal(t, 1, countKind(first, headless.CmdBindResourceSet))
	assert.Equal(t, 1, countKind(first, headless.CmdDraw))

	f.b.ResetCommands()
	require.NoError(t, p.Render())
	second := f.b.Commands()
	require.Len(t, second, 1)
	assert.Equal(t, headless.CmdDraw, second[0].Kind)
	assert.Equal(t, backend.DrawCall{First: 0, Count: 3, Instances: 1}, second[0].Draw)

	f.ctx.Reset()
	f.b.ResetCommands()
	require.NoError(t, p.Render())
	assert.Equal(t, 1, countKind(f.b.Commands(), headless.CmdBindProgram))
}

func TestPipelineRenderOverrides(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)

	f.b.ResetCommands()
	require.NoError(t, p.Render(pipeline.WithInstanceCount(4), pipeline.WithVertexCount(2), pipeline.WithFirstVertex(1)))
	cmds := f.b.Commands()
	last := cmds[len(cmds)-1]
	assert.Equal(t, backend.DrawCall{First: 1, Count: 2, Instances: 4}, last.Draw)

	f.b.ResetCommands()
	require.NoError(t, p.Render())
	cmds = f.b.Commands()
	assert.Equal(t, 1, cmds[len(cmds)-1].Draw.Instances)
}

func TestRenderFailsWhileBuffersMapped(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)

	_, err = f.uniform.Map()
	require.NoError(t, err)
	assert.ErrorIs(t, p.Render(), pipeline.ErrMappedBuffers)

	require.NoError(t, f.uniform.Unmap())
	assert.NoError(t, p.Render())
}

func TestPipelineShaderCompilationError(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.FragmentShader = strings.Replace(fragmentSource, "return params.color;", "broken", 1)
	live := f.b.Live()

	_, err := f.ctx.Pipeline(d)
	var compileErr *backend.ShaderCompilationError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, shader.StageFragment, compileErr.Stage)
	assert.Contains(t, compileErr.Diagnostic, "broken")
	assert.Equal(t, live, f.b.Live())
}

func TestPipelineUnresolvedInclude(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.VertexShader = strings.Replace(vertexSource, `"common"`, `"missing"`, 1)

	_, err := f.ctx.Pipeline(d)
	var includeErr *shader.UnresolvedIncludeError
	require.ErrorAs(t, err, &includeErr)
	assert.Equal(t, "missing", includeErr.Name)
}

func TestPipelineSnapshotsIncludes(t *testing.T) {
	f := newFixture(t)
	p, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)

	f.ctx.Includes().Set("common", "// replaced")
	assert.Contains(t, p.Shader(shader.StageFragment).Source(), "struct Common")

	_, err = f.ctx.Pipeline(f.descriptor())
	var mismatch *descriptor.BindingMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestPipelineBindingMismatch(t *testing.T) {
	f := newFixture(t)
	d := f.descriptor()
	d.Layout = append(d.Layout, descriptor.LayoutEntry{Name: "Extra", Binding: 5})
	extra, err := f.ctx.Buffer(resource.WithSize(16))
	require.NoError(t, err)
	d.Resources = append(d.Resources, descriptor.Resource{Type: descriptor.ResourceUniformBuffer, Binding: 5, Buffer: extra})

	_, err = f.ctx.Pipeline(d)
	var mismatch *descriptor.BindingMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 5, mismatch.Binding)
	assert.True(t, descriptor.IsValidationError(err))
}

func TestPipelineSampledTexture(t *testing.T) {
	f := newFixture(t)
	tex, err := f.ctx.Image(4, 4, "rgba8unorm")
	require.NoError(t, err)

	d := f.descriptor()
	d.FragmentShader = texturedFragmentSource
	d.Layout = append(d.Layout, descriptor.LayoutEntry{Name: "tex", Binding: 1})
	d.Resources = append(d.Resources, descriptor.Resource{Type: descriptor.ResourceSampler, Binding: 1, Image: tex})

	p, err := f.ctx.Pipeline(d)
	require.NoError(t, err)
	assert.NoError(t, p.Render())

	d.Framebuffer = []resource.Image{tex}
	_, err = f.ctx.Pipeline(d)
	var hazard *descriptor.FeedbackHazardError
	assert.ErrorAs(t, err, &hazard)
}

func TestProgramCacheIsShared(t *testing.T) {
	f := newFixture(t)
	a, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)
	b, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)
	assert.Equal(t, a.Program(), b.Program())

	require.NoError(t, f.ctx.Release(a))
	assert.True(t, a.Released())
	assert.ErrorIs(t, a.Render(), pipeline.ErrReleased)
	require.NoError(t, f.ctx.Release(ReleaseShaderCache))
	assert.NoError(t, b.Render())

	live := f.b.Live()
	require.NoError(t, f.ctx.Release(b))
	require.NoError(t, f.ctx.Release(ReleaseShaderCache))
	// the resource set and then the program
	assert.Equal(t, live-2, f.b.Live())
}

func TestClearShaderCacheReleasesProgramWithLastUser(t *testing.T) {
	f := newFixture(t)
	a, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)

	f.ctx.ClearShaderCache()
	assert.NoError(t, a.Render())
	b, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)
	assert.NotEqual(t, a.Program(), b.Program())

	live := f.b.Live()
	require.NoError(t, f.ctx.Release(a))
	// the resource set and the retired program
	assert.Equal(t, live-2, f.b.Live())

	c, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)
	f.ctx.ClearShaderCache()
	require.NoError(t, f.ctx.Release(ReleaseAll))
	assert.True(t, c.Released())
	assert.Zero(t, f.b.Live())
}

func TestReleaseAll(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctx.Pipeline(f.descriptor())
	require.NoError(t, err)

	require.NoError(t, f.ctx.Release(ReleaseAll))
	assert.Zero(t, f.b.Live())
	assert.True(t, f.uniform.Released())
	assert.True(t, f.color.Released())

	assert.ErrorIs(t, f.ctx.Release(42), ErrUnknownObject)
}

func TestReleasingAttachmentFreesFramebuffer(t *testing.T) {
	f := newFixture(t)
	img, err := f.ctx.Image(4, 4, "rgba8unorm")
	require.NoError(t, err)
	live := f.b.Live()

	img.Release()
	// the image and its own framebuffer
	assert.Equal(t, live-2, f.b.Live())
}

func TestImageFromFile(t *testing.T) {
	f := newFixture(t)
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	path := filepath.Join(t.TempDir(), "pixel.png")
	require.NoError(t, imgio.Save(path, src, imgio.PNGEncoder()))

	img, err := f.ctx.ImageFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width())
	assert.Equal(t, 2, img.Height())
	assert.Equal(t, "rgba8unorm", img.Format().Name)

	data, err := img.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255}, data[len(data)-4:])

	_, err = f.ctx.ImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFramesAndInfo(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctx.NewFrame())
	require.NoError(t, f.ctx.EndFrame())
	assert.Equal(t, 1, f.b.Frames())
	assert.Equal(t, "headless", f.ctx.Info().Backend)

	f.ctx.Resize(32, 8)
	w, h := f.b.SurfaceSize()
	assert.Equal(t, 32, w)
	assert.Equal(t, 8, h)
	w, h = f.ctx.SurfaceSize()
	assert.Equal(t, 32, w)
	assert.Equal(t, 8, h)
}
