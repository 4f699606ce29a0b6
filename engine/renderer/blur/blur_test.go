package blur

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-zen/engine/renderer"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend/headless"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernel(t *testing.T) {
	for _, s := range []int{1, 2, 5, 16, 19} {
		k, err := Kernel(s)
		require.NoError(t, err)
		require.Len(t, k, 2*s+1)

		var sum float64
		for i := range k {
			sum += k[i]
			assert.InDelta(t, k[i], k[len(k)-1-i], 1e-12, "kernel %d is not symmetric", s)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Greater(t, k[s], k[0])
	}

	k, err := Kernel(19)
	require.NoError(t, err)
	assert.Len(t, k, 39)

	_, err = Kernel(0)
	assert.ErrorIs(t, err, ErrInvalidRadius)
}

func TestKernelRadiusOne(t *testing.T) {
	k, err := Kernel(1)
	require.NoError(t, err)
	e := math.Exp(-4)
	assert.InDelta(t, e/(1+2*e), k[0], 1e-12)
	assert.InDelta(t, 1/(1+2*e), k[1], 1e-12)
}

func TestKernelSource(t *testing.T) {
	src, err := KernelSource(2)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(src), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "const N: i32 = 5;", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "var<private> coeff: array<f32, N> = array<f32, N>("))
	assert.Equal(t, 5, strings.Count(lines[1], "."))

	_, err = KernelSource(-1)
	assert.ErrorIs(t, err, ErrInvalidRadius)
}

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestConvolveUniformImageIsUnchanged(t *testing.T) {
	c := color.RGBA{R: 200, G: 40, B: 90, A: 255}
	k, err := Kernel(4)
	require.NoError(t, err)

	out, err := Convolve(uniform(13, 7, c), k, 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 13, 7), out.Bounds())
	for y := range 7 {
		for x := range 13 {
			assert.Equal(t, c, out.RGBAAt(x, y))
		}
	}
}

func TestConvolveSpreadsAPoint(t *testing.T) {
	src := uniform(9, 9, color.RGBA{})
	src.SetRGBA(4, 4, color.RGBA{R: 255, A: 255})
	k, err := Kernel(2)
	require.NoError(t, err)

	out, err := Convolve(src, k, 0)
	require.NoError(t, err)
	center := out.RGBAAt(4, 4).R
	assert.Greater(t, center, out.RGBAAt(5, 4).R)
	assert.Equal(t, out.RGBAAt(5, 4), out.RGBAAt(3, 4))
	assert.Equal(t, out.RGBAAt(4, 5), out.RGBAAt(4, 3))
	assert.Zero(t, out.RGBAAt(0, 0).R)
}

func TestConvolveReusesWorkers(t *testing.T) {
	k, err := Kernel(2)
	require.NoError(t, err)
	src := uniform(16, 16, color.RGBA{R: 10, A: 255})

	_, err = Convolve(src, k, 4)
	require.NoError(t, err)
	before := runtime.NumGoroutine()
	for range 20 {
		_, err = Convolve(src, k, 4)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before)
}

func TestConvolveRejectsEvenKernel(t *testing.T) {
	_, err := Convolve(uniform(2, 2, color.RGBA{}), []float64{0.5, 0.5}, 1)
	assert.ErrorIs(t, err, ErrInvalidKernel)
}

type fixture struct {
	b      headless.Backend
	ctx    renderer.Context
	source resource.Image
	temp   resource.Image
	output resource.Image
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := headless.NewBackend(headless.WithShaderCompiler(nil))
	ctx := renderer.NewContext(b)
	t.Cleanup(ctx.Close)

	f := &fixture{b: b, ctx: ctx}
	var err error
	f.source, err = ctx.Image(32, 32, "rgba8unorm")
	require.NoError(t, err)
	f.temp, err = ctx.Image(32, 32, "rgba8unorm")
	require.NoError(t, err)
	f.output, err = ctx.Image(32, 32, "rgba8unorm")
	require.NoError(t, err)
	return f
}

func TestSeparableRendersBothPasses(t *testing.T) {
	f := newFixture(t)
	s, err := NewSeparable(f.ctx, f.source, f.temp, f.output, WithRadii(3, 6))
	require.NoError(t, err)

	x, y := s.Passes()
	assert.Equal(t, "blur_x", x.PipelineKey())
	assert.Equal(t, "blur_y", y.PipelineKey())
	assert.Equal(t, f.temp.Framebuffer(), x.Framebuffer())
	assert.Equal(t, f.output.Framebuffer(), y.Framebuffer())
	assert.Contains(t, x.Shader(shader.StageFragment).Source(), "const N: i32 = 7;")
	assert.Contains(t, y.Shader(shader.StageFragment).Source(), "const N: i32 = 13;")

	f.b.ResetCommands()
	require.NoError(t, s.Render())
	var draws, framebuffers []headless.Command
	for _, c := range f.b.Commands() {
		switch c.Kind {
		case headless.CmdDraw:
			draws = append(draws, c)
		case headless.CmdBindFramebuffer:
			framebuffers = append(framebuffers, c)
		}
	}
	require.Len(t, draws, 2)
	assert.Equal(t, 3, draws[0].Draw.Count)
	require.Len(t, framebuffers, 2)
	assert.Equal(t, f.temp.Framebuffer(), framebuffers[0].Handle)
	assert.Equal(t, f.output.Framebuffer(), framebuffers[1].Handle)

	s.Release()
	assert.True(t, x.Released())
	assert.True(t, y.Released())
}

func TestSeparableRejectsAliasing(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name                 string
		source, temp, output resource.Image
	}{
		{"source is temp", f.source, f.source, f.output},
		{"temp is output", f.source, f.temp, f.temp},
		{"source is output", f.source, f.temp, f.source},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			live := f.b.Live()
			_, err := NewSeparable(f.ctx, tc.source, tc.temp, tc.output)
			var aliasing *AliasingError
			assert.ErrorAs(t, err, &aliasing)
			assert.Equal(t, live, f.b.Live())
		})
	}
}

func TestSeparableRejectsInvalidRadius(t *testing.T) {
	f := newFixture(t)
	_, err := NewSeparable(f.ctx, f.source, f.temp, f.output, WithRadius(0))
	assert.ErrorIs(t, err, ErrInvalidRadius)
}
