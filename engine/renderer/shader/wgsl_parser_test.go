package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blurShader = `
struct Params {
    direction: vec2f,
    scale: f32,
    /* nested /* block */ comment */
    offsets: array<vec4f, 2>,
}

struct Light {
    position: vec3f,
    intensity: f32,
}

struct VertexInput {
    @location(0) position: vec3f,
    @location(1) uv: vec2f,
}

struct VertexOutput {
    @builtin(position) position: vec4f,
    @location(0) uv: vec2f,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var source: texture_2d<f32>;
@group(0) @binding(2) var source_sampler: sampler;
@group(1) @binding(0) var<storage, read> lights: array<Light>;
@group(1) @binding(1) var shadow: texture_depth_2d;
// @group(3) @binding(0) var<uniform> commented_out: Params;

@vertex
fn vs_main(input: VertexInput, @builtin(instance_index) instance: u32, @location(5) weight: f32) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4f(input.position, 1.0);
    out.uv = input.uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4f {
    return textureSample(source, source_sampler, in.uv);
}
`

func TestReflectEntryPoints(t *testing.T) {
	r := Reflect(blurShader)
	assert.Equal(t, "vs_main", r.VertexEntry)
	assert.Equal(t, "fs_main", r.FragmentEntry)
}

func TestReflectBindings(t *testing.T) {
	r := Reflect(blurShader)
	require.Len(t, r.Bindings, 5)

	params := r.Bindings[0]
	assert.Equal(t, "params", params.Name)
	assert.Equal(t, BindingUniform, params.Kind)
	// vec2f(8) + f32(4) -> 12, array<vec4f,2> aligned to 16 -> 16+32 = 48
	assert.Equal(t, uint64(48), params.Size)
	assert.Equal(t, StageVertex|StageFragment, params.Visibility)

	tex := r.Bindings[1]
	assert.Equal(t, BindingTexture, tex.Kind)
	assert.Equal(t, Dimension2D, tex.Dimension)
	assert.Equal(t, SampleFloat, tex.SampleType)

	assert.Equal(t, BindingSampler, r.Bindings[2].Kind)

	lights := r.Bindings[3]
	assert.Equal(t, 1, lights.Group)
	assert.Equal(t, BindingReadOnlyStorage, lights.Kind)
	assert.Equal(t, uint64(16), lights.Size)

	shadow := r.Bindings[4]
	assert.Equal(t, SampleDepth, shadow.SampleType)

	assert.Equal(t, []int{0, 1}, Groups(r.Bindings))
	_, ok := FindBinding(r.Bindings, 3, 0)
	assert.False(t, ok)
}

func TestReflectVertexInputs(t *testing.T) {
	r := Reflect(blurShader)
	require.Len(t, r.Inputs, 3)
	assert.Equal(t, VertexInput{Location: 0, Type: "vec3f"}, r.Inputs[0])
	assert.Equal(t, VertexInput{Location: 1, Type: "vec2f"}, r.Inputs[1])
	assert.Equal(t, VertexInput{Location: 5, Type: "f32"}, r.Inputs[2])
}

func TestReflectStructSizes(t *testing.T) {
	r := Reflect(blurShader)
	assert.Equal(t, uint64(48), r.StructSizes["Params"])
	assert.Equal(t, uint64(16), r.StructSizes["Light"])
}

func TestMergeBindings(t *testing.T) {
	vs := Reflect("@group(0) @binding(0) var<uniform> m: mat4x4f;\n@vertex fn v() -> @builtin(position) vec4f { return m[0]; }")
	fs := Reflect("@group(0) @binding(0) var<uniform> m: mat4x4f;\n@group(0) @binding(1) var t: texture_2d<f32>;\n@fragment fn f() -> @location(0) vec4f { return m[0]; }")

	merged, err := MergeBindings(vs.Bindings, fs.Bindings)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, StageVertex|StageFragment, merged[0].Visibility)
	assert.Equal(t, uint64(64), merged[0].Size)
	assert.Equal(t, StageFragment, merged[1].Visibility)

	bad := Reflect("@group(0) @binding(0) var<uniform> m: vec4f;\n@fragment fn f() -> @location(0) vec4f { return m; }")
	_, err = MergeBindings(vs.Bindings, bad.Bindings)
	assert.Error(t, err)
}

func TestSplitAtTopLevelCommas(t *testing.T) {
	parts := splitAtTopLevelCommas("a: array<f32, 4>, @location(0) b: vec2f")
	require.Len(t, parts, 2)
	assert.Equal(t, "a: array<f32, 4>", parts[0])
}
