package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludeRegistry(t *testing.T) {
	reg := NewIncludeRegistry()
	reg.Set("kernel", "const N: i32 = 3;")
	reg.Set("common", "fn f() {}")

	src, ok := reg.Get("kernel")
	assert.True(t, ok)
	assert.Equal(t, "const N: i32 = 3;", src)
	assert.Equal(t, []string{"common", "kernel"}, reg.Names())

	snap := reg.Snapshot()
	reg.Set("kernel", "changed")
	assert.Equal(t, "const N: i32 = 3;", snap["kernel"])

	reg.Delete("common")
	reg.Delete("missing")
	_, ok = reg.Get("common")
	assert.False(t, ok)
}

func TestProcessReplacesInclude(t *testing.T) {
	reg := NewIncludeRegistry()
	reg.Set("kernel", "const N: i32 = 39;")

	out, err := NewPreProcessor(reg).Process("a\n  #include \"kernel\"  \nb")
	require.NoError(t, err)
	assert.Equal(t, "a\nconst N: i32 = 39;\nb", out)
}

func TestProcessIsNotRecursive(t *testing.T) {
	reg := NewIncludeRegistry()
	reg.Set("outer", "#include \"inner\"")
	reg.Set("inner", "never")

	out, err := NewPreProcessor(reg).Process("#include \"outer\"")
	require.NoError(t, err)
	assert.Equal(t, "#include \"inner\"", out)
}

func TestProcessLeavesOtherLines(t *testing.T) {
	src := "// #include \"x\" in a comment\n#includes \"x\"\nfn main() {}"
	out, err := NewPreProcessor(nil).Process(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestProcessUnresolvedInclude(t *testing.T) {
	_, err := NewPreProcessor(NewIncludeRegistry()).Process("line one\n#include \"kernel\"")
	var ue *UnresolvedIncludeError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "kernel", ue.Name)
	assert.Equal(t, 2, ue.Line)
}

func TestProcessMalformedDirective(t *testing.T) {
	for _, line := range []string{
		"#include kernel",
		"#include \"kernel",
		"#include \"\"",
		"#include",
	} {
		_, err := NewPreProcessor(nil).Process(line)
		var de *DirectiveError
		assert.True(t, errors.As(err, &de), "line %q", line)
	}
}

func TestPreProcessorSnapshotsRegistry(t *testing.T) {
	reg := NewIncludeRegistry()
	reg.Set("kernel", "old")
	pp := NewPreProcessor(reg)
	reg.Set("kernel", "new")

	out, err := pp.Process("#include \"kernel\"")
	require.NoError(t, err)
	assert.Equal(t, "old", out)

	out, err = NewPreProcessor(reg).Process("#include \"kernel\"")
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}

func TestNewShader(t *testing.T) {
	reg := NewIncludeRegistry()
	reg.Set("uniforms", "struct U { color: vec4f, }\n@group(0) @binding(0) var<uniform> u: U;")
	src := "#include \"uniforms\"\n@fragment fn fs_main() -> @location(0) vec4f { return u.color; }"

	s, err := NewShader("fs", StageFragment, src, NewPreProcessor(reg))
	require.NoError(t, err)
	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Equal(t, StageFragment, s.Stage())
	assert.Equal(t, src, s.RawSource())
	assert.NotContains(t, s.Source(), "#include")
	require.Len(t, s.Reflection().Bindings, 1)
	assert.Equal(t, uint64(16), s.Reflection().Bindings[0].Size)

	_, err = NewShader("fs", StageFragment, "#include \"nope\"", NewPreProcessor(reg))
	var ue *UnresolvedIncludeError
	assert.True(t, errors.As(err, &ue))
}
