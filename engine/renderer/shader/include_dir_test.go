package shader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIncludeDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kernel.wgsl"), []byte("const N: i32 = 3;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wgsl"), 0o755))

	reg := NewIncludeRegistry()
	names, err := LoadIncludeDir(reg, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"kernel"}, names)
	src, ok := reg.Get("kernel")
	assert.True(t, ok)
	assert.Equal(t, "const N: i32 = 3;", src)

	_, err = LoadIncludeDir(reg, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestWatchIncludes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := NewIncludeRegistry()
	changed, err := WatchIncludes(ctx, reg, dir)
	require.NoError(t, err)
	src, _ := reg.Get("kernel")
	assert.Equal(t, "v1", src)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	select {
	case name := <-changed:
		assert.Equal(t, "kernel", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	assert.Eventually(t, func() bool {
		src, _ := reg.Get("kernel")
		return src == "v2"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, ok := reg.Get("kernel")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-changed:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIncludeName(t *testing.T) {
	assert.Equal(t, "blur_kernel", IncludeName("/tmp/shaders/blur_kernel.wgsl"))
}
