package headless

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
	"github.com/gogpu/naga"
)

// ShaderCompiler validates the WGSL source of one stage. A non-nil error is reported as the
// diagnostic of a backend.ShaderCompilationError.
type ShaderCompiler func(stage shader.Stage, source string) error

// ParseCompiler checks WGSL syntax with the naga parser.
func ParseCompiler(_ shader.Stage, source string) error {
	_, err := naga.Parse(source)
	return err
}

// NagaCompiler runs the full naga pipeline (parse, lower, validate, SPIR-V generation).
func NagaCompiler(_ shader.Stage, source string) error {
	_, err := naga.Compile(source)
	return err
}

// BackendBuilderOption is a functional option for configuring a headless backend.
type BackendBuilderOption func(b *headlessBackend)

// WithSurfaceSize sets the size of the simulated display surface.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithSurfaceSize(width, height int) BackendBuilderOption {
	return func(b *headlessBackend) {
		b.resizeSurface(width, height)
	}
}

// WithShaderCompiler replaces the shader validator. The default is ParseCompiler.
//
// Parameters:
//   - c: the validator, or nil to accept every shader
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithShaderCompiler(c ShaderCompiler) BackendBuilderOption {
	return func(b *headlessBackend) {
		b.compiler = c
	}
}

// WithInfo overrides the driver description returned by Info.
//
// Parameters:
//   - info: the description
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithInfo(info backend.Info) BackendBuilderOption {
	return func(b *headlessBackend) {
		b.info = info
	}
}
