package webgpu

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/config"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync waits for the vertical blank (wgpu Fifo).
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately and may tear (wgpu Immediate).
	PresentModeUncapped
)

// ParsePresentMode converts a configuration string ("vsync" or "uncapped") to a PresentMode.
// Unknown values select PresentModeVSync.
func ParsePresentMode(s string) PresentMode {
	if s == "uncapped" {
		return PresentModeUncapped
	}
	return PresentModeVSync
}

func (m PresentMode) wgpu() wgpu.PresentMode {
	if m == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

// BackendBuilderOption is a functional option for configuring a webgpu backend.
type BackendBuilderOption func(b *webgpuBackend)

// WithSurface sets the descriptor of the display surface, usually obtained from the window.
// Without a surface the backend renders offscreen only and surface blits fail.
//
// Parameters:
//   - desc: the platform surface descriptor
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithSurface(desc *wgpu.SurfaceDescriptor) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.surfaceDescriptor = desc
	}
}

// WithSurfaceSize sets the initial size of the display surface.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithSurfaceSize(width, height int) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.width = width
		b.height = height
	}
}

// WithPresentMode sets the surface present mode. The default is PresentModeVSync.
//
// Parameters:
//   - mode: the PresentMode to use
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.presentMode = mode
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.forceFallbackAdapter = force
	}
}

// WithConfig applies the renderer section of a configuration document.
//
// Parameters:
//   - cfg: the renderer configuration
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithConfig(cfg config.RendererConfig) BackendBuilderOption {
	return func(b *webgpuBackend) {
		b.presentMode = ParsePresentMode(cfg.PresentMode)
		b.forceFallbackAdapter = cfg.ForceFallbackAdapter
	}
}
