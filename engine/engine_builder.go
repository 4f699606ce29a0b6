package engine

import (
	"github.com/Carmen-Shannon/oxy-zen/engine/config"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer"
	"github.com/Carmen-Shannon/oxy-zen/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the tick rate in ticks per second. Values <= 0 select 60.
//
// Parameters:
//   - fps: target ticks per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets the window that drives Run.
//
// Parameters:
//   - w: an open Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithContext sets the renderer Context frames are drawn with.
//
// Parameters:
//   - ctx: the Context
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithContext(ctx renderer.Context) EngineBuilderOption {
	return func(e *engine) {
		e.ctx = ctx
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second. 0 uncaps.
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameInterval(fps)
	}
}

// WithConfig applies the engine section of a configuration document.
//
// Parameters:
//   - cfg: the engine configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.EngineConfig) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(cfg.TickRate)
		e.renderFrameLimit = frameInterval(cfg.FrameLimit)
		e.profilingEnabled = cfg.Profiling
	}
}
