package window

import "github.com/Carmen-Shannon/oxy-zen/engine/config"

// WindowBuilderOption is a functional option for configuring an engineWindow.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size. The framebuffer may end up larger on high-DPI displays.
//
// Parameters:
//   - width: initial width
//   - height: initial height
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.width = width
		w.height = height
	}
}

// WithMinSize limits how small the user can resize the window.
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.minWidth = width
		w.minHeight = height
	}
}

// WithMaxSize limits how large the user can resize the window.
func WithMaxSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.maxWidth = width
		w.maxHeight = height
	}
}

// WithConfig applies the window section of a configuration document. Empty fields keep the
// defaults.
//
// Parameters:
//   - cfg: the window configuration
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithConfig(cfg config.WindowConfig) WindowBuilderOption {
	return func(w *engineWindow) {
		if cfg.Title != "" {
			w.title = cfg.Title
		}
		if cfg.Width > 0 && cfg.Height > 0 {
			w.width = cfg.Width
			w.height = cfg.Height
		}
	}
}
