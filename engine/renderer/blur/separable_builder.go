package blur

import "github.com/Carmen-Shannon/oxy-zen/common"

// SeparableBuilderOption is a functional option used to configure a Separable during construction.
type SeparableBuilderOption func(*separable)

// WithRadius sets the kernel radius of both passes. The default is 5.
//
// Parameters:
//   - s: the radius in pixels
//
// Returns:
//   - SeparableBuilderOption: a function that sets both radii
func WithRadius(s int) SeparableBuilderOption {
	return func(b *separable) {
		b.radiusX = s
		b.radiusY = s
	}
}

// WithRadii sets different kernel radii for the horizontal and vertical passes.
//
// Parameters:
//   - x: the horizontal radius in pixels
//   - y: the vertical radius in pixels
//
// Returns:
//   - SeparableBuilderOption: a function that sets the radii
func WithRadii(x, y int) SeparableBuilderOption {
	return func(b *separable) {
		b.radiusX = x
		b.radiusY = y
	}
}

// WithLabel sets the label prefix of the pass pipelines.
func WithLabel(label string) SeparableBuilderOption {
	return func(b *separable) {
		b.label = label
	}
}

// WithSampler overrides the sampler used to read the pass inputs. Unset fields keep the
// linear clamp-to-edge defaults.
func WithSampler(state common.SamplerState) SeparableBuilderOption {
	return func(b *separable) {
		b.sampler = state
	}
}
