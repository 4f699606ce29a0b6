package resource

import (
	"github.com/Carmen-Shannon/oxy-zen/common"
)

// ImageBuilderOption is a functional option for configuring an image at creation.
type ImageBuilderOption func(i *image)

// WithImageData sets the initial pixels, tightly packed, layer after layer.
//
// Parameters:
//   - data: width * height * pixel size * layers bytes
//
// Returns:
//   - ImageBuilderOption: option function to apply
func WithImageData(data []byte) ImageBuilderOption {
	return func(i *image) {
		i.data = data
	}
}

// WithSamples sets the multisample count. Valid counts are 1, 2, 4, 8 and 16.
//
// Parameters:
//   - samples: the sample count
//
// Returns:
//   - ImageBuilderOption: option function to apply
func WithSamples(samples int) ImageBuilderOption {
	return func(i *image) {
		i.samples = samples
	}
}

// WithArray makes the image a 2D array of layers.
//
// Parameters:
//   - layers: the number of layers, at least 1
//
// Returns:
//   - ImageBuilderOption: option function to apply
func WithArray(layers int) ImageBuilderOption {
	return func(i *image) {
		i.layers = layers
		i.array = true
	}
}

// WithCubemap makes the image a cubemap of six square layers.
func WithCubemap() ImageBuilderOption {
	return func(i *image) {
		i.cubemap = true
	}
}

// WithTexture sets whether the image can be sampled from shaders. Single-sample images are
// textures by default; multisampled images cannot be.
//
// Parameters:
//   - texture: true to allow sampling
//
// Returns:
//   - ImageBuilderOption: option function to apply
func WithTexture(texture bool) ImageBuilderOption {
	return func(i *image) {
		i.texture = &texture
	}
}

// WithClearValue sets the value Clear resets the image to.
//
// Parameters:
//   - value: one entry per format component
//
// Returns:
//   - ImageBuilderOption: option function to apply
func WithClearValue(value ...float64) ImageBuilderOption {
	return func(i *image) {
		i.clearValue = append(common.ClearValue(nil), value...)
	}
}

// WithImageLabel sets the debug label of the image.
func WithImageLabel(label string) ImageBuilderOption {
	return func(i *image) {
		i.label = label
	}
}

// AccessOption selects the part of an image that Write and Read transfer.
type AccessOption func(r *accessRequest)

type accessRequest struct {
	rect  common.Viewport
	layer int
}

// WithRegion restricts the transfer to a rectangle of the image.
//
// Parameters:
//   - rect: the pixel rectangle
//
// Returns:
//   - AccessOption: option function to apply
func WithRegion(rect common.Viewport) AccessOption {
	return func(r *accessRequest) {
		r.rect = rect
	}
}

// WithLayer selects the layer of an array image or the face of a cubemap.
func WithLayer(layer int) AccessOption {
	return func(r *accessRequest) {
		r.layer = layer
	}
}

// BlitOption configures a Blit call.
type BlitOption func(r *blitRequest)

type blitRequest struct {
	target         Image
	targetViewport common.Viewport
	sourceViewport common.Viewport
	filter         common.FilterMode
	srgb           bool
}

// WithTarget blits into another image instead of the display surface.
//
// Parameters:
//   - target: a single-sample, single-layer color image
//
// Returns:
//   - BlitOption: option function to apply
func WithTarget(target Image) BlitOption {
	return func(r *blitRequest) {
		r.target = target
	}
}

// WithTargetViewport sets the destination rectangle. Defaults to the whole target.
func WithTargetViewport(vp common.Viewport) BlitOption {
	return func(r *blitRequest) {
		r.targetViewport = vp
	}
}

// WithSourceViewport sets the source rectangle. Defaults to the whole image.
func WithSourceViewport(vp common.Viewport) BlitOption {
	return func(r *blitRequest) {
		r.sourceViewport = vp
	}
}

// WithFilter selects linear (true, the default) or nearest filtering when scaling.
func WithFilter(linear bool) BlitOption {
	return func(r *blitRequest) {
		if linear {
			r.filter = common.FilterLinear
		} else {
			r.filter = common.FilterNearest
		}
	}
}

// WithSRGB converts between linear and sRGB encoding during the copy.
func WithSRGB(srgb bool) BlitOption {
	return func(r *blitRequest) {
		r.srgb = srgb
	}
}
