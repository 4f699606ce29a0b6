package resource

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/logger"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
)

// image is the implementation of the Image interface.
type image struct {
	mu          *sync.Mutex
	owner       Owner
	handle      backend.Handle
	framebuffer backend.Handle
	label       string

	width      int
	height     int
	format     format.ImageFormat
	samples    int
	layers     int
	array      bool
	cubemap    bool
	texture    *bool
	data       []byte
	clearValue common.ClearValue
	released   bool
}

// Image is a 2D image, 2D array or cubemap living on the GPU. Plain images double as render
// targets and own a single-attachment framebuffer used by Clear.
type Image interface {
	// Handle returns the backend object of the image.
	Handle() backend.Handle

	// Width returns the width in pixels.
	Width() int

	// Height returns the height in pixels.
	Height() int

	// Format returns the pixel format.
	Format() format.ImageFormat

	// Samples returns the multisample count.
	Samples() int

	// Layers returns the number of layers: 1 for plain images, 6 for cubemaps.
	Layers() int

	// IsArray reports whether the image is a 2D array.
	IsArray() bool

	// IsCubemap reports whether the image is a cubemap.
	IsCubemap() bool

	// IsTexture reports whether shaders can sample the image.
	IsTexture() bool

	// ClearValue returns a copy of the value Clear resets the image to.
	ClearValue() common.ClearValue

	// SetClearValue changes the value Clear resets the image to.
	//
	// Parameters:
	//   - value: one entry per format component
	//
	// Returns:
	//   - error: *ClearValueError if the component count does not match the format
	SetClearValue(value common.ClearValue) error

	// Framebuffer returns the image's own single-attachment framebuffer. It is zero for array
	// and cubemap images.
	Framebuffer() backend.Handle

	// Clear resets every pixel to the clear value. The image's own framebuffer is bound through
	// the Context state cache first, so the target switch is only emitted when it changes.
	//
	// Returns:
	//   - error: ErrLayered for array and cubemap images, ErrReleased, or a backend error
	Clear() error

	// Write uploads tightly packed pixels into the whole image or the part selected by opts.
	//
	// Parameters:
	//   - data: region width * height * pixel size bytes
	//   - opts: WithRegion and WithLayer
	//
	// Returns:
	//   - error: *InvalidSizeError for a wrong data size or region, ErrReleased
	Write(data []byte, opts ...AccessOption) error

	// Read returns the pixels of the whole image or the part selected by opts.
	//
	// Parameters:
	//   - opts: WithRegion and WithLayer
	//
	// Returns:
	//   - []byte: tightly packed pixels
	//   - error: *InvalidSizeError for an invalid region, ErrReleased
	Read(opts ...AccessOption) ([]byte, error)

	// Blit copies the image, scaled, into the display surface or another image. A surface blit
	// becomes visible when the frame is presented.
	//
	// Parameters:
	//   - opts: WithTarget, WithTargetViewport, WithSourceViewport, WithFilter and WithSRGB
	//
	// Returns:
	//   - error: *BlitError for invalid images or viewports, ErrReleased
	Blit(opts ...BlitOption) error

	// Mipmaps generates levels mip levels starting at base.
	//
	// Parameters:
	//   - base: the level whose content is downsampled
	//   - levels: the number of levels to fill below base
	//
	// Returns:
	//   - error: error if the backend cannot generate mipmaps for the image
	Mipmaps(base, levels int) error

	// Release frees the image and every framebuffer using it.
	Release()

	// Released reports whether Release was called.
	Released() bool
}

var _ Image = &image{}

var validSamples = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true}

// NewImage creates an image owned by owner.
//
// Parameters:
//   - owner: the Context the image belongs to
//   - width: the width in pixels
//   - height: the height in pixels
//   - formatName: the pixel format name, see format.ImageFormats
//   - opts: variadic list of ImageBuilderOption functions
//
// Returns:
//   - Image: the new image
//   - error: *InvalidSizeError or *ClearValueError for invalid parameters, or a backend error
func NewImage(owner Owner, width, height int, formatName string, opts ...ImageBuilderOption) (Image, error) {
	i := &image{
		mu:      &sync.Mutex{},
		owner:   owner,
		width:   width,
		height:  height,
		samples: 1,
	}
	for _, opt := range opts {
		opt(i)
	}

	if err := i.validate(formatName); err != nil {
		return nil, err
	}

	desc := backend.ImageDesc{
		Label:   i.label,
		Width:   i.width,
		Height:  i.height,
		Format:  i.format,
		Samples: i.samples,
		Cubemap: i.cubemap,
		Texture: i.IsTexture(),
		Data:    i.data,
	}
	if i.array || i.cubemap {
		desc.Layers = i.layers
	}
	h, err := owner.Backend().CreateImage(desc)
	if err != nil {
		return nil, err
	}
	i.handle = h
	i.data = nil

	if !i.layered() {
		fb, err := owner.Framebuffer([]backend.Handle{h})
		if err != nil {
			owner.Backend().Release(h)
			return nil, fmt.Errorf("resource: framebuffer for image: %w", err)
		}
		i.framebuffer = fb
	}
	logger.Logger().Debug("created image", "handle", h, "width", width, "height", height, "format", i.format.Name, "samples", i.samples, "layers", i.layers)
	return i, nil
}

func (i *image) validate(formatName string) error {
	if i.width <= 0 || i.height <= 0 {
		return &InvalidSizeError{Resource: "image", Reason: fmt.Sprintf("size %dx%d must be positive", i.width, i.height)}
	}
	f, err := format.LookupImage(formatName)
	if err != nil {
		return &InvalidSizeError{Resource: "image", Reason: "unknown format", Err: err}
	}
	i.format = f

	if !validSamples[i.samples] {
		return &InvalidSizeError{Resource: "image", Reason: fmt.Sprintf("invalid sample count %d", i.samples)}
	}
	switch {
	case i.cubemap && i.array:
		return &InvalidSizeError{Resource: "image", Reason: "cubemap array images are not supported"}
	case i.samples > 1 && (i.array || i.cubemap):
		return &InvalidSizeError{Resource: "image", Reason: "multisampled images cannot be arrays or cubemaps"}
	case i.samples > 1 && i.texture != nil && *i.texture:
		return &InvalidSizeError{Resource: "image", Reason: "multisampled images cannot be textures"}
	case i.array && i.layers < 1:
		return &InvalidSizeError{Resource: "image", Reason: fmt.Sprintf("array needs at least one layer, got %d", i.layers)}
	case i.cubemap && i.width != i.height:
		return &InvalidSizeError{Resource: "image", Reason: "cubemap faces must be square"}
	}
	switch {
	case i.cubemap:
		i.layers = 6
	case !i.array:
		i.layers = 1
	}

	if i.data != nil {
		want := i.width * i.height * f.PixelSize * i.layers
		if len(i.data) != want {
			return &InvalidSizeError{Resource: "image", Reason: fmt.Sprintf("data is %d bytes, expected %d", len(i.data), want)}
		}
	}

	if i.clearValue == nil {
		i.clearValue = f.DefaultClearValue()
	} else if len(i.clearValue) != f.Components {
		return &ClearValueError{Format: f.Name, Want: f.Components, Got: len(i.clearValue)}
	}
	return nil
}

func (i *image) layered() bool {
	return i.array || i.cubemap
}

func (i *image) Handle() backend.Handle {
	return i.handle
}

func (i *image) Width() int {
	return i.width
}

func (i *image) Height() int {
	return i.height
}

func (i *image) Format() format.ImageFormat {
	return i.format
}

func (i *image) Samples() int {
	return i.samples
}

func (i *image) Layers() int {
	return i.layers
}

func (i *image) IsArray() bool {
	return i.array
}

func (i *image) IsCubemap() bool {
	return i.cubemap
}

func (i *image) IsTexture() bool {
	if i.texture != nil {
		return *i.texture
	}
	return i.samples == 1
}

func (i *image) ClearValue() common.ClearValue {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append(common.ClearValue(nil), i.clearValue...)
}

func (i *image) SetClearValue(value common.ClearValue) error {
	if len(value) != i.format.Components {
		return &ClearValueError{Format: i.format.Name, Want: i.format.Components, Got: len(value)}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.clearValue = append(common.ClearValue(nil), value...)
	return nil
}

func (i *image) Framebuffer() backend.Handle {
	return i.framebuffer
}

func (i *image) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return ErrReleased
	}
	if i.layered() {
		return ErrLayered
	}
	i.owner.State().BindFramebuffer(i.framebuffer)
	return i.owner.Backend().ClearImage(i.handle, i.clearValue)
}

func (i *image) region(opts []AccessOption) (backend.ImageRegion, error) {
	req := accessRequest{}
	for _, opt := range opts {
		opt(&req)
	}
	rect := req.rect
	if rect.IsZero() {
		rect = common.Viewport{Width: i.width, Height: i.height}
	}
	if !rect.Within(i.width, i.height) {
		return backend.ImageRegion{}, &InvalidSizeError{Resource: "image region", Reason: fmt.Sprintf("%+v outside %dx%d", rect, i.width, i.height)}
	}
	if req.layer < 0 || req.layer >= i.layers {
		return backend.ImageRegion{}, &InvalidSizeError{Resource: "image region", Reason: fmt.Sprintf("layer %d outside 0..%d", req.layer, i.layers-1)}
	}
	return backend.ImageRegion{Image: i.handle, Rect: rect, Layer: req.layer}, nil
}

func (i *image) Write(data []byte, opts ...AccessOption) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return ErrReleased
	}
	region, err := i.region(opts)
	if err != nil {
		return err
	}
	want := region.Rect.Width * region.Rect.Height * i.format.PixelSize
	if len(data) != want {
		return &InvalidSizeError{Resource: "image write", Reason: fmt.Sprintf("data is %d bytes, expected %d", len(data), want)}
	}
	return i.owner.Backend().WriteImage(region, data)
}

func (i *image) Read(opts ...AccessOption) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return nil, ErrReleased
	}
	region, err := i.region(opts)
	if err != nil {
		return nil, err
	}
	return i.owner.Backend().ReadImage(region)
}

func (i *image) Blit(opts ...BlitOption) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return ErrReleased
	}
	req := blitRequest{filter: common.FilterLinear}
	for _, opt := range opts {
		opt(&req)
	}

	if i.format.IsDepth() {
		return &BlitError{Reason: "source is a depth image"}
	}
	if i.layered() {
		return &BlitError{Reason: "source is an array or cubemap image"}
	}
	srcVP := req.sourceViewport
	if srcVP.IsZero() {
		srcVP = common.Viewport{Width: i.width, Height: i.height}
	}
	if !srcVP.Within(i.width, i.height) {
		return &BlitError{Reason: fmt.Sprintf("source viewport %+v outside %dx%d", srcVP, i.width, i.height)}
	}

	var target backend.Handle
	tw, th := i.owner.Backend().SurfaceSize()
	if req.target != nil {
		t := req.target
		switch {
		case t.Handle() == i.handle:
			return &BlitError{Reason: "source and target are the same image"}
		case t.Released():
			return ErrReleased
		case t.Format().IsDepth():
			return &BlitError{Reason: "target is a depth image"}
		case t.IsArray() || t.IsCubemap():
			return &BlitError{Reason: "target is an array or cubemap image"}
		case t.Samples() > 1:
			return &BlitError{Reason: "target is multisampled"}
		}
		target = t.Handle()
		tw, th = t.Width(), t.Height()
	}
	dstVP := req.targetViewport
	if dstVP.IsZero() {
		dstVP = common.Viewport{Width: tw, Height: th}
	}
	if !dstVP.Within(tw, th) {
		return &BlitError{Reason: fmt.Sprintf("target viewport %+v outside %dx%d", dstVP, tw, th)}
	}

	return i.owner.Backend().BlitImage(backend.BlitDesc{
		Source:         i.handle,
		Target:         target,
		SourceViewport: srcVP,
		TargetViewport: dstVP,
		Filter:         req.filter,
		SRGB:           req.srgb,
	})
}

func (i *image) Mipmaps(base, levels int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return ErrReleased
	}
	if base < 0 || levels < 1 {
		return &InvalidSizeError{Resource: "mipmaps", Reason: fmt.Sprintf("base %d levels %d", base, levels)}
	}
	return i.owner.Backend().GenerateMipmaps(i.handle, base, levels)
}

func (i *image) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.released {
		return
	}
	i.released = true
	i.owner.Backend().Release(i.handle)
	i.owner.Released(i.handle)
}

func (i *image) Released() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released
}
