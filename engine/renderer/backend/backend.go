// Package backend defines the graphics driver boundary of the renderer. A Backend owns the GPU
// objects behind opaque Handles and executes the state commands issued by the state cache.
// Implementations live in the webgpu (real device) and headless (recording, CPU mirrored)
// sub-packages.
package backend

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-zen/common"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/format"
	"github.com/Carmen-Shannon/oxy-zen/engine/renderer/shader"
)

var (
	// ErrUnsupported is returned for operations the backend cannot perform.
	ErrUnsupported = errors.New("backend: unsupported operation")

	// ErrInvalidHandle is returned when a handle is unknown or was released.
	ErrInvalidHandle = errors.New("backend: invalid handle")
)

// Handle identifies a backend object. The zero Handle is never a valid object; where a target
// image is expected it denotes the display surface.
type Handle uint64

// Info describes the driver behind a backend.
type Info struct {
	Vendor   string
	Renderer string
	Version  string
	Backend  string
}

// ShaderCompilationError carries the driver's diagnostic for a rejected shader stage.
type ShaderCompilationError struct {
	Label      string
	Stage      shader.Stage
	Diagnostic string
}

func (e *ShaderCompilationError) Error() string {
	return fmt.Sprintf("backend: %s shader %q failed to compile: %s", e.Stage, e.Label, e.Diagnostic)
}

// BufferDesc describes a buffer to create. Data, when set, is the initial content and its
// length must equal Size.
type BufferDesc struct {
	Label   string
	Size    int
	Data    []byte
	Index   bool
	Storage bool
}

// ImageDesc describes an image to create. Layers is 0 for plain 2D images, the layer count for
// array images, and 6 for cubemaps.
type ImageDesc struct {
	Label   string
	Width   int
	Height  int
	Format  format.ImageFormat
	Samples int
	Layers  int
	Cubemap bool
	// Texture marks the image as sampleable from shaders.
	Texture bool
	Data    []byte
}

// ImageRegion addresses a rectangle of one layer of an image. A zero Rect means the whole layer.
type ImageRegion struct {
	Image Handle
	Rect  common.Viewport
	Layer int
}

// BlitDesc describes a scaled copy between two color images.
type BlitDesc struct {
	Source         Handle
	Target         Handle
	SourceViewport common.Viewport
	TargetViewport common.Viewport
	Filter         common.FilterMode
	SRGB           bool
}

// VertexLayout is one vertex buffer slot of a program.
type VertexLayout struct {
	Stride      int
	PerInstance bool
	Attributes  []VertexAttribute
}

// VertexAttribute binds part of a vertex to a shader input location.
type VertexAttribute struct {
	Location int
	Format   format.VertexFormat
	Offset   int
}

// FixedState is the non-programmable render state of a pipeline. It is comparable so the
// state cache can diff it with ==.
type FixedState struct {
	Topology         common.Topology
	CullFace         common.CullFace
	FrontFace        common.FrontFace
	Blend            common.BlendState
	Depth            common.DepthState
	Stencil          common.StencilState
	PolygonOffset    common.PolygonOffset
	ColorMask        common.ColorMask
	PrimitiveRestart bool
	ShortIndex       bool
}

// ProgramDesc is everything needed to compile a render program.
type ProgramDesc struct {
	Label          string
	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string
	VertexLayouts  []VertexLayout
	Bindings       []shader.Binding
	State          FixedState
	ColorFormats   []format.ImageFormat
	// DepthFormat is nil when the framebuffer has no depth attachment.
	DepthFormat *format.ImageFormat
	Samples     int
}

// ResourceEntry is one resource of a resource set.
type ResourceEntry struct {
	Binding int
	Kind    shader.BindingKind
	Buffer  Handle
	Offset  int
	Size    int
	Image   Handle
	// Sampler is set for sampled images; SamplerBinding is the binding of the sampler variable.
	Sampler        *common.SamplerState
	SamplerBinding int
}

// DrawCall is one instanced draw. Indexed draws read Count indices starting at First.
type DrawCall struct {
	First     int
	Count     int
	Instances int
	Indexed   bool
}

// Backend is the graphics driver interface. Object creation and data transfer methods act
// immediately; the Bind* methods and Draw form the command stream of the current frame and are
// only ever issued by the state cache.
type Backend interface {
	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - Handle: the new buffer
	//   - error: error if allocation fails
	CreateBuffer(desc BufferDesc) (Handle, error)

	// WriteBuffer copies data into a buffer at offset. The range has been bounds checked.
	WriteBuffer(buf Handle, offset int, data []byte) error

	// ReadBuffer reads size bytes of a buffer starting at offset.
	ReadBuffer(buf Handle, offset, size int) ([]byte, error)

	// CreateImage allocates an image.
	//
	// Parameters:
	//   - desc: the image description
	//
	// Returns:
	//   - Handle: the new image
	//   - error: error if allocation fails
	CreateImage(desc ImageDesc) (Handle, error)

	// WriteImage uploads tightly packed pixels into a region of an image.
	WriteImage(region ImageRegion, data []byte) error

	// ReadImage reads back a region of an image as tightly packed pixels.
	ReadImage(region ImageRegion) ([]byte, error)

	// ClearImage resets every pixel of an image to value. The image's own framebuffer has been
	// bound through the state cache before this is called.
	ClearImage(img Handle, value common.ClearValue) error

	// BlitImage performs a scaled copy. A zero Target is the display surface.
	BlitImage(desc BlitDesc) error

	// GenerateMipmaps fills levels mip levels of an image starting at base.
	GenerateMipmaps(img Handle, base, levels int) error

	// CreateFramebuffer groups attachments into a render target. Color attachments come first,
	// followed by at most one depth attachment.
	CreateFramebuffer(attachments []Handle) (Handle, error)

	// CompileProgram compiles and links both stages of a program with its fixed state.
	//
	// Returns:
	//   - Handle: the program
	//   - error: *ShaderCompilationError when the driver rejects a stage
	CompileProgram(desc ProgramDesc) (Handle, error)

	// CreateResourceSet creates the bindings of one group of a program.
	CreateResourceSet(program Handle, group int, entries []ResourceEntry) (Handle, error)

	BindFramebuffer(fb Handle)
	SetViewport(vp common.Viewport)
	BindFixedState(state FixedState)
	BindProgram(program Handle)
	BindVertexBuffer(slot int, buf Handle, offset int)
	BindIndexBuffer(buf Handle, short bool)
	BindResourceSet(group int, set Handle)

	// Draw issues one draw call with the currently bound state.
	Draw(call DrawCall) error

	// NewFrame begins a frame.
	NewFrame() error

	// EndFrame submits the frame's commands and presents the display surface if it was drawn to.
	EndFrame() error

	// Resize changes the size of the display surface.
	Resize(width, height int)

	// SurfaceSize returns the current size of the display surface.
	SurfaceSize() (int, int)

	// Release frees the object behind a handle. Releasing an unknown handle is a no-op.
	Release(h Handle)

	// Info describes the driver.
	Info() Info

	// Close releases every object and the device.
	Close()
}
