// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
//
// The render-state enumerations are string types so they can be written directly in TOML/YAML pipeline descriptions.
// The zero value of every enumeration means "use the default".
package common

// Topology is the primitive assembly mode of a draw call.
type Topology string

const (
	TopologyPoints        Topology = "points"
	TopologyLines         Topology = "lines"
	TopologyLineStrip     Topology = "line_strip"
	TopologyTriangles     Topology = "triangles"
	TopologyTriangleStrip Topology = "triangle_strip"
)

// Valid reports whether t is one of the recognized topologies.
func (t Topology) Valid() bool {
	switch t {
	case TopologyPoints, TopologyLines, TopologyLineStrip, TopologyTriangles, TopologyTriangleStrip:
		return true
	}
	return false
}

// IsStrip reports whether t is a strip topology, the only kind primitive restart applies to.
func (t Topology) IsStrip() bool {
	return t == TopologyLineStrip || t == TopologyTriangleStrip
}

// CullFace selects which triangle faces are discarded.
type CullFace string

const (
	CullNone  CullFace = "none"
	CullFront CullFace = "front"
	CullBack  CullFace = "back"
)

func (c CullFace) Valid() bool {
	return c == CullNone || c == CullFront || c == CullBack
}

// FrontFace is the winding order that defines a front-facing triangle.
type FrontFace string

const (
	FrontFaceCCW FrontFace = "ccw"
	FrontFaceCW  FrontFace = "cw"
)

func (f FrontFace) Valid() bool {
	return f == FrontFaceCCW || f == FrontFaceCW
}

// BlendFactor is a source or destination blend multiplier.
type BlendFactor string

const (
	BlendZero                  BlendFactor = "zero"
	BlendOne                   BlendFactor = "one"
	BlendSrcColor              BlendFactor = "src_color"
	BlendOneMinusSrcColor      BlendFactor = "one_minus_src_color"
	BlendDstColor              BlendFactor = "dst_color"
	BlendOneMinusDstColor      BlendFactor = "one_minus_dst_color"
	BlendSrcAlpha              BlendFactor = "src_alpha"
	BlendOneMinusSrcAlpha      BlendFactor = "one_minus_src_alpha"
	BlendDstAlpha              BlendFactor = "dst_alpha"
	BlendOneMinusDstAlpha      BlendFactor = "one_minus_dst_alpha"
	BlendConstantColor         BlendFactor = "constant_color"
	BlendOneMinusConstantColor BlendFactor = "one_minus_constant_color"
	BlendSrcAlphaSaturate      BlendFactor = "src_alpha_saturate"
)

func (b BlendFactor) Valid() bool {
	switch b {
	case BlendZero, BlendOne, BlendSrcColor, BlendOneMinusSrcColor, BlendDstColor, BlendOneMinusDstColor,
		BlendSrcAlpha, BlendOneMinusSrcAlpha, BlendDstAlpha, BlendOneMinusDstAlpha,
		BlendConstantColor, BlendOneMinusConstantColor, BlendSrcAlphaSaturate:
		return true
	}
	return false
}

// BlendOp combines the weighted source and destination values.
type BlendOp string

const (
	BlendOpAdd             BlendOp = "add"
	BlendOpSubtract        BlendOp = "subtract"
	BlendOpReverseSubtract BlendOp = "reverse_subtract"
	BlendOpMin             BlendOp = "min"
	BlendOpMax             BlendOp = "max"
)

func (o BlendOp) Valid() bool {
	switch o {
	case BlendOpAdd, BlendOpSubtract, BlendOpReverseSubtract, BlendOpMin, BlendOpMax:
		return true
	}
	return false
}

// CompareFunc is a depth, stencil or sampler comparison.
type CompareFunc string

const (
	CompareNever    CompareFunc = "never"
	CompareLess     CompareFunc = "less"
	CompareEqual    CompareFunc = "equal"
	CompareLEqual   CompareFunc = "lequal"
	CompareGreater  CompareFunc = "greater"
	CompareNotEqual CompareFunc = "notequal"
	CompareGEqual   CompareFunc = "gequal"
	CompareAlways   CompareFunc = "always"
)

func (c CompareFunc) Valid() bool {
	switch c {
	case CompareNever, CompareLess, CompareEqual, CompareLEqual, CompareGreater, CompareNotEqual, CompareGEqual, CompareAlways:
		return true
	}
	return false
}

// StencilOp is the action applied to the stencil value after a test.
type StencilOp string

const (
	StencilZero     StencilOp = "zero"
	StencilKeep     StencilOp = "keep"
	StencilReplace  StencilOp = "replace"
	StencilIncr     StencilOp = "incr"
	StencilDecr     StencilOp = "decr"
	StencilInvert   StencilOp = "invert"
	StencilIncrWrap StencilOp = "incr_wrap"
	StencilDecrWrap StencilOp = "decr_wrap"
)

func (s StencilOp) Valid() bool {
	switch s {
	case StencilZero, StencilKeep, StencilReplace, StencilIncr, StencilDecr, StencilInvert, StencilIncrWrap, StencilDecrWrap:
		return true
	}
	return false
}

// FilterMode is a texture sampling filter.
type FilterMode string

const (
	FilterNearest FilterMode = "nearest"
	FilterLinear  FilterMode = "linear"
)

func (f FilterMode) Valid() bool {
	return f == FilterNearest || f == FilterLinear
}

// AddressMode controls sampling outside the [0, 1] texture coordinate range.
type AddressMode string

const (
	AddressRepeat         AddressMode = "repeat"
	AddressMirroredRepeat AddressMode = "mirrored_repeat"
	AddressClampToEdge    AddressMode = "clamp_to_edge"
)

func (a AddressMode) Valid() bool {
	return a == AddressRepeat || a == AddressMirroredRepeat || a == AddressClampToEdge
}

// ColorMask selects the color channels written by a draw.
type ColorMask uint8

const (
	ColorMaskRed ColorMask = 1 << iota
	ColorMaskGreen
	ColorMaskBlue
	ColorMaskAlpha

	ColorMaskAll = ColorMaskRed | ColorMaskGreen | ColorMaskBlue | ColorMaskAlpha
)

// Viewport is a pixel rectangle with its origin at the top-left corner.
type Viewport struct {
	X, Y, Width, Height int
}

// IsZero reports whether the viewport is unset.
func (v Viewport) IsZero() bool {
	return v == Viewport{}
}

// Within reports whether v has a positive size and lies inside a width x height area.
func (v Viewport) Within(width, height int) bool {
	return v.X >= 0 && v.Y >= 0 && v.Width > 0 && v.Height > 0 && v.X+v.Width <= width && v.Y+v.Height <= height
}

// ClearValue is the value an image attachment is reset to. It has one entry per format component:
// four for RGBA color formats, one for depth, two (depth, stencil) for depth-stencil formats.
type ClearValue []float64

// BlendState configures color blending for every color attachment.
type BlendState struct {
	Enable   bool
	SrcColor BlendFactor
	DstColor BlendFactor
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
	OpColor  BlendOp
	OpAlpha  BlendOp
}

// DepthState configures the depth test.
type DepthState struct {
	Test  bool
	Write bool
	Func  CompareFunc
}

// StencilFace configures the stencil test for one triangle face.
type StencilFace struct {
	FailOp      StencilOp
	PassOp      StencilOp
	DepthFailOp StencilOp
	Compare     CompareFunc
	CompareMask uint32
	WriteMask   uint32
	Reference   uint32
}

// StencilState configures the stencil test.
type StencilState struct {
	Test  bool
	Front StencilFace
	Back  StencilFace
}

// PolygonOffset is the constant and slope-scaled depth bias of a pipeline.
type PolygonOffset struct {
	Factor float32
	Units  float32
}

// SamplerState holds the configuration for a sampler binding.
type SamplerState struct {
	// MinFilter, MagFilter and MipmapFilter select the filters for minification, magnification and mip level selection.
	MinFilter, MagFilter, MipmapFilter FilterMode
	// WrapX, WrapY, WrapZ specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension.
	WrapX, WrapY, WrapZ AddressMode
	// MinLod and MaxLod clamp the level of detail used for mipmapping.
	MinLod, MaxLod float32
	// Compare makes this a comparison sampler when set.
	Compare CompareFunc
	// MaxAnisotropy is the maximum anisotropy level; 0 and 1 disable anisotropic filtering.
	MaxAnisotropy uint16
}

// DefaultSamplerState returns a linear, clamp-to-edge sampler.
func DefaultSamplerState() SamplerState {
	return SamplerState{
		MinFilter:    FilterLinear,
		MagFilter:    FilterLinear,
		MipmapFilter: FilterLinear,
		WrapX:        AddressClampToEdge,
		WrapY:        AddressClampToEdge,
		WrapZ:        AddressClampToEdge,
		MaxLod:       1000,
	}
}

// WithDefaults fills every unset field of s from DefaultSamplerState.
func (s SamplerState) WithDefaults() SamplerState {
	d := DefaultSamplerState()
	s.MinFilter = Coalesce(s.MinFilter, d.MinFilter)
	s.MagFilter = Coalesce(s.MagFilter, d.MagFilter)
	s.MipmapFilter = Coalesce(s.MipmapFilter, d.MipmapFilter)
	s.WrapX = Coalesce(s.WrapX, d.WrapX)
	s.WrapY = Coalesce(s.WrapY, d.WrapY)
	s.WrapZ = Coalesce(s.WrapZ, d.WrapZ)
	s.MaxLod = Coalesce(s.MaxLod, d.MaxLod)
	return s
}

// Coalesce returns the first value that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
