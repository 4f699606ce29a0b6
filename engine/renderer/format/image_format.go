// Package format describes image pixel formats and vertex attribute layouts, and packs host data into GPU byte layouts.
package format

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownFormat is returned when an image format name is not in the format table.
var ErrUnknownFormat = errors.New("format: unknown image format")

// Kind classifies an image format by the attachment slot it can occupy.
type Kind int

const (
	KindColor Kind = iota
	KindDepth
	KindDepthStencil
)

// ClearType is the component type clear values are converted to.
type ClearType byte

const (
	ClearFloat ClearType = 'f'
	ClearInt   ClearType = 'i'
	ClearUint  ClearType = 'u'
	// ClearDepthStencil clears the depth component as a float and the stencil component as an unsigned integer.
	ClearDepthStencil ClearType = 'x'
)

// Scalar is the storage type of one component.
type Scalar int

const (
	ScalarUnorm8 Scalar = iota
	ScalarSnorm8
	ScalarUint8
	ScalarSint8
	ScalarUint16
	ScalarSint16
	ScalarFloat16
	ScalarUint32
	ScalarSint32
	ScalarFloat32
	ScalarDepth16
	ScalarDepth24
)

// ImageFormat describes one pixel format.
type ImageFormat struct {
	Name       string
	Components int
	PixelSize  int
	Kind       Kind
	ClearType  ClearType
	Scalar     Scalar
	SRGB       bool
	// BGR marks formats whose first and third color components are stored swapped.
	BGR bool
}

// IsDepth reports whether the format is a depth or depth-stencil format.
func (f ImageFormat) IsDepth() bool {
	return f.Kind != KindColor
}

// HasStencil reports whether the format carries a stencil component.
func (f ImageFormat) HasStencil() bool {
	return f.Kind == KindDepthStencil
}

// DefaultClearValue returns zeros, or depth 1.0 (and stencil 0) for depth formats.
func (f ImageFormat) DefaultClearValue() []float64 {
	v := make([]float64, f.Components)
	if f.IsDepth() {
		v[0] = 1.0
	}
	return v
}

var imageFormats = map[string]ImageFormat{}

func register(f ImageFormat) {
	imageFormats[f.Name] = f
}

func color(name string, components int, s Scalar, size int) ImageFormat {
	ct := ClearFloat
	switch s {
	case ScalarUint8, ScalarUint16, ScalarUint32:
		ct = ClearUint
	case ScalarSint8, ScalarSint16, ScalarSint32:
		ct = ClearInt
	}
	return ImageFormat{Name: name, Components: components, PixelSize: components * size, Kind: KindColor, ClearType: ct, Scalar: s}
}

func init() {
	for _, f := range []ImageFormat{
		color("r8unorm", 1, ScalarUnorm8, 1),
		color("rg8unorm", 2, ScalarUnorm8, 1),
		color("rgba8unorm", 4, ScalarUnorm8, 1),
		color("r8snorm", 1, ScalarSnorm8, 1),
		color("rg8snorm", 2, ScalarSnorm8, 1),
		color("rgba8snorm", 4, ScalarSnorm8, 1),
		color("r8uint", 1, ScalarUint8, 1),
		color("rg8uint", 2, ScalarUint8, 1),
		color("rgba8uint", 4, ScalarUint8, 1),
		color("r8sint", 1, ScalarSint8, 1),
		color("rg8sint", 2, ScalarSint8, 1),
		color("rgba8sint", 4, ScalarSint8, 1),
		color("r16uint", 1, ScalarUint16, 2),
		color("rg16uint", 2, ScalarUint16, 2),
		color("rgba16uint", 4, ScalarUint16, 2),
		color("r16sint", 1, ScalarSint16, 2),
		color("rg16sint", 2, ScalarSint16, 2),
		color("rgba16sint", 4, ScalarSint16, 2),
		color("r16float", 1, ScalarFloat16, 2),
		color("rg16float", 2, ScalarFloat16, 2),
		color("rgba16float", 4, ScalarFloat16, 2),
		color("r32uint", 1, ScalarUint32, 4),
		color("rg32uint", 2, ScalarUint32, 4),
		color("rgba32uint", 4, ScalarUint32, 4),
		color("r32sint", 1, ScalarSint32, 4),
		color("rg32sint", 2, ScalarSint32, 4),
		color("rgba32sint", 4, ScalarSint32, 4),
		color("r32float", 1, ScalarFloat32, 4),
		color("rg32float", 2, ScalarFloat32, 4),
		color("rgba32float", 4, ScalarFloat32, 4),
	} {
		register(f)
	}

	bgra := color("bgra8unorm", 4, ScalarUnorm8, 1)
	bgra.BGR = true
	register(bgra)

	srgb := color("rgba8unorm-srgb", 4, ScalarUnorm8, 1)
	srgb.SRGB = true
	register(srgb)

	bgraSRGB := color("bgra8unorm-srgb", 4, ScalarUnorm8, 1)
	bgraSRGB.SRGB, bgraSRGB.BGR = true, true
	register(bgraSRGB)

	register(ImageFormat{Name: "depth16unorm", Components: 1, PixelSize: 2, Kind: KindDepth, ClearType: ClearFloat, Scalar: ScalarDepth16})
	register(ImageFormat{Name: "depth24plus", Components: 1, PixelSize: 4, Kind: KindDepth, ClearType: ClearFloat, Scalar: ScalarDepth24})
	register(ImageFormat{Name: "depth24plus-stencil8", Components: 2, PixelSize: 4, Kind: KindDepthStencil, ClearType: ClearDepthStencil, Scalar: ScalarDepth24})
	register(ImageFormat{Name: "depth32float", Components: 1, PixelSize: 4, Kind: KindDepth, ClearType: ClearFloat, Scalar: ScalarFloat32})
}

// LookupImage returns the format with the given name.
//
// Parameters:
//   - name: the format name, e.g. "rgba8unorm" or "depth24plus"
//
// Returns:
//   - ImageFormat: the format description
//   - error: ErrUnknownFormat (wrapped) if the name is not known
func LookupImage(name string) (ImageFormat, error) {
	f, ok := imageFormats[name]
	if !ok {
		return ImageFormat{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// ImageFormats returns every known format name in sorted order.
func ImageFormats() []string {
	names := make([]string, 0, len(imageFormats))
	for n := range imageFormats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
