package format

import (
	"encoding/binary"
	"math"
)

// EncodePixel converts a clear value into the byte representation of one pixel of f.
// Normalized components are clamped to their range; the stencil component of depth-stencil
// formats is stored in the low byte after a 24-bit depth value.
//
// Parameters:
//   - f: the target format
//   - value: one entry per component of f
//
// Returns:
//   - []byte: PixelSize bytes
func EncodePixel(f ImageFormat, value []float64) []byte {
	out := make([]byte, f.PixelSize)
	if f.Kind == KindDepthStencil {
		d := uint32(math.Round(clamp(component(value, 0), 0, 1) * 0xffffff))
		s := uint32(component(value, 1)) & 0xff
		binary.LittleEndian.PutUint32(out, d<<8|s)
		return out
	}

	size := f.PixelSize / f.Components
	for i := 0; i < f.Components; i++ {
		src := i
		if f.BGR && (i == 0 || i == 2) {
			src = 2 - i
		}
		v := component(value, src)
		b := out[i*size : (i+1)*size]
		switch f.Scalar {
		case ScalarUnorm8:
			if f.SRGB && src < 3 {
				v = linearToSRGB(v)
			}
			b[0] = uint8(math.Round(clamp(v, 0, 1) * 255))
		case ScalarSnorm8:
			b[0] = uint8(int8(math.Round(clamp(v, -1, 1) * 127)))
		case ScalarUint8:
			b[0] = uint8(v)
		case ScalarSint8:
			b[0] = uint8(int8(v))
		case ScalarUint16:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case ScalarSint16:
			binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		case ScalarFloat16:
			binary.LittleEndian.PutUint16(b, Float16(float32(v)))
		case ScalarUint32:
			binary.LittleEndian.PutUint32(b, uint32(v))
		case ScalarSint32:
			binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		case ScalarFloat32:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case ScalarDepth16:
			binary.LittleEndian.PutUint16(b, uint16(math.Round(clamp(v, 0, 1)*0xffff)))
		case ScalarDepth24:
			binary.LittleEndian.PutUint32(b, uint32(math.Round(clamp(v, 0, 1)*0xffffff))<<8)
		}
	}
	return out
}

// Float16 converts a float32 to IEEE 754 half precision bits, rounding to nearest even.
func Float16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff

	switch {
	case bits&0x7fffffff == 0:
		return sign
	case bits>>23&0xff == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		rem := mant & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return half
}

func component(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func linearToSRGB(v float64) float64 {
	v = clamp(v, 0, 1)
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}
