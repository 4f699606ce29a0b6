package format

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Pack encodes values as consecutive 4-byte little-endian words: floats as float32, signed
// integers as int32, unsigned integers as uint32. Slices and arrays of those types (such as
// a camera matrix) are flattened in order.
//
// Parameters:
//   - values: the values to encode
//
// Returns:
//   - []byte: 4 bytes per scalar
//   - error: error if a value has an unsupported type
func Pack(values ...any) ([]byte, error) {
	out := make([]byte, 0, len(values)*4)
	for i, v := range values {
		var err error
		out, err = appendValue(out, v)
		if err != nil {
			return nil, fmt.Errorf("format: pack argument %d: %w", i, err)
		}
	}
	return out, nil
}

func appendValue(out []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case float32:
		return binary.LittleEndian.AppendUint32(out, math.Float32bits(x)), nil
	case float64:
		return binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(x))), nil
	case int:
		return binary.LittleEndian.AppendUint32(out, uint32(int32(x))), nil
	case int32:
		return binary.LittleEndian.AppendUint32(out, uint32(x)), nil
	case int64:
		return binary.LittleEndian.AppendUint32(out, uint32(int32(x))), nil
	case uint32:
		return binary.LittleEndian.AppendUint32(out, x), nil
	case uint:
		return binary.LittleEndian.AppendUint32(out, uint32(x)), nil
	case bool:
		if x {
			return binary.LittleEndian.AppendUint32(out, 1), nil
		}
		return binary.LittleEndian.AppendUint32(out, 0), nil
	case []float32:
		for _, f := range x {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		return out, nil
	case []float64:
		for _, f := range x {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(f)))
		}
		return out, nil
	case []int32:
		for _, n := range x {
			out = binary.LittleEndian.AppendUint32(out, uint32(n))
		}
		return out, nil
	case []int:
		for _, n := range x {
			out = binary.LittleEndian.AppendUint32(out, uint32(int32(n)))
		}
		return out, nil
	case [2]float32:
		return appendValue(out, x[:])
	case [3]float32:
		return appendValue(out, x[:])
	case [4]float32:
		return appendValue(out, x[:])
	case [16]float32:
		return appendValue(out, x[:])
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// RGBA converts tightly packed pixels to 4-byte RGBA. layout is one of "rgba", "bgra", "rgb",
// "bgr" or "lum"; missing alpha becomes 255.
//
// Parameters:
//   - data: the source pixels
//   - layout: the source channel order
//
// Returns:
//   - []byte: RGBA pixels
//   - error: error if the layout is unknown or data is not a whole number of pixels
func RGBA(data []byte, layout string) ([]byte, error) {
	var channels int
	switch layout {
	case "rgba", "bgra":
		channels = 4
	case "rgb", "bgr":
		channels = 3
	case "lum":
		channels = 1
	default:
		return nil, fmt.Errorf("format: unknown pixel layout %q", layout)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("format: %d bytes is not a whole number of %s pixels", len(data), layout)
	}

	n := len(data) / channels
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		src := data[i*channels : (i+1)*channels]
		dst := out[i*4 : i*4+4]
		switch layout {
		case "rgba":
			copy(dst, src)
		case "bgra":
			dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], src[3]
		case "rgb":
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 255
		case "bgr":
			dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 255
		case "lum":
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 255
		}
	}
	return out, nil
}
