package format

import (
	"fmt"
	"strconv"
	"strings"
)

// VertexFormat is a WebGPU vertex attribute format name, e.g. "float32x3" or "unorm8x4".
type VertexFormat string

// VertexAttribute is one non-padding attribute of a vertex layout.
type VertexAttribute struct {
	Format VertexFormat
	// Offset is the byte offset of the attribute inside one vertex.
	Offset int
	// Size is the byte size of the attribute.
	Size int
}

// VertexLayout is the parsed form of a vertex format string such as "3f 3f 4nu1 /v" or "2f 8x /i".
type VertexLayout struct {
	Attributes  []VertexAttribute
	Stride      int
	PerInstance bool
}

// ParseError reports a malformed vertex format string.
type ParseError struct {
	Layout string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("format: invalid vertex layout %q: %s", e.Layout, e.Reason)
	}
	return fmt.Sprintf("format: invalid vertex layout %q at %q: %s", e.Layout, e.Token, e.Reason)
}

type scalarType struct {
	name string
	size int
}

var scalarTypes = map[string]scalarType{
	"f":   {"float32", 4},
	"f2":  {"float16", 2},
	"f4":  {"float32", 4},
	"u1":  {"uint8", 1},
	"u2":  {"uint16", 2},
	"u4":  {"uint32", 4},
	"i1":  {"sint8", 1},
	"i2":  {"sint16", 2},
	"i4":  {"sint32", 4},
	"nu1": {"unorm8", 1},
	"nu2": {"unorm16", 2},
	"ni1": {"snorm8", 1},
	"ni2": {"snorm16", 2},
}

// ParseVertexLayout parses a whitespace separated vertex format string.
// Each token is an optional count followed by a type code (f, f2, f4, u1, u2, u4, i1, i2, i4,
// nu1, nu2, ni1, ni2) or x for padding bytes. A trailing "/v" or "/i" selects per-vertex or
// per-instance stepping. Types narrower than four bytes only exist with a count of 2 or 4.
//
// Parameters:
//   - layout: the format string
//
// Returns:
//   - VertexLayout: the attributes with their offsets and the total stride
//   - error: *ParseError if the string is malformed
func ParseVertexLayout(layout string) (VertexLayout, error) {
	var out VertexLayout
	tokens := strings.Fields(layout)
	if len(tokens) == 0 {
		return out, &ParseError{Layout: layout, Reason: "empty layout"}
	}

	for i, tok := range tokens {
		if strings.HasPrefix(tok, "/") {
			if i != len(tokens)-1 {
				return VertexLayout{}, &ParseError{Layout: layout, Token: tok, Reason: "step suffix must be last"}
			}
			switch tok {
			case "/v":
			case "/i":
				out.PerInstance = true
			default:
				return VertexLayout{}, &ParseError{Layout: layout, Token: tok, Reason: "unknown step suffix"}
			}
			continue
		}

		digits := 0
		for digits < len(tok) && tok[digits] >= '0' && tok[digits] <= '9' {
			digits++
		}
		count := 1
		if digits > 0 {
			n, err := strconv.Atoi(tok[:digits])
			if err != nil || n < 1 {
				return VertexLayout{}, &ParseError{Layout: layout, Token: tok, Reason: "invalid count"}
			}
			count = n
		}
		code := tok[digits:]

		if code == "x" {
			out.Stride += count
			continue
		}

		st, ok := scalarTypes[code]
		if !ok {
			return VertexLayout{}, &ParseError{Layout: layout, Token: tok, Reason: "unknown type"}
		}
		name, err := vertexFormatName(st, count)
		if err != nil {
			return VertexLayout{}, &ParseError{Layout: layout, Token: tok, Reason: err.Error()}
		}
		size := st.size * count
		out.Attributes = append(out.Attributes, VertexAttribute{Format: name, Offset: out.Stride, Size: size})
		out.Stride += size
	}

	if len(out.Attributes) == 0 {
		return VertexLayout{}, &ParseError{Layout: layout, Reason: "no attributes"}
	}
	return out, nil
}

func vertexFormatName(st scalarType, count int) (VertexFormat, error) {
	if st.size == 4 {
		if count > 4 {
			return "", fmt.Errorf("count %d exceeds 4", count)
		}
		if count == 1 {
			return VertexFormat(st.name), nil
		}
		return VertexFormat(fmt.Sprintf("%sx%d", st.name, count)), nil
	}
	if count != 2 && count != 4 {
		return "", fmt.Errorf("%s requires a count of 2 or 4", st.name)
	}
	return VertexFormat(fmt.Sprintf("%sx%d", st.name, count)), nil
}

// CalcSize returns the stride in bytes of a vertex format string.
//
// Parameters:
//   - layout: the format string
//
// Returns:
//   - int: bytes per vertex (or per instance)
//   - error: *ParseError if the string is malformed
func CalcSize(layout string) (int, error) {
	l, err := ParseVertexLayout(layout)
	if err != nil {
		return 0, err
	}
	return l.Stride, nil
}
