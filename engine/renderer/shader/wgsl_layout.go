package shader

import (
	"strconv"
	"strings"
)

// wgslPrimitiveLayoutMap maps WGSL primitive, vector, matrix, and atomic type names
// to their byte size and alignment per the WGSL specification.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec2f":     {8, 8},
	"vec3<f32>": {12, 16},
	"vec3f":     {12, 16},
	"vec4<f32>": {16, 16},
	"vec4f":     {16, 16},

	"vec2<i32>": {8, 8},
	"vec2i":     {8, 8},
	"vec3<i32>": {12, 16},
	"vec3i":     {12, 16},
	"vec4<i32>": {16, 16},
	"vec4i":     {16, 16},

	"vec2<u32>": {8, 8},
	"vec2u":     {8, 8},
	"vec3<u32>": {12, 16},
	"vec3u":     {12, 16},
	"vec4<u32>": {16, 16},
	"vec4u":     {16, 16},

	"vec2<f16>": {4, 4},
	"vec2h":     {4, 4},
	"vec4<f16>": {8, 8},
	"vec4h":     {8, 8},

	// matCxR<f32>: C columns of vecR<f32>, stride = roundUp(align(vecR), size(vecR))
	"mat2x2<f32>": {16, 8},
	"mat2x2f":     {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat3x3f":     {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
	"mat2x3<f32>": {32, 16},
	"mat2x4<f32>": {32, 16},
	"mat3x2<f32>": {24, 8},
	"mat3x4<f32>": {48, 16},
	"mat4x2<f32>": {32, 8},
	"mat4x3<f32>": {64, 16},

	"atomic<u32>": {4, 4},
	"atomic<i32>": {4, 4},
}

var sampledTextureDims = map[string]struct {
	dim          TextureDimension
	multisampled bool
}{
	"texture_1d":                    {Dimension1D, false},
	"texture_2d":                    {Dimension2D, false},
	"texture_2d_array":              {Dimension2DArray, false},
	"texture_3d":                    {Dimension3D, false},
	"texture_cube":                  {DimensionCube, false},
	"texture_cube_array":            {DimensionCubeArray, false},
	"texture_multisampled_2d":       {Dimension2D, true},
	"texture_depth_2d":              {Dimension2D, false},
	"texture_depth_2d_array":        {Dimension2DArray, false},
	"texture_depth_cube":            {DimensionCube, false},
	"texture_depth_cube_array":      {DimensionCubeArray, false},
	"texture_depth_multisampled_2d": {Dimension2D, true},
}

var storageTextureDims = map[string]TextureDimension{
	"texture_storage_1d":       Dimension1D,
	"texture_storage_2d":       Dimension2D,
	"texture_storage_2d_array": Dimension2DArray,
	"texture_storage_3d":       Dimension3D,
}

var sampleTypes = map[string]SampleType{
	"f32": SampleFloat,
	"i32": SampleSint,
	"u32": SampleUint,
}

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives
// and previously-computed struct layouts. Fixed-size arrays resolve to count * stride;
// runtime-sized arrays resolve to one element stride, the minimum useful binding size.
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	if strings.HasPrefix(typeName, "array<") && strings.HasSuffix(typeName, ">") {
		inner := typeName[6 : len(typeName)-1]
		parts := splitAtTopLevelCommas(inner)
		elemLayout, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		stride := roundUpAlign(elemLayout.align, elemLayout.size)

		if len(parts) == 2 {
			count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
			if err != nil {
				return wgslTypeLayout{}, false
			}
			return wgslTypeLayout{count * stride, elemLayout.align}, true
		}
		return wgslTypeLayout{stride, elemLayout.align}, true
	}
	return wgslTypeLayout{}, false
}

func isRuntimeArray(typeName string) bool {
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return false
	}
	return len(splitAtTopLevelCommas(typeName[6:len(typeName)-1])) == 1
}

// computeStructLayout computes the byte size and alignment of a single WGSL struct using
// WGSL struct layout rules: each field is placed at the next aligned offset, and the total
// size is rounded up to the struct's alignment. A trailing runtime-sized array contributes one
// element. Fields with @builtin attributes are skipped.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}

		offset = roundUpAlign(fieldLayout.align, offset)
		offset += fieldLayout.size
		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}
		if isRuntimeArray(field.typeName) {
			break
		}
	}

	return wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes computes the layout of all parsed WGSL structs, resolving dependencies
// between structs iteratively.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := make([]parsedStruct, len(structs))
	copy(remaining, structs)

	for {
		progress := false
		next := remaining[:0]

		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
				progress = true
			} else {
				next = append(next, ps)
			}
		}

		remaining = next
		if !progress || len(remaining) == 0 {
			break
		}
	}
	return resolved
}

// classifyResource determines the resource kind of a declaration from its address space
// qualifier and type name, and fills in the texture details.
func classifyResource(addressSpace, typeName string) Binding {
	var b Binding

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			b.Kind = BindingUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				b.Kind = BindingStorage
			} else {
				b.Kind = BindingReadOnlyStorage
			}
		}
		return b
	}

	switch {
	case typeName == "sampler":
		b.Kind = BindingSampler
	case typeName == "sampler_comparison":
		b.Kind = BindingComparisonSampler
	case strings.HasPrefix(typeName, "texture_storage_"):
		b.Kind = BindingStorageTexture
		base, params := splitTypeParams(typeName)
		b.Dimension = storageTextureDims[base]
		parts := strings.SplitN(params, ",", 2)
		b.StorageFormat = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			b.StorageAccess = strings.TrimSpace(parts[1])
		}
	case strings.HasPrefix(typeName, "texture_depth_"):
		b.Kind = BindingTexture
		b.SampleType = SampleDepth
		info := sampledTextureDims[typeName]
		b.Dimension, b.Multisampled = info.dim, info.multisampled
	case strings.HasPrefix(typeName, "texture_"):
		b.Kind = BindingTexture
		base, param := splitTypeParams(typeName)
		info := sampledTextureDims[base]
		b.Dimension, b.Multisampled = info.dim, info.multisampled
		b.SampleType = sampleTypes[param]
	}
	return b
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested per the WGSL specification.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source.
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments, handling nested block comments.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' && depth > 0 {
				depth--
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets
// or parentheses, so types like array<Plane, 6> and attributes like @location(0) stay whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
