package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> camera: CameraUniform;
	// or handle types: @group(0) @binding(1) var source: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect extracts entry points, resource bindings, vertex inputs and struct sizes from
// pre-processed WGSL source. Every binding is marked visible to the stages whose entry point
// the module contains.
//
// Parameters:
//   - source: the WGSL source with includes already expanded
//
// Returns:
//   - Reflection: the extracted information
func Reflect(source string) Reflection {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)
	layouts := computeStructSizes(structs)

	r := Reflection{
		VertexEntry:   parseEntryPoint(cleaned, StageVertex),
		FragmentEntry: parseEntryPoint(cleaned, StageFragment),
		StructSizes:   make(map[string]uint64, len(layouts)),
	}
	for name, l := range layouts {
		r.StructSizes[name] = l.size
	}

	var visibility Stage
	if r.VertexEntry != "" {
		visibility |= StageVertex
	}
	if r.FragmentEntry != "" {
		visibility |= StageFragment
	}
	r.Bindings = parseBindings(cleaned, layouts, visibility)
	if r.VertexEntry != "" {
		r.Inputs = parseVertexInputs(cleaned, r.VertexEntry, structs)
	}
	return r
}

// MergeBindings combines the bindings of two stages. A binding declared by both stages must
// have the same kind and type; its visibility becomes the union of both.
//
// Parameters:
//   - a, b: the bindings of each stage
//
// Returns:
//   - []Binding: the merged bindings sorted by group then binding
//   - error: error if the stages declare the same slot with different types
func MergeBindings(a, b []Binding) ([]Binding, error) {
	type slot struct{ group, binding int }
	merged := make(map[slot]Binding, len(a)+len(b))
	for _, list := range [][]Binding{a, b} {
		for _, bd := range list {
			k := slot{bd.Group, bd.Binding}
			prev, ok := merged[k]
			if !ok {
				merged[k] = bd
				continue
			}
			if prev.Kind != bd.Kind || prev.Type != bd.Type {
				return nil, fmt.Errorf("shader: @group(%d) @binding(%d) declared as %q and %q", bd.Group, bd.Binding, prev.Type, bd.Type)
			}
			prev.Visibility |= bd.Visibility
			merged[k] = prev
		}
	}

	out := make([]Binding, 0, len(merged))
	for _, bd := range merged {
		out = append(out, bd)
	}
	sortBindings(out)
	return out, nil
}

// Groups returns the distinct group indices of bindings in ascending order.
func Groups(bindings []Binding) []int {
	seen := map[int]bool{}
	var out []int
	for _, b := range bindings {
		if !seen[b.Group] {
			seen[b.Group] = true
			out = append(out, b.Group)
		}
	}
	sort.Ints(out)
	return out
}

// FindBinding returns the binding declared at group/binding.
func FindBinding(bindings []Binding, group, binding int) (Binding, bool) {
	for _, b := range bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

func sortBindings(b []Binding) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].Group != b[j].Group {
			return b[i].Group < b[j].Group
		}
		return b[i].Binding < b[j].Binding
	})
}

// parseBindings extracts all @group(N) @binding(M) resource declarations from cleaned WGSL
// source, sorted by group and binding.
func parseBindings(cleaned string, layouts map[string]wgslTypeLayout, visibility Stage) []Binding {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	out := make([]Binding, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		typeName := strings.TrimSpace(match[5])

		b := classifyResource(addressSpace, typeName)
		b.Group = group
		b.Binding = binding
		b.Name = strings.TrimSpace(match[4])
		b.Type = typeName
		b.Visibility = visibility

		if b.Kind.IsBuffer() {
			if layout, ok := resolveTypeLayout(typeName, layouts); ok {
				b.Size = layout.size
			}
		}
		out = append(out, b)
	}
	sortBindings(out)
	return out
}

// parseEntryPoint extracts the entry point function name for the given stage from cleaned
// WGSL source. Returns an empty string if no matching entry point attribute is found.
func parseEntryPoint(cleaned string, stage Stage) string {
	re := vertexEntryRegex
	if stage == StageFragment {
		re = fragmentEntryRegex
	}
	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseVertexInputs collects the @location inputs of the named entry point, both from
// parameters carrying @location directly and from struct-typed parameters whose fields do.
func parseVertexInputs(cleaned, entry string, structs []parsedStruct) []VertexInput {
	params, ok := functionParams(cleaned, entry)
	if !ok {
		return nil
	}

	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}

	var inputs []VertexInput
	for _, p := range splitAtTopLevelCommas(params) {
		p = strings.TrimSpace(p)
		if p == "" || builtinRegex.MatchString(p) {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(p)
		if fm == nil {
			continue
		}
		typeName := strings.TrimSpace(fm[2])
		if lm := locationRegex.FindStringSubmatch(p); lm != nil {
			loc, _ := strconv.Atoi(lm[1])
			inputs = append(inputs, VertexInput{Location: loc, Type: typeName})
			continue
		}
		if ps, ok := byName[typeName]; ok {
			for _, f := range ps.fields {
				if f.location >= 0 && !f.isBuiltin {
					inputs = append(inputs, VertexInput{Location: f.location, Type: f.typeName})
				}
			}
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	return inputs
}

// functionParams returns the text between the parentheses of fn name(...), honouring nested
// parentheses inside attributes.
func functionParams(cleaned, name string) (string, bool) {
	re := regexp.MustCompile(`\bfn\s+` + regexp.QuoteMeta(name) + `\s*\(`)
	loc := re.FindStringIndex(cleaned)
	if loc == nil {
		return "", false
	}
	depth := 1
	start := loc[1]
	for i := start; i < len(cleaned); i++ {
		switch cleaned[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return cleaned[start:i], true
			}
		}
	}
	return "", false
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}
	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}
