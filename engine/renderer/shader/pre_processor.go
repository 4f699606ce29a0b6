// pre_processor.go implements the WGSL include pre-processor. It scans shader source line by
// line for #include "name" directives and replaces each with the fragment registered under
// that name. Expansion is a single pass: substituted fragments are not scanned again, so an
// #include inside a fragment is emitted verbatim and is left for the shader compiler to reject.
package shader

import (
	"fmt"
	"strings"
)

const includeDirective = "#include"

// UnresolvedIncludeError is returned when an #include names a fragment that is not registered.
type UnresolvedIncludeError struct {
	Name string
	Line int
}

func (e *UnresolvedIncludeError) Error() string {
	return fmt.Sprintf("shader: line %d: unresolved include %q", e.Line, e.Name)
}

// DirectiveError is returned when an #include line is malformed.
type DirectiveError struct {
	Line   int
	Text   string
	Reason string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("shader: line %d: malformed directive %q: %s", e.Line, e.Text, e.Reason)
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	includes map[string]string
}

// PreProcessor expands #include directives in WGSL source.
type PreProcessor interface {
	// Process replaces every line whose trimmed text is #include "name" with the fragment
	// registered under name. All other lines are emitted unchanged.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: *UnresolvedIncludeError or *DirectiveError
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor over a snapshot of the given registry. A nil
// registry resolves no includes.
//
// Parameters:
//   - reg: the include registry to snapshot
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(reg IncludeRegistry) PreProcessor {
	p := &preProcessor{includes: map[string]string{}}
	if reg != nil {
		p.includes = reg.Snapshot()
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		name, ok, err := parseInclude(line, i+1)
		if err != nil {
			return "", err
		}
		if !ok {
			out = append(out, line)
			continue
		}

		fragment, found := p.includes[name]
		if !found {
			return "", &UnresolvedIncludeError{Name: name, Line: i + 1}
		}
		out = append(out, fragment)
	}
	return strings.Join(out, "\n"), nil
}

// parseInclude reports whether line is an include directive and returns the quoted name.
func parseInclude(line string, lineNo int) (string, bool, error) {
	trimmed := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(trimmed, includeDirective)
	if !ok {
		return "", false, nil
	}
	// "#includes" or "#include_foo" are not directives.
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '"' {
		return "", false, nil
	}

	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false, &DirectiveError{Line: lineNo, Text: trimmed, Reason: "expected a double-quoted name"}
	}
	name := rest[1 : len(rest)-1]
	if name == "" || strings.ContainsRune(name, '"') {
		return "", false, &DirectiveError{Line: lineNo, Text: trimmed, Reason: "invalid include name"}
	}
	return name, true, nil
}
