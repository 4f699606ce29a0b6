package shader

import (
	"fmt"
	"os"
)

// shader is the implementation of the Shader interface.
// It holds the expanded source of one stage together with its reflection.
type shader struct {
	key        string
	stage      Stage
	raw        string
	source     string
	entryPoint string
	reflection Reflection
}

// Shader is the pre-processed source of one pipeline stage. Its text is fixed at creation: it
// is a snapshot of the include registry at that moment.
type Shader interface {
	// Key retrieves the identifier of this shader, used for labels and diagnostics.
	//
	// Returns:
	//   - string: the shader's key
	Key() string

	// Stage returns the pipeline stage this shader is compiled for.
	//
	// Returns:
	//   - Stage: StageVertex or StageFragment
	Stage() Stage

	// RawSource returns the source before include expansion.
	//
	// Returns:
	//   - string: the unexpanded WGSL text
	RawSource() string

	// Source returns the expanded WGSL source.
	//
	// Returns:
	//   - string: the WGSL source handed to the driver
	Source() string

	// EntryPoint returns the entry point name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name, or empty if the source declares none
	EntryPoint() string

	// Reflection returns the bindings, inputs and struct sizes declared by the expanded source.
	//
	// Returns:
	//   - Reflection: the reflected module information
	Reflection() Reflection
}

var _ Shader = &shader{}

// NewShader expands source with pp and reflects the result.
//
// Parameters:
//   - key: an identifier for the shader
//   - stage: the stage the shader is compiled for
//   - source: the raw WGSL source
//   - pp: the pre-processor holding the include snapshot
//
// Returns:
//   - Shader: the expanded shader
//   - error: any pre-processing error
func NewShader(key string, stage Stage, source string, pp PreProcessor) (Shader, error) {
	expanded, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader: %s %s: %w", key, stage, err)
	}
	s := &shader{
		key:        key,
		stage:      stage,
		raw:        source,
		source:     expanded,
		reflection: Reflect(expanded),
	}
	if stage == StageVertex {
		s.entryPoint = s.reflection.VertexEntry
	} else {
		s.entryPoint = s.reflection.FragmentEntry
	}
	return s, nil
}

// NewShaderFromPath reads source from a file and expands it like NewShader.
//
// Parameters:
//   - key: an identifier for the shader
//   - stage: the stage the shader is compiled for
//   - path: the WGSL file to read
//   - pp: the pre-processor holding the include snapshot
//
// Returns:
//   - Shader: the expanded shader
//   - error: any read or pre-processing error
func NewShaderFromPath(key string, stage Stage, path string, pp PreProcessor) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return NewShader(key, stage, string(data), pp)
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Stage() Stage {
	return s.stage
}

func (s *shader) RawSource() string {
	return s.raw
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Reflection() Reflection {
	return s.reflection
}
