package shader

// Stage is a shader stage bit. Bindings carry the set of stages that declare them.
type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageVertex | StageFragment:
		return "vertex|fragment"
	}
	return "none"
}

// BindingKind classifies a @group/@binding resource declaration.
type BindingKind int

const (
	BindingUnknown BindingKind = iota
	BindingUniform
	BindingStorage
	BindingReadOnlyStorage
	BindingSampler
	BindingComparisonSampler
	BindingTexture
	BindingStorageTexture
)

// IsBuffer reports whether the binding is backed by a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingUniform || k == BindingStorage || k == BindingReadOnlyStorage
}

// IsSampler reports whether the binding is a sampler.
func (k BindingKind) IsSampler() bool {
	return k == BindingSampler || k == BindingComparisonSampler
}

// TextureDimension is the view dimension of a texture binding.
type TextureDimension string

const (
	Dimension1D        TextureDimension = "1d"
	Dimension2D        TextureDimension = "2d"
	Dimension2DArray   TextureDimension = "2d-array"
	Dimension3D        TextureDimension = "3d"
	DimensionCube      TextureDimension = "cube"
	DimensionCubeArray TextureDimension = "cube-array"
)

// SampleType is the component type a texture binding is sampled as.
type SampleType string

const (
	SampleFloat SampleType = "float"
	SampleSint  SampleType = "sint"
	SampleUint  SampleType = "uint"
	SampleDepth SampleType = "depth"
)

// Binding is one reflected @group/@binding declaration.
type Binding struct {
	Group   int
	Binding int
	// Name is the WGSL variable name.
	Name string
	// Type is the WGSL type text, e.g. "Uniforms" or "texture_2d<f32>".
	Type string
	Kind BindingKind
	// Dimension, SampleType and Multisampled describe texture bindings.
	Dimension    TextureDimension
	SampleType   SampleType
	Multisampled bool
	// StorageFormat and StorageAccess describe storage texture bindings.
	StorageFormat string
	StorageAccess string
	// Size is the WGSL byte size of a buffer binding's type, or 0 when it cannot be resolved.
	Size uint64
	// Visibility is the set of stages that declare the binding.
	Visibility Stage
}

// VertexInput is one @location input of the vertex entry point.
type VertexInput struct {
	Location int
	Type     string
}

// Reflection is the information extracted from one WGSL module.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string
	Bindings      []Binding
	Inputs        []VertexInput
	// StructSizes maps every resolvable struct name to its WGSL byte size.
	StructSizes map[string]uint64
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
