package shader

import (
	"fmt"
)

// ShaderType identifies the pipeline stage a shader entry point runs in.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderType(%d)", int(t))
}

// shader is the implementation of the Shader interface.
// It holds the pre-processed source and the metadata reflected from it.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	bindings      []Binding
	vertexLayout  *VertexLayout
	workGroupSize [3]uint32
	entryPoint    string
	macros        Macros
}

// Shader is a pre-processed WGSL shader together with the metadata backends need to build
// pipelines from it: entry point, bindings, vertex layout and workgroup size.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader's entry point.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	EntryPoint() string

	// Bindings returns every @group/@binding declaration of the shader ordered by group and binding.
	//
	// Returns:
	//   - []Binding: the reflected bindings
	Bindings() []Binding

	// VertexLayout returns the vertex buffer layout consumed by a vertex shader, or nil when the
	// shader takes no vertex buffer.
	//
	// Returns:
	//   - *VertexLayout: the reflected layout or nil
	VertexLayout() *VertexLayout

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Macros returns the macro values the shader was compiled with.
	Macros() Macros
}

var _ Shader = &shader{}

// NewShader pre-processes WGSL source with the given macros and reflects its metadata.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage of the entry point to reflect
//   - source: the raw WGSL source, usually embedded with go:embed
//   - macros: macro values for const and if annotations
//   - options: optional builder options
//
// Returns:
//   - Shader: the processed shader
//   - error: an error if pre-processing fails or the source has no entry point for shaderType
func NewShader(key string, shaderType ShaderType, source string, macros Macros, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		macros:     macros,
	}
	cfg := shaderConfig{pp: NewPreProcessor()}
	for _, opt := range options {
		opt(&cfg)
	}

	processed, err := cfg.pp.Process(source, macros)
	if err != nil {
		return nil, fmt.Errorf("shader %s: pre-process: %w", key, err)
	}
	s.source = processed
	s.entryPoint = parseEntryPoint(processed, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point", key, shaderType)
	}
	s.bindings = parseBindings(processed)
	switch shaderType {
	case ShaderTypeVertex:
		if layout, ok := parseVertexLayout(processed); ok {
			s.vertexLayout = &layout
		}
	case ShaderTypeCompute:
		s.workGroupSize = parseWorkgroupSize(processed)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) VertexLayout() *VertexLayout {
	return s.vertexLayout
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Macros() Macros {
	return s.macros
}
