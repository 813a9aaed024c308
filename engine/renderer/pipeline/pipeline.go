package pipeline

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// Topology is the primitive topology of a render pipeline.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
)

// FrontFace is the winding order of front-facing triangles.
type FrontFace int

const (
	FrontFaceCCW FrontFace = iota
	FrontFaceCW
)

// CompareFunction is the depth comparison used by depth testing.
type CompareFunction int

const (
	CompareLess CompareFunction = iota
	CompareLessEqual
	CompareGreater
	CompareAlways
)

// WriteMask selects the color channels written by a color target.
type WriteMask uint32

const (
	WriteMaskRed WriteMask = 1 << iota
	WriteMaskGreen
	WriteMaskBlue
	WriteMaskAlpha
	WriteMaskAll = WriteMaskRed | WriteMaskGreen | WriteMaskBlue | WriteMaskAlpha
)

// ColorTarget describes one color attachment written by a render pipeline.
type ColorTarget struct {
	Format resource.TextureFormat
	// Blend is nil for replace.
	Blend     *BlendState
	WriteMask WriteMask
}

// pipeline is the implementation of the Pipeline interface.
// It holds every setting a backend needs to compile the pipeline, plus the compiled object.
type pipeline struct {
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	vertexShader, fragmentShader, computeShader shader.Shader

	// native is the backend's compiled pipeline object, nil until compiled
	native any

	// The following properties only apply to render pipelines.

	colorTargets        []ColorTarget
	depthFormat         resource.TextureFormat
	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	cullMode            CullMode
	topology            Topology
	frontFace           FrontFace
}

// Pipeline describes a GPU pipeline independent of the backend: its shaders, color targets,
// depth state and rasterizer state. Backends compile it and store their native object on it.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// ColorTargets returns the color attachments written by a render pipeline, in location order.
	//
	// Returns:
	//   - []ColorTarget: the color targets
	ColorTargets() []ColorTarget

	// DepthFormat returns the depth attachment format, or FormatUndefined when the pipeline has
	// no depth attachment.
	DepthFormat() resource.TextureFormat

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison function.
	DepthCompare() CompareFunction

	// DepthBias returns the constant depth bias value configured for this pipeline.
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this pipeline.
	DepthBiasSlopeScale() float32

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() Topology

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() FrontFace

	// Native returns the backend's compiled pipeline object, or nil before compilation.
	// The caller is responsible for type asserting the returned value.
	//
	// Returns:
	//   - any: the compiled pipeline object
	Native() any

	// SetNative stores the backend's compiled pipeline object.
	//
	// Parameters:
	//   - n: the compiled pipeline object, nil to mark the pipeline as released
	SetNative(n any)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. A PipelineType must be specified upon creation.
// Render pipelines default to depth test and write on with CompareLess, no culling, triangle lists,
// counter-clockwise front faces and no color targets.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		pipelineType:      pipelineType,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      CompareLess,
		cullMode:          CullModeNone,
		topology:          TopologyTriangleList,
		frontFace:         FrontFaceCCW,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) ColorTargets() []ColorTarget {
	return p.colorTargets
}

func (p *pipeline) DepthFormat() resource.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() CompareFunction {
	return p.depthCompare
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) CullMode() CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() Topology {
	return p.topology
}

func (p *pipeline) FrontFace() FrontFace {
	return p.frontFace
}

func (p *pipeline) Native() any {
	return p.native
}

func (p *pipeline) SetNative(n any) {
	p.native = n
}
