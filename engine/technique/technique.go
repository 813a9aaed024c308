// Package technique defines the interface shared by the transparency techniques, their parameter
// blocks, the registry of techniques the device supports and the selector of the active one.
package technique

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// SceneSource declares the shared scene bindings (group 0), the shadow bindings (group 1), the
// instanced vertex stage and the lighting helpers used by every object shader.
//
//go:embed assets/scene.wgsl
var SceneSource string

// FullscreenSource declares the fullscreen triangle vertex stage used by resolve passes.
//
//go:embed assets/fullscreen.wgsl
var FullscreenSource string

var (
	// ErrUnsupported is returned when selecting a technique the device cannot run.
	ErrUnsupported = errors.New("technique: unsupported on this device")
	// ErrInvalidParams is returned for out-of-range technique parameters.
	ErrInvalidParams = errors.New("technique: invalid parameters")
)

// Type identifies a transparency technique.
type Type int

const (
	TypeAlphaBlend Type = iota
	TypeWeightedBlended
	TypeWeightedBlendedVolition
	TypePhenomenological
	TypeAdaptive

	typeCount
)

var typeNames = [...]string{
	TypeAlphaBlend:              "alpha-blend",
	TypeWeightedBlended:         "wboit",
	TypeWeightedBlendedVolition: "wboit-volition",
	TypePhenomenological:        "phenomenological",
	TypeAdaptive:                "aoit",
}

func (t Type) String() string {
	if t >= 0 && t < typeCount {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Types returns every technique type in declaration order.
func Types() []Type {
	out := make([]Type, typeCount)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// ParseType parses the name of a technique as returned by Type.String.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown technique %q", name)
}

// MarshalText implements encoding.TextMarshaler so Type reads and writes as its name in TOML.
func (t Type) MarshalText() ([]byte, error) {
	if t < 0 || t >= typeCount {
		return nil, fmt.Errorf("unknown technique %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Context holds what the techniques share with the frame orchestrator. It is owned by the
// orchestrator, which refreshes the targets after a resize or a device rebuild.
type Context struct {
	Renderer renderer.Renderer
	Features features.Features
	Logger   *slog.Logger

	// Width and Height are the output resolution.
	Width, Height uint32
	// SurfaceFormat is the format resolve pipelines write.
	SurfaceFormat resource.TextureFormat
	// MaxObjects sizes the instance and material arrays declared in shaders.
	MaxObjects int
	// Frames is the number of frame ring slots. Per-frame uniforms are allocated once per slot.
	Frames int

	// Depth is the shared scene depth target, read only during accumulation.
	Depth *resource.Texture
	// SceneColor holds the opaque image. Its mip chain is populated when diffusion is enabled.
	SceneColor *resource.Texture
	// Accumulation is the RGBA16Float weighted color target shared by the weighted techniques.
	Accumulation *resource.Texture
}

// Log returns the context logger, or the default logger when none is set.
func (c *Context) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Macros returns the shader macros shared by every technique merged with extra.
func (c *Context) Macros(extra shader.Macros) shader.Macros {
	base := c.Features.Macros().Merge(shader.Macros{"MAX_NUM_OBJECTS": c.MaxObjects})
	return base.Merge(extra)
}

// Frame holds the per-frame inputs of the technique stages.
type Frame struct {
	// Slot is the frame ring slot being recorded.
	Slot   int
	Params Params
	// Far is the camera far plane.
	Far float32
	// Scene binds group 0 of object shaders for this slot.
	Scene bind_group_provider.BindGroupProvider
	// Shadow binds group 1 of object shaders, nil when shadows are disabled.
	Shadow bind_group_provider.BindGroupProvider
	// SceneUses lists the textures Scene and Shadow bind. Stages drawing transparent geometry
	// declare them so they are readable.
	SceneUses []pass.Use
	// DrawTransparent binds groups 0 and 1 plus the geometry of every transparent draw call and
	// issues the draws. The technique sets its pipeline and its own groups first.
	DrawTransparent func(rec renderer.CommandRecorder)
}

// Technique is one interchangeable accumulation and resolve implementation. The orchestrator
// calls Build once per device, Allocate once per resolution, then Prepare, Accumulate and Resolve
// every frame the technique is active.
type Technique interface {
	// Type returns the technique identifier.
	Type() Type

	// Supported reports whether the device can run the technique.
	Supported(caps renderer.Capabilities) bool

	// Build compiles the pipelines and creates the resolution-independent resources.
	//
	// Parameters:
	//   - ctx: the shared context
	//   - params: the current parameters, for values baked into shaders
	//
	// Returns:
	//   - error: an error if shader compilation or pipeline creation fails
	Build(ctx *Context, params Params) error

	// Allocate creates the resolution-dependent targets at ctx.Width x ctx.Height.
	Allocate(ctx *Context) error

	// Release destroys the targets created by Allocate.
	Release(ctx *Context)

	// ReleasePipelines destroys what Build created.
	ReleasePipelines(ctx *Context)

	// Resources returns every resource created by Allocate with the state it starts in.
	Resources() []pass.Use

	// NeedsRebuild reports whether going from old to new parameters requires Build again.
	NeedsRebuild(old, new Params) bool

	// Prepare uploads the per-frame uniforms of the slot.
	Prepare(ctx *Context, frame Frame) error

	// Accumulate returns the stages drawing the transparent geometry.
	Accumulate(ctx *Context, frame Frame) []pass.Stage

	// ResolveUses lists the resources the resolve draw reads.
	ResolveUses(ctx *Context) []pass.Use

	// Resolve records the draw that composites the accumulated result onto the open composite
	// pass, which targets the swapchain image.
	Resolve(ctx *Context, rec renderer.CommandRecorder, frame Frame)
}

// BackgroundReader is implemented by techniques that sample a blurred copy of the opaque image.
// The orchestrator records the returned stages between the opaque and accumulate stages.
type BackgroundReader interface {
	// BackgroundStages returns the stages regenerating the SceneColor mip chain, nil when the
	// feature set does not need it.
	BackgroundStages(ctx *Context, frame Frame) []pass.Stage
}

// NewShader compiles a technique shader. The "scene" and "fullscreen" chunks are pre-processed
// with the same macros and made available to include.
//
// Parameters:
//   - key: the shader key
//   - shaderType: the stage to reflect
//   - source: the WGSL source
//   - macros: the macro values
//
// Returns:
//   - shader.Shader: the compiled shader
//   - error: a pre-processing or reflection error
func NewShader(key string, shaderType shader.ShaderType, source string, macros shader.Macros) (shader.Shader, error) {
	pp := shader.NewPreProcessor()
	scene, err := pp.Process(SceneSource, macros)
	if err != nil {
		return nil, fmt.Errorf("shader %s: scene chunk: %w", key, err)
	}
	pp.RegisterChunk("scene", scene)
	pp.RegisterChunk("fullscreen", FullscreenSource)
	return shader.NewShader(key, shaderType, source, macros, shader.WithPreProcessor(pp))
}

// NewShaderPair compiles the vertex and fragment stages of one WGSL source.
func NewShaderPair(key, source string, macros shader.Macros) (shader.Shader, shader.Shader, error) {
	vs, err := NewShader(key+".vs", shader.ShaderTypeVertex, source, macros)
	if err != nil {
		return nil, nil, err
	}
	fs, err := NewShader(key+".fs", shader.ShaderTypeFragment, source, macros)
	if err != nil {
		return nil, nil, err
	}
	return vs, fs, nil
}

// Target describes a resolution-dependent render target of a technique.
type Target struct {
	Label     string
	Format    resource.TextureFormat
	Clear     resource.Color
	MipLevels uint32
	Usage     resource.TextureUsage
	State     resource.State
}

// CreateTarget allocates a render target at the context resolution.
//
// Returns:
//   - *resource.Texture: the target
//   - error: the creation error
func (c *Context) CreateTarget(t Target) (*resource.Texture, error) {
	usage := t.Usage
	if usage == 0 {
		usage = resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource
	}
	state := t.State
	if state == resource.StateUndefined {
		state = resource.StateRenderTarget
	}
	return c.Renderer.CreateTexture(resource.TextureDesc{
		Label:               t.Label,
		Width:               c.Width,
		Height:              c.Height,
		MipLevels:           max(t.MipLevels, 1),
		Format:              t.Format,
		Usage:               usage,
		ClearColor:          t.Clear,
		InitialState:        state,
		ResolutionDependent: true,
	})
}
