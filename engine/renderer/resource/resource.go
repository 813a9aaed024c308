// Package resource defines the backend-neutral GPU resource handles, formats and states shared by
// the renderer, its backends and every technique that allocates render targets.
package resource

import (
	"fmt"
	"sync/atomic"

	"github.com/mrjoshuak/go-openexr/half"
)

// ID uniquely identifies a GPU resource for the lifetime of the process. IDs are never reused,
// which lets callers detect stale references after a resize or device rebuild.
type ID uint64

var nextID atomic.Uint64

// NewID returns a fresh resource ID.
func NewID() ID {
	return ID(nextID.Add(1))
}

// Resource is implemented by every GPU resource handle that can take part in a state transition.
type Resource interface {
	// ResourceID returns the unique identifier of the resource.
	ResourceID() ID

	// ResourceLabel returns the debug label of the resource.
	ResourceLabel() string
}

// TextureFormat identifies the texel format of a texture.
type TextureFormat int

const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA16Float
	FormatR8Unorm
	FormatRG16Float
	FormatR32Float
	FormatR32Uint
	FormatDepth32Float
	FormatDepth16Unorm
)

var formatNames = map[TextureFormat]string{
	FormatUndefined:    "undefined",
	FormatRGBA8Unorm:   "rgba8unorm",
	FormatBGRA8Unorm:   "bgra8unorm",
	FormatRGBA16Float:  "rgba16float",
	FormatR8Unorm:      "r8unorm",
	FormatRG16Float:    "rg16float",
	FormatR32Float:     "r32float",
	FormatR32Uint:      "r32uint",
	FormatDepth32Float: "depth32float",
	FormatDepth16Unorm: "depth16unorm",
}

func (f TextureFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("TextureFormat(%d)", int(f))
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return f == FormatDepth32Float || f == FormatDepth16Unorm
}

// Channels returns the number of components stored per texel.
func (f TextureFormat) Channels() int {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatRGBA16Float:
		return 4
	case FormatRG16Float:
		return 2
	case FormatR8Unorm, FormatR32Float, FormatR32Uint, FormatDepth32Float, FormatDepth16Unorm:
		return 1
	}
	return 0
}

// BytesPerTexel returns the size in bytes of a single texel.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatRG16Float, FormatR32Float, FormatR32Uint, FormatDepth32Float:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatR8Unorm:
		return 1
	case FormatDepth16Unorm:
		return 2
	}
	return 0
}

// Quantize rounds a color to the precision the format stores, zeroing the channels it lacks.
// Float16 formats round through IEEE half precision and unorm formats to 8 or 16 bits.
//
// Parameters:
//   - v: the color to store
//
// Returns:
//   - [4]float32: the value read back from a texel of this format
func (f TextureFormat) Quantize(v [4]float32) [4]float32 {
	switch f {
	case FormatRGBA16Float, FormatRG16Float:
		for i := range v {
			v[i] = half.FromFloat32(v[i]).Float32()
		}
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatR8Unorm:
		for i := range v {
			v[i] = float32(uint8(saturate(v[i])*255+0.5)) / 255
		}
	case FormatDepth16Unorm:
		v[0] = float32(uint16(saturate(v[0])*65535+0.5)) / 65535
	}

	switch f.Channels() {
	case 1:
		v[1], v[2], v[3] = 0, 0, 0
	case 2:
		v[2], v[3] = 0, 0
	}
	return v
}

func saturate(x float32) float32 {
	if x != x || x < 0 {
		return 0
	}
	return min(x, 1)
}

// TextureUsage is a bit set describing how a texture may be bound.
type TextureUsage uint32

const (
	TextureUsageRenderTarget TextureUsage = 1 << iota
	TextureUsageShaderResource
	TextureUsageStorage
	TextureUsageDepthStencil
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// Has reports whether every bit of u2 is set in u.
func (u TextureUsage) Has(u2 TextureUsage) bool {
	return u&u2 == u2
}

// BufferUsage is a bit set describing how a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageCopyDst
	BufferUsageCopySrc
)

// Has reports whether every bit of u2 is set in u.
func (u BufferUsage) Has(u2 BufferUsage) bool {
	return u&u2 == u2
}

// State is the access state a resource is in between passes. Moving a resource from one state to
// another requires a Transition recorded before the pass that needs the new state.
type State int

const (
	StateUndefined State = iota
	StateRenderTarget
	StateShaderResource
	StateUnorderedAccess
	StateDepthWrite
	StateDepthRead
	StatePresent
)

var stateNames = [...]string{
	StateUndefined:       "undefined",
	StateRenderTarget:    "render-target",
	StateShaderResource:  "shader-resource",
	StateUnorderedAccess: "unordered-access",
	StateDepthWrite:      "depth-write",
	StateDepthRead:       "depth-read",
	StatePresent:         "present",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Writable reports whether a pass holding a resource in this state may write to it.
func (s State) Writable() bool {
	return s == StateRenderTarget || s == StateUnorderedAccess || s == StateDepthWrite
}

// Transition moves a resource from one state to another.
type Transition struct {
	Resource Resource
	From     State
	To       State
}

func (t Transition) String() string {
	return fmt.Sprintf("%s: %s -> %s", t.Resource.ResourceLabel(), t.From, t.To)
}

// Color is a linear RGBA color used for clear values.
type Color struct {
	R, G, B, A float64
}

var (
	// ColorTransparentBlack clears every channel to zero.
	ColorTransparentBlack = Color{}
	// ColorOpaqueWhite clears every channel to one.
	ColorOpaqueWhite = Color{R: 1, G: 1, B: 1, A: 1}
)

// TextureDesc describes a texture to be created by a backend.
type TextureDesc struct {
	Label     string
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    TextureFormat
	Usage     TextureUsage
	// ClearColor is used when the texture is bound as a color attachment with a clear load action.
	ClearColor Color
	// ClearDepth is used when the texture is bound as a depth attachment with a clear load action.
	ClearDepth float32
	// InitialState is the state the texture is in right after creation.
	InitialState State
	// ResolutionDependent marks textures sized from the output resolution. They are the ones
	// reallocated on resize.
	ResolutionDependent bool
}

// Texture is a handle to a backend texture. Native holds the backend's own object.
type Texture struct {
	ID     ID
	Desc   TextureDesc
	Native any
}

var _ Resource = &Texture{}

func (t *Texture) ResourceID() ID        { return t.ID }
func (t *Texture) ResourceLabel() string { return t.Desc.Label }

// Size returns the base level extent of the texture.
func (t *Texture) Size() (uint32, uint32) {
	return t.Desc.Width, t.Desc.Height
}

// MipSize returns the extent of the given mip level, clamped to one texel.
func (t *Texture) MipSize(level uint32) (uint32, uint32) {
	return max(t.Desc.Width>>level, 1), max(t.Desc.Height>>level, 1)
}

// BufferDesc describes a buffer to be created by a backend.
type BufferDesc struct {
	Label               string
	Size                uint64
	Usage               BufferUsage
	InitialState        State
	ResolutionDependent bool
}

// Buffer is a handle to a backend buffer. Native holds the backend's own object.
type Buffer struct {
	ID     ID
	Desc   BufferDesc
	Native any
}

var _ Resource = &Buffer{}

func (b *Buffer) ResourceID() ID        { return b.ID }
func (b *Buffer) ResourceLabel() string { return b.Desc.Label }

// SamplerKind selects one of the fixed samplers every backend provides.
type SamplerKind int

const (
	SamplerLinearClamp SamplerKind = iota
	SamplerPointClamp
	SamplerLinearMipClamp
	SamplerShadowCompare
)
