package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// BackendType identifies the GPU backend implementation used by the Renderer.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the in-memory backend that records commands without a GPU.
	BackendTypeHeadless
)

func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// PresentStatus is the outcome of presenting a frame.
type PresentStatus int

const (
	// PresentStatusOK means the frame reached the display.
	PresentStatusOK PresentStatus = iota

	// PresentStatusOutdated means the surface no longer matches the window and must be reconfigured.
	PresentStatusOutdated

	// PresentStatusDeviceReset means the device was lost. Every GPU object must be recreated.
	PresentStatusDeviceReset
)

func (s PresentStatus) String() string {
	switch s {
	case PresentStatusOK:
		return "ok"
	case PresentStatusOutdated:
		return "outdated"
	case PresentStatusDeviceReset:
		return "device-reset"
	}
	return "unknown"
}

// ErrDeviceLost is returned by any backend call made after the device was lost.
var ErrDeviceLost = errors.New("renderer: device lost")

// Capabilities lists the optional device features the transparency techniques depend on.
// They are queried once after device creation.
type Capabilities struct {
	// FragmentOrderedAccess reports rasterizer ordered views, required by adaptive OIT.
	FragmentOrderedAccess bool
	// ComputeShaders reports compute pipeline support.
	ComputeShaders bool
	// StorageTextures reports write access to storage textures from compute shaders.
	StorageTextures bool
	// MaxTextureDimension is the largest supported 2D texture extent.
	MaxTextureDimension uint32
	// MaxColorAttachments is the largest number of simultaneous color targets.
	MaxColorAttachments int
	// MaxBindGroups is the largest number of bind groups a pipeline may use.
	MaxBindGroups int
}

// LoadAction selects what happens to an attachment's contents when a render pass begins.
type LoadAction int

const (
	// LoadActionClear fills the attachment with its texture's clear value.
	LoadActionClear LoadAction = iota
	// LoadActionLoad keeps the previous contents.
	LoadActionLoad
	// LoadActionDontCare leaves the contents undefined.
	LoadActionDontCare
)

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	Target   *resource.Texture
	MipLevel int
	Load     LoadAction
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Target *resource.Texture
	Load   LoadAction
	// ReadOnly binds the depth target for testing only.
	ReadOnly bool
}

// RenderPassDesc describes the attachments of a render pass.
type RenderPassDesc struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// Fence signals completion of the GPU work submitted for a frame slot.
type Fence interface {
	// Wait blocks until the work guarded by the fence has completed.
	//
	// Returns:
	//   - error: ErrDeviceLost if the device was lost while waiting
	Wait() error

	// Signaled reports whether the guarded work has completed, without blocking.
	Signaled() bool
}

// CommandRecorder records the commands of one frame into a single linear stream.
//
// Recording methods do not return errors. The first failure is kept and reported by Err and by
// Backend.Submit; every call after a failure is ignored.
type CommandRecorder interface {
	// PushDebugGroup opens a labeled group visible in GPU debuggers.
	PushDebugGroup(label string)

	// PopDebugGroup closes the innermost debug group.
	PopDebugGroup()

	// Barrier records resource state transitions. Must be called outside of a pass.
	//
	// Parameters:
	//   - transitions: the transitions to record, in order
	Barrier(transitions ...resource.Transition)

	// BeginRenderPass starts a render pass with the given attachments.
	//
	// Parameters:
	//   - desc: the attachments and their load actions
	BeginRenderPass(desc RenderPassDesc)

	// EndRenderPass ends the current render pass.
	EndRenderPass()

	// BeginComputePass starts a compute pass.
	BeginComputePass(label string)

	// EndComputePass ends the current compute pass.
	EndComputePass()

	// SetPipeline binds a compiled pipeline.
	SetPipeline(p pipeline.Pipeline)

	// SetBindGroup binds the resources of a provider at the given group index.
	//
	// Parameters:
	//   - index: the bind group index
	//   - provider: the provider holding the resources
	SetBindGroup(index int, provider bind_group_provider.BindGroupProvider)

	// SetVertexBuffer binds a vertex buffer at the given slot.
	SetVertexBuffer(slot int, buf *resource.Buffer)

	// SetIndexBuffer binds a uint32 index buffer.
	SetIndexBuffer(buf *resource.Buffer)

	// Draw records a non-indexed instanced draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed records an indexed instanced draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// Dispatch records a compute dispatch.
	Dispatch(x, y, z uint32)

	// Err returns the first error encountered while recording, or nil.
	Err() error
}

// Backend is a GPU API implementation used by the Renderer.
type Backend interface {
	// Type returns the backend type.
	Type() BackendType

	// Capabilities returns the device capabilities detected at creation.
	Capabilities() Capabilities

	// Configure (re)configures the presentation surface.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//   - mode: the present mode
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	Configure(width, height uint32, mode PresentMode) error

	// SurfaceFormat returns the texture format of the swapchain images.
	SurfaceFormat() resource.TextureFormat

	// CreateTexture creates a texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - *resource.Texture: the created texture
	//   - error: an error if creation failed
	CreateTexture(desc resource.TextureDesc) (*resource.Texture, error)

	// CreateBuffer creates a zero-initialized buffer.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - *resource.Buffer: the created buffer
	//   - error: an error if creation failed
	CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error)

	// WriteBuffer uploads data into a buffer at the given byte offset.
	WriteBuffer(buf *resource.Buffer, offset uint64, data []byte) error

	// Release destroys a texture or buffer.
	Release(r resource.Resource)

	// CreatePipeline compiles a pipeline and stores the native object on it with SetNative.
	CreatePipeline(p pipeline.Pipeline) error

	// ReleasePipeline destroys the native object of a compiled pipeline.
	ReleasePipeline(p pipeline.Pipeline)

	// AcquireFrame returns the swapchain texture to render the next frame into.
	//
	// Returns:
	//   - *resource.Texture: the swapchain texture, valid until Present
	//   - error: ErrDeviceLost or a surface error
	AcquireFrame() (*resource.Texture, error)

	// BeginCommands starts recording the command stream of a frame slot.
	BeginCommands(slot int) (CommandRecorder, error)

	// Submit submits the recorded stream to the queue and arms the slot's fence.
	Submit(slot int, rec CommandRecorder) error

	// Fence returns the fence guarding the given frame slot.
	Fence(slot int) Fence

	// Present hands the acquired swapchain texture to the display.
	Present() (PresentStatus, error)

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Reset recreates the device after a loss. Every previously created object is invalid
	// afterwards and must be recreated.
	Reset() error

	// Destroy releases the device and surface.
	Destroy()
}
