// Package wgpu_backend implements renderer.Backend on top of WebGPU through cogentcore/webgpu.
package wgpu_backend

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupKey identifies a native bind group built from a provider for one layout.
type bindGroupKey struct {
	provider bind_group_provider.BindGroupProvider
	layout   *wgpu.BindGroupLayout
}

// cachedBindGroup is a native bind group and the provider version it was built from.
type cachedBindGroup struct {
	group   *wgpu.BindGroup
	version uint64
}

// backend is the implementation of renderer.Backend for WebGPU.
type backend struct {
	mu     *sync.Mutex
	logger *slog.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool

	caps          renderer.Capabilities
	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	width, height uint32

	samplers   map[resource.SamplerKind]*wgpu.Sampler
	bindGroups map[bindGroupKey]*cachedBindGroup

	// states holds the committed state of every tracked resource
	states map[resource.ID]resource.State

	frameSurface *wgpu.Texture
	frame        *resource.Texture
	submitted    bool

	fences map[int]*fence

	lost       bool
	generation uint64
}

var _ renderer.Backend = &backend{}

// New creates the WebGPU instance, surface, adapter and device. It must be called from the thread
// that owns the window; the OS thread is locked for the lifetime of the backend.
//
// Parameters:
//   - surfaceDescriptor: the platform surface of the window, typically from window.Window.SurfaceDescriptor
//   - options: functional options to configure the backend
//
// Returns:
//   - renderer.Backend: the created backend
//   - error: an error if no adapter or device could be obtained
func New(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (renderer.Backend, error) {
	runtime.LockOSThread()
	b := &backend{
		mu:                &sync.Mutex{},
		logger:            slog.Default(),
		surfaceDescriptor: surfaceDescriptor,
		presentMode:       wgpu.PresentModeFifo,
		states:            make(map[resource.ID]resource.State),
		fences:            make(map[int]*fence),
	}
	for _, opt := range options {
		opt(b)
	}

	if err := b.createDevice(); err != nil {
		return nil, err
	}
	b.logger.Info("wgpu device created", "capabilities", b.caps, "fallback", b.forceFallbackAdapter)
	return b, nil
}

func (b *backend) createDevice() error {
	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(b.surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	// Raise MaxBindGroups to 8 so the technique shaders' groups 0-5 are allowed.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	supported := a.GetLimits().Limits
	b.caps = renderer.Capabilities{
		// WebGPU exposes no rasterizer ordered views.
		FragmentOrderedAccess: false,
		ComputeShaders:        true,
		StorageTextures:       true,
		MaxTextureDimension:   supported.MaxTextureDimension2D,
		MaxColorAttachments:   int(min(supported.MaxColorAttachments, 8)),
		MaxBindGroups:         int(limits.MaxBindGroups),
	}

	b.samplers = make(map[resource.SamplerKind]*wgpu.Sampler)
	b.bindGroups = make(map[bindGroupKey]*cachedBindGroup)
	return b.createSamplers()
}

// createSamplers builds the fixed samplers bind group providers refer to by kind.
func (b *backend) createSamplers() error {
	descs := map[resource.SamplerKind]*wgpu.SamplerDescriptor{
		resource.SamplerLinearClamp: {
			Label:         "Linear Clamp Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
		resource.SamplerPointClamp: {
			Label:         "Point Clamp Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeNearest,
			MinFilter:     wgpu.FilterModeNearest,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
		resource.SamplerLinearMipClamp: {
			Label:         "Linear Mip Clamp Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeLinear,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
		resource.SamplerShadowCompare: {
			Label:         "Shadow Comparison Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			Compare:       wgpu.CompareFunctionLess,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
	}
	for kind, desc := range descs {
		s, err := b.device.CreateSampler(desc)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", desc.Label, err)
		}
		b.samplers[kind] = s
	}
	return nil
}

func errDeviceLost() error {
	return renderer.ErrDeviceLost
}

// classify maps a wgpu error to renderer.ErrDeviceLost when its message reports a lost device.
// The bindings surface device loss only through error text.
func (b *backend) classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "lost") {
		b.lost = true
		return fmt.Errorf("%w: %v", renderer.ErrDeviceLost, err)
	}
	return err
}

func (b *backend) Type() renderer.BackendType {
	return renderer.BackendTypeWGPU
}

func (b *backend) Capabilities() renderer.Capabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caps
}

func (b *backend) Configure(width, height uint32, mode renderer.PresentMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return errDeviceLost()
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("configure: invalid surface size %dx%d", width, height)
	}

	switch mode {
	case renderer.PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case renderer.PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = width, height
	b.logger.Debug("surface configured", "width", width, "height", height, "format", b.surfaceFormat)
	return nil
}

func (b *backend) SurfaceFormat() resource.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fromWGPUFormat(b.surfaceFormat)
}

func (b *backend) CreateTexture(desc resource.TextureDesc) (*resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, errDeviceLost()
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: invalid extent %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if max(desc.Width, desc.Height) > b.caps.MaxTextureDimension {
		return nil, fmt.Errorf("texture %q: extent %dx%d exceeds device limit %d", desc.Label, desc.Width, desc.Height, b.caps.MaxTextureDimension)
	}
	format, ok := textureFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("texture %q: unsupported format %s", desc.Label, desc.Format)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, b.classify(fmt.Errorf("failed to create texture %q: %w", desc.Label, err))
	}

	t := &resource.Texture{
		ID:   resource.NewID(),
		Desc: desc,
		Native: &nativeTexture{
			texture: tex,
			format:  format,
			views:   make(map[int]*wgpu.TextureView),
			owned:   true,
		},
	}
	b.states[t.ID] = desc.InitialState
	return t, nil
}

func (b *backend) CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, errDeviceLost()
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: zero size", desc.Label)
	}

	// WebGPU requires buffer sizes to be a multiple of 4.
	size := common.AlignUp(desc.Size, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, b.classify(fmt.Errorf("failed to create buffer %q: %w", desc.Label, err))
	}

	out := &resource.Buffer{
		ID:     resource.NewID(),
		Desc:   desc,
		Native: buf,
	}
	b.states[out.ID] = desc.InitialState
	return out, nil
}

func (b *backend) WriteBuffer(buf *resource.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return errDeviceLost()
	}
	native, ok := buf.Native.(*wgpu.Buffer)
	if !ok || native == nil {
		return fmt.Errorf("write buffer %q: buffer is not a live wgpu buffer", buf.Desc.Label)
	}
	if len(data) == 0 {
		return nil
	}
	// queue writes must be 4-byte aligned
	if aligned := common.AlignUp(uint64(len(data)), 4); aligned != uint64(len(data)) {
		padded := make([]byte, aligned)
		copy(padded, data)
		data = padded
	}
	b.queue.WriteBuffer(native, offset, data)
	return nil
}

func (b *backend) Release(r resource.Resource) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r == nil {
		return
	}
	b.evictResourceLocked(r.ResourceID())
	delete(b.states, r.ResourceID())

	switch v := r.(type) {
	case *resource.Texture:
		if native, ok := v.Native.(*nativeTexture); ok {
			native.release()
		}
		v.Native = nil
	case *resource.Buffer:
		if native, ok := v.Native.(*wgpu.Buffer); ok && native != nil {
			native.Release()
		}
		v.Native = nil
	}
}

// evictResourceLocked drops every cached bind group that references the resource.
func (b *backend) evictResourceLocked(id resource.ID) {
	for key, cached := range b.bindGroups {
		if key.provider.References(id) {
			cached.group.Release()
			delete(b.bindGroups, key)
		}
	}
}

// evictLayoutsLocked drops every cached bind group built for one of the layouts.
func (b *backend) evictLayoutsLocked(layouts []*wgpu.BindGroupLayout) {
	for key, cached := range b.bindGroups {
		for _, l := range layouts {
			if key.layout == l {
				cached.group.Release()
				delete(b.bindGroups, key)
				break
			}
		}
	}
}

// bindGroupLocked returns the native bind group of provider for layout, rebuilding it when the
// provider changed since it was cached.
func (b *backend) bindGroupLocked(provider bind_group_provider.BindGroupProvider, layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, error) {
	key := bindGroupKey{provider: provider, layout: layout}
	if cached, ok := b.bindGroups[key]; ok {
		if cached.version == provider.Version() {
			return cached.group, nil
		}
		cached.group.Release()
		delete(b.bindGroups, key)
	}

	entries := provider.Entries()
	bindGroupEntries := make([]wgpu.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		entry := wgpu.BindGroupEntry{Binding: uint32(e.Binding)}
		switch e.Kind {
		case bind_group_provider.EntryKindBuffer:
			buf, ok := e.Buffer.Native.(*wgpu.Buffer)
			if !ok || buf == nil {
				return nil, fmt.Errorf("bind group %q: binding %d holds a released buffer", provider.Label(), e.Binding)
			}
			entry.Buffer = buf
			entry.Offset = e.Offset
			entry.Size = wgpu.WholeSize
			if e.Size > 0 {
				entry.Size = e.Size
			}
		case bind_group_provider.EntryKindTexture:
			view, err := textureView(e.Texture, e.MipLevel)
			if err != nil {
				return nil, fmt.Errorf("bind group %q: binding %d: %w", provider.Label(), e.Binding, err)
			}
			entry.TextureView = view
		case bind_group_provider.EntryKindSampler:
			entry.Sampler = b.samplers[e.Sampler]
		}
		bindGroupEntries = append(bindGroupEntries, entry)
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return nil, b.classify(err)
	}
	b.bindGroups[key] = &cachedBindGroup{group: group, version: provider.Version()}
	return group, nil
}

// textureView returns the cached view of a texture for one mip level, or for every level with
// bind_group_provider.AllMips.
func textureView(tex *resource.Texture, mip int) (*wgpu.TextureView, error) {
	if tex == nil {
		return nil, errors.New("nil texture")
	}
	native, ok := tex.Native.(*nativeTexture)
	if !ok || native.texture == nil {
		return nil, fmt.Errorf("texture %q was released", tex.Desc.Label)
	}
	if v, ok := native.views[mip]; ok {
		return v, nil
	}

	aspect := wgpu.TextureAspectAll
	if tex.Desc.Format.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	desc := &wgpu.TextureViewDescriptor{
		Label:           tex.Desc.Label + " View",
		Format:          native.format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   max(tex.Desc.MipLevels, 1),
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspect,
	}
	if mip != bind_group_provider.AllMips {
		desc.BaseMipLevel = uint32(mip)
		desc.MipLevelCount = 1
	}
	v, err := native.texture.CreateView(desc)
	if err != nil {
		return nil, err
	}
	native.views[mip] = v
	return v, nil
}

func (b *backend) AcquireFrame() (*resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, errDeviceLost()
	}
	if b.frameSurface != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, b.classify(fmt.Errorf("failed to acquire surface texture: %w", err))
	}

	b.frameSurface = surfaceTexture
	b.submitted = false
	b.frame = &resource.Texture{
		ID: resource.NewID(),
		Desc: resource.TextureDesc{
			Label:               "Swapchain",
			Width:               b.width,
			Height:              b.height,
			MipLevels:           1,
			Format:              fromWGPUFormat(b.surfaceFormat),
			Usage:               resource.TextureUsageRenderTarget,
			InitialState:        resource.StatePresent,
			ResolutionDependent: true,
		},
		Native: &nativeTexture{
			texture: surfaceTexture,
			format:  b.surfaceFormat,
			views:   make(map[int]*wgpu.TextureView),
		},
	}
	b.states[b.frame.ID] = resource.StatePresent
	return b.frame, nil
}

func (b *backend) BeginCommands(slot int) (renderer.CommandRecorder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, errDeviceLost()
	}
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: fmt.Sprintf("Frame Slot %d Encoder", slot),
	})
	if err != nil {
		return nil, b.classify(err)
	}
	return newRecorder(b, slot, encoder), nil
}

func (b *backend) Submit(slot int, rec renderer.CommandRecorder) error {
	r, ok := rec.(*recorder)
	if !ok {
		return fmt.Errorf("submit: recorder %T was not created by this backend", rec)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if r.slot != slot {
		r.encoder.Release()
		return fmt.Errorf("submit: recorder belongs to slot %d, not %d", r.slot, slot)
	}
	if err := r.finish(); err != nil {
		r.encoder.Release()
		return err
	}
	if b.lost || r.generation != b.generation {
		r.encoder.Release()
		return errDeviceLost()
	}

	commandBuffer, err := r.encoder.Finish(nil)
	r.encoder.Release()
	if err != nil {
		return b.classify(fmt.Errorf("failed to finish command buffer: %w", err))
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	for id, state := range r.states {
		b.states[id] = state
	}
	b.submitted = true
	b.fenceLocked(slot).arm()
	return nil
}

func (b *backend) Fence(slot int) renderer.Fence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fenceLocked(slot)
}

func (b *backend) fenceLocked(slot int) *fence {
	f, ok := b.fences[slot]
	if !ok {
		f = &fence{b: b}
		b.fences[slot] = f
	}
	return f
}

func (b *backend) Present() (renderer.PresentStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		b.releaseFrameLocked()
		return renderer.PresentStatusDeviceReset, nil
	}
	if b.frameSurface == nil {
		return renderer.PresentStatusOK, errors.New("present: no acquired frame")
	}
	if !b.submitted {
		return renderer.PresentStatusOK, errors.New("present: frame was not submitted")
	}
	if state := b.states[b.frame.ID]; state != resource.StatePresent {
		return renderer.PresentStatusOK, fmt.Errorf("present: swapchain is in state %s", state)
	}

	b.surface.Present()
	b.releaseFrameLocked()
	return renderer.PresentStatusOK, nil
}

func (b *backend) releaseFrameLocked() {
	if b.frame != nil {
		if native, ok := b.frame.Native.(*nativeTexture); ok {
			native.release()
		}
		b.evictResourceLocked(b.frame.ID)
		delete(b.states, b.frame.ID)
		b.frame = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	b.submitted = false
}

func (b *backend) WaitIdle() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return errDeviceLost()
	}
	b.device.Poll(true, nil)
	for _, f := range b.fences {
		f.pending = false
	}
	return nil
}

func (b *backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrameLocked()
	b.destroyLocked()
	b.generation++
	b.lost = false
	clear(b.states)
	for _, f := range b.fences {
		f.pending = false
	}

	if err := b.createDevice(); err != nil {
		b.lost = true
		return err
	}
	b.logger.Info("wgpu device recreated", "generation", b.generation)
	return nil
}

func (b *backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrameLocked()
	b.destroyLocked()
}

// destroyLocked releases every device-level object in reverse creation order.
func (b *backend) destroyLocked() {
	for key, cached := range b.bindGroups {
		cached.group.Release()
		delete(b.bindGroups, key)
	}
	for kind, s := range b.samplers {
		s.Release()
		delete(b.samplers, kind)
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// fence tracks whether the queue still holds work submitted for a slot. WebGPU has no per
// submission fence object, so Wait polls the device until the queue drains.
type fence struct {
	b       *backend
	pending bool
}

func (f *fence) arm() {
	f.pending = true
}

func (f *fence) Wait() error {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()

	if f.b.lost {
		f.pending = false
		return errDeviceLost()
	}
	if !f.pending {
		return nil
	}
	f.b.device.Poll(true, nil)
	f.pending = false
	return nil
}

func (f *fence) Signaled() bool {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()

	if !f.pending || f.b.lost {
		return true
	}
	if f.b.device.Poll(false, nil) {
		f.pending = false
	}
	return !f.pending
}
