package renderer

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backend Backend
	logger  *slog.Logger

	// live registries of every resource created through the renderer and not yet released
	textures map[resource.ID]*resource.Texture
	buffers  map[resource.ID]*resource.Buffer

	width, height uint32
	presentMode   PresentMode
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API over a Backend. The Renderer keeps a cache of compiled pipelines and a
// registry of every live texture and buffer so owners can verify that nothing stale survives a
// resize or a device rebuild.
type Renderer interface {
	// Backend returns the backend the renderer records into.
	//
	// Returns:
	//   - Backend: the underlying backend
	Backend() Backend

	// Capabilities returns the capabilities of the underlying device.
	//
	// Returns:
	//   - Capabilities: the detected device capabilities
	Capabilities() Capabilities

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns the keys of every cached Pipeline, sorted.
	Pipelines() []string

	// RegisterPipelines compiles one or more pipelines through the backend and caches them by
	// PipelineKey. Pipelines whose keys are already registered are skipped to avoid duplicate GPU
	// resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// ReleasePipelines destroys and uncaches the pipelines with the given keys.
	ReleasePipelines(keys ...string)

	// CreateTexture creates a texture and records it in the live registry.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - *resource.Texture: the created texture
	//   - error: an error if creation failed
	CreateTexture(desc resource.TextureDesc) (*resource.Texture, error)

	// CreateBuffer creates a buffer and records it in the live registry.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - *resource.Buffer: the created buffer
	//   - error: an error if creation failed
	CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error)

	// Release destroys textures or buffers and removes them from the live registry.
	// Nil resources and resources that are not live are ignored.
	Release(resources ...resource.Resource)

	// IsLive reports whether the resource with the given ID was created and not released.
	IsLive(id resource.ID) bool

	// LiveTextures returns every live texture ordered by ID.
	LiveTextures() []*resource.Texture

	// LiveBuffers returns every live buffer ordered by ID.
	LiveBuffers() []*resource.Buffer

	// WriteBuffer uploads data into a buffer.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset into the buffer
	//   - data: the bytes to upload
	//
	// Returns:
	//   - error: an error if the buffer is not live or the upload failed
	WriteBuffer(buf *resource.Buffer, offset uint64, data []byte) error

	// WriteBuffers writes all staged buffer writes.
	// Each BufferWrite targets the buffer bound at a binding of a BindGroupProvider.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	//
	// Returns:
	//   - error: the first failed write
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// Resize configures the backend surface for a new size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	Resize(width, height uint32) error

	// Size returns the current surface size.
	Size() (uint32, uint32)

	// SetPresentMode sets the surface present mode. It takes effect on the next Resize.
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the swapchain texture and starts recording the command stream of the
	// given frame slot. The slot's fence must already have been waited on.
	//
	// Parameters:
	//   - slot: the frame slot index
	//
	// Returns:
	//   - CommandRecorder: the recorder for this frame
	//   - *resource.Texture: the swapchain texture
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame(slot int) (CommandRecorder, *resource.Texture, error)

	// EndFrame submits the recorded stream of the slot.
	EndFrame(slot int, rec CommandRecorder) error

	// Present presents the swapchain texture to the display.
	Present() (PresentStatus, error)

	// Fence returns the fence of the given frame slot.
	Fence(slot int) Fence

	// Rebuild recreates the device after a loss. The pipeline cache and the live registries are
	// emptied since every object of the old device is invalid; owners must recreate them.
	//
	// Returns:
	//   - error: an error if the device could not be recreated
	Rebuild() error

	// WaitIdle blocks until the GPU finished all submitted work.
	WaitIdle() error

	// Destroy releases every live resource, the cached pipelines and the backend.
	Destroy()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer recording into the given backend.
//
// Parameters:
//   - backend: the backend to use, e.g. from wgpu_backend.New or headless.New
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backend Backend, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backend:       backend,
		logger:        slog.Default(),
		textures:      make(map[resource.ID]*resource.Texture),
		buffers:       make(map[resource.ID]*resource.Buffer),
		presentMode:   PresentModeVSync,
	}

	for _, opt := range options {
		opt(r)
	}

	for _, p := range r.pipelineCache {
		if p.Native() != nil {
			continue
		}
		if err := backend.CreatePipeline(p); err != nil {
			panic(fmt.Sprintf("renderer: failed to compile pipeline %q: %v", p.PipelineKey(), err))
		}
	}

	r.logger.Info("renderer created", "backend", backend.Type(), "capabilities", backend.Capabilities())
	return r
}

func (r *renderer) Backend() Backend {
	return r.backend
}

func (r *renderer) Capabilities() Capabilities {
	return r.backend.Capabilities()
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.pipelineCache))
	for k := range r.pipelineCache {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range pipelines {
		if _, ok := r.pipelineCache[p.PipelineKey()]; ok {
			continue
		}
		if err := r.backend.CreatePipeline(p); err != nil {
			return fmt.Errorf("failed to create pipeline %q: %w", p.PipelineKey(), err)
		}
		r.pipelineCache[p.PipelineKey()] = p
		r.logger.Debug("pipeline registered", "key", p.PipelineKey())
	}
	return nil
}

func (r *renderer) ReleasePipelines(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		p, ok := r.pipelineCache[k]
		if !ok {
			continue
		}
		r.backend.ReleasePipeline(p)
		p.SetNative(nil)
		delete(r.pipelineCache, k)
	}
}

func (r *renderer) CreateTexture(desc resource.TextureDesc) (*resource.Texture, error) {
	t, err := r.backend.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}

	r.mu.Lock()
	r.textures[t.ID] = t
	r.mu.Unlock()
	return t, nil
}

func (r *renderer) CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error) {
	b, err := r.backend.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}

	r.mu.Lock()
	r.buffers[b.ID] = b
	r.mu.Unlock()
	return b, nil
}

func (r *renderer) Release(resources ...resource.Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range resources {
		switch v := res.(type) {
		case *resource.Texture:
			if v == nil {
				continue
			}
			if _, ok := r.textures[v.ID]; !ok {
				continue
			}
			delete(r.textures, v.ID)
		case *resource.Buffer:
			if v == nil {
				continue
			}
			if _, ok := r.buffers[v.ID]; !ok {
				continue
			}
			delete(r.buffers, v.ID)
		default:
			continue
		}
		r.backend.Release(res)
	}
}

func (r *renderer) IsLive(id resource.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, tex := r.textures[id]
	_, buf := r.buffers[id]
	return tex || buf
}

func (r *renderer) LiveTextures() []*resource.Texture {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*resource.Texture, 0, len(r.textures))
	for _, t := range r.textures {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *resource.Texture) int { return compareID(a.ID, b.ID) })
	return out
}

func (r *renderer) LiveBuffers() []*resource.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*resource.Buffer, 0, len(r.buffers))
	for _, b := range r.buffers {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *resource.Buffer) int { return compareID(a.ID, b.ID) })
	return out
}

func compareID(a, b resource.ID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (r *renderer) WriteBuffer(buf *resource.Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return fmt.Errorf("write buffer: nil buffer")
	}
	if !r.IsLive(buf.ID) {
		return fmt.Errorf("write buffer %q: buffer was released", buf.Desc.Label)
	}
	if offset+uint64(len(data)) > buf.Desc.Size {
		return fmt.Errorf("write buffer %q: %d bytes at offset %d exceed size %d", buf.Desc.Label, len(data), offset, buf.Desc.Size)
	}
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		target := w.Target()
		if target == nil {
			return fmt.Errorf("write buffers: no buffer at binding %d of %q", w.Binding, w.Provider.Label())
		}
		if err := r.WriteBuffer(target, w.Offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) Resize(width, height uint32) error {
	r.mu.Lock()
	mode := r.presentMode
	r.mu.Unlock()

	if err := r.backend.Configure(width, height, mode); err != nil {
		return fmt.Errorf("failed to configure surface %dx%d: %w", width, height, err)
	}

	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	return nil
}

func (r *renderer) Size() (uint32, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presentMode = mode
}

func (r *renderer) BeginFrame(slot int) (CommandRecorder, *resource.Texture, error) {
	frame, err := r.backend.AcquireFrame()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire swapchain texture: %w", err)
	}
	rec, err := r.backend.BeginCommands(slot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin commands for slot %d: %w", slot, err)
	}
	return rec, frame, nil
}

func (r *renderer) EndFrame(slot int, rec CommandRecorder) error {
	if err := r.backend.Submit(slot, rec); err != nil {
		return fmt.Errorf("failed to submit slot %d: %w", slot, err)
	}
	return nil
}

func (r *renderer) Present() (PresentStatus, error) {
	return r.backend.Present()
}

func (r *renderer) Fence(slot int) Fence {
	return r.backend.Fence(slot)
}

func (r *renderer) Rebuild() error {
	r.mu.Lock()
	for _, p := range r.pipelineCache {
		p.SetNative(nil)
	}
	clear(r.pipelineCache)
	clear(r.textures)
	clear(r.buffers)
	width, height, mode := r.width, r.height, r.presentMode
	r.mu.Unlock()

	if err := r.backend.Reset(); err != nil {
		return fmt.Errorf("failed to reset device: %w", err)
	}
	if width > 0 && height > 0 {
		if err := r.backend.Configure(width, height, mode); err != nil {
			return fmt.Errorf("failed to configure surface after reset: %w", err)
		}
	}
	r.logger.Info("device rebuilt", "backend", r.backend.Type())
	return nil
}

func (r *renderer) WaitIdle() error {
	return r.backend.WaitIdle()
}

func (r *renderer) Destroy() {
	_ = r.backend.WaitIdle()

	r.mu.Lock()
	for _, p := range r.pipelineCache {
		r.backend.ReleasePipeline(p)
		p.SetNative(nil)
	}
	clear(r.pipelineCache)
	for _, t := range r.textures {
		r.backend.Release(t)
	}
	clear(r.textures)
	for _, b := range r.buffers {
		r.backend.Release(b)
	}
	clear(r.buffers)
	r.mu.Unlock()

	r.backend.Destroy()
}
