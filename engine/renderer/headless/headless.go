// Package headless implements renderer.Backend in memory. It validates and records every command,
// tracks per-slot fences and can simulate device loss. A single probe pixel per texture is shaded
// through a ShadeFunc so blend and depth state can be checked without a GPU.
package headless

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// maxHistory is the number of submissions kept for inspection.
const maxHistory = 16

// texState is the simulated storage of a texture.
type texState struct {
	tex   *resource.Texture
	probe [4]float32
}

// backend is the implementation of the Backend interface.
type backend struct {
	mu     *sync.Mutex
	logger *slog.Logger

	caps          renderer.Capabilities
	surfaceFormat resource.TextureFormat

	width, height uint32
	presentMode   renderer.PresentMode
	configured    bool

	textures  map[resource.ID]*texState
	buffers   map[resource.ID][]byte
	pipelines map[string]pipeline.Pipeline
	released  map[resource.ID]bool
	// states holds the committed state of every resource that went through a barrier
	states map[resource.ID]resource.State

	swapchain *texState
	acquired  bool
	submitted bool

	fences map[int]*fence

	shade ShadeFunc

	lost        bool
	outdated    bool
	generation  uint64
	frame       uint64
	history     []Submission
	presented   uint64
	destroyed   bool
}

// Backend is the in-memory renderer.Backend with inspection and fault-injection hooks.
type Backend interface {
	renderer.Backend

	// LoseDevice simulates a device loss. Every call after it fails with renderer.ErrDeviceLost
	// and the next Present reports renderer.PresentStatusDeviceReset, until Reset.
	LoseDevice()

	// MarkOutdated makes the next Present report renderer.PresentStatusOutdated.
	MarkOutdated()

	// Generation returns the number of device resets performed.
	Generation() uint64

	// Submissions returns the most recent submissions, oldest first.
	Submissions() []Submission

	// LastSubmission returns the most recent submission and whether one exists.
	LastSubmission() (Submission, bool)

	// PresentCount returns the number of successful presents.
	PresentCount() uint64

	// Probe returns the probe pixel of a texture.
	Probe(tex *resource.Texture) [4]float32

	// SetProbe overwrites the probe pixel of a texture.
	SetProbe(tex *resource.Texture, v [4]float32)

	// BufferData returns a copy of a buffer's contents.
	BufferData(buf *resource.Buffer) []byte

	// IsReleased reports whether a resource created by this backend was released.
	IsReleased(id resource.ID) bool

	// CompiledPipelines returns the number of pipelines currently compiled.
	CompiledPipelines() int

	// SetShadeFunc replaces the probe pixel shader.
	SetShadeFunc(fn ShadeFunc)
}

var _ Backend = &backend{}

// New creates a headless backend. All capabilities are reported as supported unless overridden
// with WithCapabilities.
//
// Parameters:
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the new backend
func New(options ...BackendBuilderOption) Backend {
	b := &backend{
		mu:     &sync.Mutex{},
		logger: slog.Default(),
		caps: renderer.Capabilities{
			FragmentOrderedAccess: true,
			ComputeShaders:        true,
			StorageTextures:       true,
			MaxTextureDimension:   16384,
			MaxColorAttachments:   8,
			MaxBindGroups:         8,
		},
		surfaceFormat: resource.FormatBGRA8Unorm,
		textures:      make(map[resource.ID]*texState),
		buffers:       make(map[resource.ID][]byte),
		pipelines:     make(map[string]pipeline.Pipeline),
		released:      make(map[resource.ID]bool),
		states:        make(map[resource.ID]resource.State),
		fences:        make(map[int]*fence),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *backend) Type() renderer.BackendType {
	return renderer.BackendTypeHeadless
}

func (b *backend) Capabilities() renderer.Capabilities {
	return b.caps
}

func (b *backend) Configure(width, height uint32, mode renderer.PresentMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return renderer.ErrDeviceLost
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("headless: invalid surface size %dx%d", width, height)
	}
	if width > b.caps.MaxTextureDimension || height > b.caps.MaxTextureDimension {
		return fmt.Errorf("headless: surface size %dx%d exceeds %d", width, height, b.caps.MaxTextureDimension)
	}

	b.width, b.height = width, height
	b.presentMode = mode
	b.configured = true
	b.outdated = false
	b.swapchain = &texState{tex: &resource.Texture{
		ID: resource.NewID(),
		Desc: resource.TextureDesc{
			Label:               "Swapchain",
			Width:               width,
			Height:              height,
			MipLevels:           1,
			Format:              b.surfaceFormat,
			Usage:               resource.TextureUsageRenderTarget,
			InitialState:        resource.StatePresent,
			ResolutionDependent: true,
		},
	}}
	return nil
}

func (b *backend) SurfaceFormat() resource.TextureFormat {
	return b.surfaceFormat
}

func (b *backend) CreateTexture(desc resource.TextureDesc) (*resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, renderer.ErrDeviceLost
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("headless: texture %q has zero extent", desc.Label)
	}
	if desc.Width > b.caps.MaxTextureDimension || desc.Height > b.caps.MaxTextureDimension {
		return nil, fmt.Errorf("headless: texture %q extent %dx%d exceeds %d", desc.Label, desc.Width, desc.Height, b.caps.MaxTextureDimension)
	}
	if desc.Format == resource.FormatUndefined {
		return nil, fmt.Errorf("headless: texture %q has no format", desc.Label)
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}

	t := &resource.Texture{ID: resource.NewID(), Desc: desc}
	st := &texState{tex: t}
	if desc.Format.IsDepth() {
		st.probe = [4]float32{desc.ClearDepth, 0, 0, 0}
	}
	b.textures[t.ID] = st
	return t, nil
}

func (b *backend) CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, renderer.ErrDeviceLost
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("headless: buffer %q has zero size", desc.Label)
	}

	buf := &resource.Buffer{ID: resource.NewID(), Desc: desc}
	b.buffers[buf.ID] = make([]byte, desc.Size)
	return buf, nil
}

func (b *backend) WriteBuffer(buf *resource.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return renderer.ErrDeviceLost
	}
	storage, ok := b.buffers[buf.ID]
	if !ok {
		return fmt.Errorf("headless: write to unknown buffer %q", buf.Desc.Label)
	}
	if offset+uint64(len(data)) > uint64(len(storage)) {
		return fmt.Errorf("headless: write of %d bytes at %d overflows buffer %q", len(data), offset, buf.Desc.Label)
	}
	copy(storage[offset:], data)
	return nil
}

func (b *backend) Release(r resource.Resource) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := r.ResourceID()
	delete(b.textures, id)
	delete(b.buffers, id)
	delete(b.states, id)
	b.released[id] = true
}

func (b *backend) CreatePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return renderer.ErrDeviceLost
	}
	if err := validatePipeline(p); err != nil {
		return err
	}
	p.SetNative(b.generation)
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *backend) ReleasePipeline(p pipeline.Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pipelines, p.PipelineKey())
}

func (b *backend) AcquireFrame() (*resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, renderer.ErrDeviceLost
	}
	if !b.configured {
		return nil, fmt.Errorf("headless: surface not configured")
	}
	b.acquired = true
	b.submitted = false
	return b.swapchain.tex, nil
}

func (b *backend) BeginCommands(slot int) (renderer.CommandRecorder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return nil, renderer.ErrDeviceLost
	}
	return newRecorder(b, slot), nil
}

func (b *backend) Submit(slot int, rec renderer.CommandRecorder) error {
	r, ok := rec.(*recorder)
	if !ok || r.b != b {
		return fmt.Errorf("headless: recorder was not created by this backend")
	}
	if err := r.finish(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return renderer.ErrDeviceLost
	}
	if r.generation != b.generation {
		return fmt.Errorf("headless: recorder predates device reset: %w", renderer.ErrDeviceLost)
	}

	b.frame++
	b.history = append(b.history, Submission{Slot: slot, Frame: b.frame, Commands: r.commands})
	if len(b.history) > maxHistory {
		b.history = b.history[len(b.history)-maxHistory:]
	}
	for id, st := range r.states {
		b.states[id] = st
	}
	b.fenceLocked(slot).arm()
	b.submitted = true
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
		f = &fence{mu: &sync.Mutex{}, b: b}
		b.fences[slot] = f
	}
	return f
}

func (b *backend) Present() (renderer.PresentStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return renderer.PresentStatusDeviceReset, nil
	}
	if !b.acquired {
		return renderer.PresentStatusOK, fmt.Errorf("headless: present without an acquired frame")
	}
	if !b.submitted {
		return renderer.PresentStatusOK, fmt.Errorf("headless: present before submit")
	}
	if st := b.resourceStateLocked(b.swapchain.tex); st != resource.StatePresent {
		return renderer.PresentStatusOK, fmt.Errorf("headless: swapchain is in state %s, want %s", st, resource.StatePresent)
	}
	b.acquired = false
	if b.outdated {
		b.outdated = false
		return renderer.PresentStatusOutdated, nil
	}
	b.presented++
	return renderer.PresentStatusOK, nil
}

func (b *backend) WaitIdle() error {
	b.mu.Lock()
	lost := b.lost
	fences := make([]*fence, 0, len(b.fences))
	for _, f := range b.fences {
		fences = append(fences, f)
	}
	b.mu.Unlock()

	if lost {
		return renderer.ErrDeviceLost
	}
	for _, f := range fences {
		if err := f.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (b *backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.textures {
		b.released[id] = true
	}
	for id := range b.buffers {
		b.released[id] = true
	}
	clear(b.textures)
	clear(b.buffers)
	clear(b.pipelines)
	clear(b.fences)
	clear(b.states)
	b.lost = false
	b.acquired = false
	b.submitted = false
	b.configured = false
	b.generation++
	b.logger.Info("headless device reset", "generation", b.generation)
	return nil
}

func (b *backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.textures)
	clear(b.buffers)
	clear(b.pipelines)
	b.destroyed = true
}

func (b *backend) LoseDevice() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lost = true
	b.logger.Warn("headless device lost", "generation", b.generation)
}

func (b *backend) MarkOutdated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outdated = true
}

func (b *backend) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func (b *backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Submission, len(b.history))
	copy(out, b.history)
	return out
}

func (b *backend) LastSubmission() (Submission, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return Submission{}, false
	}
	return b.history[len(b.history)-1], true
}

func (b *backend) PresentCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presented
}

func (b *backend) Probe(tex *resource.Texture) [4]float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probeLocked(tex)
}

func (b *backend) probeLocked(tex *resource.Texture) [4]float32 {
	if st := b.stateLocked(tex); st != nil {
		return st.probe
	}
	return [4]float32{}
}

func (b *backend) SetProbe(tex *resource.Texture, v [4]float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st := b.stateLocked(tex); st != nil {
		st.probe = quantize(tex.Desc.Format, v)
	}
}

func (b *backend) stateLocked(tex *resource.Texture) *texState {
	if tex == nil {
		return nil
	}
	if b.swapchain != nil && b.swapchain.tex.ID == tex.ID {
		return b.swapchain
	}
	return b.textures[tex.ID]
}

// resourceStateLocked returns the committed state of a resource.
func (b *backend) resourceStateLocked(r resource.Resource) resource.State {
	if st, ok := b.states[r.ResourceID()]; ok {
		return st
	}
	switch v := r.(type) {
	case *resource.Texture:
		return v.Desc.InitialState
	case *resource.Buffer:
		return v.Desc.InitialState
	}
	return resource.StateUndefined
}

// isLiveLocked reports whether a resource belongs to the current device.
func (b *backend) isLiveLocked(r resource.Resource) bool {
	id := r.ResourceID()
	if b.swapchain != nil && b.swapchain.tex.ID == id {
		return true
	}
	if _, ok := b.textures[id]; ok {
		return true
	}
	_, ok := b.buffers[id]
	return ok
}

func (b *backend) BufferData(buf *resource.Buffer) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bufferDataLocked(buf)
}

func (b *backend) bufferDataLocked(buf *resource.Buffer) []byte {
	if buf == nil {
		return nil
	}
	storage, ok := b.buffers[buf.ID]
	if !ok {
		return nil
	}
	out := make([]byte, len(storage))
	copy(out, storage)
	return out
}

func (b *backend) IsReleased(id resource.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released[id]
}

func (b *backend) CompiledPipelines() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pipelines)
}

func (b *backend) SetShadeFunc(fn ShadeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shade = fn
}

// validatePipeline checks that a pipeline carries the shaders its type requires.
func validatePipeline(p pipeline.Pipeline) error {
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		if p.Shader(shader.ShaderTypeCompute) == nil {
			return fmt.Errorf("headless: compute pipeline %q has no compute shader", p.PipelineKey())
		}
	case pipeline.PipelineTypeRender:
		if p.Shader(shader.ShaderTypeVertex) == nil {
			return fmt.Errorf("headless: render pipeline %q has no vertex shader", p.PipelineKey())
		}
		if len(p.ColorTargets()) > 0 && p.Shader(shader.ShaderTypeFragment) == nil {
			return fmt.Errorf("headless: render pipeline %q has color targets but no fragment shader", p.PipelineKey())
		}
	}
	return nil
}

// quantize rounds a color to the precision of the texture format.
func quantize(format resource.TextureFormat, v [4]float32) [4]float32 {
	return format.Quantize(v)
}

// fence is a per-slot fence. The simulated GPU completes work as soon as it is waited on.
type fence struct {
	mu      *sync.Mutex
	b       *backend
	pending bool
	waits   int
}

func (f *fence) arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = true
}

func (f *fence) Wait() error {
	f.b.mu.Lock()
	lost := f.b.lost
	f.b.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		f.waits++
	}
	f.pending = false
	if lost {
		return renderer.ErrDeviceLost
	}
	return nil
}

func (f *fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.pending
}
