// Package transparency runs the frame state machine of the transparency layer. It owns the
// shared render targets, the per-slot scene uniforms, the technique registry and the rebuild
// policy applied on technique switches, parameter changes, resizes and device loss.
package transparency

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/frame_ring"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/alpha_blend"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/aoit"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/phenomenological"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/wboit"
)

// ErrNotConfigured is returned by NewSystem when the renderer surface has no size yet.
var ErrNotConfigured = errors.New("transparency: renderer surface is not configured")

// FrameInput is what the caller hands over once per frame.
type FrameInput struct {
	// Camera supplies the view, projection, position and far plane of the frame.
	Camera camera.Camera
	// Light supplies the direction, color and shadow projection of the directional light.
	Light light.Light
	// Entries are the objects of the frame, e.g. from scene.Scene.Entries.
	Entries []draw_call.Entry
}

// UIFunc records the UI stage. It begins and ends its own render pass on target, the swapchain
// image, which is in the render target state when the function runs.
type UIFunc func(rec renderer.CommandRecorder, target *resource.Texture) error

// system is the implementation of the System interface.
type system struct {
	mu     *sync.Mutex
	logger *slog.Logger

	renderer   renderer.Renderer
	intent     features.Features
	initial    technique.Type
	frames     int
	maxObjects int
	techniques []technique.Technique
	ui         UIFunc
	// imported holds the geometry of model.MeshImported onward, in id order.
	imported []model.MeshData

	ctx      *technique.Context
	registry technique.Registry
	selector technique.Selector
	tracker  pass.Tracker
	ring     *frame_ring.Ring[*slotResources]

	params technique.Params
	// built holds the parameters the active technique was last built with.
	built  technique.Params
	active technique.Technique

	pipelines map[string]pipeline.Pipeline
	meshes    map[model.MeshID]model.Model
	shadow    *shadowMaps
	blitGroup bind_group_provider.BindGroupProvider
	swapchain *resource.Texture

	// width and height are the size last requested through Resize.
	width, height  uint32
	minimized      bool
	resetRequested bool
	lost           bool
	generation     uint64
}

// System renders frames with one active transparency technique and handles everything that
// invalidates GPU state between frames.
//
// Usage pattern:
//  1. Configure the renderer surface, then call NewSystem
//  2. Call RenderFrame once per frame with the camera, the light and the scene entries
//  3. Call Resize from the window resize callback, SelectTechnique and SetParams from UI or config
//  4. Call Destroy before destroying the renderer
type System interface {
	// RenderFrame records, submits and presents one frame. Technique switches, parameter
	// rebuilds and device rebuilds requested since the previous frame are applied first.
	//
	// A lost device is not an error: the frame is dropped and the device is rebuilt at the start
	// of the next frame.
	//
	// Parameters:
	//   - in: the frame inputs
	//
	// Returns:
	//   - error: a compile, recording or present error
	RenderFrame(in FrameInput) error

	// Resize reconfigures the surface and reallocates every resolution-dependent target.
	// Pipelines and resolution-independent resources are kept. A zero size pauses rendering
	// until the next non-zero Resize.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: a surface or allocation error
	Resize(width, height uint32) error

	// RequestDeviceReset tears down and rebuilds every GPU resource at the start of the next
	// frame, as if the device had been lost.
	RequestDeviceReset()

	// SelectTechnique schedules a switch to t at the next frame boundary.
	//
	// Returns:
	//   - error: technique.ErrUnsupported if the device cannot run t. The selection is unchanged.
	SelectTechnique(t technique.Type) error

	// Active returns the technique the next frame renders with.
	Active() technique.Type

	// Available returns the techniques the device supports.
	Available() []technique.Type

	// Technique returns the technique of a type if the device supports it.
	Technique(t technique.Type) (technique.Technique, bool)

	// Params returns the current parameter blocks.
	Params() technique.Params

	// SetParams replaces the parameter blocks. Changes that need new pipelines are applied at
	// the next frame boundary.
	//
	// Returns:
	//   - error: technique.ErrInvalidParams if a block is out of range. The parameters are unchanged.
	SetParams(p technique.Params) error

	// ResetParams restores the parameter block of t to its defaults.
	ResetParams(t technique.Type)

	// Features returns the features resolved against the device.
	Features() features.Features

	// Context returns the context shared with the techniques. Its targets are replaced on
	// resize and device rebuild.
	Context() *technique.Context

	// Tracker returns the barrier tracker of the current device.
	Tracker() pass.Tracker

	// Generation returns the number of device rebuilds performed.
	Generation() uint64

	// Destroy releases every GPU resource the system created.
	Destroy()
}

var _ System = &system{}

// DefaultTechniques returns one instance of every technique, in type order.
func DefaultTechniques() []technique.Technique {
	return []technique.Technique{
		alpha_blend.New(),
		wboit.New(),
		wboit.NewVolition(),
		phenomenological.New(),
		aoit.New(),
	}
}

// NewSystem creates the transparency system on a configured renderer. Features are resolved
// against the device capabilities, unsupported techniques are left out of the registry and every
// GPU resource of the initial technique is created.
//
// Parameters:
//   - r: the renderer, with its surface configured through Renderer.Resize
//   - options: functional options to configure the system
//
// Returns:
//   - System: the system
//   - error: ErrNotConfigured, technique.ErrUnsupported for an unsupported initial technique,
//     technique.ErrInvalidParams or a resource creation error
func NewSystem(r renderer.Renderer, options ...SystemBuilderOption) (System, error) {
	s := &system{
		mu:         &sync.Mutex{},
		logger:     slog.Default(),
		renderer:   r,
		intent:     features.Default(),
		initial:    technique.TypeWeightedBlended,
		frames:     frame_ring.DefaultFrames,
		maxObjects: draw_call.DefaultMaxObjects,
		params:     technique.DefaultParams(),
		pipelines:  make(map[string]pipeline.Pipeline),
		meshes:     make(map[model.MeshID]model.Model),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.techniques == nil {
		s.techniques = DefaultTechniques()
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}

	s.width, s.height = r.Size()
	if s.width == 0 || s.height == 0 {
		return nil, ErrNotConfigured
	}

	caps := r.Capabilities()
	resolved, notes := features.Resolve(s.intent, caps)
	for _, note := range notes {
		s.logger.Info("feature downgraded", "reason", note)
	}
	s.registry = technique.NewRegistry(caps, s.logger, s.techniques...)
	selector, err := technique.NewSelector(s.registry, s.initial)
	if err != nil {
		return nil, err
	}
	s.selector = selector

	s.ctx = &technique.Context{Features: resolved}
	if err := s.setup(); err != nil {
		s.teardown()
		return nil, err
	}
	s.logger.Info("transparency system created",
		"technique", s.active.Type(),
		"features", resolved.String(),
		"size", fmt.Sprintf("%dx%d", s.width, s.height),
		"unsupported", s.registry.Unsupported(),
	)
	return s, nil
}

func (s *system) Resize(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width == 0 || height == 0 {
		if !s.minimized {
			s.logger.Info("rendering paused", "width", width, "height", height)
		}
		s.minimized = true
		return nil
	}
	s.minimized = false
	s.width, s.height = width, height
	if s.lost || s.resetRequested {
		// the rebuild picks the new size up
		return nil
	}
	if width == s.ctx.Width && height == s.ctx.Height {
		return nil
	}

	if err := s.renderer.WaitIdle(); err != nil {
		return s.handleLoss(err, "resize")
	}
	if err := s.renderer.Resize(width, height); err != nil {
		return s.handleLoss(err, "resize")
	}
	s.releaseTechniqueTargets()
	s.releaseTargets()
	s.ctx.Width, s.ctx.Height = width, height
	if err := s.allocateTargets(); err != nil {
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}
	if err := s.allocateTechnique(); err != nil {
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}
	s.logger.Info("resized", "width", width, "height", height)
	return nil
}

func (s *system) RequestDeviceReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetRequested = true
}

func (s *system) SelectTechnique(t technique.Type) error {
	return s.selector.Select(t)
}

func (s *system) Active() technique.Type {
	if t, ok := s.selector.Pending(); ok {
		return t
	}
	return s.selector.Active()
}

func (s *system) Available() []technique.Type {
	return s.registry.Types()
}

func (s *system) Technique(t technique.Type) (technique.Technique, bool) {
	return s.registry.Get(t)
}

func (s *system) Params() technique.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *system) SetParams(p technique.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return nil
}

func (s *system) ResetParams(t technique.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = s.params.Reset(t)
	s.logger.Info("parameters reset", "technique", t)
}

func (s *system) Features() features.Features {
	return s.ctx.Features
}

func (s *system) Context() *technique.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *system) Tracker() pass.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}

func (s *system) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *system) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.renderer.WaitIdle(); err != nil {
		s.logger.Warn("wait idle before destroy", "error", err)
	}
	s.teardown()
}

// handleLoss turns a lost device into a pending rebuild and wraps every other error.
func (s *system) handleLoss(err error, what string) error {
	if errors.Is(err, renderer.ErrDeviceLost) {
		if !s.lost {
			s.logger.Warn("device lost, rebuilding on next frame", "during", what, "error", err)
		}
		s.lost = true
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
