// Package engine drives the frame loop: it steps the scene, hands the frame to the transparency
// system and keeps the surface in sync with the window.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/profiler"
	"github.com/Carmen-Shannon/oxy-oit/engine/scene"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/Carmen-Shannon/oxy-oit/engine/window"
)

// engine implements the Engine interface.
// Coordinates the window thread and the render loop.
type engine struct {
	logger *slog.Logger

	system transparency.System
	scene  scene.Scene
	camera camera.Camera
	light  light.Light
	window window.Window

	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	tickCallback  func(deltaTime float32)
	frameCallback func(frame uint64)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = until quit
	fixedStep        float32       // 0 = wall clock delta
	frames           atomic.Uint64

	errMu sync.Mutex
	err   error
}

// Engine runs the render loop of a scene through a transparency system.
//
// Each frame, on a single goroutine:
//  1. the tick callback runs with the frame delta
//  2. the scene steps its objects and particle systems on its worker pool
//  3. the system compiles, records and presents the frame
//  4. the frame callback runs with the number of the frame just presented
type Engine interface {
	// System returns the transparency system frames are rendered with.
	System() transparency.System

	// Scene returns the scene being rendered.
	Scene() scene.Scene

	// Camera returns the camera frames are rendered from.
	Camera() camera.Camera

	// Light returns the directional light of the scene.
	Light() light.Light

	// Window returns the window, or nil when rendering headless.
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called before each frame.
	// Use this for input processing and animation updates.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the number of frames rendered so far
	SetFrameCallback(callback func(frame uint64))

	// Frames returns the number of frames rendered.
	Frames() uint64

	// Run renders until the window closes, the frame limit is reached, Quit is called or a frame
	// fails. With a window, Run must be called from the thread that created it.
	//
	// Returns:
	//   - error: the error that stopped the loop, nil on a normal shutdown
	Run() error

	// Quit signals the render loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an Engine rendering sc from cam through sys.
// When a window is given, its resize callback is wired to the system and the camera aspect.
//
// Parameters:
//   - sys: the transparency system
//   - sc: the scene to render
//   - cam: the camera
//   - lig: the directional light
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(sys transparency.System, sc scene.Scene, cam camera.Camera, lig light.Light, options ...EngineBuilderOption) Engine {
	e := &engine{
		logger:      slog.Default(),
		system:      sys,
		scene:       sc,
		camera:      cam,
		light:       lig,
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if err := e.system.Resize(uint32(width), uint32(height)); err != nil {
				e.logger.Error("resize failed", "width", width, "height", height, "error", err)
			}
			if width > 0 && height > 0 {
				e.camera.SetAspect(float32(width) / float32(height))
			}
		})
	}
	return e
}

func (e *engine) System() transparency.System {
	return e.system
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Light() light.Light {
	return e.light
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Run() error {
	if e.window == nil {
		e.wg.Add(1)
		e.handleRender()
		return e.loopErr()
	}

	e.wg.Add(1)
	go e.handleRender()
	for e.window.PollEvents() {
		select {
		case <-e.quitChannel:
			e.wg.Wait()
			return e.loopErr()
		default:
		}
		runtime.Gosched()
	}
	e.signalQuit()
	e.wg.Wait()
	return e.loopErr()
}

// Quit signals the render loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the render loop to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

func (e *engine) loopErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// handleRender runs the uncapped (or frame-limited) render loop.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render loop recovered from panic", "panic", r)
			e.fail(fmt.Errorf("render loop panic: %v", r))
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		if e.fixedStep > 0 {
			dt = e.fixedStep
		}
		lastRender = now

		if err := e.renderFrame(dt); err != nil {
			e.logger.Error("frame failed", "frame", e.frames.Load(), "error", err)
			e.fail(err)
			return
		}

		frame := e.frames.Add(1)
		if e.frameCallback != nil {
			e.frameCallback(frame)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Tick()
		}
		if e.maxFrames > 0 && frame >= e.maxFrames {
			e.signalQuit()
			return
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame steps the scene by dt and renders it.
func (e *engine) renderFrame(dt float32) error {
	if e.tickCallback != nil {
		stop := e.profiler.Time("tick")
		e.tickCallback(dt)
		stop()
	}

	stop := e.profiler.Time("update")
	e.scene.Update(dt)
	stop()

	stop = e.profiler.Time("render")
	defer stop()
	return e.system.RenderFrame(transparency.FrameInput{
		Camera:  e.camera,
		Light:   e.light,
		Entries: e.scene.Entries(),
	})
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickCallback registers the function called before each frame.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetFrameCallback registers the function called after each presented frame.
func (e *engine) SetFrameCallback(callback func(frame uint64)) {
	e.frameCallback = callback
}
