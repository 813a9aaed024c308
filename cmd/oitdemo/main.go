// Command oitdemo renders a scene of overlapping transparent objects with every order-independent
// transparency technique of the engine. Keys 1 to 5 switch techniques at runtime.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-oit/engine"
	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/capture"
	"github.com/Carmen-Shannon/oxy-oit/engine/config"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/loader"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-oit/engine/scene"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/Carmen-Shannon/oxy-oit/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/pflag"
)

var (
	cameraStart  = mgl32.Vec3{0, 5, -15}
	cameraTarget = mgl32.Vec3{0, 5, 0}
)

// options holds the command line.
type options struct {
	configPath string
	meshPath   string
	technique  string
	width      int
	height     int
	headless   bool
	frames     uint64
	captureDir string
	profile    bool
	logLevel   string
}

// parseFlags parses the command line arguments, without the program name.
//
// Parameters:
//   - args: the arguments
//
// Returns:
//   - options: the parsed options
//   - error: a flag error, or pflag.ErrHelp when help was requested
func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("oitdemo", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "TOML configuration file, reloaded on change")
	fs.StringVarP(&o.meshPath, "mesh", "m", "", "glTF or GLB model added to the scene")
	fs.StringVarP(&o.technique, "technique", "t", "", "initial technique: "+techniqueNames())
	fs.IntVar(&o.width, "width", 0, "window width in pixels, overrides the configuration")
	fs.IntVar(&o.height, "height", 0, "window height in pixels, overrides the configuration")
	fs.BoolVar(&o.headless, "headless", false, "render without a window or GPU")
	fs.Uint64VarP(&o.frames, "frames", "n", 0, "stop after this many frames, 0 renders until the window closes")
	fs.StringVar(&o.captureDir, "capture", "captures", "directory C key and final-frame captures are written to")
	fs.BoolVar(&o.profile, "profile", false, "log frame timings")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.width < 0 || o.height < 0 {
		return options{}, fmt.Errorf("window size must not be negative: %dx%d", o.width, o.height)
	}
	if o.headless && o.frames == 0 {
		return options{}, errors.New("--headless needs --frames")
	}
	return o, nil
}

func techniqueNames() string {
	names := make([]string, 0, 5)
	for _, t := range []technique.Type{
		technique.TypeAlphaBlend,
		technique.TypeWeightedBlended,
		technique.TypeWeightedBlendedVolition,
		technique.TypePhenomenological,
		technique.TypeAdaptive,
	} {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

// loadConfig reads the configuration file, or the defaults without one, and applies the command
// line overrides.
func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if o.technique != "" {
		t, err := technique.ParseType(o.technique)
		if err != nil {
			return cfg, err
		}
		cfg.Technique = t
	}
	if o.width > 0 {
		cfg.Window.Width = uint32(o.width)
	}
	if o.height > 0 {
		cfg.Window.Height = uint32(o.height)
	}
	return cfg, cfg.Validate()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level, err := parseLevel(o.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(o, logger); err != nil {
		logger.Error("oitdemo failed", "error", err)
		os.Exit(1)
	}
}

func run(o options, logger *slog.Logger) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	width, height := cfg.Window.Width, cfg.Window.Height

	// ── Window + Backend ────────────────────────────────────────────────
	var (
		win     window.Window
		backend renderer.Backend
		prober  capture.Prober
	)
	if o.headless {
		hb := headless.New(headless.WithLogger(logger))
		backend, prober = hb, hb
	} else {
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(int(width), int(height)),
		)
		if err != nil {
			return err
		}
		defer win.Close()
		backend, err = wgpu_backend.New(win.SurfaceDescriptor(), wgpu_backend.WithLogger(logger))
		if err != nil {
			return err
		}
	}

	// ── Renderer ────────────────────────────────────────────────────────
	mode := renderer.PresentModeUncapped
	if cfg.Window.VSync {
		mode = renderer.PresentModeVSync
	}
	r := renderer.NewRenderer(backend,
		renderer.WithPresentMode(mode),
		renderer.WithLogger(logger),
	)
	defer r.Destroy()
	if err := r.Resize(width, height); err != nil {
		return err
	}

	// ── Transparency ────────────────────────────────────────────────────
	systemOptions := append(cfg.SystemOptions(), transparency.WithLogger(logger))
	if o.meshPath != "" {
		mesh, err := loader.NewLoader(loader.WithLogger(logger)).Load(o.meshPath)
		if err != nil {
			return err
		}
		systemOptions = append(systemOptions, transparency.WithMeshes(mesh))
	}
	sys, err := transparency.NewSystem(r, systemOptions...)
	if err != nil {
		return err
	}
	defer sys.Destroy()

	// ── Camera + Light + Scene ──────────────────────────────────────────
	cam := camera.NewCamera(
		camera.WithFov(math.Pi/2),
		camera.WithAspect(float32(width)/float32(height)),
		camera.WithClipPlanes(1, 4000),
		camera.WithPosition(cameraStart),
		camera.WithTarget(cameraTarget),
	)
	lig := light.NewLight(cfg.LightOptions()...)
	sc := scene.NewScene("oit demo",
		scene.WithObjects(buildScene(particle.DefaultCapacity, o.meshPath != "")...),
		scene.WithLogger(logger),
	)

	// ── Engine ──────────────────────────────────────────────────────────
	engineOptions := []engine.EngineBuilderOption{
		engine.WithLogger(logger),
		engine.WithProfiling(o.profile),
		engine.WithMaxFrames(o.frames),
	}
	if win != nil {
		engineOptions = append(engineOptions, engine.WithWindow(win))
	}
	eng := engine.NewEngine(sys, sc, cam, lig, engineOptions...)

	ctrl := newControls(logger, sys, cam)
	if win != nil {
		win.SetTitle(ctrl.title())
		win.SetKeyCallback(func(key uint32) {
			if ctrl.handleKey(key) {
				win.SetTitle(ctrl.title())
			}
		})
		win.SetDragCallback(ctrl.orbit)
		win.SetScrollCallback(ctrl.zoom)
	}
	eng.SetFrameCallback(func(frame uint64) {
		if !ctrl.takeCapture() && (o.frames == 0 || frame != o.frames) {
			return
		}
		paths, err := captureFrame(o.captureDir, frame, sys, prober)
		if err != nil {
			logger.Error("capture failed", "frame", frame, "error", err)
			return
		}
		logger.Info("frame captured", "frame", frame, "files", paths)
	})

	// ── Config Reload ───────────────────────────────────────────────────
	if o.configPath != "" {
		watcher, err := config.NewWatcher(o.configPath, cfg, sys, config.WithWatcherLogger(logger))
		if err != nil {
			return err
		}
		defer watcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go watcher.Run(ctx)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-watcher.Reloads():
					if win != nil {
						win.SetTitle(ctrl.title())
					}
				}
			}
		}()
	}

	logger.Info("rendering", "technique", sys.Active(), "available", sys.Available(), "headless", o.headless)
	return eng.Run()
}
