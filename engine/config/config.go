// Package config loads the demo and transparency settings from a TOML file: the active technique,
// the feature intent, the window, the light and every technique parameter block.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/transparency"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned for a configuration that decodes but holds out of range values.
var ErrInvalid = errors.New("config: invalid configuration")

// Window holds the window and surface settings.
type Window struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	VSync  bool   `toml:"vsync"`
}

// Light holds the directional light settings.
type Light struct {
	Position  [3]float32 `toml:"position"`
	Target    [3]float32 `toml:"target"`
	Color     [3]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`
	Ambient   float32    `toml:"ambient"`
}

// Config is the content of a configuration file. Keys missing from the file keep their defaults.
type Config struct {
	Technique technique.Type    `toml:"technique"`
	Features  features.Features `toml:"features"`
	Window    Window            `toml:"window"`
	Light     Light             `toml:"light"`
	Params    technique.Params  `toml:"params"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Technique: technique.TypeWeightedBlended,
		Features:  features.Default(),
		Window: Window{
			Title:  "oxy-oit",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Light: Light{
			Position:  [3]float32{0, 10, 10},
			Color:     [3]float32{1, 1, 1},
			Intensity: 1,
			Ambient:   0.2,
		},
		Params: technique.DefaultParams(),
	}
}

// Parse decodes a configuration over the defaults. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode error or ErrInvalid
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating missing directories.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks the values a TOML decode cannot.
func (c Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	if c.Light.Position == c.Light.Target {
		return fmt.Errorf("%w: light position equals its target", ErrInvalid)
	}
	if c.Light.Intensity < 0 || c.Light.Ambient < 0 {
		return fmt.Errorf("%w: negative light intensity or ambient", ErrInvalid)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// LightOptions returns the options building the configured light.
func (c Config) LightOptions() []light.LightBuilderOption {
	return []light.LightBuilderOption{
		light.WithPosition(mgl32.Vec3(c.Light.Position)),
		light.WithTarget(mgl32.Vec3(c.Light.Target)),
		light.WithColor(mgl32.Vec3(c.Light.Color), c.Light.Intensity),
		light.WithAmbient(c.Light.Ambient),
	}
}

// SystemOptions returns the options creating a transparency system with this configuration.
func (c Config) SystemOptions() []transparency.SystemBuilderOption {
	return []transparency.SystemBuilderOption{
		transparency.WithTechnique(c.Technique),
		transparency.WithFeatures(c.Features),
		transparency.WithParams(c.Params),
	}
}

// Apply pushes the runtime-changeable part of the configuration into a running system: the
// parameter blocks and the technique selection. Both take effect at the next frame boundary.
//
// Parameters:
//   - sys: the running system
//
// Returns:
//   - error: technique.ErrInvalidParams or technique.ErrUnsupported. Parameters are applied even
//     when the technique is unsupported.
func (c Config) Apply(sys transparency.System) error {
	if err := sys.SetParams(c.Params); err != nil {
		return fmt.Errorf("config: apply params: %w", err)
	}
	if sys.Active() != c.Technique {
		if err := sys.SelectTechnique(c.Technique); err != nil {
			return fmt.Errorf("config: select %s: %w", c.Technique, err)
		}
	}
	return nil
}
