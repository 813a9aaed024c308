package material

import (
	"fmt"

	"github.com/chewxy/math32"
)

// TextureFlags selects which texture slots of a Material are sampled.
type TextureFlags uint32

const (
	TextureFlagAlbedo TextureFlags = 1 << iota
	TextureFlagMetallic
	TextureFlagRoughness
	TextureFlagEmissive
)

// Pattern indexes the procedural textures the shading code can evaluate.
type Pattern uint32

const (
	PatternGrid Pattern = iota
	PatternChecker
	PatternStripes
)

// Material holds the surface properties of an object. It is a value type: objects embed a copy
// and nothing mutates it after the object is created.
type Material struct {
	// Color is the base RGBA color. Alpha below 1 makes the owning object transparent.
	Color [4]float32
	// Transmission is the per-channel fraction of light passing through the surface, used by the
	// Phenomenological technique's modulation target.
	Transmission [3]float32
	// RefractionRatio is the ratio of indices of refraction across the surface.
	RefractionRatio float32
	// Collimation in [0, 1] controls how diffuse transmitted light is; 0 is fully diffuse.
	Collimation float32

	TextureFlags TextureFlags
	Albedo       Pattern
	Metallic     Pattern
	Roughness    Pattern
	Emissive     Pattern
}

// New creates a Material with an opaque white color and the given options applied.
//
// Parameters:
//   - options: functional options to configure the material
//
// Returns:
//   - Material: the configured material
func New(options ...MaterialBuilderOption) Material {
	m := Material{
		Color:           [4]float32{1, 1, 1, 1},
		RefractionRatio: 1,
		Collimation:     1,
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

// Alpha returns the opacity of the material.
func (m Material) Alpha() float32 {
	return m.Color[3]
}

// IsTransparent reports whether objects using this material go through the transparent path.
func (m Material) IsTransparent() bool {
	return m.Color[3] < 1
}

// Validate reports out-of-range values.
//
// Returns:
//   - error: nil if every field is within range
func (m Material) Validate() error {
	// color may exceed 1 for emissive surfaces
	for i, c := range m.Color[:3] {
		if c < 0 || math32.IsInf(c, 0) || math32.IsNaN(c) {
			return fmt.Errorf("material color component %d must be finite and non-negative: %v", i, c)
		}
	}
	if a := m.Color[3]; a < 0 || a > 1 {
		return fmt.Errorf("material alpha out of [0, 1]: %v", a)
	}
	if m.Collimation < 0 || m.Collimation > 1 {
		return fmt.Errorf("material collimation out of [0, 1]: %v", m.Collimation)
	}
	if m.RefractionRatio <= 0 {
		return fmt.Errorf("material refraction ratio must be positive: %v", m.RefractionRatio)
	}
	return nil
}

// GPU converts the material to its storage buffer layout.
//
// Returns:
//   - GPUMaterial: the packed material
func (m Material) GPU() GPUMaterial {
	return GPUMaterial{
		Color:           m.Color,
		Transmission:    [4]float32{m.Transmission[0], m.Transmission[1], m.Transmission[2], 0},
		RefractionRatio: m.RefractionRatio,
		Collimation:     m.Collimation,
		TextureFlags:    uint32(m.TextureFlags),
		Albedo:          uint32(m.Albedo),
		Metallic:        uint32(m.Metallic),
		Roughness:       uint32(m.Roughness),
		Emissive:        uint32(m.Emissive),
	}
}
