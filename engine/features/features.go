// Package features resolves the optional rendering features once at startup from what the caller
// asks for and what the device supports. The resolved set decides which stages exist in a frame.
package features

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// Features is the set of optional features a System is built with.
type Features struct {
	// Shadows enables the variance shadow map of the directional light.
	Shadows    bool `toml:"shadows"`
	// Caustics enables the stochastic shadow stage, which tints shadows by transparent geometry.
	// Requires Shadows.
	Caustics   bool `toml:"caustics"`
	// Diffusion enables the blurred background lookup of the Phenomenological technique, backed
	// by a mip chain regenerated after the opaque stage.
	Diffusion  bool `toml:"diffusion"`
	// Refraction enables the screen-space refraction offset of the Phenomenological technique.
	Refraction bool `toml:"refraction"`
}

// Default returns every feature enabled.
func Default() Features {
	return Features{Shadows: true, Caustics: true, Diffusion: true, Refraction: true}
}

// Resolve clears the features the device or the other features cannot support. Each cleared
// feature is reported with the reason.
//
// Parameters:
//   - intent: the features the caller asked for
//   - caps: the device capabilities
//
// Returns:
//   - Features: the features that will be used
//   - []string: one message per downgraded feature
func Resolve(intent Features, caps renderer.Capabilities) (Features, []string) {
	f := intent
	var notes []string

	if f.Caustics && !f.Shadows {
		f.Caustics = false
		notes = append(notes, "caustics disabled: shadows are off")
	}
	if f.Diffusion && !(caps.ComputeShaders && caps.StorageTextures) {
		f.Diffusion = false
		notes = append(notes, "diffusion disabled: mip generation needs compute shaders and storage textures")
	}
	if f.Refraction && caps.MaxColorAttachments < 3 {
		f.Refraction = false
		notes = append(notes, fmt.Sprintf("refraction disabled: %d color attachments available, 3 needed", caps.MaxColorAttachments))
	}
	return f, notes
}

// Macros returns the shader macros of the feature set.
func (f Features) Macros() shader.Macros {
	return shader.Macros{
		"USE_SHADOWS":       shader.Flag(f.Shadows),
		"PT_USE_CAUSTICS":   shader.Flag(f.Caustics),
		"PT_USE_DIFFUSION":  shader.Flag(f.Diffusion),
		"PT_USE_REFRACTION": shader.Flag(f.Refraction),
	}
}

func (f Features) String() string {
	return fmt.Sprintf("shadows=%t caustics=%t diffusion=%t refraction=%t", f.Shadows, f.Caustics, f.Diffusion, f.Refraction)
}
