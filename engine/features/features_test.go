package features

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/stretchr/testify/assert"
)

func fullCaps() renderer.Capabilities {
	return renderer.Capabilities{ComputeShaders: true, StorageTextures: true, MaxColorAttachments: 8}
}

func TestResolveKeepsSupportedFeatures(t *testing.T) {
	f, notes := Resolve(Default(), fullCaps())
	assert.Equal(t, Default(), f)
	assert.Empty(t, notes)
}

func TestResolveDowngrades(t *testing.T) {
	caps := fullCaps()
	caps.StorageTextures = false
	caps.MaxColorAttachments = 2

	f, notes := Resolve(Features{Caustics: true, Diffusion: true, Refraction: true}, caps)
	assert.Equal(t, Features{}, f)
	assert.Len(t, notes, 3)
}

func TestMacros(t *testing.T) {
	m := Features{Shadows: true, Refraction: true}.Macros()
	assert.Equal(t, 1, m["USE_SHADOWS"])
	assert.Equal(t, 0, m["PT_USE_CAUSTICS"])
	assert.Equal(t, 0, m["PT_USE_DIFFUSION"])
	assert.Equal(t, 1, m["PT_USE_REFRACTION"])
}
