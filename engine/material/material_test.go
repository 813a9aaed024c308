package material

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsOpaqueWhite(t *testing.T) {
	m := New()

	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.Color)
	assert.False(t, m.IsTransparent())
	assert.NoError(t, m.Validate())

	glass := New(WithColor([4]float32{0.2, 0.4, 1, 0.5}))
	assert.True(t, glass.IsTransparent())
	assert.Equal(t, float32(0.5), glass.Alpha())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		m    Material
		ok   bool
	}{
		{"emissive color above one", New(WithColor([4]float32{3, 3, 10, 0.1})), true},
		{"refractive", New(WithRefraction(1.5, 0.9)), true},
		{"negative color", New(WithColor([4]float32{-1, 0, 0, 1})), false},
		{"nan color", New(WithColor([4]float32{math32.NaN(), 0, 0, 1})), false},
		{"infinite color", New(WithColor([4]float32{0, math32.Inf(1), 0, 1})), false},
		{"alpha above one", New(WithColor([4]float32{1, 1, 1, 1.5})), false},
		{"negative alpha", New(WithColor([4]float32{1, 1, 1, -0.1})), false},
		{"collimation above one", New(WithRefraction(1.3, 2)), false},
		{"zero refraction ratio", New(WithRefraction(0, 0.5)), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.m.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGPUPacking(t *testing.T) {
	m := New(
		WithColor([4]float32{0.5, 0.25, 1, 0.75}),
		WithTransmission([3]float32{0.1, 0.2, 0.3}),
		WithRefraction(1.3, 0.5),
		WithAlbedoPattern(PatternGrid),
		WithEmissivePattern(PatternStripes),
	)
	g := m.GPU()

	assert.Equal(t, 80, g.Size())
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0}, g.Transmission)
	assert.Equal(t, uint32(TextureFlagAlbedo|TextureFlagEmissive), g.TextureFlags)
	assert.Equal(t, uint32(PatternStripes), g.Emissive)

	data := MarshalMaterials([]GPUMaterial{g, New().GPU()})
	require.Len(t, data, 160)
}
