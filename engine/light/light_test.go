package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLightPointsAtOrigin(t *testing.T) {
	l := NewLight()

	want := mgl32.Vec3{0, -1, -1}.Normalize()
	assert.InDelta(t, want.X(), l.Direction().X(), 1e-6)
	assert.InDelta(t, want.Y(), l.Direction().Y(), 1e-6)
	assert.InDelta(t, want.Z(), l.Direction().Z(), 1e-6)
}

func TestShadowProjectionContainsTarget(t *testing.T) {
	l := NewLight()

	p := l.ViewProjection().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, 0, p.Y(), 1e-5)
	assert.InDelta(t, (math32.Sqrt(200)+100)/200, p.Z(), 1e-4)

	// straight down has no usable up vector
	l.SetPosition(mgl32.Vec3{0, 10, 0})
	for _, v := range l.ViewProjection() {
		require.False(t, math32.IsNaN(v))
	}
}

func TestUniformPremultipliesIntensity(t *testing.T) {
	l := NewLight(WithColor(mgl32.Vec3{1, 0.5, 0.25}, 2), WithAmbient(0.1))
	u := l.Uniform()

	assert.Equal(t, 112, u.Size())
	assert.Len(t, u.Marshal(), 112)
	assert.Equal(t, [4]float32{2, 1, 0.5, 0.1}, u.Color)
	assert.Equal(t, float32(0), u.Direction[3])
	assert.Equal(t, [4]float32{0, 10, 10, 1}, u.Position)
}

func TestGaussianWeightsAreNormalized(t *testing.T) {
	w := GaussianWeights(BlurRadius, float32(BlurRadius)/2)
	require.Len(t, w, BlurRadius+1)

	sum := w[0]
	for i := 1; i < len(w); i++ {
		assert.Less(t, w[i], w[i-1])
		sum += 2 * w[i]
	}
	assert.InDelta(t, 1, sum, 1e-5)
	assert.Equal(t, []float32{1}, GaussianWeights(-1, 1))
}

func TestBlurUniformAxes(t *testing.T) {
	x := BlurUniform(0, ShadowMapResolution)
	y := BlurUniform(1, ShadowMapResolution)

	assert.Equal(t, [4]float32{1.0 / ShadowMapResolution, 0, BlurRadius, 0}, x.Axis)
	assert.Equal(t, [4]float32{0, 1.0 / ShadowMapResolution, BlurRadius, 0}, y.Axis)
	assert.Equal(t, x.Weights, y.Weights)
	assert.Equal(t, GaussianWeights(BlurRadius, float32(BlurRadius)/2)[BlurRadius], x.Weights[1][3])
}
