package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewLooksDownNegativeZ(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{0, 12, -35}), WithTarget(mgl32.Vec3{}))

	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, p.X(), 1e-4)
	assert.InDelta(t, 0, p.Y(), 1e-4)
	assert.InDelta(t, -37, p.Z(), 1e-3)
}

func TestUniformCarriesClipInfo(t *testing.T) {
	c := NewCamera(WithClipPlanes(1, 4000), WithPosition(mgl32.Vec3{1, 2, 3}))
	u := c.Uniform()

	assert.Equal(t, 160, u.Size())
	assert.Len(t, u.Marshal(), 160)
	assert.Equal(t, [4]float32{4000, -3999, 4000, 0}, u.ClipInfo)
	assert.Equal(t, [4]float32{1, 2, 3, 1}, u.Position)
	assert.Equal(t, [16]float32(c.ViewProjection()), u.ViewProj)
}

func TestSetAspectIgnoresInvalidValues(t *testing.T) {
	c := NewCamera(WithAspect(2))
	before := c.Projection()

	c.SetAspect(0)
	c.SetAspect(math32.NaN())
	assert.Equal(t, float32(2), c.Aspect())
	assert.Equal(t, before, c.Projection())

	c.SetAspect(1)
	assert.Equal(t, float32(1), c.Aspect())
	assert.NotEqual(t, before, c.Projection())
}

func TestOrbitKeepsHeightAndDistance(t *testing.T) {
	target := mgl32.Vec3{0, 5, 0}
	c := NewCamera(WithPosition(mgl32.Vec3{0, 5, -15}), WithTarget(target))

	for range 7 {
		c.Orbit(math32.Pi / 3)
		require.InDelta(t, 15, c.Position().Sub(target).Len(), 1e-3)
		require.InDelta(t, 5, c.Position().Y(), 1e-5)
	}
	c.Orbit(-7 * math32.Pi / 3)
	assert.InDelta(t, -15, c.Position().Z(), 1e-3)
}
