package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNextPowerOfTwo(t *testing.T) {
	for in, want := range map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 1000: 1024, 1024: 1024, 1025: 2048} {
		assert.Equal(t, want, NextPowerOfTwo(in), "input %d", in)
	}
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(0, 4))
	assert.Equal(t, uint64(4), AlignUp(1, 4))
	assert.Equal(t, uint64(256), AlignUp(256, 256))
	assert.Equal(t, uint64(512), AlignUp(257, 256))
}

func TestClampAndSaturate(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(-1), Clamp(float32(-4), -1, 1))
	assert.Equal(t, float32(0), Saturate(float32(math.NaN())))
	assert.Equal(t, float32(1), Saturate(2))
}

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevelCount(1, 1))
	assert.Equal(t, uint32(11), MipLevelCount(1024, 512))
}

func TestProjectionsMapDepthToUnitRange(t *testing.T) {
	near, far := float32(1), float32(100)
	depth := func(m mgl32.Mat4, z float32) float32 {
		clip := m.Mul4x1(mgl32.Vec4{0, 0, -z, 1})
		return clip.Z() / clip.W()
	}

	persp := Perspective(math.Pi/2, 1, near, far)
	assert.InDelta(t, 0, depth(persp, near), 1e-5)
	assert.InDelta(t, 1, depth(persp, far), 1e-5)

	ortho := Orthographic(-1, 1, -1, 1, near, far)
	assert.InDelta(t, 0, depth(ortho, near), 1e-5)
	assert.InDelta(t, 1, depth(ortho, far), 1e-5)
}

func TestModelMatrixAppliesScaleRotationTranslation(t *testing.T) {
	m := ModelMatrix(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, math.Pi / 2, 0}, mgl32.Vec3{2, 2, 2})
	p := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	// +X scaled to 2 and turned a quarter around Y ends on -Z
	assert.InDeltaSlice(t, []float32{1, 2, 1}, p[:3], 1e-5)
}

func TestLuminanceOfWhiteIsOne(t *testing.T) {
	assert.InDelta(t, 1, Luminance(mgl32.Vec3{1, 1, 1}), 1e-5)
}
