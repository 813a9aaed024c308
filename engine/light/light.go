package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/go-gl/mathgl/mgl32"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	position  mgl32.Vec3
	target    mgl32.Vec3
	color     mgl32.Vec3
	intensity float32
	ambient   float32
}

// Light is the scene's single directional light. It doubles as the shadow camera: its
// orthographic view-projection covers ShadowHalfExtent around the target.
type Light interface {
	// Position returns the world-space position of the shadow camera.
	//
	// Returns:
	//   - mgl32.Vec3: the light position
	Position() mgl32.Vec3

	// Direction returns the normalized direction light travels in, from Position toward the target.
	//
	// Returns:
	//   - mgl32.Vec3: normalized direction
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier for the light.
	Intensity() float32

	// SetPosition moves the light, which changes its direction and shadow frustum.
	//
	// Parameters:
	//   - p: the new position
	SetPosition(p mgl32.Vec3)

	// SetColor sets the light color and intensity.
	SetColor(c mgl32.Vec3, intensity float32)

	// ViewProjection returns the orthographic shadow view-projection with depth in [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the light view-projection
	ViewProjection() mgl32.Mat4

	// Uniform builds the GPU uniform block for the light.
	//
	// Returns:
	//   - GPULightUniform: the uniform data
	Uniform() GPULightUniform
}

var _ Light = &lightImpl{}

// NewLight creates a white directional light at (0, 10, 10) looking at the origin.
//
// Parameters:
//   - options: functional options to configure the light
//
// Returns:
//   - Light: the configured light
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:        &sync.Mutex{},
		position:  mgl32.Vec3{0, 10, 10},
		color:     mgl32.Vec3{1, 1, 1},
		intensity: 1,
		ambient:   0.2,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightImpl) Position() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction()
}

func (l *lightImpl) direction() mgl32.Vec3 {
	d := l.target.Sub(l.position)
	if d.Len() == 0 {
		return mgl32.Vec3{0, -1, 0}
	}
	return d.Normalize()
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intensity
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
}

func (l *lightImpl) SetColor(c mgl32.Vec3, intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = c
	l.intensity = intensity
}

func (l *lightImpl) ViewProjection() mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewProjection()
}

func (l *lightImpl) viewProjection() mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if d := l.direction(); d.Cross(up).Len() < 1e-4 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(l.position, l.target, up)
	proj := common.Orthographic(-ShadowHalfExtent, ShadowHalfExtent, -ShadowHalfExtent, ShadowHalfExtent, ShadowNear, ShadowFar)
	return proj.Mul4(view)
}

func (l *lightImpl) Uniform() GPULightUniform {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.direction()
	c := l.color.Mul(l.intensity)
	return GPULightUniform{
		ViewProj:  l.viewProjection(),
		Direction: [4]float32{d.X(), d.Y(), d.Z(), 0},
		Color:     [4]float32{c.X(), c.Y(), c.Z(), l.ambient},
		Position:  [4]float32{l.position.X(), l.position.Y(), l.position.Z(), 1},
	}
}
