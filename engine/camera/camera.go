package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	view       mgl32.Mat4
	projection mgl32.Mat4
}

// Camera holds a perspective camera placed in world space. Matrices are recomputed eagerly on
// every setter so reads are cheap from the render goroutine.
type Camera interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the world-space point the camera looks at.
	Target() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// View returns the current view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	View() mgl32.Mat4

	// Projection returns the current projection matrix with depth mapped to [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	Projection() mgl32.Mat4

	// ViewProjection returns Projection * View.
	ViewProjection() mgl32.Mat4

	// Uniform builds the GPU uniform block for the current state.
	//
	// Returns:
	//   - GPUCameraUniform: the uniform data
	Uniform() GPUCameraUniform

	// SetPosition moves the eye and recomputes the view matrix.
	//
	// Parameters:
	//   - p: the new eye position
	SetPosition(p mgl32.Vec3)

	// LookAt sets the target and recomputes the view matrix.
	//
	// Parameters:
	//   - target: the point to look at
	LookAt(target mgl32.Vec3)

	// SetAspect sets the aspect ratio and recomputes the projection matrix.
	// Called from the window resize callback.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// Orbit rotates the eye around the target on the horizontal plane, keeping its height and distance.
	//
	// Parameters:
	//   - radians: the angle to rotate by
	Orbit(radians float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a perspective camera. Defaults: fov pi/2, aspect 16:9, near 1, far 4000,
// positioned at (0, 12, -35) looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the configured camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 12, -35},
		up:       mgl32.Vec3{0, 1, 0},
		fov:      math32.Pi / 2,
		aspect:   16.0 / 9.0,
		near:     1,
		far:      4000,
	}
	for _, opt := range options {
		opt(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection.Mul4(c.view)
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCameraUniform{
		ViewProj: c.projection.Mul4(c.view),
		View:     c.view,
		ClipInfo: [4]float32{c.near * c.far, c.near - c.far, c.far, 0},
		Position: [4]float32{c.position.X(), c.position.Y(), c.position.Z(), 1},
	}
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 || math32.IsNaN(aspect) {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) Orbit(radians float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offset := c.position.Sub(c.target)
	s, co := math32.Sin(radians), math32.Cos(radians)
	c.position = c.target.Add(mgl32.Vec3{
		offset.X()*co - offset.Z()*s,
		offset.Y(),
		offset.X()*s + offset.Z()*co,
	})
	c.updateMatrices()
}

// updateMatrices recomputes view and projection. Callers hold c.mu.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.position, c.target, c.up)
	c.projection = common.Perspective(c.fov, c.aspect, c.near, c.far)
}
