package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu      *sync.RWMutex
	id      uint64
	enabled atomic.Bool

	mesh      model.MeshID
	material  material.Material
	particles particle.ParticleSystem

	position      mgl32.Vec3
	rotation      mgl32.Vec3
	rotationSpeed mgl32.Vec3
	scale         mgl32.Vec3
}

// GameObject defines the interface for a scene entity: a built-in mesh drawn with one material
// at one transform, or a particle system emitting from that transform.
// Thread-safe for concurrent access.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID, zero until the object is added to a scene
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Enabled returns whether this object is drawn.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object is drawn.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Mesh returns the built-in mesh the object is drawn with.
	Mesh() model.MeshID

	// Material returns the material of the object.
	Material() material.Material

	// SetMaterial replaces the material. A material whose alpha drops below one moves the object
	// into the transparent draw list at the next frame.
	//
	// Parameters:
	//   - m: the new material
	SetMaterial(m material.Material)

	// Particles returns the particle system of the object, or nil for a mesh object.
	Particles() particle.ParticleSystem

	// Position returns the world position.
	Position() mgl32.Vec3

	// SetPosition sets the world position.
	SetPosition(p mgl32.Vec3)

	// Rotation returns the Euler angles in radians, applied Z then Y then X.
	Rotation() mgl32.Vec3

	// SetRotation sets the Euler angles in radians.
	SetRotation(r mgl32.Vec3)

	// RotationSpeed returns the angular velocity in radians per second per axis.
	RotationSpeed() mgl32.Vec3

	// SetRotationSpeed sets the angular velocity in radians per second per axis.
	SetRotationSpeed(s mgl32.Vec3)

	// Scale returns the per-axis scale.
	Scale() mgl32.Vec3

	// SetScale sets the per-axis scale.
	SetScale(s mgl32.Vec3)

	// Update advances the rotation by the rotation speed and steps the particle system.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	Update(dt float32)

	// Entry returns a snapshot of the object for the draw-call compiler.
	//
	// Returns:
	//   - draw_call.Entry: the object's mesh, transform, material and particle system
	Entry() draw_call.Entry
}

var _ GameObject = &gameObject{}

// NewGameObject creates an enabled object at the origin with unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the new object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		mu:       &sync.RWMutex{},
		mesh:     model.MeshCube,
		material: material.New(),
		scale:    mgl32.Vec3{1, 1, 1},
	}
	obj.enabled.Store(true)
	for _, opt := range options {
		opt(obj)
	}
	return obj
}

func (o *gameObject) ID() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

func (o *gameObject) SetID(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.id = id
}

func (o *gameObject) Enabled() bool {
	return o.enabled.Load()
}

func (o *gameObject) SetEnabled(enabled bool) {
	o.enabled.Store(enabled)
}

func (o *gameObject) Mesh() model.MeshID {
	return o.mesh
}

func (o *gameObject) Material() material.Material {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.material
}

func (o *gameObject) SetMaterial(m material.Material) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.material = m
}

func (o *gameObject) Particles() particle.ParticleSystem {
	return o.particles
}

func (o *gameObject) Position() mgl32.Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.position
}

func (o *gameObject) SetPosition(p mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = p
}

func (o *gameObject) Rotation() mgl32.Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rotation
}

func (o *gameObject) SetRotation(r mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = r
}

func (o *gameObject) RotationSpeed() mgl32.Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rotationSpeed
}

func (o *gameObject) SetRotationSpeed(s mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotationSpeed = s
}

func (o *gameObject) Scale() mgl32.Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scale
}

func (o *gameObject) SetScale(s mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scale = s
}

func (o *gameObject) Update(dt float32) {
	o.mu.Lock()
	o.rotation = o.rotation.Add(o.rotationSpeed.Mul(dt))
	o.mu.Unlock()

	// the particle system is not shared between objects, so it is stepped outside the lock
	if o.particles != nil {
		o.particles.Update(dt)
	}
}

func (o *gameObject) Entry() draw_call.Entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return draw_call.Entry{
		Mesh:      o.mesh,
		Position:  o.position,
		Rotation:  o.rotation,
		Scale:     o.scale,
		Material:  o.material,
		Particles: o.particles,
	}
}
