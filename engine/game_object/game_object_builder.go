package game_object

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithEnabled sets whether the GameObject is drawn.
//
// Parameters:
//   - enabled: true to draw the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithMesh sets the built-in mesh of the GameObject. Defaults to model.MeshCube.
//
// Parameters:
//   - mesh: the mesh identifier
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the mesh
func WithMesh(mesh model.MeshID) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.mesh = mesh
	}
}

// WithMaterial sets the material of the GameObject.
func WithMaterial(m material.Material) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.material = m
	}
}

// WithParticles turns the GameObject into a particle emitter drawn from the system's billboards.
// The mesh is set to model.MeshParticles.
//
// Parameters:
//   - ps: the particle system, owned by this object alone
//
// Returns:
//   - GameObjectBuilderOption: functional option to attach the particle system
func WithParticles(ps particle.ParticleSystem) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.particles = ps
		obj.mesh = model.MeshParticles
	}
}

// WithPosition sets the initial world position.
func WithPosition(p mgl32.Vec3) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = p
	}
}

// WithRotation sets the initial Euler angles in radians.
func WithRotation(r mgl32.Vec3) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = r
	}
}

// WithRotationSpeed sets the angular velocity in radians per second applied by Update.
//
// Parameters:
//   - s: the per-axis angular velocity
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation speed
func WithRotationSpeed(s mgl32.Vec3) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotationSpeed = s
	}
}

// WithScale sets the per-axis scale. Defaults to one on every axis.
func WithScale(s mgl32.Vec3) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.scale = s
	}
}
