package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	obj := NewGameObject()
	assert.True(t, obj.Enabled())
	assert.Equal(t, model.MeshCube, obj.Mesh())
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, obj.Scale())
	assert.Nil(t, obj.Particles())
	assert.False(t, obj.Entry().IsParticleSystem())
}

func TestUpdateSpins(t *testing.T) {
	obj := NewGameObject(WithRotationSpeed(mgl32.Vec3{0, 1, 0}), WithRotation(mgl32.Vec3{0, 0.5, 0}))
	obj.Update(0.25)
	obj.Update(0.25)
	assert.InDelta(t, 1.0, obj.Rotation()[1], 1e-6)
	assert.InDelta(t, 1.0, obj.Entry().Rotation[1], 1e-6)
}

func TestParticleEmitter(t *testing.T) {
	ps := particle.NewParticleSystem(particle.WithCapacity(8))
	obj := NewGameObject(WithParticles(ps), WithPosition(mgl32.Vec3{1, 2, 3}))
	assert.Equal(t, model.MeshParticles, obj.Mesh())

	e := obj.Entry()
	assert.True(t, e.IsParticleSystem())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, e.Position)

	for range 20 {
		obj.Update(1.0 / 60)
	}
	assert.LessOrEqual(t, ps.Live(), ps.Capacity())
}

func TestMaterialSwapChangesEntry(t *testing.T) {
	obj := NewGameObject()
	assert.False(t, obj.Entry().Material.IsTransparent())
	obj.SetMaterial(material.New(material.WithColor([4]float32{1, 0, 0, 0.5})))
	assert.True(t, obj.Entry().Material.IsTransparent())
}
