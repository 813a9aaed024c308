package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/game_object"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsIDs(t *testing.T) {
	s := NewScene("test", WithComputeWorkers(2))
	a := s.Add(game_object.NewGameObject())
	b := s.Add(game_object.NewGameObject())
	c := s.Add(game_object.NewGameObject(game_object.WithID(10)))
	d := s.Add(game_object.NewGameObject())

	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(2), b)
	assert.Equal(t, uint64(10), c)
	assert.Equal(t, uint64(11), d)
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 2, s.ComputeWorkers())
}

func TestRemoveAndClear(t *testing.T) {
	s := NewScene("test")
	id := s.Add(game_object.NewGameObject())
	require.NotNil(t, s.Get(id))
	assert.True(t, s.Remove(id))
	assert.False(t, s.Remove(id))
	assert.Nil(t, s.Get(id))

	s.Add(game_object.NewGameObject())
	s.Clear()
	assert.Zero(t, s.Count())
	assert.Empty(t, s.Entries())
}

func TestEntriesSkipDisabledAndKeepIDOrder(t *testing.T) {
	objs := []game_object.GameObject{
		game_object.NewGameObject(game_object.WithID(3), game_object.WithPosition(mgl32.Vec3{3, 0, 0})),
		game_object.NewGameObject(game_object.WithID(1), game_object.WithPosition(mgl32.Vec3{1, 0, 0})),
		game_object.NewGameObject(game_object.WithID(2), game_object.WithEnabled(false)),
	}
	s := NewScene("test", WithObjects(objs...))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, float32(1), entries[0].Position[0])
	assert.Equal(t, float32(3), entries[1].Position[0])
}

func TestUpdateStepsEveryObject(t *testing.T) {
	s := NewScene("test", WithComputeWorkers(4))
	var systems []particle.ParticleSystem
	for i := range 32 {
		if i%4 == 0 {
			ps := particle.NewParticleSystem(particle.WithCapacity(16))
			systems = append(systems, ps)
			s.Add(game_object.NewGameObject(game_object.WithParticles(ps)))
			continue
		}
		s.Add(game_object.NewGameObject(game_object.WithRotationSpeed(mgl32.Vec3{0, 0, 2})))
	}

	for range 30 {
		s.Update(1.0 / 30)
	}
	for _, obj := range s.Objects() {
		if obj.Particles() != nil {
			continue
		}
		assert.InDelta(t, 2.0, obj.Rotation()[2], 1e-4)
	}
	for _, ps := range systems {
		assert.Positive(t, ps.Live())
		assert.LessOrEqual(t, ps.Live(), ps.Capacity())
	}
}

func TestEntriesCompile(t *testing.T) {
	s := NewScene("test")
	for i := range 5 {
		s.Add(game_object.NewGameObject(game_object.WithPosition(mgl32.Vec3{float32(i), 0, -5})))
	}
	res, err := draw_call.Compile(s.Entries(), mgl32.Vec3{}, 0, draw_call.Options{})
	require.NoError(t, err)
	var total uint32
	for _, dc := range res.Opaque {
		total += dc.InstanceCount
	}
	assert.Equal(t, uint32(5), total)
}
