package draw_call

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func object(mesh model.MeshID, pos mgl32.Vec3, alpha float32) Entry {
	return Entry{
		Mesh:     mesh,
		Position: pos,
		Scale:    mgl32.Vec3{1, 1, 1},
		Material: material.New(material.WithColor([4]float32{1, 1, 1, alpha})),
	}
}

func particles(pos mgl32.Vec3) Entry {
	p := particle.NewParticleSystem(particle.WithCapacity(16))
	for range 4 {
		p.Update(0.1)
	}
	e := object(model.MeshParticles, pos, 0.5)
	e.Particles = p
	return e
}

func totalInstances(calls []DrawCall) int {
	n := 0
	for _, c := range calls {
		n += int(c.InstanceCount)
	}
	return n
}

func TestInstanceCountConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	meshes := []model.MeshID{model.MeshCube, model.MeshSphere, model.MeshPlane}
	for _, active := range []technique.Type{technique.TypeAlphaBlend, technique.TypeWeightedBlended, technique.TypePhenomenological} {
		for trial := range 20 {
			var entries []Entry
			for range rng.Intn(60) + 1 {
				alpha := float32(1)
				if rng.Intn(2) == 0 {
					alpha = rng.Float32() * 0.9
				}
				pos := mgl32.Vec3{rng.Float32() * 20, rng.Float32() * 20, rng.Float32() * 20}
				entries = append(entries, object(meshes[rng.Intn(len(meshes))], pos, alpha))
			}
			if trial%3 == 0 {
				entries = append(entries, particles(mgl32.Vec3{1, 2, 3}), particles(mgl32.Vec3{4, 5, 6}))
			}

			res, err := Compile(entries, mgl32.Vec3{}, active, Options{SortObjects: true, SortParticles: true})
			require.NoError(t, err)

			assert.Equal(t, len(entries), totalInstances(res.Opaque)+totalInstances(res.Transparent))
			assert.Len(t, res.OpaqueInstances, totalInstances(res.Opaque))
			assert.Len(t, res.TransparentInstances, totalInstances(res.Transparent))
			assert.Len(t, res.Materials, len(entries))

			// offsets are contiguous in list order
			for _, calls := range [][]DrawCall{res.Opaque, res.Transparent} {
				var next uint32
				for _, c := range calls {
					assert.Equal(t, next, c.InstanceOffset)
					next += c.InstanceCount
				}
			}
		}
	}
}

func TestOpaqueGroupedByMesh(t *testing.T) {
	entries := []Entry{
		object(model.MeshSphere, mgl32.Vec3{}, 1),
		object(model.MeshCube, mgl32.Vec3{}, 1),
		object(model.MeshSphere, mgl32.Vec3{}, 1),
		object(model.MeshCube, mgl32.Vec3{}, 1),
		object(model.MeshCube, mgl32.Vec3{}, 1),
	}
	res, err := Compile(entries, mgl32.Vec3{}, technique.TypeWeightedBlended, Options{})
	require.NoError(t, err)
	require.Len(t, res.Opaque, 2)
	assert.Equal(t, DrawCall{Mesh: model.MeshCube, InstanceCount: 3, InstanceOffset: 0, Object: 1}, res.Opaque[0])
	assert.Equal(t, DrawCall{Mesh: model.MeshSphere, InstanceCount: 2, InstanceOffset: 3, Object: 0}, res.Opaque[1])
	assert.Empty(t, res.Transparent)

	// materials are indexed sequentially in instance order
	for i, inst := range res.OpaqueInstances {
		assert.Equal(t, uint32(i), inst.MaterialIndex)
	}
}

func TestTransparentBackToFront(t *testing.T) {
	entries := []Entry{
		object(model.MeshCube, mgl32.Vec3{0, 0, 2}, 0.5),
		object(model.MeshCube, mgl32.Vec3{0, 0, 10}, 0.5),
		object(model.MeshSphere, mgl32.Vec3{0, 0, 5}, 0.5),
		object(model.MeshCube, mgl32.Vec3{0, 0, 1}, 1),
	}
	res, err := Compile(entries, mgl32.Vec3{}, technique.TypeAlphaBlend, Options{SortObjects: true})
	require.NoError(t, err)

	// far cube, sphere, near cube: three draws since the mesh changes between each
	require.Len(t, res.Transparent, 3)
	assert.Equal(t, []int{1, 2, 0}, []int{res.Transparent[0].Object, res.Transparent[1].Object, res.Transparent[2].Object})
	assert.Equal(t, uint32(1), res.TransparentBase())

	// materials continue after the opaque list
	assert.Equal(t, uint32(1), res.TransparentInstances[0].MaterialIndex)
}

func TestTransparentByMeshWithoutSorting(t *testing.T) {
	entries := []Entry{
		object(model.MeshSphere, mgl32.Vec3{0, 0, 9}, 0.5),
		object(model.MeshCube, mgl32.Vec3{0, 0, 1}, 0.5),
		object(model.MeshCube, mgl32.Vec3{0, 0, 5}, 0.5),
	}
	for _, active := range []technique.Type{technique.TypeWeightedBlended, technique.TypeAlphaBlend} {
		opts := Options{SortObjects: active != technique.TypeAlphaBlend}
		res, err := Compile(entries, mgl32.Vec3{}, active, opts)
		require.NoError(t, err)
		require.Len(t, res.Transparent, 2)
		assert.Equal(t, model.MeshCube, res.Transparent[0].Mesh)
		assert.Equal(t, uint32(2), res.Transparent[0].InstanceCount)
	}
}

func TestParticleSystemsNeverInstanced(t *testing.T) {
	entries := []Entry{
		particles(mgl32.Vec3{0, 0, 5}),
		particles(mgl32.Vec3{0, 0, 6}),
		object(model.MeshCube, mgl32.Vec3{0, 0, 7}, 0.5),
	}
	res, err := Compile(entries, mgl32.Vec3{}, technique.TypeWeightedBlended, Options{})
	require.NoError(t, err)
	require.Len(t, res.Transparent, 3)
	for _, c := range res.Transparent {
		assert.Equal(t, uint32(1), c.InstanceCount)
	}
	assert.True(t, res.Transparent[1].Particles)
	assert.True(t, res.Transparent[2].Particles)
	assert.Empty(t, res.ParticleOrders)

	// particle world transforms are identity since billboards are emitted in world space
	assert.Equal(t, [16]float32(mgl32.Ident4()), res.TransparentInstances[1].World)
}

func TestParticleOrdersOnlyForSortedAlphaBlend(t *testing.T) {
	entries := []Entry{particles(mgl32.Vec3{0, 0, 5})}
	res, err := Compile(entries, mgl32.Vec3{}, technique.TypeAlphaBlend, Options{SortObjects: true, SortParticles: true})
	require.NoError(t, err)
	order, ok := res.ParticleOrders[0]
	require.True(t, ok)
	assert.Len(t, order, entries[0].Particles.Live())

	positions := particle.WorldPositions(entries[0].Particles, entries[0].Position)
	for i := 1; i < len(order); i++ {
		a, b := positions[order[i-1]], positions[order[i]]
		assert.GreaterOrEqual(t, a.Dot(a), b.Dot(b))
	}
}

func TestCompileRejectsMalformedEntries(t *testing.T) {
	bad := object(model.MeshCube, mgl32.Vec3{}, 0.5)
	bad.Material.Color[0] = -1
	_, err := Compile([]Entry{bad}, mgl32.Vec3{}, technique.TypeWeightedBlended, Options{})
	assert.Error(t, err)

	orphan := object(model.MeshParticles, mgl32.Vec3{}, 0.5)
	_, err = Compile([]Entry{orphan}, mgl32.Vec3{}, technique.TypeWeightedBlended, Options{})
	assert.Error(t, err)
}

func TestCapacityPanics(t *testing.T) {
	entries := make([]Entry, 4)
	for i := range entries {
		entries[i] = object(model.MeshCube, mgl32.Vec3{}, 1)
	}
	assert.Panics(t, func() {
		_, _ = Compile(entries, mgl32.Vec3{}, technique.TypeWeightedBlended, Options{MaxObjects: 4})
	})
	assert.NotPanics(t, func() {
		_, _ = Compile(entries[:3], mgl32.Vec3{}, technique.TypeWeightedBlended, Options{MaxObjects: 4})
	})
}

func TestOptionsFor(t *testing.T) {
	params := technique.DefaultParams()
	params.AlphaBlend.SortParticles = false
	opts := OptionsFor(params)
	assert.True(t, opts.SortObjects)
	assert.False(t, opts.SortParticles)
}
