package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoMaterialsAreValid(t *testing.T) {
	for i, o := range append(demoObjects(), demoParticles()...) {
		assert.NoError(t, o.material.Validate(), "object %d", i)
	}
}

func TestBuildSceneLayout(t *testing.T) {
	objects := buildScene(64, false)
	require.Len(t, objects, len(demoObjects())+len(demoParticles()))

	var opaque, transparent, particles int
	for _, obj := range objects {
		switch {
		case obj.Particles() != nil:
			particles++
			assert.Equal(t, model.MeshParticles, obj.Mesh())
		case obj.Material().IsTransparent():
			transparent++
		default:
			opaque++
		}
	}
	assert.Equal(t, 2, particles)
	// ground, the alpha-one cube column, the two small cards and the grid backdrop
	assert.Equal(t, 1+cubesPerRow+2+1, opaque)
	assert.Greater(t, transparent, opaque)
	assert.Less(t, len(objects), draw_call.DefaultMaxObjects)
}

func TestDemoSceneCompiles(t *testing.T) {
	var entries []draw_call.Entry
	for _, obj := range buildScene(64, true) {
		entries = append(entries, obj.Entry())
	}
	for _, active := range technique.Types() {
		res, err := draw_call.Compile(entries, mgl32.Vec3{0, 5, -15}, active, draw_call.Options{SortObjects: true, SortParticles: true})
		require.NoError(t, err, active.String())
		assert.NotEmpty(t, res.Opaque, active.String())
		assert.NotEmpty(t, res.Transparent, active.String())
	}
}

func TestImportedObjectIsOptional(t *testing.T) {
	with := buildScene(8, true)
	without := buildScene(8, false)
	require.Len(t, with, len(without)+1)

	var found bool
	for _, obj := range with {
		found = found || obj.Mesh() == model.MeshImported
	}
	assert.True(t, found)
}
