package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinMeshesAreIndexedTriangles(t *testing.T) {
	for _, id := range []MeshID{MeshCube, MeshSphere, MeshPlane} {
		data, ok := Builtin(id)
		require.True(t, ok, id.String())
		assert.Zero(t, len(data.Indices)%3, id.String())
		for _, idx := range data.Indices {
			assert.Less(t, int(idx), len(data.Vertices), id.String())
		}
	}
	_, ok := Builtin(MeshParticles)
	assert.False(t, ok)
}

func TestCubeBoundingRadius(t *testing.T) {
	m := NewBuiltin(MeshCube)
	assert.InDelta(t, 0.866, m.BoundingRadius(), 1e-3)
	assert.Equal(t, 36, m.IndexCount())
	assert.Equal(t, "cube", m.Name())
}

func TestGPULayoutSizes(t *testing.T) {
	var v GPUVertex
	var i GPUInstanceData
	assert.Equal(t, 32, v.Size())
	assert.Equal(t, 144, i.Size())
}
