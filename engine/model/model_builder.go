package model

import "github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"

// ModelBuilderOption is a functional option applied by NewModel.
type ModelBuilderOption func(*model)

// WithID sets the mesh identifier of the model.
//
// Parameters:
//   - id: the mesh id
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithID(id MeshID) ModelBuilderOption {
	return func(m *model) {
		m.id = id
	}
}

// WithName sets the model name.
//
// Parameters:
//   - name: the model name
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithMeshData sets the CPU geometry of the model.
func WithMeshData(data MeshData) ModelBuilderOption {
	return func(m *model) {
		m.mesh = data
	}
}

// WithMeshProvider sets the provider holding the uploaded vertex and index buffers.
func WithMeshProvider(p bind_group_provider.BindGroupProvider) ModelBuilderOption {
	return func(m *model) {
		m.meshProvider = p
	}
}

// WithBoundingRadius overrides the bounding radius derived from the mesh.
//
// Parameters:
//   - radius: the bounding sphere radius
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}
