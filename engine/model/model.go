package model

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
)

// model is the implementation of the Model interface.
type model struct {
	id             MeshID
	name           string
	mesh           MeshData
	meshProvider   bind_group_provider.BindGroupProvider
	boundingRadius float32
}

// Model is a mesh shared by any number of scene objects. It holds the CPU geometry and, once
// uploaded, a BindGroupProvider carrying the vertex and index buffers.
type Model interface {
	// ID returns the mesh identifier used for draw-call grouping.
	//
	// Returns:
	//   - MeshID: the mesh id
	ID() MeshID

	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Mesh returns the CPU geometry.
	//
	// Returns:
	//   - MeshData: vertices and indices
	Mesh() MeshData

	// IndexCount returns the number of indices drawn per instance.
	IndexCount() int

	// BoundingRadius returns the radius of the sphere around the origin enclosing the mesh.
	BoundingRadius() float32

	// MeshProvider retrieves the BindGroupProvider holding GPU mesh resources.
	// Returns nil until the mesh has been uploaded.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the mesh provider
	MeshProvider() bind_group_provider.BindGroupProvider

	// SetMeshProvider replaces the GPU mesh resources, e.g. after a device rebuild.
	//
	// Parameters:
	//   - p: the provider holding the uploaded buffers
	SetMeshProvider(p bind_group_provider.BindGroupProvider)
}

var _ Model = &model{}

// NewModel creates a Model from the given options. The bounding radius is derived from the mesh
// unless set explicitly.
//
// Parameters:
//   - options: functional options to configure the model
//
// Returns:
//   - Model: the new model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	if m.boundingRadius == 0 {
		m.boundingRadius = m.mesh.BoundingRadius()
	}
	if m.name == "" {
		m.name = m.id.String()
	}
	return m
}

// NewBuiltin creates the Model for a built-in mesh id.
//
// Parameters:
//   - id: one of MeshCube, MeshSphere or MeshPlane
//
// Returns:
//   - Model: the model, or nil if id has no static geometry
func NewBuiltin(id MeshID) Model {
	data, ok := Builtin(id)
	if !ok {
		return nil
	}
	return NewModel(WithID(id), WithMeshData(data))
}

func (m *model) ID() MeshID {
	return m.id
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() MeshData {
	return m.mesh
}

func (m *model) IndexCount() int {
	return len(m.mesh.Indices)
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.meshProvider
}

func (m *model) SetMeshProvider(p bind_group_provider.BindGroupProvider) {
	m.meshProvider = p
}
