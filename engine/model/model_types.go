package model

import "fmt"

// MeshID identifies a mesh shared by any number of objects. The draw-call compiler groups
// instances by MeshID.
type MeshID int

const (
	MeshCube MeshID = iota
	MeshSphere
	MeshPlane
	// MeshParticles marks an object whose geometry is its particle system's billboards.
	MeshParticles

	// MeshCount is the number of built-in meshes.
	MeshCount
)

// MeshImported is the first id available to imported meshes. Imported meshes are numbered
// upward from it.
const MeshImported = MeshCount

// IsImported reports whether id names an imported mesh.
func (id MeshID) IsImported() bool {
	return id >= MeshImported
}

func (id MeshID) String() string {
	switch id {
	case MeshCube:
		return "cube"
	case MeshSphere:
		return "sphere"
	case MeshPlane:
		return "plane"
	case MeshParticles:
		return "particles"
	}
	if id.IsImported() {
		return fmt.Sprintf("imported%d", int(id-MeshImported))
	}
	return fmt.Sprintf("MeshID(%d)", int(id))
}

// MeshData is CPU-side indexed geometry ready for upload.
type MeshData struct {
	Vertices []GPUVertex
	Indices  []uint32
}

// BoundingRadius returns the distance from the origin to the farthest vertex.
func (m MeshData) BoundingRadius() float32 {
	var r2 float32
	for _, v := range m.Vertices {
		d := v.Position[0]*v.Position[0] + v.Position[1]*v.Position[1] + v.Position[2]*v.Position[2]
		r2 = max(r2, d)
	}
	return sqrt32(r2)
}
