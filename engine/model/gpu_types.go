package model

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct.
// Matches GPUVertex layout exactly (32 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU representation of a single mesh vertex.
type GPUVertex struct {
	Position [3]float32 // offset  0
	Normal   [3]float32 // offset 12
	TexCoord [2]float32 // offset 24
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (32)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// GPUInstanceDataSource is the canonical WGSL definition of the InstanceData struct.
// Matches GPUInstanceData layout exactly (144 bytes).
//
//go:embed assets/instance_data.wgsl
var GPUInstanceDataSource string

// GPUInstanceData is one entry of the per-instance storage buffer indexed by instance_index.
type GPUInstanceData struct {
	World         [16]float32 // offset   0: T * Rz * Ry * Rx * S
	Normal        [16]float32 // offset  64: Rz * Ry * Rx
	MaterialIndex uint32      // offset 128: index into the material buffer
	_pad          [3]uint32   // offset 132: padding to 144 bytes
}

// Size returns the size of the GPUInstanceData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (144)
func (g *GPUInstanceData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalVertices packs vertices for a vertex buffer upload.
func MarshalVertices(v []GPUVertex) []byte {
	return common.SliceToBytes(v)
}

// MarshalIndices packs 32-bit indices for an index buffer upload.
func MarshalIndices(i []uint32) []byte {
	return common.SliceToBytes(i)
}

// MarshalInstances packs instance records for a storage buffer upload.
func MarshalInstances(i []GPUInstanceData) []byte {
	return common.SliceToBytes(i)
}
