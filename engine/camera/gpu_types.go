package camera

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (160 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Matches the WGSL CameraUniform struct layout exactly (see GPUCameraUniformSource).
type GPUCameraUniform struct {
	ViewProj [16]float32 // offset   0: combined view-projection matrix
	View     [16]float32 // offset  64: view matrix
	ClipInfo [4]float32  // offset 128: (n*f, n-f, f, 0)
	Position [4]float32  // offset 144: world-space camera position, w = 1
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal returns a byte view of the uniform suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	return common.StructToBytes(g)
}
