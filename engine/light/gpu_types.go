package light

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
)

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (112 bytes).
//
//go:embed assets/light_uniform.wgsl
var GPULightUniformSource string

// GPULightUniform is the GPU-aligned representation of the directional light uniform.
type GPULightUniform struct {
	ViewProj  [16]float32 // offset  0: light orthographic view-projection
	Direction [4]float32  // offset 64: normalized travel direction
	Color     [4]float32  // offset 80: color * intensity, ambient in w
	Position  [4]float32  // offset 96: world-space position of the shadow camera
}

// Size returns the size of the GPULightUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (g *GPULightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal returns a byte view of the uniform suitable for GPU upload.
func (g *GPULightUniform) Marshal() []byte {
	return common.StructToBytes(g)
}

// GPUBlurUniform carries the separable blur direction and kernel for the shadow blur passes.
type GPUBlurUniform struct {
	Axis    [4]float32 // offset  0: texel step in xy, radius in z
	Weights [4][4]float32
}

// Marshal returns a byte view of the uniform suitable for GPU upload.
func (g *GPUBlurUniform) Marshal() []byte {
	return common.StructToBytes(g)
}
