package material

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
)

// GPUMaterialSource is the canonical WGSL definition of the Material struct and its texture
// helpers. Matches GPUMaterial layout exactly (80 bytes).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterial is the GPU-aligned representation of one entry in the material storage buffer.
type GPUMaterial struct {
	Color           [4]float32 // offset  0
	Transmission    [4]float32 // offset 16: rgb transmission, w unused
	RefractionRatio float32    // offset 32
	Collimation     float32    // offset 36
	_pad0           [2]float32 // offset 40
	TextureFlags    uint32     // offset 48
	Albedo          uint32     // offset 52
	Metallic        uint32     // offset 56
	Roughness       uint32     // offset 60
	Emissive        uint32     // offset 64
	_pad1           [3]uint32  // offset 68: padding to 80 bytes
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalMaterials packs a material list into a storage buffer payload.
//
// Parameters:
//   - materials: materials in instance order
//
// Returns:
//   - []byte: the packed buffer contents
func MarshalMaterials(materials []GPUMaterial) []byte {
	return common.SliceToBytes(materials)
}
