package phenomenological

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

// GPUShadeUniform holds the parameters of the shade pass (48 bytes).
//
// A = (colorResistance, rangeAdjustment, depthRange, orderingStrength),
// B = (underflowLimit, overflowLimit, refractionScale, diffusionScale),
// C = (maxDiffusionRadius, refractionStrength, 0, 0).
type GPUShadeUniform struct {
	A [4]float32
	B [4]float32
	C [4]float32
}

// Size returns the size of the uniform in bytes.
func (g *GPUShadeUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal returns a byte view of the uniform suitable for GPU upload.
func (g *GPUShadeUniform) Marshal() []byte {
	return common.StructToBytes(g)
}

// NewShadeUniform packs the weight function and the Phenomenological parameters.
func NewShadeUniform(params technique.Params) GPUShadeUniform {
	w, p := params.WBOIT, params.Phenomenological
	return GPUShadeUniform{
		A: [4]float32{w.ColorResistance, w.RangeAdjustment, w.DepthRange, w.OrderingStrength},
		B: [4]float32{w.UnderflowLimit, w.OverflowLimit, p.RefractionScale, p.DiffusionScale},
		C: [4]float32{MaxDiffusionRadius, RefractionStrength, 0, 0},
	}
}
