package wboit

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

// GPUWeightUniform holds the weight function parameters of the accumulation shader (32 bytes).
//
// Standard layout: A = (colorResistance, rangeAdjustment, depthRange, orderingStrength),
// B = (underflowLimit, overflowLimit, far, 0).
//
// Volition layout: A = (opacitySensitivity, weightBias, precisionScalar, maximumWeight),
// B = (maximumColorValue, additiveSensitivity, emissiveSensitivity, far).
type GPUWeightUniform struct {
	A [4]float32
	B [4]float32
}

// Size returns the size of the uniform in bytes.
func (g *GPUWeightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal returns a byte view of the uniform suitable for GPU upload.
func (g *GPUWeightUniform) Marshal() []byte {
	return common.StructToBytes(g)
}

// NewWeightUniform packs the parameters of the standard or Volition weight function.
func NewWeightUniform(params technique.Params, volition bool, far float32) GPUWeightUniform {
	if volition {
		p := params.Volition
		return GPUWeightUniform{
			A: [4]float32{p.OpacitySensitivity, p.WeightBias, p.PrecisionScalar, p.MaximumWeight},
			B: [4]float32{p.MaximumColorValue, p.AdditiveSensitivity, p.EmissiveSensitivity, far},
		}
	}
	p := params.WBOIT
	return GPUWeightUniform{
		A: [4]float32{p.ColorResistance, p.RangeAdjustment, p.DepthRange, p.OrderingStrength},
		B: [4]float32{p.UnderflowLimit, p.OverflowLimit, far, 0},
	}
}
