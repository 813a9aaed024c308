package wboit

import (
	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// RevealageFormat is the format of the revealage target.
const RevealageFormat = resource.FormatR8Unorm

// VolitionMinWeight is the lower clamp of the Volition weight.
const VolitionMinWeight float32 = 1e-5

// Weight is the depth and alpha weight of the standard weighted blended function.
//
// Parameters:
//   - p: the weight parameters
//   - depth: the fragment's view depth, negative values are treated as 0
//   - alpha: the fragment's coverage in [0, 1]
//
// Returns:
//   - float32: the weight, within [p.UnderflowLimit, p.OverflowLimit]
func Weight(p technique.WBOITParams, depth, alpha float32) float32 {
	depth = max(depth, 0)
	w := math32.Pow(alpha, p.ColorResistance) * p.RangeAdjustment /
		(1e-5 + math32.Pow(depth/p.DepthRange, p.OrderingStrength))
	return common.Clamp(w, p.UnderflowLimit, p.OverflowLimit)
}

// Additiveness is how much of a fragment is emitted light rather than coverage.
func Additiveness(p technique.VolitionParams, emissive mgl32.Vec3) float32 {
	return common.Saturate(p.EmissiveSensitivity * common.Luminance(emissive))
}

// VolitionWeight is the weight of the Volition variant. Depth is normalized by the far plane and
// additive fragments get their weight boosted by 1 + additive*AdditiveSensitivity.
//
// Parameters:
//   - p: the Volition parameters
//   - depth: the fragment's view depth
//   - far: the camera far plane
//   - alpha: the fragment's coverage in [0, 1]
//   - additive: the fragment's additiveness in [0, 1]
//
// Returns:
//   - float32: the weight, within [VolitionMinWeight, p.MaximumWeight]
func VolitionWeight(p technique.VolitionParams, depth, far, alpha, additive float32) float32 {
	var d float32
	if far > 0 {
		d = common.Saturate(depth / far)
	}
	w := math32.Pow(alpha, p.OpacitySensitivity) * p.PrecisionScalar * math32.Pow(1-d, p.WeightBias)
	w *= 1 + additive*p.AdditiveSensitivity
	return common.Clamp(w, VolitionMinWeight, p.MaximumWeight)
}

// Fragment is a shaded transparent fragment as the accumulation shader sees it.
type Fragment struct {
	Color    mgl32.Vec3
	Alpha    float32
	Depth    float32
	Emissive mgl32.Vec3
}

// Contribution returns what a fragment writes to the accumulation and revealage targets before
// blending.
//
// Parameters:
//   - params: the technique parameters
//   - volition: selects the Volition weight function
//   - far: the camera far plane, used by Volition only
//   - f: the fragment
//
// Returns:
//   - [4]float32: the accumulation output (rgb * alpha * w, alpha * w)
//   - [4]float32: the revealage output, coverage in the red channel
func Contribution(params technique.Params, volition bool, far float32, f Fragment) ([4]float32, [4]float32) {
	color, coverage := f.Color, f.Alpha
	var w float32
	if volition {
		p := params.Volition
		additive := Additiveness(p, f.Emissive)
		color = mgl32.Vec3{min(color[0], p.MaximumColorValue), min(color[1], p.MaximumColorValue), min(color[2], p.MaximumColorValue)}
		coverage = f.Alpha * (1 - additive)
		w = VolitionWeight(p, f.Depth, far, f.Alpha, additive)
	} else {
		w = Weight(params.WBOIT, f.Depth, f.Alpha)
	}
	aw := f.Alpha * w
	return [4]float32{color[0] * aw, color[1] * aw, color[2] * aw, aw}, [4]float32{coverage, coverage, coverage, coverage}
}

// Pixel is the CPU model of one pixel of the two accumulation targets. It applies the same blend
// equations and the same storage precision as the GPU targets.
type Pixel struct {
	Accum     [4]float32
	Revealage float32
}

// NewPixel returns a pixel at the targets' clear values.
func NewPixel() Pixel {
	return Pixel{Revealage: 1}
}

// Add blends one fragment's outputs into the pixel.
func (px *Pixel) Add(accum, reveal [4]float32) {
	px.Accum = technique.AccumulationFormat.Quantize(pipeline.BlendStateAdd.Apply(accum, px.Accum))
	r := pipeline.BlendStateRevealage.Apply(reveal, [4]float32{px.Revealage})
	px.Revealage = RevealageFormat.Quantize(r)[0]
}

// AddFragment shades and blends a fragment.
func (px *Pixel) AddFragment(params technique.Params, volition bool, far float32, f Fragment) {
	px.Add(Contribution(params, volition, far, f))
}

// Resolve returns the straight-alpha color the resolve pass writes.
func (px Pixel) Resolve() [4]float32 {
	return ResolveTexels(px.Accum, px.Revealage)
}

// ResolveTexels is the resolve shader: average color weighted by the accumulated weights, and a
// coverage of one minus the revealage.
func ResolveTexels(accum [4]float32, revealage float32) [4]float32 {
	d := max(accum[3], 1e-5)
	return [4]float32{accum[0] / d, accum[1] / d, accum[2] / d, 1 - revealage}
}

// Over composites the resolved pixel onto an opaque background with src-alpha blending.
func (px Pixel) Over(background [4]float32) [4]float32 {
	return pipeline.BlendStateAlphaBlending.Apply(px.Resolve(), background)
}
