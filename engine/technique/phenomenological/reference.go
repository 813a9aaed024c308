package phenomenological

import (
	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/wboit"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Target formats.
const (
	ModulationFormat = resource.FormatRGBA8Unorm
	RefractionFormat = resource.FormatRG16Float
	DepthCopyFormat  = resource.FormatR32Float
)

// MaxDiffusionRadius is the blur radius, in pixels at full resolution, of a fully diffusing
// surface in front of a distant background.
const MaxDiffusionRadius float32 = 64

// RefractionStrength converts a view-space normal tilt into a screen-space offset in uv units.
const RefractionStrength float32 = 0.05

// ModulationClear is the "no absorption, no diffusion" value of the modulation target.
var ModulationClear = resource.Color{R: 1, G: 1, B: 1, A: 0}

// MipCount returns the number of levels of the background mip chain.
func MipCount(width, height uint32) int {
	return int(common.MipLevelCount(width, height))
}

// MipSizes returns the extent of every level of the background mip chain.
func MipSizes(width, height uint32) [][2]uint32 {
	n := MipCount(width, height)
	out := make([][2]uint32, n)
	for i := range out {
		out[i] = [2]uint32{max(width>>i, 1), max(height>>i, 1)}
	}
	return out
}

// Workgroups returns the dispatch size that covers a mip of the given extent with 16x16 groups.
func Workgroups(width, height uint32) (uint32, uint32) {
	return max((width+15)/16, 1), max((height+15)/16, 1)
}

// Diffusion returns the normalized blur amount a surface adds, in [0, 1]. It grows with the
// distance between the surface and the background behind it relative to the surface distance,
// and vanishes for collimated surfaces.
//
// Parameters:
//   - p: the technique parameters
//   - collimation: the material collimation, 1 keeps transmitted light sharp
//   - alpha: the surface coverage
//   - surfaceDepth: the view depth of the surface
//   - backgroundDepth: the view depth of the opaque surface behind it
//
// Returns:
//   - float32: the blur amount, scaled by MaxDiffusionRadius when compositing
func Diffusion(p technique.PhenomenologicalParams, collimation, alpha, surfaceDepth, backgroundDepth float32) float32 {
	gap := max(backgroundDepth-surfaceDepth, 0)
	if gap == 0 {
		return 0
	}
	return common.Saturate(alpha * (1 - collimation) * p.DiffusionScale * gap / (gap + max(surfaceDepth, 1e-3)))
}

// SelectMip returns the level of detail a blur amount samples the background at.
//
// Parameters:
//   - diffusion: the accumulated blur amount from the modulation alpha
//   - mipCount: the number of levels of the background
//
// Returns:
//   - float32: the fractional level in [0, mipCount-1]
func SelectMip(diffusion float32, mipCount int) float32 {
	radius := max(diffusion*MaxDiffusionRadius, 1)
	return common.Clamp(math32.Log2(radius), 0, float32(max(mipCount-1, 0)))
}

// RefractionOffset returns the screen-space uv offset a refracting surface adds.
//
// Parameters:
//   - p: the technique parameters
//   - viewNormal: the surface normal in view space
//   - ratio: the material refraction ratio, 1 does not bend light
//   - alpha: the surface coverage
//
// Returns:
//   - mgl32.Vec2: the offset added to the background lookup
func RefractionOffset(p technique.PhenomenologicalParams, viewNormal mgl32.Vec3, ratio, alpha float32) mgl32.Vec2 {
	k := (ratio - 1) * p.RefractionScale * alpha * RefractionStrength
	return mgl32.Vec2{viewNormal[0] * k, viewNormal[1] * k}
}

// Surface is a shaded transparent surface sample.
type Surface struct {
	Color        mgl32.Vec3
	Alpha        float32
	Transmission mgl32.Vec3
	Depth        float32
	// Diffusion is the blur amount from Diffusion.
	Diffusion float32
	// Refraction is the offset from RefractionOffset.
	Refraction mgl32.Vec2
}

// Coverage is the share of the weighted color a surface contributes once the light it transmits
// is taken out.
func (s Surface) Coverage() float32 {
	t := (s.Transmission[0] + s.Transmission[1] + s.Transmission[2]) / 3
	return s.Alpha * (1 - common.Saturate(t))
}

// Outputs returns what a surface writes to the accumulation, modulation and refraction targets
// before blending.
func Outputs(params technique.Params, s Surface) (accum, modulation, refraction [4]float32) {
	w := wboit.Weight(params.WBOIT, s.Depth, s.Alpha)
	cw := s.Coverage() * w
	accum = [4]float32{s.Color[0] * cw, s.Color[1] * cw, s.Color[2] * cw, cw}
	for c := range 3 {
		modulation[c] = s.Alpha * (1 - common.Saturate(s.Transmission[c]))
	}
	modulation[3] = s.Diffusion
	refraction = [4]float32{s.Refraction[0], s.Refraction[1]}
	return accum, modulation, refraction
}

// Pixel is the CPU model of one pixel of the accumulation, modulation and refraction targets.
type Pixel struct {
	Accum      [4]float32
	Modulation [4]float32
	Refraction [2]float32
}

// NewPixel returns a pixel at the targets' clear values.
func NewPixel() Pixel {
	return Pixel{Modulation: [4]float32{1, 1, 1, 0}}
}

// Add blends one surface into the pixel with the targets' blend states and precision.
func (px *Pixel) Add(params technique.Params, s Surface) {
	accum, modulation, refraction := Outputs(params, s)
	px.Accum = technique.AccumulationFormat.Quantize(pipeline.BlendStateAdd.Apply(accum, px.Accum))
	px.Modulation = ModulationFormat.Quantize(pipeline.BlendStateAbsorb.Apply(modulation, px.Modulation))
	r := RefractionFormat.Quantize(pipeline.BlendStateAdd.Apply(refraction, [4]float32{px.Refraction[0], px.Refraction[1]}))
	px.Refraction = [2]float32{r[0], r[1]}
}

// Composite is the composite shader: the background seen through the surfaces, dimmed by their
// modulation, plus their weighted average color where they absorb light.
//
// Parameters:
//   - background: the background color looked up at the refracted position and blur level
//   - modulation: the modulation texel
//   - accum: the accumulation texel
//
// Returns:
//   - mgl32.Vec3: the final color
func Composite(background mgl32.Vec3, modulation, accum [4]float32) mgl32.Vec3 {
	d := max(accum[3], 1e-5)
	var out mgl32.Vec3
	for c := range 3 {
		out[c] = background[c]*modulation[c] + (1-modulation[c])*accum[c]/d
	}
	return out
}

// Resolve composites the pixel onto a background that does not vary with the lookup position.
func (px Pixel) Resolve(background mgl32.Vec3) mgl32.Vec3 {
	return Composite(background, px.Modulation, px.Accum)
}

// Untouched reports whether no surface absorbed light at the pixel, in which case the composite
// leaves the background as is.
func (px Pixel) Untouched() bool {
	return px.Modulation[0] >= 1 && px.Modulation[1] >= 1 && px.Modulation[2] >= 1
}
