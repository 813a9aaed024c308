package pipeline

// BlendFactor is a source or destination factor of a blend equation.
type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorSrc
	BlendFactorOneMinusSrc
	BlendFactorDst
	BlendFactorOneMinusDst
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
)

// BlendOperation combines the weighted source and destination.
type BlendOperation int

const (
	BlendOperationAdd BlendOperation = iota
	BlendOperationSubtract
	BlendOperationMin
	BlendOperationMax
)

// BlendComponent is the blend equation for the color or alpha channels.
type BlendComponent struct {
	SrcFactor BlendFactor
	DstFactor BlendFactor
	Operation BlendOperation
}

// BlendState holds separate equations for color and alpha.
type BlendState struct {
	Color BlendComponent
	Alpha BlendComponent
}

var blendComponentAdd = BlendComponent{
	SrcFactor: BlendFactorOne,
	DstFactor: BlendFactorOne,
	Operation: BlendOperationAdd,
}

// BlendStateAdd sums source and destination. Used by weighted accumulation targets.
var BlendStateAdd = BlendState{
	Color: blendComponentAdd,
	Alpha: blendComponentAdd,
}

// BlendStateAlphaBlending is straight alpha "over" compositing.
var BlendStateAlphaBlending = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorSrcAlpha, DstFactor: BlendFactorOneMinusSrcAlpha},
	Alpha: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOneMinusSrcAlpha},
}

// BlendStatePremultiplied is "over" compositing for premultiplied color.
var BlendStatePremultiplied = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOneMinusSrcAlpha},
	Alpha: BlendComponent{SrcFactor: BlendFactorOne, DstFactor: BlendFactorOneMinusSrcAlpha},
}

// BlendStateRevealage multiplies the destination by one minus the source, accumulating the
// product of (1 - alpha) over every fragment.
var BlendStateRevealage = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorOneMinusSrc},
	Alpha: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorOneMinusSrc},
}

// BlendStateModulate multiplies the destination by the source color.
var BlendStateModulate = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorSrc},
	Alpha: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorSrc},
}

// BlendStateAbsorb multiplies the destination color by one minus the source color and sums alpha.
// The color channels accumulate transmittance while alpha accumulates an unbounded amount.
var BlendStateAbsorb = BlendState{
	Color: BlendComponent{SrcFactor: BlendFactorZero, DstFactor: BlendFactorOneMinusSrc},
	Alpha: blendComponentAdd,
}

// Apply evaluates the blend equation on one channel. It mirrors what fixed-function blending does
// and lets CPU reference models and the headless backend share the pipeline's blend setup.
//
// Parameters:
//   - c: the component to evaluate
//   - src: source channel value
//   - dst: destination channel value
//   - srcAlpha: source alpha
//   - dstAlpha: destination alpha
//
// Returns:
//   - float32: the blended value
func (c BlendComponent) Apply(src, dst, srcAlpha, dstAlpha float32) float32 {
	s := src * c.SrcFactor.eval(src, dst, srcAlpha, dstAlpha)
	d := dst * c.DstFactor.eval(src, dst, srcAlpha, dstAlpha)
	switch c.Operation {
	case BlendOperationSubtract:
		return s - d
	case BlendOperationMin:
		return min(src, dst)
	case BlendOperationMax:
		return max(src, dst)
	}
	return s + d
}

// Apply blends an RGBA source into an RGBA destination.
func (b BlendState) Apply(src, dst [4]float32) [4]float32 {
	var out [4]float32
	for i := range 3 {
		out[i] = b.Color.Apply(src[i], dst[i], src[3], dst[3])
	}
	out[3] = b.Alpha.Apply(src[3], dst[3], src[3], dst[3])
	return out
}

func (f BlendFactor) eval(src, dst, srcAlpha, dstAlpha float32) float32 {
	switch f {
	case BlendFactorZero:
		return 0
	case BlendFactorOne:
		return 1
	case BlendFactorSrcAlpha:
		return srcAlpha
	case BlendFactorOneMinusSrcAlpha:
		return 1 - srcAlpha
	case BlendFactorSrc:
		return src
	case BlendFactorOneMinusSrc:
		return 1 - src
	case BlendFactorDst:
		return dst
	case BlendFactorOneMinusDst:
		return 1 - dst
	case BlendFactorDstAlpha:
		return dstAlpha
	case BlendFactorOneMinusDstAlpha:
		return 1 - dstAlpha
	}
	return 0
}
