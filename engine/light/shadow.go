package light

import (
	"github.com/chewxy/math32"
)

// ShadowMapResolution is the width and height in texels of the variance shadow map.
const ShadowMapResolution = 1024

// Orthographic extents of the directional light's shadow frustum.
const (
	ShadowHalfExtent float32 = 50
	ShadowNear       float32 = -100
	ShadowFar        float32 = 100
)

// BlurRadius is the half-width in texels of the separable gaussian applied to the variance maps.
const BlurRadius = 7

// GaussianWeights returns the normalized one-sided weights of a gaussian kernel with the given
// radius. Index 0 is the center tap; the full kernel is symmetric, so the weights satisfy
// w[0] + 2*sum(w[1:]) == 1.
//
// Parameters:
//   - radius: number of taps on each side of the center
//   - sigma: standard deviation in texels
//
// Returns:
//   - []float32: radius+1 weights
func GaussianWeights(radius int, sigma float32) []float32 {
	if radius < 0 {
		radius = 0
	}
	weights := make([]float32, radius+1)
	var sum float32
	for i := range weights {
		x := float32(i)
		weights[i] = math32.Exp(-(x * x) / (2 * sigma * sigma))
		if i == 0 {
			sum += weights[i]
		} else {
			sum += 2 * weights[i]
		}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// BlurUniform packs a blur axis and the kernel into a GPUBlurUniform.
//
// Parameters:
//   - axis: 0 for horizontal, 1 for vertical
//   - size: the texture size along the blurred axis in texels
//
// Returns:
//   - GPUBlurUniform: the packed uniform
func BlurUniform(axis int, size uint32) GPUBlurUniform {
	var u GPUBlurUniform
	step := 1 / float32(size)
	if axis == 0 {
		u.Axis = [4]float32{step, 0, BlurRadius, 0}
	} else {
		u.Axis = [4]float32{0, step, BlurRadius, 0}
	}
	for i, w := range GaussianWeights(BlurRadius, float32(BlurRadius)/2) {
		u.Weights[i/4][i%4] = w
	}
	return u
}
