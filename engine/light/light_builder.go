package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a functional option applied by NewLight.
type LightBuilderOption func(*lightImpl)

// WithPosition sets the light's position.
//
// Parameters:
//   - p: world-space position of the shadow camera
//
// Returns:
//   - LightBuilderOption: option function to apply
func WithPosition(p mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = p
	}
}

// WithTarget sets the point the light looks at.
func WithTarget(t mgl32.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		l.target = t
	}
}

// WithColor sets the light color and intensity.
//
// Parameters:
//   - c: linear RGB color
//   - intensity: scalar multiplier
//
// Returns:
//   - LightBuilderOption: option function to apply
func WithColor(c mgl32.Vec3, intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = c
		l.intensity = intensity
	}
}

// WithAmbient sets the ambient factor applied to unlit surfaces.
func WithAmbient(ambient float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.ambient = ambient
	}
}
