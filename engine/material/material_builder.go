package material

// MaterialBuilderOption is a function that configures a material during construction.
type MaterialBuilderOption func(*Material)

// WithColor sets the base RGBA color of the material.
//
// Parameters:
//   - color: the base color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the color option to a material
func WithColor(color [4]float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Color = color
	}
}

// WithTransmission sets the per-channel transmission of the material.
//
// Parameters:
//   - t: RGB transmission in [0, 1]
//
// Returns:
//   - MaterialBuilderOption: a function that applies the transmission option to a material
func WithTransmission(t [3]float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Transmission = t
	}
}

// WithRefraction sets the refraction ratio and collimation of the material.
//
// Parameters:
//   - ratio: ratio of indices of refraction
//   - collimation: 0 (diffuse) to 1 (collimated)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the refraction option to a material
func WithRefraction(ratio, collimation float32) MaterialBuilderOption {
	return func(m *Material) {
		m.RefractionRatio = ratio
		m.Collimation = collimation
	}
}

// WithAlbedoPattern enables the albedo texture slot with a procedural pattern.
func WithAlbedoPattern(p Pattern) MaterialBuilderOption {
	return func(m *Material) {
		m.TextureFlags |= TextureFlagAlbedo
		m.Albedo = p
	}
}

// WithEmissivePattern enables the emissive texture slot with a procedural pattern.
func WithEmissivePattern(p Pattern) MaterialBuilderOption {
	return func(m *Material) {
		m.TextureFlags |= TextureFlagEmissive
		m.Emissive = p
	}
}
