package shader

// shaderConfig holds construction-only settings for NewShader.
type shaderConfig struct {
	pp PreProcessor
}

// ShaderBuilderOption is a functional option applied by NewShader.
type ShaderBuilderOption func(*shaderConfig)

// WithPreProcessor replaces the default pre-processor, typically one with extra chunks registered.
//
// Parameters:
//   - pp: the pre-processor to use
//
// Returns:
//   - ShaderBuilderOption: option function to apply
func WithPreProcessor(pp PreProcessor) ShaderBuilderOption {
	return func(c *shaderConfig) {
		c.pp = pp
	}
}

// WithChunk registers an additional include chunk on the shader's pre-processor.
//
// Parameters:
//   - name: the include name
//   - source: the WGSL text
//
// Returns:
//   - ShaderBuilderOption: option function to apply
func WithChunk(name, source string) ShaderBuilderOption {
	return func(c *shaderConfig) {
		c.pp.RegisterChunk(name, source)
	}
}
