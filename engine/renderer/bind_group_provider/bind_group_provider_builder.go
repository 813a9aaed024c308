package bind_group_provider

import "github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithLabel sets the debug label of the provider.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - BindGroupProviderOption: a function that sets the label
func WithLabel(label string) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.label = label
	}
}

// WithBuffer sets a buffer for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf *resource.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.SetBuffer(binding, buf)
	}
}

// WithTexture sets a full texture view for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this texture
//   - tex: the texture to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture for the specified binding
func WithTexture(binding int, tex *resource.Texture) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.SetTexture(binding, tex)
	}
}

// WithSampler sets one of the backend's fixed samplers for a specific binding index.
func WithSampler(binding int, kind resource.SamplerKind) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.SetSampler(binding, kind)
	}
}

// WithVertexBuffer sets the vertex buffer of a geometry provider.
func WithVertexBuffer(buf *resource.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.vertexBuffer = buf
	}
}

// WithIndexBuffer sets the index buffer and index count of a geometry provider.
func WithIndexBuffer(buf *resource.Buffer, count int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.indexBuffer = buf
		p.indexCount = count
	}
}
