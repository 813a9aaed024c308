package bind_group_provider

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// AllMips selects a view over every mip level of a texture.
const AllMips = -1

// Entry is a single resolved binding of a provider. Exactly one of Texture, Buffer or Sampler is
// meaningful, selected by Kind.
type Entry struct {
	Binding int
	Kind    EntryKind

	Texture  *resource.Texture
	MipLevel int

	Buffer *resource.Buffer
	Offset uint64
	Size   uint64

	Sampler resource.SamplerKind
}

// EntryKind identifies which field of an Entry is populated.
type EntryKind int

const (
	EntryKindBuffer EntryKind = iota
	EntryKindTexture
	EntryKindSampler
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// version increases with every binding change so backends can rebuild their native bind group lazily.
	version uint64

	entries map[int]Entry

	// The following fields are specific to geometry providers.

	vertexBuffer *resource.Buffer
	indexBuffer  *resource.Buffer
	indexCount   int
}

// BindGroupProvider describes a group of GPU resources bound together at one bind group index.
// Techniques and scene components fill providers with backend-neutral handles; the backend turns
// them into native bind groups when a pass binds them.
//
// Usage pattern:
//  1. Owner creates a provider with NewBindGroupProvider and the With* options
//  2. Owner swaps bindings with the Set* methods whenever the underlying resources are reallocated
//  3. Pass recording binds it with CommandRecorder.SetBindGroup
type BindGroupProvider interface {
	// Release drops every binding held by this provider. The resources themselves are owned
	// elsewhere and are not destroyed.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Version returns a counter that changes whenever a binding changes.
	//
	// Returns:
	//   - uint64: the current version
	Version() uint64

	// SetBuffer binds a whole buffer at the given binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to bind
	SetBuffer(binding int, buf *resource.Buffer)

	// SetBufferRange binds a byte range of a buffer at the given binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to bind
	//   - offset: byte offset of the range
	//   - size: byte size of the range
	SetBufferRange(binding int, buf *resource.Buffer, offset, size uint64)

	// SetTexture binds a view over every mip of a texture at the given binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tex: the texture to bind
	SetTexture(binding int, tex *resource.Texture)

	// SetTextureMip binds a view over a single mip level of a texture.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tex: the texture to bind
	//   - mip: the mip level of the view
	SetTextureMip(binding int, tex *resource.Texture, mip int)

	// SetSampler binds one of the backend's fixed samplers.
	//
	// Parameters:
	//   - binding: the binding index
	//   - kind: the sampler to bind
	SetSampler(binding int, kind resource.SamplerKind)

	// Buffer returns the buffer bound at binding, or nil.
	Buffer(binding int) *resource.Buffer

	// Texture returns the texture bound at binding, or nil.
	Texture(binding int) *resource.Texture

	// Entries returns every binding ordered by binding index.
	//
	// Returns:
	//   - []Entry: the bindings of this provider
	Entries() []Entry

	// References reports whether any binding or geometry buffer of this provider refers to the
	// resource with the given ID.
	References(id resource.ID) bool

	// SetVertexBuffer sets the vertex buffer used by draws that bind this provider.
	SetVertexBuffer(buf *resource.Buffer)

	// VertexBuffer returns the vertex buffer, or nil if not set.
	VertexBuffer() *resource.Buffer

	// SetIndexBuffer sets the index buffer and its index count.
	SetIndexBuffer(buf *resource.Buffer, count int)

	// IndexBuffer returns the index buffer, or nil if not set.
	IndexBuffer() *resource.Buffer

	// IndexCount returns the number of indices in the index buffer.
	IndexCount() int
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new empty BindGroupProvider and applies the given options.
//
// Parameters:
//   - options: functional options to configure the provider
//
// Returns:
//   - BindGroupProvider: the newly created provider
func NewBindGroupProvider(options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		entries: make(map[int]Entry),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Release() {
	clear(p.entries)
	p.vertexBuffer = nil
	p.indexBuffer = nil
	p.indexCount = 0
	p.version++
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Version() uint64 {
	return p.version
}

func (p *bindGroupProvider) set(e Entry) {
	p.entries[e.Binding] = e
	p.version++
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *resource.Buffer) {
	p.set(Entry{Binding: binding, Kind: EntryKindBuffer, Buffer: buf})
}

func (p *bindGroupProvider) SetBufferRange(binding int, buf *resource.Buffer, offset, size uint64) {
	p.set(Entry{Binding: binding, Kind: EntryKindBuffer, Buffer: buf, Offset: offset, Size: size})
}

func (p *bindGroupProvider) SetTexture(binding int, tex *resource.Texture) {
	p.set(Entry{Binding: binding, Kind: EntryKindTexture, Texture: tex, MipLevel: AllMips})
}

func (p *bindGroupProvider) SetTextureMip(binding int, tex *resource.Texture, mip int) {
	p.set(Entry{Binding: binding, Kind: EntryKindTexture, Texture: tex, MipLevel: mip})
}

func (p *bindGroupProvider) SetSampler(binding int, kind resource.SamplerKind) {
	p.set(Entry{Binding: binding, Kind: EntryKindSampler, Sampler: kind})
}

func (p *bindGroupProvider) Buffer(binding int) *resource.Buffer {
	e, ok := p.entries[binding]
	if !ok || e.Kind != EntryKindBuffer {
		return nil
	}
	return e.Buffer
}

func (p *bindGroupProvider) Texture(binding int) *resource.Texture {
	e, ok := p.entries[binding]
	if !ok || e.Kind != EntryKindTexture {
		return nil
	}
	return e.Texture
}

func (p *bindGroupProvider) Entries() []Entry {
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.Binding - b.Binding })
	return out
}

func (p *bindGroupProvider) References(id resource.ID) bool {
	for _, e := range p.entries {
		switch {
		case e.Kind == EntryKindBuffer && e.Buffer != nil && e.Buffer.ID == id:
			return true
		case e.Kind == EntryKindTexture && e.Texture != nil && e.Texture.ID == id:
			return true
		}
	}
	if p.vertexBuffer != nil && p.vertexBuffer.ID == id {
		return true
	}
	return p.indexBuffer != nil && p.indexBuffer.ID == id
}

func (p *bindGroupProvider) SetVertexBuffer(buf *resource.Buffer) {
	p.vertexBuffer = buf
	p.version++
}

func (p *bindGroupProvider) VertexBuffer() *resource.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) SetIndexBuffer(buf *resource.Buffer, count int) {
	p.indexBuffer = buf
	p.indexCount = count
	p.version++
}

func (p *bindGroupProvider) IndexBuffer() *resource.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}
