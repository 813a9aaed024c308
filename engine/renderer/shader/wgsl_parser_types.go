package shader

// BindingKind classifies a resource binding declared in WGSL source.
type BindingKind int

const (
	BindingKindUniform BindingKind = iota
	BindingKindStorageRead
	BindingKindStorageReadWrite
	// BindingKindTexture is a filterable float sampled texture.
	BindingKindTexture
	// BindingKindTextureUnfilterable is a float sampled texture read with textureLoad only
	// (r32float and similar formats that cannot be filtered). Declared with a variable name ending
	// in "Raw".
	BindingKindTextureUnfilterable
	BindingKindTextureUint
	BindingKindDepthTexture
	BindingKindStorageTexture
	BindingKindSampler
	BindingKindComparisonSampler
)

// Binding is a single @group/@binding declaration reflected from WGSL source.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Kind    BindingKind
	// TexelFormat is the storage texel format for BindingKindStorageTexture (e.g. "rgba8unorm").
	TexelFormat string
	// Access is the storage texture access mode ("write", "read" or "read_write").
	Access string
}

// VertexFormat is a vertex attribute format reflected from a WGSL vertex input struct.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

// VertexAttribute describes one @location input of a vertex buffer.
type VertexAttribute struct {
	Location int
	Format   VertexFormat
	Offset   uint64
}

// VertexLayout describes one tightly packed vertex buffer.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// vertexFormatInfo pairs a vertex format with its byte size.
type vertexFormatInfo struct {
	format VertexFormat
	size   uint64
}

// parsedStruct is a struct block found in WGSL source.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedField is a single struct member with its location attribute, if any.
type parsedField struct {
	name     string
	typeName string
	location int
	builtin  bool
}
