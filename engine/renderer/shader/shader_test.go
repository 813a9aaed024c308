package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const meshWGSL = `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
}

@group(0) @binding(1) var<uniform> light: Light;
@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(6) var ids: texture_2d<u32>;
@group(1) @binding(0) var depthRaw: texture_2d<f32>;
@group(1) @binding(1) var linearSampler: sampler;
@group(1) @binding(2) var<storage, read_write> nodes: array<vec4<u32>>;
@group(1) @binding(3) var clearMask: texture_storage_2d<r32uint, read_write>;
@group(1) @binding(4) var shadowMap: texture_depth_2d;
@group(1) @binding(5) var shadowSampler: sampler_comparison;
@group(1) @binding(7) var background: texture_2d<f32>;
@group(1) @binding(8) var<storage, read> materials: array<Material>;
// @group(2) @binding(0) var<uniform> commented: Camera;

@vertex
fn vs_main(in: VertexInput) -> @builtin(position) vec4<f32> {
    return vec4<f32>(in.position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func TestNewShaderReflectsVertexLayout(t *testing.T) {
	s, err := NewShader("mesh.vs", ShaderTypeVertex, meshWGSL, nil)
	require.NoError(t, err)

	assert.Equal(t, "mesh.vs", s.Key())
	assert.Equal(t, "vs_main", s.EntryPoint())
	assert.Equal(t, ShaderTypeVertex, s.ShaderType())
	require.NotNil(t, s.VertexLayout())
	assert.Equal(t, VertexLayout{
		Stride: 32,
		Attributes: []VertexAttribute{
			{Location: 0, Format: VertexFormatFloat32x3, Offset: 0},
			{Location: 1, Format: VertexFormatFloat32x3, Offset: 12},
			{Location: 2, Format: VertexFormatFloat32x2, Offset: 24},
		},
	}, *s.VertexLayout())
	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())
}

func TestNewShaderReflectsBindings(t *testing.T) {
	s, err := NewShader("mesh.fs", ShaderTypeFragment, meshWGSL, nil)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Nil(t, s.VertexLayout())

	got := s.Bindings()
	require.Len(t, got, 11)
	want := []struct {
		group, binding int
		name           string
		kind           BindingKind
	}{
		{0, 0, "camera", BindingKindUniform},
		{0, 1, "light", BindingKindUniform},
		{1, 0, "depthRaw", BindingKindTextureUnfilterable},
		{1, 1, "linearSampler", BindingKindSampler},
		{1, 2, "nodes", BindingKindStorageReadWrite},
		{1, 3, "clearMask", BindingKindStorageTexture},
		{1, 4, "shadowMap", BindingKindDepthTexture},
		{1, 5, "shadowSampler", BindingKindComparisonSampler},
		{1, 6, "ids", BindingKindTextureUint},
		{1, 7, "background", BindingKindTexture},
		{1, 8, "materials", BindingKindStorageRead},
	}
	for i, w := range want {
		assert.Equal(t, w.group, got[i].Group, w.name)
		assert.Equal(t, w.binding, got[i].Binding, w.name)
		assert.Equal(t, w.name, got[i].Name)
		assert.Equal(t, w.kind, got[i].Kind, w.name)
	}
	assert.Equal(t, "r32uint", got[5].TexelFormat)
	assert.Equal(t, "read_write", got[5].Access)
}

func TestNewShaderResolvesWorkgroupSizeFromMacros(t *testing.T) {
	src := `
//@oxy:const TILE_SIZE
@compute @workgroup_size(TILE_SIZE, TILE_SIZE)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {}
`
	s, err := NewShader("mipgen", ShaderTypeCompute, src, Macros{"TILE_SIZE": 8})
	require.NoError(t, err)

	assert.Equal(t, "cs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Equal(t, Macros{"TILE_SIZE": 8}, s.Macros())
	assert.Contains(t, s.Source(), "const TILE_SIZE: u32 = 8u;")
}

func TestFullscreenVertexShaderHasNoLayout(t *testing.T) {
	src := `
@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}
`
	s, err := NewShader("fullscreen", ShaderTypeVertex, src, nil)
	require.NoError(t, err)
	assert.Nil(t, s.VertexLayout())
	assert.Empty(t, s.Bindings())
}

func TestNewShaderWithChunk(t *testing.T) {
	src := "//@oxy:include tonemap\n@fragment\nfn fs_main() -> @location(0) vec4<f32> { return tonemap(); }"
	s, err := NewShader("tonemap.fs", ShaderTypeFragment, src, nil,
		WithChunk("tonemap", "fn tonemap() -> vec4<f32> { return vec4<f32>(1.0); }"))
	require.NoError(t, err)
	assert.Contains(t, s.Source(), "fn tonemap()")
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("broken", ShaderTypeFragment, "//@oxy:if MISSING\n//@oxy:endif", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-process")

	_, err = NewShader("vertex-only", ShaderTypeCompute, meshWGSL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no @compute entry point")
}

func TestShaderTypeString(t *testing.T) {
	assert.Equal(t, "vertex", ShaderTypeVertex.String())
	assert.Equal(t, "fragment", ShaderTypeFragment.String())
	assert.Equal(t, "compute", ShaderTypeCompute.String())
	assert.Equal(t, "ShaderType(9)", ShaderType(9).String())
}
