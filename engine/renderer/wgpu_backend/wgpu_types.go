package wgpu_backend

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// nativeTexture is the backend object stored in resource.Texture.Native.
type nativeTexture struct {
	texture *wgpu.Texture
	format  wgpu.TextureFormat
	// views caches one view per mip level, keyed by mip or bind_group_provider.AllMips
	views map[int]*wgpu.TextureView
	// owned is false for swapchain textures, which the surface releases
	owned bool
}

func (n *nativeTexture) release() {
	for _, v := range n.views {
		v.Release()
	}
	clear(n.views)
	if n.owned && n.texture != nil {
		n.texture.Release()
	}
	n.texture = nil
}

// nativePipeline is the backend object stored in pipeline.Pipeline.Native.
type nativePipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
	layouts []*wgpu.BindGroupLayout
	// generation is the device generation the pipeline was compiled for
	generation uint64
}

func (n *nativePipeline) release() {
	if n.render != nil {
		n.render.Release()
	}
	if n.compute != nil {
		n.compute.Release()
	}
	for _, l := range n.layouts {
		if l != nil {
			l.Release()
		}
	}
}

var textureFormats = map[resource.TextureFormat]wgpu.TextureFormat{
	resource.FormatRGBA8Unorm:   wgpu.TextureFormatRGBA8Unorm,
	resource.FormatBGRA8Unorm:   wgpu.TextureFormatBGRA8Unorm,
	resource.FormatRGBA16Float:  wgpu.TextureFormatRGBA16Float,
	resource.FormatR8Unorm:      wgpu.TextureFormatR8Unorm,
	resource.FormatRG16Float:    wgpu.TextureFormatRG16Float,
	resource.FormatR32Float:     wgpu.TextureFormatR32Float,
	resource.FormatR32Uint:      wgpu.TextureFormatR32Uint,
	resource.FormatDepth32Float: wgpu.TextureFormatDepth32Float,
	resource.FormatDepth16Unorm: wgpu.TextureFormatDepth16Unorm,
}

// fromWGPUFormat maps a surface format back to the neutral format.
func fromWGPUFormat(f wgpu.TextureFormat) resource.TextureFormat {
	for k, v := range textureFormats {
		if v == f {
			return k
		}
	}
	return resource.FormatUndefined
}

var storageTexelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32float":    wgpu.TextureFormatR32Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

func textureUsage(u resource.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u.Has(resource.TextureUsageRenderTarget) || u.Has(resource.TextureUsageDepthStencil) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(resource.TextureUsageShaderResource) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(resource.TextureUsageStorage) {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u.Has(resource.TextureUsageCopySrc) {
		out |= wgpu.TextureUsageCopySrc
	}
	if u.Has(resource.TextureUsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func bufferUsage(u resource.BufferUsage) wgpu.BufferUsage {
	// every buffer is written from the CPU through the queue
	out := wgpu.BufferUsageCopyDst
	if u.Has(resource.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(resource.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(resource.BufferUsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(resource.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(resource.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	return out
}

var blendFactors = map[pipeline.BlendFactor]wgpu.BlendFactor{
	pipeline.BlendFactorZero:             wgpu.BlendFactorZero,
	pipeline.BlendFactorOne:              wgpu.BlendFactorOne,
	pipeline.BlendFactorSrcAlpha:         wgpu.BlendFactorSrcAlpha,
	pipeline.BlendFactorOneMinusSrcAlpha: wgpu.BlendFactorOneMinusSrcAlpha,
	pipeline.BlendFactorSrc:              wgpu.BlendFactorSrc,
	pipeline.BlendFactorOneMinusSrc:      wgpu.BlendFactorOneMinusSrc,
	pipeline.BlendFactorDst:              wgpu.BlendFactorDst,
	pipeline.BlendFactorOneMinusDst:      wgpu.BlendFactorOneMinusDst,
	pipeline.BlendFactorDstAlpha:         wgpu.BlendFactorDstAlpha,
	pipeline.BlendFactorOneMinusDstAlpha: wgpu.BlendFactorOneMinusDstAlpha,
}

var blendOperations = map[pipeline.BlendOperation]wgpu.BlendOperation{
	pipeline.BlendOperationAdd:      wgpu.BlendOperationAdd,
	pipeline.BlendOperationSubtract: wgpu.BlendOperationSubtract,
	pipeline.BlendOperationMin:      wgpu.BlendOperationMin,
	pipeline.BlendOperationMax:      wgpu.BlendOperationMax,
}

func blendComponent(c pipeline.BlendComponent) wgpu.BlendComponent {
	return wgpu.BlendComponent{
		SrcFactor: blendFactors[c.SrcFactor],
		DstFactor: blendFactors[c.DstFactor],
		Operation: blendOperations[c.Operation],
	}
}

func colorTargets(targets []pipeline.ColorTarget) []wgpu.ColorTargetState {
	out := make([]wgpu.ColorTargetState, len(targets))
	for i, t := range targets {
		state := wgpu.ColorTargetState{
			Format:    textureFormats[t.Format],
			WriteMask: writeMask(t.WriteMask),
		}
		if t.Blend != nil {
			state.Blend = &wgpu.BlendState{
				Color: blendComponent(t.Blend.Color),
				Alpha: blendComponent(t.Blend.Alpha),
			}
		}
		out[i] = state
	}
	return out
}

func writeMask(m pipeline.WriteMask) wgpu.ColorWriteMask {
	if m == 0 || m == pipeline.WriteMaskAll {
		return wgpu.ColorWriteMaskAll
	}
	var out wgpu.ColorWriteMask
	if m&pipeline.WriteMaskRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&pipeline.WriteMaskGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&pipeline.WriteMaskBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&pipeline.WriteMaskAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

var compareFunctions = map[pipeline.CompareFunction]wgpu.CompareFunction{
	pipeline.CompareLess:      wgpu.CompareFunctionLess,
	pipeline.CompareLessEqual: wgpu.CompareFunctionLessEqual,
	pipeline.CompareGreater:   wgpu.CompareFunctionGreater,
	pipeline.CompareAlways:    wgpu.CompareFunctionAlways,
}

var cullModes = map[pipeline.CullMode]wgpu.CullMode{
	pipeline.CullModeNone:  wgpu.CullModeNone,
	pipeline.CullModeFront: wgpu.CullModeFront,
	pipeline.CullModeBack:  wgpu.CullModeBack,
}

var topologies = map[pipeline.Topology]wgpu.PrimitiveTopology{
	pipeline.TopologyTriangleList:  wgpu.PrimitiveTopologyTriangleList,
	pipeline.TopologyTriangleStrip: wgpu.PrimitiveTopologyTriangleStrip,
	pipeline.TopologyLineList:      wgpu.PrimitiveTopologyLineList,
}

var frontFaces = map[pipeline.FrontFace]wgpu.FrontFace{
	pipeline.FrontFaceCCW: wgpu.FrontFaceCCW,
	pipeline.FrontFaceCW:  wgpu.FrontFaceCW,
}

var vertexFormats = map[shader.VertexFormat]wgpu.VertexFormat{
	shader.VertexFormatFloat32:   wgpu.VertexFormatFloat32,
	shader.VertexFormatFloat32x2: wgpu.VertexFormatFloat32x2,
	shader.VertexFormatFloat32x3: wgpu.VertexFormatFloat32x3,
	shader.VertexFormatFloat32x4: wgpu.VertexFormatFloat32x4,
	shader.VertexFormatUint32:    wgpu.VertexFormatUint32,
}

func vertexBufferLayout(l *shader.VertexLayout) []wgpu.VertexBufferLayout {
	if l == nil {
		return nil
	}
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		attrs[i] = wgpu.VertexAttribute{
			Format:         vertexFormats[a.Format],
			Offset:         a.Offset,
			ShaderLocation: uint32(a.Location),
		}
	}
	return []wgpu.VertexBufferLayout{{
		ArrayStride: l.Stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}}
}

// layoutEntry converts a reflected WGSL binding into a bind group layout entry.
func layoutEntry(b shader.Binding, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    uint32(b.Binding),
		Visibility: visibility,
	}
	switch b.Kind {
	case shader.BindingKindUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case shader.BindingKindStorageRead:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case shader.BindingKindStorageReadWrite:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case shader.BindingKindTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingKindTextureUnfilterable:
		entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingKindTextureUint:
		entry.Texture.SampleType = wgpu.TextureSampleTypeUint
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingKindDepthTexture:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingKindStorageTexture:
		entry.StorageTexture.Access = storageAccess[b.Access]
		entry.StorageTexture.Format = storageTexelFormats[b.TexelFormat]
		entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
	case shader.BindingKindSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case shader.BindingKindComparisonSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	}
	return entry
}
