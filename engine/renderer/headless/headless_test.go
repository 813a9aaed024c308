package headless

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullscreenWGSL = `
@group(0) @binding(0) var src: texture_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
    return textureLoad(src, vec2<i32>(p.xy), 0);
}
`

func newFullscreenPipeline(t *testing.T, key string, format resource.TextureFormat, blend *pipeline.BlendState) pipeline.Pipeline {
	t.Helper()
	vs, err := shader.NewShader(key+".vs", shader.ShaderTypeVertex, fullscreenWGSL, nil)
	require.NoError(t, err)
	fs, err := shader.NewShader(key+".fs", shader.ShaderTypeFragment, fullscreenWGSL, nil)
	require.NoError(t, err)
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTarget(format, blend),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)
}

func newTarget(t *testing.T, b Backend, label string, format resource.TextureFormat, clear resource.Color) *resource.Texture {
	t.Helper()
	tex, err := b.CreateTexture(resource.TextureDesc{
		Label:        label,
		Width:        4,
		Height:       4,
		Format:       format,
		Usage:        resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource,
		ClearColor:   clear,
		InitialState: resource.StateRenderTarget,
	})
	require.NoError(t, err)
	return tex
}

func TestRecorderRejectsBarrierInsidePass(t *testing.T) {
	b := New()
	require.NoError(t, b.Configure(4, 4, renderer.PresentModeVSync))
	tex := newTarget(t, b, "color", resource.FormatRGBA8Unorm, resource.ColorTransparentBlack)

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	rec.BeginRenderPass(renderer.RenderPassDesc{Label: "pass", Color: []renderer.ColorAttachment{{Target: tex}}})
	rec.Barrier(resource.Transition{Resource: tex, From: resource.StateRenderTarget, To: resource.StateShaderResource})
	rec.EndRenderPass()

	require.Error(t, rec.Err())
	assert.Contains(t, rec.Err().Error(), "inside a pass")
	assert.Error(t, b.Submit(0, rec))
}

func TestRecorderRejectsMismatchedTransition(t *testing.T) {
	b := New()
	tex := newTarget(t, b, "color", resource.FormatRGBA8Unorm, resource.ColorTransparentBlack)

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	rec.Barrier(resource.Transition{Resource: tex, From: resource.StateShaderResource, To: resource.StateRenderTarget})
	require.Error(t, rec.Err())
	assert.Contains(t, rec.Err().Error(), "does not match current state")
}

func TestRecorderRejectsReadOfAttachment(t *testing.T) {
	b := New()
	tex := newTarget(t, b, "color", resource.FormatRGBA8Unorm, resource.ColorTransparentBlack)
	p := newFullscreenPipeline(t, "blit", resource.FormatRGBA8Unorm, nil)
	require.NoError(t, b.CreatePipeline(p))

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	rec.BeginRenderPass(renderer.RenderPassDesc{Label: "self", Color: []renderer.ColorAttachment{{Target: tex}}})
	rec.SetPipeline(p)
	rec.SetBindGroup(0, bind_group_provider.NewBindGroupProvider(bind_group_provider.WithTexture(0, tex)))
	require.Error(t, rec.Err())
}

func TestBlendStateIsAppliedToProbe(t *testing.T) {
	src := [4]float32{0.25, 0.5, 0.75, 0.5}
	b := New(WithShadeFunc(func(info DrawInfo) []Fragment {
		return []Fragment{{Outputs: [][4]float32{src}}}
	}))
	input := newTarget(t, b, "input", resource.FormatRGBA8Unorm, resource.ColorTransparentBlack)
	out := newTarget(t, b, "out", resource.FormatRGBA16Float, resource.ColorOpaqueWhite)
	add := pipeline.BlendStateAdd
	p := newFullscreenPipeline(t, "add", resource.FormatRGBA16Float, &add)
	require.NoError(t, b.CreatePipeline(p))

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	rec.Barrier(resource.Transition{Resource: input, From: resource.StateRenderTarget, To: resource.StateShaderResource})
	rec.BeginRenderPass(renderer.RenderPassDesc{Label: "add", Color: []renderer.ColorAttachment{{Target: out, Load: renderer.LoadActionClear}}})
	rec.SetPipeline(p)
	rec.SetBindGroup(0, bind_group_provider.NewBindGroupProvider(bind_group_provider.WithTexture(0, input)))
	rec.Draw(3, 1, 0, 0)
	rec.Draw(3, 1, 0, 0)
	rec.EndRenderPass()
	require.NoError(t, b.Submit(0, rec))

	got := b.Probe(out)
	assert.InDelta(t, 1.5, got[0], 1e-3)
	assert.InDelta(t, 2.0, got[1], 1e-3)
	assert.InDelta(t, 2.5, got[2], 1e-3)
	assert.InDelta(t, 2.0, got[3], 1e-3)
}

func TestFenceArmedBySubmitAndClearedByWait(t *testing.T) {
	b := New()
	f := b.Fence(1)
	assert.True(t, f.Signaled())

	rec, err := b.BeginCommands(1)
	require.NoError(t, err)
	require.NoError(t, b.Submit(1, rec))
	assert.False(t, f.Signaled())

	require.NoError(t, f.Wait())
	assert.True(t, f.Signaled())
}

func TestDeviceLossAndReset(t *testing.T) {
	b := New()
	require.NoError(t, b.Configure(8, 8, renderer.PresentModeVSync))
	tex := newTarget(t, b, "color", resource.FormatRGBA8Unorm, resource.ColorTransparentBlack)
	p := newFullscreenPipeline(t, "blit", resource.FormatRGBA8Unorm, nil)
	require.NoError(t, b.CreatePipeline(p))

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	b.LoseDevice()

	rec.PushDebugGroup("after-loss")
	assert.ErrorIs(t, rec.Err(), renderer.ErrDeviceLost)
	status, err := b.Present()
	require.NoError(t, err)
	assert.Equal(t, renderer.PresentStatusDeviceReset, status)
	_, err = b.CreateTexture(tex.Desc)
	assert.ErrorIs(t, err, renderer.ErrDeviceLost)

	require.NoError(t, b.Reset())
	assert.Equal(t, uint64(1), b.Generation())
	assert.True(t, b.IsReleased(tex.ID))
	assert.Zero(t, b.CompiledPipelines())

	require.NoError(t, b.Configure(8, 8, renderer.PresentModeVSync))
	rec, err = b.BeginCommands(0)
	require.NoError(t, err)
	rec.BeginComputePass("stale")
	rec.SetPipeline(p)
	assert.Error(t, rec.Err())
}

func TestPresentRequiresPresentState(t *testing.T) {
	b := New()
	require.NoError(t, b.Configure(4, 4, renderer.PresentModeVSync))
	frame, err := b.AcquireFrame()
	require.NoError(t, err)

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	rec.Barrier(resource.Transition{Resource: frame, From: resource.StatePresent, To: resource.StateRenderTarget})
	require.NoError(t, b.Submit(0, rec))

	_, err = b.Present()
	assert.Error(t, err)

	b.MarkOutdated()
	_, err = b.AcquireFrame()
	require.NoError(t, err)
	rec, err = b.BeginCommands(1)
	require.NoError(t, err)
	rec.Barrier(resource.Transition{Resource: frame, From: resource.StateRenderTarget, To: resource.StatePresent})
	require.NoError(t, b.Submit(1, rec))
	status, err := b.Present()
	require.NoError(t, err)
	assert.Equal(t, renderer.PresentStatusOutdated, status)
}

func TestQuantizeMatchesFormatPrecision(t *testing.T) {
	v := quantize(resource.FormatR8Unorm, [4]float32{0.25, 1, 1, 1})
	assert.InDelta(t, 64.0/255.0, v[0], 1e-6)
	assert.Zero(t, v[1])

	h := quantize(resource.FormatRGBA16Float, [4]float32{1.0001, 0, 0, 0})
	assert.Equal(t, float32(1), h[0])
}
