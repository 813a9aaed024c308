package alpha_blend

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	backend headless.Backend
	ctx     *technique.Context
	tracker pass.Tracker
	geom    *resource.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := headless.New()
	r := renderer.NewRenderer(b)
	ctx := &technique.Context{
		Renderer:      r,
		Features:      features.Features{},
		Width:         32,
		Height:        32,
		SurfaceFormat: b.SurfaceFormat(),
		MaxObjects:    16,
		Frames:        3,
	}
	var err error
	ctx.Depth, err = r.CreateTexture(resource.TextureDesc{
		Label: "depth", Width: 32, Height: 32, MipLevels: 1, Format: technique.DepthFormat,
		Usage: resource.TextureUsageDepthStencil | resource.TextureUsageShaderResource, ClearDepth: 1,
		InitialState: resource.StateDepthWrite, ResolutionDependent: true,
	})
	require.NoError(t, err)
	ctx.SceneColor, err = ctx.CreateTarget(technique.Target{Label: "scene-color", Format: technique.SceneColorFormat})
	require.NoError(t, err)
	geom, err := r.CreateBuffer(resource.BufferDesc{Label: "geometry", Size: 6 * 32, Usage: resource.BufferUsageVertex})
	require.NoError(t, err)

	tracker := pass.NewTracker()
	tracker.Track(ctx.Depth, resource.StateDepthWrite)
	tracker.Track(ctx.SceneColor, resource.StateRenderTarget)
	return &harness{backend: b, ctx: ctx, tracker: tracker, geom: geom}
}

// blendInOrder draws the layers over the background and returns the scene color probe.
func (h *harness) blendInOrder(t *testing.T, tech AlphaBlend, background [4]float32, layers [][4]float32) [4]float32 {
	t.Helper()
	h.backend.SetProbe(h.ctx.SceneColor, background)
	h.backend.SetShadeFunc(func(info headless.DrawInfo) []headless.Fragment {
		if info.Pipeline.PipelineKey() != keyBlend {
			return nil
		}
		out := make([]headless.Fragment, len(layers))
		for i, l := range layers {
			out[i] = headless.Fragment{Depth: 0.5, Outputs: [][4]float32{l}}
		}
		return out
	})
	frame := technique.Frame{
		Params: technique.DefaultParams(),
		DrawTransparent: func(rec renderer.CommandRecorder) {
			rec.SetVertexBuffer(0, h.geom)
			rec.Draw(6, 1, 0, 0)
		},
	}
	rec, err := h.backend.BeginCommands(frame.Slot)
	require.NoError(t, err)
	require.NoError(t, h.tracker.Execute(rec, tech.Accumulate(h.ctx, frame)))
	require.NoError(t, h.backend.Submit(frame.Slot, rec))
	return h.backend.Probe(h.ctx.SceneColor)
}

func TestBlendsBackToFront(t *testing.T) {
	h := newHarness(t)
	tech := New()
	require.NoError(t, tech.Build(h.ctx, technique.DefaultParams()))
	require.NoError(t, tech.Allocate(h.ctx))

	background := [4]float32{0, 0, 0, 1}
	far := [4]float32{0, 0, 1, 0.5}
	near := [4]float32{1, 0, 0, 0.5}

	got := h.blendInOrder(t, tech, background, [][4]float32{far, near})
	want := background
	for _, l := range [][4]float32{far, near} {
		want = technique.SceneColorFormat.Quantize(pipeline.BlendStateAlphaBlending.Apply(l, want))
	}
	assert.Equal(t, want, got)
	// the nearer layer dominates
	assert.Greater(t, got[0], got[2])

	reversed := h.blendInOrder(t, tech, background, [][4]float32{near, far})
	assert.Greater(t, reversed[2], reversed[0])
}

func TestNoTargetsAndNoResolve(t *testing.T) {
	h := newHarness(t)
	tech := New()
	assert.True(t, tech.Supported(renderer.Capabilities{}))
	require.NoError(t, tech.Build(h.ctx, technique.DefaultParams()))
	require.NoError(t, tech.Allocate(h.ctx))
	assert.Empty(t, tech.Resources())
	assert.Empty(t, tech.ResolveUses(h.ctx))
	assert.NotNil(t, tech.Pipeline())

	old := technique.DefaultParams()
	changed := old
	changed.AlphaBlend.SortObjects = false
	assert.False(t, tech.NeedsRebuild(old, changed))

	tech.ReleasePipelines(h.ctx)
	assert.Nil(t, h.ctx.Renderer.Pipeline(keyBlend))
}

func TestAccumulateKeepsDepthReadOnly(t *testing.T) {
	h := newHarness(t)
	tech := New()
	require.NoError(t, tech.Build(h.ctx, technique.DefaultParams()))
	h.blendInOrder(t, tech, [4]float32{}, nil)

	sub, ok := h.backend.LastSubmission()
	require.True(t, ok)
	assert.Equal(t, []string{"Accumulate/alpha-blend"}, sub.DebugGroups())
	state, _ := h.tracker.State(h.ctx.Depth.ID)
	assert.Equal(t, resource.StateDepthRead, state)
	state, _ = h.tracker.State(h.ctx.SceneColor.ID)
	assert.Equal(t, resource.StateRenderTarget, state)
}
