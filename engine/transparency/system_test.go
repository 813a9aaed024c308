package transparency

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique/wboit"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 64
	testHeight = 48
)

type harness struct {
	backend  headless.Backend
	renderer renderer.Renderer
	system   System
	input    FrameInput
}

func newHarness(t *testing.T, options ...SystemBuilderOption) *harness {
	t.Helper()
	return newHarnessWithBackend(t, headless.New(), options...)
}

func newHarnessWithBackend(t *testing.T, b headless.Backend, options ...SystemBuilderOption) *harness {
	t.Helper()
	r := renderer.NewRenderer(b)
	require.NoError(t, r.Resize(testWidth, testHeight))
	s, err := NewSystem(r, options...)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return &harness{backend: b, renderer: r, system: s, input: defaultInput()}
}

func defaultInput() FrameInput {
	cam := camera.NewCamera(
		camera.WithPosition(mgl32.Vec3{0, 0, 5}),
		camera.WithTarget(mgl32.Vec3{}),
		camera.WithAspect(float32(testWidth)/testHeight),
	)
	return FrameInput{
		Camera: cam,
		Light:  light.NewLight(),
		Entries: []draw_call.Entry{
			{
				Mesh:     model.MeshCube,
				Scale:    mgl32.Vec3{1, 1, 1},
				Material: material.New(material.WithColor([4]float32{0.5, 0.5, 0.5, 1})),
			},
			{
				Mesh:     model.MeshPlane,
				Position: mgl32.Vec3{0, 0, 1},
				Scale:    mgl32.Vec3{1, 1, 1},
				Material: material.New(material.WithColor([4]float32{1, 0, 0, 0.5})),
			},
			{
				Mesh:     model.MeshPlane,
				Position: mgl32.Vec3{0, 0, 2},
				Scale:    mgl32.Vec3{1, 1, 1},
				Material: material.New(material.WithColor([4]float32{1, 0, 0, 0.5})),
			},
		},
	}
}

func (h *harness) render(t *testing.T, frames int) {
	t.Helper()
	for range frames {
		require.NoError(t, h.system.RenderFrame(h.input))
	}
}

func (h *harness) lastSubmission(t *testing.T) headless.Submission {
	t.Helper()
	sub, ok := h.backend.LastSubmission()
	require.True(t, ok)
	return sub
}

// liveLabels returns the labels of every live texture.
func (h *harness) liveLabels() []string {
	var out []string
	for _, tex := range h.renderer.LiveTextures() {
		out = append(out, tex.Desc.Label)
	}
	return out
}

func TestNewSystemRequiresConfiguredSurface(t *testing.T) {
	r := renderer.NewRenderer(headless.New())
	_, err := NewSystem(r)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewSystemRejectsUnsupportedInitialTechnique(t *testing.T) {
	r := renderer.NewRenderer(headless.New(headless.WithoutFragmentOrderedAccess()))
	require.NoError(t, r.Resize(testWidth, testHeight))
	_, err := NewSystem(r, WithTechnique(technique.TypeAdaptive))
	assert.ErrorIs(t, err, technique.ErrUnsupported)
}

func TestWeightedBlendedFrameMatchesPixelModel(t *testing.T) {
	sky := [4]float32{0.2, 0.4, 0.8, 1}
	gray := [4]float32{0.5, 0.5, 0.5, 1}
	params := technique.DefaultParams()
	layer := wboit.Fragment{Color: mgl32.Vec3{1, 0, 0}, Alpha: 0.5, Depth: 4}

	b := headless.New(headless.WithShadeFunc(func(info headless.DrawInfo) []headless.Fragment {
		switch info.Pipeline.PipelineKey() {
		case PipelineSkybox:
			return []headless.Fragment{{Depth: 1, Outputs: [][4]float32{sky}}}
		case PipelineOpaque:
			return []headless.Fragment{{Depth: 0.9, Outputs: [][4]float32{gray}}}
		case "wboit.accumulate":
			var out []headless.Fragment
			for range info.InstanceCount {
				accum, reveal := wboit.Contribution(params, false, 100, layer)
				out = append(out, headless.Fragment{Depth: 0.5, Outputs: [][4]float32{accum, reveal}})
			}
			return out
		case "wboit.resolve":
			g := info.BindGroups[0]
			resolved := wboit.ResolveTexels(info.Probe(g.Texture(0)), info.Probe(g.Texture(1))[0])
			return []headless.Fragment{{Outputs: [][4]float32{resolved}}}
		case PipelineBlit:
			c := info.Probe(info.BindGroups[0].Texture(0))
			c[3] = 1
			return []headless.Fragment{{Outputs: [][4]float32{c}}}
		}
		return nil
	}))
	h := newHarnessWithBackend(t, b, WithFeatures(features.Features{}), WithParams(params))
	h.render(t, 1)

	tech, ok := h.system.Technique(technique.TypeWeightedBlended)
	require.True(t, ok)
	w, ok := tech.(wboit.WBOIT)
	require.True(t, ok)

	want := wboit.NewPixel()
	want.AddFragment(params, false, 100, layer)
	want.AddFragment(params, false, 100, layer)
	assert.InDelta(t, 0.25, b.Probe(w.Revealage())[0], 0.01)
	assert.Equal(t, want.Revealage, b.Probe(w.Revealage())[0])

	// the opaque cube covers the sky
	scene := b.Probe(h.system.Context().SceneColor)
	assert.InDelta(t, 0.5, scene[0], 0.01)

	var swapchain *resource.Texture
	for _, c := range h.lastSubmission(t).Filter(headless.CommandBeginRenderPass) {
		if c.Label == "transparency.composite" {
			swapchain = c.Pass.Color[0].Target
		}
	}
	require.NotNil(t, swapchain)
	got := b.Probe(swapchain)
	expected := want.Over(resource.FormatBGRA8Unorm.Quantize(scene))
	for i := range 3 {
		assert.InDelta(t, expected[i], got[i], 0.01, "channel %d", i)
	}
}

func TestStageOrderWithAllFeatures(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, features.Default(), h.system.Features())
	h.render(t, 1)

	assert.Equal(t, []string{
		"Shadow", "Shadow/blur-x", "Shadow/blur-y",
		"StochasticShadow",
		"Opaque",
		"Accumulate/wboit",
		"Composite", "UI", "Present",
	}, h.lastSubmission(t).DebugGroups())
}

func TestPhenomenologicalRegeneratesBackgroundMips(t *testing.T) {
	h := newHarness(t, WithTechnique(technique.TypePhenomenological))
	h.render(t, 2)

	groups := h.lastSubmission(t).DebugGroups()
	assert.Contains(t, groups, "BackgroundMipGen")
	assert.Less(t, indexOf(groups, "Opaque"), indexOf(groups, "BackgroundMipGen"))
	assert.Less(t, indexOf(groups, "BackgroundMipGen"), indexOf(groups, "Accumulate/Shade"))
	assert.NotEmpty(t, h.lastSubmission(t).Filter(headless.CommandDispatch))
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func TestOnlyActiveTechniqueOwnsTargets(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)

	for _, label := range h.liveLabels() {
		assert.False(t, strings.HasPrefix(label, "aoit."), label)
		assert.False(t, strings.HasPrefix(label, "phenomenological."), label)
	}
	for _, c := range h.lastSubmission(t).Filter(headless.CommandBarrier) {
		for _, tr := range c.Transitions {
			assert.False(t, strings.HasPrefix(tr.Resource.ResourceLabel(), "aoit."), tr.Resource.ResourceLabel())
		}
	}
}

func TestTechniqueSwitchAppliesAtFrameBoundary(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)

	tech, _ := h.system.Technique(technique.TypeWeightedBlended)
	reveal := tech.(wboit.WBOIT).Revealage()
	require.NotNil(t, reveal)

	require.NoError(t, h.system.SelectTechnique(technique.TypeAdaptive))
	assert.Equal(t, technique.TypeAdaptive, h.system.Active())
	// nothing is released until the next frame starts
	assert.True(t, h.renderer.IsLive(reveal.ID))

	h.render(t, 1)
	assert.False(t, h.renderer.IsLive(reveal.ID))
	assert.Nil(t, h.renderer.Pipeline("wboit.accumulate"))
	assert.Contains(t, h.lastSubmission(t).DebugGroups(), "Accumulate/aoit-shade")
}

func TestSelectUnsupportedTechniqueKeepsSelection(t *testing.T) {
	h := newHarnessWithBackend(t, headless.New(headless.WithoutFragmentOrderedAccess()))
	assert.NotContains(t, h.system.Available(), technique.TypeAdaptive)

	err := h.system.SelectTechnique(technique.TypeAdaptive)
	assert.ErrorIs(t, err, technique.ErrUnsupported)
	assert.Equal(t, technique.TypeWeightedBlended, h.system.Active())
	h.render(t, 1)
	assert.Contains(t, h.lastSubmission(t).DebugGroups(), "Accumulate/wboit")
}

func TestResizeReallocatesResolutionDependentTargets(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)

	before := map[resource.ID]bool{}
	for _, tex := range h.renderer.LiveTextures() {
		if tex.Desc.ResolutionDependent {
			before[tex.ID] = true
		}
	}
	require.NotEmpty(t, before)
	pipelines := len(h.renderer.Pipelines())

	require.NoError(t, h.system.Resize(128, 96))
	for id := range before {
		assert.False(t, h.renderer.IsLive(id))
	}
	for _, tex := range h.renderer.LiveTextures() {
		if !tex.Desc.ResolutionDependent {
			continue
		}
		w, hgt := tex.Size()
		assert.Equal(t, [2]uint32{128, 96}, [2]uint32{w, hgt}, tex.Desc.Label)
	}
	assert.Equal(t, pipelines, len(h.renderer.Pipelines()))
	h.render(t, 2)
}

func TestZeroSizePausesRendering(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)
	presented := h.backend.PresentCount()

	require.NoError(t, h.system.Resize(0, 0))
	h.render(t, 3)
	assert.Equal(t, presented, h.backend.PresentCount())

	require.NoError(t, h.system.Resize(32, 32))
	h.render(t, 1)
	assert.Equal(t, presented+1, h.backend.PresentCount())
}

func TestDeviceLossRebuildsOnNextFrame(t *testing.T) {
	h := newHarness(t)
	h.render(t, 2)
	require.Zero(t, h.system.Generation())
	oldDepth := h.system.Context().Depth

	h.backend.LoseDevice()
	// the lost frame is dropped without an error
	h.render(t, 1)
	h.render(t, 1)

	assert.Equal(t, uint64(1), h.system.Generation())
	assert.False(t, h.renderer.IsLive(oldDepth.ID))
	assert.True(t, h.renderer.IsLive(h.system.Context().Depth.ID))
	assert.Contains(t, h.lastSubmission(t).DebugGroups(), "Accumulate/wboit")
}

// relapsingBackend loses the device again while the nth buffer after the first reset is created.
type relapsingBackend struct {
	headless.Backend
	failAt  int
	created int
	resets  int
}

func (b *relapsingBackend) Reset() error {
	b.resets++
	b.created = 0
	return b.Backend.Reset()
}

func (b *relapsingBackend) CreateBuffer(desc resource.BufferDesc) (*resource.Buffer, error) {
	if b.resets == 1 {
		b.created++
		if b.created == b.failAt {
			b.Backend.LoseDevice()
		}
	}
	return b.Backend.CreateBuffer(desc)
}

func TestDeviceLossDuringRebuildRecovers(t *testing.T) {
	backend := &relapsingBackend{Backend: headless.New(), failAt: 3}
	h := newHarnessWithBackend(t, backend)
	h.render(t, 1)

	h.backend.LoseDevice()
	// the lost frame, then a rebuild that loses the device halfway through setup
	h.render(t, 2)
	assert.Equal(t, 1, backend.resets)
	assert.Equal(t, uint64(1), h.system.Generation())

	h.render(t, 1)
	assert.Equal(t, 2, backend.resets)
	assert.Equal(t, uint64(2), h.system.Generation())
	assert.True(t, h.renderer.IsLive(h.system.Context().Depth.ID))
	assert.Contains(t, h.lastSubmission(t).DebugGroups(), "Accumulate/wboit")

	h.render(t, 2)
	assert.Equal(t, uint64(2), h.system.Generation())
}

func TestRequestDeviceReset(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)
	live := len(h.renderer.LiveTextures())

	h.system.RequestDeviceReset()
	h.render(t, 1)
	assert.Equal(t, uint64(1), h.system.Generation())
	assert.Equal(t, uint64(1), h.backend.Generation())
	assert.Equal(t, live, len(h.renderer.LiveTextures()))
}

func TestOutdatedSurfaceIsReconfigured(t *testing.T) {
	h := newHarness(t)
	h.render(t, 1)
	h.backend.MarkOutdated()
	h.render(t, 1)
	presented := h.backend.PresentCount()
	h.render(t, 1)
	assert.Equal(t, presented+1, h.backend.PresentCount())
}

func TestSetParamsValidates(t *testing.T) {
	h := newHarness(t)
	p := h.system.Params()
	p.WBOIT.DepthRange = -1
	assert.ErrorIs(t, h.system.SetParams(p), technique.ErrInvalidParams)
	assert.Equal(t, technique.DefaultParams(), h.system.Params())

	p = h.system.Params()
	p.AlphaBlend.SortObjects = false
	require.NoError(t, h.system.SetParams(p))
	h.system.ResetParams(technique.TypeAlphaBlend)
	assert.Equal(t, technique.DefaultParams(), h.system.Params())
}

func TestAdaptiveNodeCountChangeRebuildsPipelines(t *testing.T) {
	h := newHarness(t, WithTechnique(technique.TypeAdaptive))
	h.render(t, 1)
	before := h.renderer.Pipeline("aoit.shade")
	require.NotNil(t, before)
	compiled := h.backend.CompiledPipelines()

	p := h.system.Params()
	p.AOIT.NodeCount = 8
	require.NoError(t, h.system.SetParams(p))
	// the old pipelines stay until the frame boundary
	assert.Same(t, before, h.renderer.Pipeline("aoit.shade"))

	h.render(t, 1)
	assert.NotSame(t, before, h.renderer.Pipeline("aoit.shade"))
	assert.Equal(t, compiled, h.backend.CompiledPipelines())
	assert.Contains(t, h.lastSubmission(t).DebugGroups(), "Accumulate/aoit-shade")
}

func TestParticlesDrawFromVertexBuffer(t *testing.T) {
	h := newHarness(t, WithFeatures(features.Features{}))
	ps := particle.NewParticleSystem()
	ps.Update(0.1)
	require.Positive(t, ps.Live())
	h.input.Entries = append(h.input.Entries, draw_call.Entry{
		Mesh:      model.MeshParticles,
		Scale:     mgl32.Vec3{1, 1, 1},
		Material:  material.New(material.WithColor([4]float32{1, 1, 1, 0.3})),
		Particles: ps,
	})
	h.render(t, 1)

	var drawn uint32
	for _, c := range h.lastSubmission(t).Filter(headless.CommandDraw) {
		if c.PipelineKey == "wboit.accumulate" {
			drawn += c.Count
		}
	}
	assert.Equal(t, uint32(ps.Live()*particle.VerticesPerParticle), drawn)
}

func TestOpaqueParticlesDrawInOpaqueStage(t *testing.T) {
	h := newHarness(t, WithFeatures(features.Features{}))
	ps := particle.NewParticleSystem()
	ps.Update(0.1)
	require.Positive(t, ps.Live())
	h.input.Entries = append(h.input.Entries, draw_call.Entry{
		Mesh:      model.MeshParticles,
		Scale:     mgl32.Vec3{1, 1, 1},
		Material:  material.New(material.WithColor([4]float32{1, 1, 1, 1})),
		Particles: ps,
	})
	h.render(t, 1)

	var opaque, transparent uint32
	for _, c := range h.lastSubmission(t).Filter(headless.CommandDraw) {
		switch c.PipelineKey {
		case PipelineOpaque:
			opaque += c.Count
		case "wboit.accumulate":
			transparent += c.Count
		}
	}
	assert.Equal(t, uint32(ps.Live()*particle.VerticesPerParticle), opaque)
	assert.Zero(t, transparent)
}

func TestImportedMeshesAreDrawnAndRebuilt(t *testing.T) {
	tri := model.MeshData{
		Vertices: []model.GPUVertex{
			{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}},
			{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, 1}},
			{Position: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
	h := newHarness(t, WithMeshes(tri))
	h.input.Entries = append(h.input.Entries, draw_call.Entry{
		Mesh:     model.MeshImported,
		Scale:    mgl32.Vec3{1, 1, 1},
		Material: material.New(),
	})
	h.render(t, 1)

	drawn := func() bool {
		for _, c := range h.lastSubmission(t).Filter(headless.CommandDrawIndexed) {
			if c.Count == 3 {
				return true
			}
		}
		return false
	}
	assert.True(t, drawn())

	h.system.RequestDeviceReset()
	h.render(t, 1)
	var labels []string
	for _, buf := range h.renderer.LiveBuffers() {
		labels = append(labels, buf.Desc.Label)
	}
	assert.Contains(t, labels, "transparency.mesh.imported0.vertices")
	assert.True(t, drawn())
}

func TestEmptyImportedMeshIsRejected(t *testing.T) {
	r := renderer.NewRenderer(headless.New())
	require.NoError(t, r.Resize(testWidth, testHeight))
	_, err := NewSystem(r, WithMeshes(model.MeshData{}))
	assert.Error(t, err)
}
