package aoit

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomFragments(rng *rand.Rand, n int) []Fragment {
	out := make([]Fragment, n)
	for i := range out {
		out[i] = Fragment{
			Depth: 1 + rng.Float32()*100,
			Color: mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()},
			Alpha: 0.1 + rng.Float32()*0.8,
		}
	}
	return out
}

func fill(k int, frags []Fragment) *NodeList {
	l := NewNodeList(k)
	for _, f := range frags {
		l.Insert(f.Depth, f.Color, f.Alpha)
	}
	return l
}

func colorError(a, b [4]float32) float32 {
	var e float32
	for c := range 4 {
		e += math32.Abs(a[c] - b[c])
	}
	return e
}

func TestExactWithinNodeBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, k := range technique.AOITNodeCounts {
		for range 50 {
			frags := randomFragments(rng, 1+rng.Intn(k))
			want := Sorted(frags)
			for range 5 {
				rng.Shuffle(len(frags), func(i, j int) { frags[i], frags[j] = frags[j], frags[i] })
				got := fill(k, frags).Composite()
				for c := range 4 {
					assert.InDelta(t, want[c], got[c], 1e-5, "k=%d channel %d", k, c)
				}
			}
		}
	}
}

func TestNodesStaySortedAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, k := range technique.AOITNodeCounts {
		l := fill(k, randomFragments(rng, 40))
		assert.Equal(t, k, l.Len())
		nodes := l.Nodes()
		prevTrans := float32(1)
		for i, n := range nodes {
			if i > 0 {
				assert.LessOrEqual(t, nodes[i-1].Depth, n.Depth)
			}
			// transmittance never increases with depth
			assert.LessOrEqual(t, n.Trans, prevTrans)
			prevTrans = n.Trans
		}
	}
}

func TestCoverageExactAfterMerges(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for _, k := range technique.AOITNodeCounts {
		frags := randomFragments(rng, 30)
		want := Sorted(frags)
		got := fill(k, frags).Composite()
		assert.InDelta(t, want[3], got[3], 1e-5)
	}
}

// Greedy merging only bounds the error on average: a single input can lose more at K=4 than at K=2.
func TestMeanErrorDecreasesWithNodeCount(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	const inputs = 300
	errs := make(map[int]float32)
	var inverted int
	for range inputs {
		frags := randomFragments(rng, 16)
		want := Sorted(frags)
		e := make(map[int]float32)
		for _, k := range technique.AOITNodeCounts {
			e[k] = colorError(want, fill(k, frags).Composite())
			errs[k] += e[k]
		}
		if e[8] > e[4]+1e-5 || e[4] > e[2]+1e-5 {
			inverted++
		}
	}
	assert.LessOrEqual(t, errs[8]/inputs, errs[4]/inputs)
	assert.LessOrEqual(t, errs[4]/inputs, errs[2]/inputs)
	assert.Greater(t, errs[2], float32(0))
	assert.LessOrEqual(t, inverted, inputs/10)
}

func TestErrorOrderedPerInputWithinLargerBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(34))
	for range 200 {
		n := 1 + rng.Intn(8)
		frags := randomFragments(rng, n)
		want := Sorted(frags)
		e := make(map[int]float32)
		for _, k := range technique.AOITNodeCounts {
			e[k] = colorError(want, fill(k, frags).Composite())
		}
		assert.LessOrEqual(t, e[8], e[4]+1e-4, "n=%d", n)
		assert.LessOrEqual(t, e[8], e[2]+1e-4, "n=%d", n)
		if n <= 4 {
			assert.LessOrEqual(t, e[4], e[2]+1e-4, "n=%d", n)
		}
	}
}

func TestMergePreservesContribution(t *testing.T) {
	l := NewNodeList(2)
	l.Insert(1, mgl32.Vec3{1, 0, 0}, 0.5)
	l.Insert(2, mgl32.Vec3{0, 1, 0}, 0.5)
	before := l.Composite()

	// a third fragment behind everything forces a merge of the front pair
	l.Insert(50, mgl32.Vec3{0, 0, 1}, 0.5)
	require.Equal(t, 2, l.Len())
	after := l.Composite()
	assert.InDelta(t, before[0], after[0], 1e-6)
	assert.InDelta(t, before[1], after[1], 1e-6)
	assert.InDelta(t, 0.125, after[2], 1e-6)
	assert.InDelta(t, 0.875, after[3], 1e-6)
}

func TestEmptyListIsTransparent(t *testing.T) {
	bg := [4]float32{0.3, 0.2, 0.1, 1}
	assert.Equal(t, [4]float32{}, NewNodeList(4).Composite())
	assert.Equal(t, bg, NewNodeList(4).Over(bg))
}

func TestBufferLayout(t *testing.T) {
	assert.Equal(t, 1, RTCount(2))
	assert.Equal(t, 1, RTCount(4))
	assert.Equal(t, 2, RTCount(8))
	assert.False(t, HasDepthBuffer(2))
	assert.True(t, HasDepthBuffer(4))
	assert.Equal(t, uint64(64*48*2*16), BufferSize(8, 64, 48))

	m := Macros(8)
	assert.Equal(t, 8, m["AOIT_NODE_COUNT"])
	assert.Equal(t, 2, m["AOIT_RT_COUNT"])
	assert.Equal(t, 1, m["AOIT_DEPTH_BUFFER"])
}

func newContext(t *testing.T, caps renderer.Capabilities) (*technique.Context, headless.Backend) {
	t.Helper()
	b := headless.New(headless.WithCapabilities(caps))
	r := renderer.NewRenderer(b)
	ctx := &technique.Context{
		Renderer:      r,
		Features:      features.Features{},
		Width:         64,
		Height:        48,
		SurfaceFormat: b.SurfaceFormat(),
		MaxObjects:    16,
		Frames:        3,
	}
	var err error
	ctx.Depth, err = r.CreateTexture(resource.TextureDesc{
		Label: "depth", Width: 64, Height: 48, MipLevels: 1, Format: technique.DepthFormat,
		Usage: resource.TextureUsageDepthStencil | resource.TextureUsageShaderResource, ClearDepth: 1,
		InitialState: resource.StateDepthWrite, ResolutionDependent: true,
	})
	require.NoError(t, err)
	return ctx, b
}

func orderedCaps() renderer.Capabilities {
	return renderer.Capabilities{
		FragmentOrderedAccess: true,
		ComputeShaders:        true,
		StorageTextures:       true,
		MaxTextureDimension:   8192,
		MaxColorAttachments:   8,
		MaxBindGroups:         4,
	}
}

func TestUnsupportedWithoutOrderedAccess(t *testing.T) {
	caps := orderedCaps()
	caps.FragmentOrderedAccess = false
	assert.False(t, New().Supported(caps))
	assert.True(t, New().Supported(orderedCaps()))

	reg := technique.NewRegistry(caps, nil, New())
	assert.False(t, reg.Has(technique.TypeAdaptive))
	assert.Equal(t, []technique.Type{technique.TypeAdaptive}, reg.Unsupported())
}

func TestAllocateSizesBuffers(t *testing.T) {
	for _, k := range technique.AOITNodeCounts {
		ctx, _ := newContext(t, orderedCaps())
		tech := New()
		params := technique.DefaultParams()
		params.AOIT.NodeCount = k
		require.NoError(t, tech.Build(ctx, params))
		require.NoError(t, tech.Allocate(ctx))

		color, depth := tech.NodeBuffers()
		require.NotNil(t, color)
		assert.Equal(t, BufferSize(k, 64, 48), color.Desc.Size)
		if k == 2 {
			assert.Nil(t, depth)
			assert.Len(t, tech.Resources(), 2)
		} else {
			require.NotNil(t, depth)
			assert.Equal(t, color.Desc.Size, depth.Desc.Size)
			assert.Len(t, tech.Resources(), 3)
		}
		assert.Equal(t, ClearMaskFormat, tech.ClearMask().Desc.Format)

		mask := tech.ClearMask()
		tech.Release(ctx)
		tech.ReleasePipelines(ctx)
		assert.False(t, ctx.Renderer.IsLive(mask.ID))
		assert.False(t, ctx.Renderer.IsLive(color.ID))
		assert.Nil(t, ctx.Renderer.Pipeline(keyShade))
	}
}

func TestNeedsRebuildOnNodeCount(t *testing.T) {
	old := technique.DefaultParams()
	changed := old
	changed.AOIT.NodeCount = 8
	tech := New()
	assert.True(t, tech.NeedsRebuild(old, changed))

	tweaked := old
	tweaked.WBOIT.DepthRange = 10
	assert.False(t, tech.NeedsRebuild(old, tweaked))
}

func TestBuildRejectsInvalidNodeCount(t *testing.T) {
	ctx, _ := newContext(t, orderedCaps())
	params := technique.DefaultParams()
	params.AOIT.NodeCount = 3
	assert.ErrorIs(t, New().Build(ctx, params), technique.ErrInvalidParams)
}

func TestAccumulateTransitions(t *testing.T) {
	ctx, b := newContext(t, orderedCaps())
	tech := New()
	require.NoError(t, tech.Build(ctx, technique.DefaultParams()))
	require.NoError(t, tech.Allocate(ctx))

	geom, err := ctx.Renderer.CreateBuffer(resource.BufferDesc{Label: "geometry", Size: 6 * 32, Usage: resource.BufferUsageVertex})
	require.NoError(t, err)

	tracker := pass.NewTracker()
	tracker.Track(ctx.Depth, resource.StateDepthWrite)
	for _, u := range tech.Resources() {
		tracker.Track(u.Resource, u.State)
	}

	draws := 0
	frame := technique.Frame{
		Slot:   0,
		Params: technique.DefaultParams(),
		DrawTransparent: func(rec renderer.CommandRecorder) {
			draws++
			rec.SetVertexBuffer(0, geom)
			rec.Draw(6, 1, 0, 0)
		},
	}
	stages := append(tech.Accumulate(ctx, frame), pass.Stage{
		Name: pass.StageComposite,
		Uses: tech.ResolveUses(ctx),
	})

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	require.NoError(t, tracker.Execute(rec, stages))
	require.NoError(t, b.Submit(0, rec))
	assert.Equal(t, 1, draws)

	sub, ok := b.LastSubmission()
	require.True(t, ok)
	assert.Equal(t, []string{"Accumulate/aoit-clear", "Accumulate/aoit-shade", "Composite"}, sub.DebugGroups())

	state, ok := tracker.State(tech.ClearMask().ID)
	require.True(t, ok)
	assert.Equal(t, resource.StateShaderResource, state)
	color, _ := tech.NodeBuffers()
	state, _ = tracker.State(color.ID)
	assert.Equal(t, resource.StateShaderResource, state)
}
