package pass

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/headless"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTarget(t *testing.T, b headless.Backend, label string) *resource.Texture {
	t.Helper()
	tex, err := b.CreateTexture(resource.TextureDesc{
		Label:        label,
		Width:        8,
		Height:       8,
		Format:       resource.FormatRGBA16Float,
		Usage:        resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource,
		InitialState: resource.StateRenderTarget,
	})
	require.NoError(t, err)
	return tex
}

func clearStage(name string, target *resource.Texture) Stage {
	return Stage{
		Name: name,
		Uses: []Use{{Resource: target, State: resource.StateRenderTarget}},
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{Label: name, Color: []renderer.ColorAttachment{{Target: target}}})
			rec.EndRenderPass()
			return nil
		},
	}
}

func TestExecuteTransitionsBeforeRead(t *testing.T) {
	b := headless.New()
	accum := newTarget(t, b, "accum")
	out := newTarget(t, b, "out")

	tr := NewTracker()
	tr.Track(accum, resource.StateRenderTarget)
	tr.Track(out, resource.StateRenderTarget)

	stages := []Stage{
		clearStage(StageAccumulate, accum),
		{
			Name: StageComposite,
			Uses: []Use{
				{Resource: accum, State: resource.StateShaderResource},
				{Resource: out, State: resource.StateRenderTarget},
			},
		},
		clearStage(StageUI, out),
		// the next frame writes accum again
	}

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	require.NoError(t, tr.Execute(rec, stages))
	require.NoError(t, b.Submit(0, rec))

	sub, ok := b.LastSubmission()
	require.True(t, ok)
	barriers := sub.Filter(headless.CommandBarrier)
	require.Len(t, barriers, 1)
	require.Len(t, barriers[0].Transitions, 1)
	assert.Equal(t, accum.ID, barriers[0].Transitions[0].Resource.ResourceID())
	assert.Equal(t, resource.StateShaderResource, barriers[0].Transitions[0].To)
	assert.Equal(t, []string{StageAccumulate, StageComposite, StageUI}, sub.DebugGroups())

	state, ok := tr.State(accum.ID)
	require.True(t, ok)
	assert.Equal(t, resource.StateShaderResource, state)

	// second frame: accum must be moved back before it is written
	rec, err = b.BeginCommands(1)
	require.NoError(t, err)
	require.NoError(t, tr.Execute(rec, stages[:1]))
	require.NoError(t, b.Submit(1, rec))
	sub, _ = b.LastSubmission()
	barriers = sub.Filter(headless.CommandBarrier)
	require.Len(t, barriers, 1)
	assert.Equal(t, resource.StateShaderResource, barriers[0].Transitions[0].From)
	assert.Equal(t, resource.StateRenderTarget, barriers[0].Transitions[0].To)
}

func TestStageRejectsWritableAndReadable(t *testing.T) {
	b := headless.New()
	tex := newTarget(t, b, "self")
	tr := NewTracker()
	tr.Track(tex, resource.StateRenderTarget)

	stage := Stage{
		Name: StageComposite,
		Uses: []Use{
			{Resource: tex, State: resource.StateRenderTarget},
			{Resource: tex, State: resource.StateShaderResource},
		},
	}
	_, err := tr.Plan(stage)
	assert.ErrorIs(t, err, ErrHazard)

	rec, err := b.BeginCommands(0)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Execute(rec, []Stage{stage}), ErrHazard)
}

func TestPlanRequiresTrackedResources(t *testing.T) {
	b := headless.New()
	tex := newTarget(t, b, "unknown")
	_, err := NewTracker().Plan(Stage{Name: StageOpaque, Uses: []Use{{Resource: tex, State: resource.StateRenderTarget}}})
	assert.ErrorIs(t, err, ErrUntracked)
}

func TestForgetAndReset(t *testing.T) {
	b := headless.New()
	a := newTarget(t, b, "a")
	c := newTarget(t, b, "c")
	tr := NewTracker()
	tr.Track(a, resource.StateRenderTarget)
	tr.Track(c, resource.StateRenderTarget)
	assert.Equal(t, 2, tr.Tracked())

	tr.Forget(a.ID)
	_, ok := tr.State(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Tracked())

	tr.Reset()
	assert.Zero(t, tr.Tracked())
}

func TestValidateOrder(t *testing.T) {
	ok := []Stage{{Name: StageShadow}, {Name: StageShadow}, {Name: StageOpaque}, {Name: StageAccumulate}, {Name: StagePresent}}
	assert.NoError(t, ValidateOrder(ok))

	assert.ErrorIs(t, ValidateOrder([]Stage{{Name: StageComposite}, {Name: StageAccumulate}}), ErrOutOfOrder)
	assert.ErrorIs(t, ValidateOrder([]Stage{{Name: "Bloom"}}), ErrOutOfOrder)
}

func TestReadsAndWrites(t *testing.T) {
	b := headless.New()
	a := newTarget(t, b, "a")
	c := newTarget(t, b, "c")
	s := Stage{Name: StageComposite, Uses: []Use{
		{Resource: a, State: resource.StateShaderResource},
		{Resource: c, State: resource.StateRenderTarget},
	}}
	assert.Equal(t, []resource.Resource{a}, s.Reads())
	assert.Equal(t, []resource.Resource{c}, s.Writes())
}
