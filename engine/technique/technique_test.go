package technique

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-oit/engine/features"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTechnique satisfies Technique with no GPU work.
type stubTechnique struct {
	kind          Type
	needsOrdering bool
}

func (s *stubTechnique) Type() Type { return s.kind }
func (s *stubTechnique) Supported(caps renderer.Capabilities) bool {
	return !s.needsOrdering || caps.FragmentOrderedAccess
}
func (s *stubTechnique) Build(*Context, Params) error { return nil }
func (s *stubTechnique) Allocate(*Context) error { return nil }
func (s *stubTechnique) Release(*Context) {}
func (s *stubTechnique) ReleasePipelines(*Context) {}
func (s *stubTechnique) Resources() []pass.Use { return nil }
func (s *stubTechnique) NeedsRebuild(Params, Params) bool { return false }
func (s *stubTechnique) Prepare(*Context, Frame) error { return nil }
func (s *stubTechnique) Accumulate(*Context, Frame) []pass.Stage { return nil }
func (s *stubTechnique) ResolveUses(*Context) []pass.Use { return nil }
func (s *stubTechnique) Resolve(*Context, renderer.CommandRecorder, Frame) {}

func candidates() []Technique {
	return []Technique{
		&stubTechnique{kind: TypeAlphaBlend},
		&stubTechnique{kind: TypeWeightedBlended},
		&stubTechnique{kind: TypeAdaptive, needsOrdering: true},
	}
}

func TestRegistryExcludesUnsupported(t *testing.T) {
	reg := NewRegistry(renderer.Capabilities{}, nil, candidates()...)
	assert.Equal(t, []Type{TypeAlphaBlend, TypeWeightedBlended}, reg.Types())
	assert.Equal(t, []Type{TypeAdaptive}, reg.Unsupported())
	_, ok := reg.Get(TypeAdaptive)
	assert.False(t, ok)

	reg = NewRegistry(renderer.Capabilities{FragmentOrderedAccess: true}, nil, candidates()...)
	assert.True(t, reg.Has(TypeAdaptive))
	assert.Empty(t, reg.Unsupported())
	assert.Len(t, reg.All(), 3)
}

func TestSelectorSwitchesAtCommit(t *testing.T) {
	reg := NewRegistry(renderer.Capabilities{}, nil, candidates()...)
	sel, err := NewSelector(reg, TypeWeightedBlended)
	require.NoError(t, err)

	require.NoError(t, sel.Select(TypeAlphaBlend))
	assert.Equal(t, TypeWeightedBlended, sel.Active())
	pending, ok := sel.Pending()
	assert.True(t, ok)
	assert.Equal(t, TypeAlphaBlend, pending)

	prev, changed := sel.Commit()
	assert.True(t, changed)
	assert.Equal(t, TypeWeightedBlended, prev)
	assert.Equal(t, TypeAlphaBlend, sel.Active())

	_, changed = sel.Commit()
	assert.False(t, changed)
}

func TestSelectorRejectsUnregistered(t *testing.T) {
	reg := NewRegistry(renderer.Capabilities{}, nil, candidates()...)
	sel, err := NewSelector(reg, TypeAlphaBlend)
	require.NoError(t, err)

	err = sel.Select(TypeAdaptive)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Equal(t, TypeAlphaBlend, sel.Active())
	_, ok := sel.Pending()
	assert.False(t, ok)

	_, err = NewSelector(reg, TypePhenomenological)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSelectingActiveCancelsPending(t *testing.T) {
	reg := NewRegistry(renderer.Capabilities{}, nil, candidates()...)
	sel, err := NewSelector(reg, TypeAlphaBlend)
	require.NoError(t, err)

	require.NoError(t, sel.Select(TypeWeightedBlended))
	require.NoError(t, sel.Select(TypeAlphaBlend))
	_, changed := sel.Commit()
	assert.False(t, changed)
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	got, err := ParseType(" WBOIT-Volition ")
	require.NoError(t, err)
	assert.Equal(t, TypeWeightedBlendedVolition, got)

	_, err = ParseType("depth-peeling")
	assert.Error(t, err)

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("aoit")))
	assert.Equal(t, TypeAdaptive, typ)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	cases := map[string]func(p *Params){
		"node count":         func(p *Params) { p.AOIT.NodeCount = 3 },
		"depth range":        func(p *Params) { p.WBOIT.DepthRange = 0 },
		"overflow":           func(p *Params) { p.WBOIT.OverflowLimit = p.WBOIT.UnderflowLimit / 2 },
		"max weight":         func(p *Params) { p.Volition.MaximumWeight = -1 },
		"refraction scale":   func(p *Params) { p.Phenomenological.RefractionScale = -0.5 },
		"precision scalar":   func(p *Params) { p.Volition.PrecisionScalar = 0 },
		"negative exponents": func(p *Params) { p.WBOIT.OrderingStrength = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestParamsReset(t *testing.T) {
	p := DefaultParams()
	p.WBOIT.DepthRange = 5
	p.AOIT.NodeCount = 8

	p = p.Reset(TypeWeightedBlended)
	assert.Equal(t, DefaultWBOITParams(), p.WBOIT)
	assert.Equal(t, 8, p.AOIT.NodeCount)

	p = p.Reset(TypeAdaptive)
	assert.Equal(t, DefaultParams(), p)
}

func TestNewShaderIncludesSceneBindings(t *testing.T) {
	ctx := &Context{Features: features.Features{Shadows: true, Caustics: true}, MaxObjects: 128}
	src := "//@oxy:include scene\n@fragment\nfn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {\n    return shadeSurface(in);\n}\n"

	vs, fs, err := NewShaderPair("test", src, ctx.Macros(nil))
	require.NoError(t, err)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, "fs_main", fs.EntryPoint())
	require.NotNil(t, vs.VertexLayout())
	assert.Equal(t, uint64(32), vs.VertexLayout().Stride)

	groups := map[int]int{}
	for _, b := range fs.Bindings() {
		groups[b.Group]++
	}
	assert.Equal(t, 4, groups[0])
	assert.Equal(t, 3, groups[1])
	assert.Contains(t, fs.Source(), "const MAX_NUM_OBJECTS: u32 = 128u;")

	ctx.Features = features.Features{}
	fs, err = NewShader("test.fs", shader.ShaderTypeFragment, src, ctx.Macros(nil))
	require.NoError(t, err)
	for _, b := range fs.Bindings() {
		assert.Equal(t, 0, b.Group)
	}
}

func TestFullscreenChunkHasNoVertexBuffer(t *testing.T) {
	src := "//@oxy:include fullscreen\n@fragment\nfn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> {\n    return vec4<f32>(in.uv, 0.0, 1.0);\n}\n"
	vs, err := NewShader("fs.vs", shader.ShaderTypeVertex, src, shader.Macros{"USE_SHADOWS": 0, "PT_USE_CAUSTICS": 0, "MAX_NUM_OBJECTS": 1})
	require.NoError(t, err)
	assert.Equal(t, "vs_fullscreen", vs.EntryPoint())
	assert.Nil(t, vs.VertexLayout())
}
