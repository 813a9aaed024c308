// Package wboit implements weighted blended order-independent transparency and its Volition
// variant. Transparent fragments add their weighted color to an RGBA16Float target and multiply
// their transmittance into an R8Unorm revealage target, both with fixed-function blending, so
// the result does not depend on draw order.
package wboit

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

//go:embed assets/accumulate.wgsl
var accumulateSource string

//go:embed assets/resolve.wgsl
var resolveSource string

// wboit is the implementation of the WBOIT interface.
type wboit struct {
	volition bool

	accumulate pipeline.Pipeline
	resolve    pipeline.Pipeline
	uniforms   technique.SlotUniforms

	revealage    *resource.Texture
	resolveGroup bind_group_provider.BindGroupProvider
}

// WBOIT is a weighted blended technique.
type WBOIT interface {
	technique.Technique

	// Revealage returns the revealage target, nil before Allocate.
	Revealage() *resource.Texture

	// Volition reports whether the Volition weight function is used.
	Volition() bool
}

var _ WBOIT = &wboit{}

// New creates the standard weighted blended technique.
func New() WBOIT {
	return &wboit{}
}

// NewVolition creates the Volition variant, which normalizes depth by the far plane, clamps
// color and treats emissive fragments as partly additive.
func NewVolition() WBOIT {
	return &wboit{volition: true}
}

func (w *wboit) Type() technique.Type {
	if w.volition {
		return technique.TypeWeightedBlendedVolition
	}
	return technique.TypeWeightedBlended
}

func (w *wboit) Volition() bool {
	return w.volition
}

func (w *wboit) Revealage() *resource.Texture {
	return w.revealage
}

func (w *wboit) key(suffix string) string {
	return w.Type().String() + "." + suffix
}

func (w *wboit) Supported(caps renderer.Capabilities) bool {
	return caps.MaxColorAttachments >= 2
}

func (w *wboit) Build(ctx *technique.Context, _ technique.Params) error {
	macros := ctx.Macros(shader.Macros{"WBOIT_VOLITION": shader.Flag(w.volition)})

	vs, fs, err := technique.NewShaderPair(w.key("accumulate"), accumulateSource, macros)
	if err != nil {
		return err
	}
	add, reveal := pipeline.BlendStateAdd, pipeline.BlendStateRevealage
	w.accumulate = pipeline.NewPipeline(w.key("accumulate"), pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTarget(technique.AccumulationFormat, &add),
		pipeline.WithColorTarget(RevealageFormat, &reveal),
		pipeline.WithDepthFormat(technique.DepthFormat),
		pipeline.WithDepthWriteEnabled(false),
	)

	rvs, rfs, err := technique.NewShaderPair(w.key("resolve"), resolveSource, macros)
	if err != nil {
		return err
	}
	over := pipeline.BlendStateAlphaBlending
	w.resolve = pipeline.NewPipeline(w.key("resolve"), pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(rvs),
		pipeline.WithFragmentShader(rfs),
		pipeline.WithColorTarget(ctx.SurfaceFormat, &over),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)

	if err := ctx.Renderer.RegisterPipelines(w.accumulate, w.resolve); err != nil {
		return fmt.Errorf("%s: %w", w.Type(), err)
	}

	var u GPUWeightUniform
	w.uniforms, err = ctx.CreateSlotUniforms(w.key("weights"), uint64(u.Size()), 0)
	if err != nil {
		return fmt.Errorf("%s: %w", w.Type(), err)
	}
	return nil
}

func (w *wboit) Allocate(ctx *technique.Context) error {
	reveal, err := ctx.CreateTarget(technique.Target{
		Label:  w.key("revealage"),
		Format: RevealageFormat,
		Clear:  resource.ColorOpaqueWhite,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", w.Type(), err)
	}
	w.revealage = reveal
	w.resolveGroup = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel(w.key("resolve")),
		bind_group_provider.WithTexture(0, ctx.Accumulation),
		bind_group_provider.WithTexture(1, reveal),
	)
	return nil
}

func (w *wboit) Release(ctx *technique.Context) {
	if w.revealage != nil {
		ctx.Renderer.Release(w.revealage)
		w.revealage = nil
	}
	if w.resolveGroup != nil {
		w.resolveGroup.Release()
		w.resolveGroup = nil
	}
}

func (w *wboit) ReleasePipelines(ctx *technique.Context) {
	ctx.Renderer.ReleasePipelines(w.key("accumulate"), w.key("resolve"))
	w.uniforms.Release(ctx.Renderer)
	w.uniforms = technique.SlotUniforms{}
	w.accumulate, w.resolve = nil, nil
}

func (w *wboit) Resources() []pass.Use {
	if w.revealage == nil {
		return nil
	}
	return []pass.Use{{Resource: w.revealage, State: resource.StateRenderTarget}}
}

func (w *wboit) NeedsRebuild(_, _ technique.Params) bool {
	return false
}

func (w *wboit) Prepare(ctx *technique.Context, frame technique.Frame) error {
	u := NewWeightUniform(frame.Params, w.volition, frame.Far)
	return w.uniforms.Write(ctx.Renderer, frame.Slot, u.Marshal())
}

func (w *wboit) Accumulate(ctx *technique.Context, frame technique.Frame) []pass.Stage {
	uses := []pass.Use{
		{Resource: ctx.Accumulation, State: resource.StateRenderTarget},
		{Resource: w.revealage, State: resource.StateRenderTarget},
		{Resource: ctx.Depth, State: resource.StateDepthRead},
	}
	return []pass.Stage{{
		Name:  pass.StageAccumulate,
		Label: pass.StageAccumulate + "/" + w.Type().String(),
		Uses:  append(uses, frame.SceneUses...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: w.key("accumulate"),
				Color: []renderer.ColorAttachment{
					{Target: ctx.Accumulation, Load: renderer.LoadActionClear},
					{Target: w.revealage, Load: renderer.LoadActionClear},
				},
				Depth: &renderer.DepthAttachment{Target: ctx.Depth, Load: renderer.LoadActionLoad, ReadOnly: true},
			})
			rec.SetPipeline(w.accumulate)
			rec.SetBindGroup(2, w.uniforms.Group(frame.Slot))
			frame.DrawTransparent(rec)
			rec.EndRenderPass()
			return nil
		},
	}}
}

func (w *wboit) ResolveUses(ctx *technique.Context) []pass.Use {
	return []pass.Use{
		{Resource: ctx.Accumulation, State: resource.StateShaderResource},
		{Resource: w.revealage, State: resource.StateShaderResource},
	}
}

func (w *wboit) Resolve(_ *technique.Context, rec renderer.CommandRecorder, _ technique.Frame) {
	rec.SetPipeline(w.resolve)
	rec.SetBindGroup(0, w.resolveGroup)
	rec.Draw(3, 1, 0, 0)
}
