// Package alpha_blend implements the sorted alpha blending baseline. Transparent draw calls are
// blended over the opaque image with (SrcAlpha, OneMinusSrcAlpha) in the order the draw-call
// compiler emits them, which is back to front when object sorting is enabled. There is no
// resolve step: the result is already in the scene color target.
package alpha_blend

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

//go:embed assets/blend.wgsl
var blendSource string

const keyBlend = "alpha-blend.blend"

// alphaBlend is the implementation of the AlphaBlend interface.
type alphaBlend struct {
	blend pipeline.Pipeline
}

// AlphaBlend is the sorted alpha blending technique.
type AlphaBlend interface {
	technique.Technique

	// Pipeline returns the blend pipeline, nil before Build.
	Pipeline() pipeline.Pipeline
}

var _ AlphaBlend = &alphaBlend{}

// New creates the alpha blending technique.
func New() AlphaBlend {
	return &alphaBlend{}
}

func (a *alphaBlend) Type() technique.Type {
	return technique.TypeAlphaBlend
}

func (a *alphaBlend) Pipeline() pipeline.Pipeline {
	return a.blend
}

// Supported is always true, alpha blending is the fallback every device runs.
func (a *alphaBlend) Supported(_ renderer.Capabilities) bool {
	return true
}

func (a *alphaBlend) Build(ctx *technique.Context, _ technique.Params) error {
	vs, fs, err := technique.NewShaderPair(keyBlend, blendSource, ctx.Macros(nil))
	if err != nil {
		return err
	}
	over := pipeline.BlendStateAlphaBlending
	a.blend = pipeline.NewPipeline(keyBlend, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTarget(technique.SceneColorFormat, &over),
		pipeline.WithDepthFormat(technique.DepthFormat),
		pipeline.WithDepthWriteEnabled(false),
	)
	if err := ctx.Renderer.RegisterPipelines(a.blend); err != nil {
		return fmt.Errorf("alpha-blend: %w", err)
	}
	return nil
}

func (a *alphaBlend) Allocate(_ *technique.Context) error {
	return nil
}

func (a *alphaBlend) Release(_ *technique.Context) {}

func (a *alphaBlend) ReleasePipelines(ctx *technique.Context) {
	ctx.Renderer.ReleasePipelines(keyBlend)
	a.blend = nil
}

func (a *alphaBlend) Resources() []pass.Use {
	return nil
}

// NeedsRebuild is always false: sorting is done on the CPU by the draw-call compiler.
func (a *alphaBlend) NeedsRebuild(_, _ technique.Params) bool {
	return false
}

func (a *alphaBlend) Prepare(_ *technique.Context, _ technique.Frame) error {
	return nil
}

func (a *alphaBlend) Accumulate(ctx *technique.Context, frame technique.Frame) []pass.Stage {
	uses := []pass.Use{
		{Resource: ctx.SceneColor, State: resource.StateRenderTarget},
		{Resource: ctx.Depth, State: resource.StateDepthRead},
	}
	return []pass.Stage{{
		Name:  pass.StageAccumulate,
		Label: pass.StageAccumulate + "/" + technique.TypeAlphaBlend.String(),
		Uses:  append(uses, frame.SceneUses...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: keyBlend,
				Color: []renderer.ColorAttachment{{Target: ctx.SceneColor, Load: renderer.LoadActionLoad}},
				Depth: &renderer.DepthAttachment{Target: ctx.Depth, Load: renderer.LoadActionLoad, ReadOnly: true},
			})
			rec.SetPipeline(a.blend)
			frame.DrawTransparent(rec)
			rec.EndRenderPass()
			return nil
		},
	}}
}

func (a *alphaBlend) ResolveUses(_ *technique.Context) []pass.Use {
	return nil
}

func (a *alphaBlend) Resolve(_ *technique.Context, _ renderer.CommandRecorder, _ technique.Frame) {}
