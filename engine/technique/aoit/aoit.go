// Package aoit implements adaptive order-independent transparency. Every pixel keeps a short
// list of nodes approximating its visibility function. The shade pass inserts each fragment in
// depth order and, once the list is full, merges the adjacent pair whose removal changes the
// visibility function least. The list is composited front to back in a fullscreen resolve.
//
// The shade pass reads and writes the node list of its pixel, which requires rasterizer ordered
// access. The technique reports itself unsupported on devices without it.
package aoit

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

//go:embed assets/shade.wgsl
var shadeSource string

//go:embed assets/resolve.wgsl
var resolveSource string

const (
	keyShade   = "aoit.shade"
	keyResolve = "aoit.resolve"
)

// aoit is the implementation of the AOIT interface.
type aoit struct {
	// nodeCount is the node budget the pipelines and buffers were built for.
	nodeCount int

	shade   pipeline.Pipeline
	resolve pipeline.Pipeline

	clearMask  *resource.Texture
	colorNodes *resource.Buffer
	depthNodes *resource.Buffer

	shadeGroup   bind_group_provider.BindGroupProvider
	resolveGroup bind_group_provider.BindGroupProvider
}

// AOIT is the adaptive OIT technique.
type AOIT interface {
	technique.Technique

	// NodeCount returns the node budget of the current build, zero before Build.
	NodeCount() int

	// ClearMask returns the per-pixel initialization mask, nil before Allocate.
	ClearMask() *resource.Texture

	// NodeBuffers returns the color and depth node buffers. The depth buffer is nil with two
	// nodes per pixel.
	NodeBuffers() (color, depth *resource.Buffer)
}

var _ AOIT = &aoit{}

// New creates the adaptive OIT technique.
func New() AOIT {
	return &aoit{}
}

func (a *aoit) Type() technique.Type {
	return technique.TypeAdaptive
}

func (a *aoit) NodeCount() int {
	return a.nodeCount
}

func (a *aoit) ClearMask() *resource.Texture {
	return a.clearMask
}

func (a *aoit) NodeBuffers() (*resource.Buffer, *resource.Buffer) {
	return a.colorNodes, a.depthNodes
}

func (a *aoit) Supported(caps renderer.Capabilities) bool {
	return caps.FragmentOrderedAccess
}

func (a *aoit) Build(ctx *technique.Context, params technique.Params) error {
	if err := params.AOIT.Validate(); err != nil {
		return err
	}
	a.nodeCount = params.AOIT.NodeCount
	macros := ctx.Macros(Macros(a.nodeCount))

	vs, fs, err := technique.NewShaderPair(keyShade, shadeSource, macros)
	if err != nil {
		return err
	}
	a.shade = pipeline.NewPipeline(keyShade, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithDepthFormat(technique.DepthFormat),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithCullMode(pipeline.CullModeNone),
	)

	rvs, rfs, err := technique.NewShaderPair(keyResolve, resolveSource, macros)
	if err != nil {
		return err
	}
	over := pipeline.BlendStatePremultiplied
	a.resolve = pipeline.NewPipeline(keyResolve, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(rvs),
		pipeline.WithFragmentShader(rfs),
		pipeline.WithColorTarget(ctx.SurfaceFormat, &over),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)

	if err := ctx.Renderer.RegisterPipelines(a.shade, a.resolve); err != nil {
		return fmt.Errorf("aoit: %w", err)
	}
	ctx.Log().Info("aoit pipelines built", "nodes", a.nodeCount, "blocks", RTCount(a.nodeCount))
	return nil
}

func (a *aoit) Allocate(ctx *technique.Context) error {
	if a.nodeCount == 0 {
		return fmt.Errorf("aoit: allocate before build")
	}
	mask, err := ctx.CreateTarget(technique.Target{
		Label:  "aoit.clear-mask",
		Format: ClearMaskFormat,
		Clear:  resource.ColorTransparentBlack,
		Usage:  resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource | resource.TextureUsageStorage,
	})
	if err != nil {
		return fmt.Errorf("aoit: %w", err)
	}
	a.clearMask = mask

	nodeBuffer := func(label string) (*resource.Buffer, error) {
		return ctx.Renderer.CreateBuffer(resource.BufferDesc{
			Label:               label,
			Size:                BufferSize(a.nodeCount, ctx.Width, ctx.Height),
			Usage:               resource.BufferUsageStorage,
			InitialState:        resource.StateUnorderedAccess,
			ResolutionDependent: true,
		})
	}
	if a.colorNodes, err = nodeBuffer("aoit.color-nodes"); err != nil {
		a.Release(ctx)
		return fmt.Errorf("aoit: %w", err)
	}
	if HasDepthBuffer(a.nodeCount) {
		if a.depthNodes, err = nodeBuffer("aoit.depth-nodes"); err != nil {
			a.Release(ctx)
			return fmt.Errorf("aoit: %w", err)
		}
	}

	shadeOpts := []bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithLabel(keyShade),
		bind_group_provider.WithTexture(0, a.clearMask),
		bind_group_provider.WithBuffer(1, a.colorNodes),
	}
	if a.depthNodes != nil {
		shadeOpts = append(shadeOpts, bind_group_provider.WithBuffer(2, a.depthNodes))
	}
	a.shadeGroup = bind_group_provider.NewBindGroupProvider(shadeOpts...)
	a.resolveGroup = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel(keyResolve),
		bind_group_provider.WithTexture(0, a.clearMask),
		bind_group_provider.WithBuffer(1, a.colorNodes),
	)
	return nil
}

func (a *aoit) Release(ctx *technique.Context) {
	ctx.Renderer.Release(a.clearMask, a.colorNodes, a.depthNodes)
	a.clearMask, a.colorNodes, a.depthNodes = nil, nil, nil
	for _, g := range []bind_group_provider.BindGroupProvider{a.shadeGroup, a.resolveGroup} {
		if g != nil {
			g.Release()
		}
	}
	a.shadeGroup, a.resolveGroup = nil, nil
}

func (a *aoit) ReleasePipelines(ctx *technique.Context) {
	ctx.Renderer.ReleasePipelines(keyShade, keyResolve)
	a.shade, a.resolve = nil, nil
	a.nodeCount = 0
}

func (a *aoit) Resources() []pass.Use {
	if a.clearMask == nil {
		return nil
	}
	uses := []pass.Use{
		{Resource: a.clearMask, State: resource.StateRenderTarget},
		{Resource: a.colorNodes, State: resource.StateUnorderedAccess},
	}
	if a.depthNodes != nil {
		uses = append(uses, pass.Use{Resource: a.depthNodes, State: resource.StateUnorderedAccess})
	}
	return uses
}

// NeedsRebuild reports a node count change, which resizes the shader arrays and the buffers.
func (a *aoit) NeedsRebuild(old, new technique.Params) bool {
	return old.AOIT.NodeCount != new.AOIT.NodeCount
}

func (a *aoit) Prepare(_ *technique.Context, _ technique.Frame) error {
	return nil
}

func (a *aoit) Accumulate(ctx *technique.Context, frame technique.Frame) []pass.Stage {
	clearStage := pass.Stage{
		Name:  pass.StageAccumulate,
		Label: pass.StageAccumulate + "/aoit-clear",
		Uses:  []pass.Use{{Resource: a.clearMask, State: resource.StateRenderTarget}},
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: "aoit.clear",
				Color: []renderer.ColorAttachment{{Target: a.clearMask, Load: renderer.LoadActionClear}},
			})
			rec.EndRenderPass()
			return nil
		},
	}

	uses := []pass.Use{
		{Resource: a.clearMask, State: resource.StateUnorderedAccess},
		{Resource: a.colorNodes, State: resource.StateUnorderedAccess},
		{Resource: ctx.Depth, State: resource.StateDepthRead},
	}
	if a.depthNodes != nil {
		uses = append(uses, pass.Use{Resource: a.depthNodes, State: resource.StateUnorderedAccess})
	}
	shadeStage := pass.Stage{
		Name:  pass.StageAccumulate,
		Label: pass.StageAccumulate + "/aoit-shade",
		Uses:  append(uses, frame.SceneUses...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: keyShade,
				Depth: &renderer.DepthAttachment{Target: ctx.Depth, Load: renderer.LoadActionLoad, ReadOnly: true},
			})
			rec.SetPipeline(a.shade)
			rec.SetBindGroup(2, a.shadeGroup)
			frame.DrawTransparent(rec)
			rec.EndRenderPass()
			return nil
		},
	}
	return []pass.Stage{clearStage, shadeStage}
}

func (a *aoit) ResolveUses(_ *technique.Context) []pass.Use {
	return []pass.Use{
		{Resource: a.clearMask, State: resource.StateShaderResource},
		{Resource: a.colorNodes, State: resource.StateShaderResource},
	}
}

func (a *aoit) Resolve(_ *technique.Context, rec renderer.CommandRecorder, _ technique.Frame) {
	rec.SetPipeline(a.resolve)
	rec.SetBindGroup(0, a.resolveGroup)
	rec.Draw(3, 1, 0, 0)
}
