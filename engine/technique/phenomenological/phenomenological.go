// Package phenomenological implements phenomenological transparency. On top of the weighted
// average color of weighted blended OIT, transparent surfaces multiply a per-channel modulation
// target, so colored glass tints what lies behind it. They also accumulate a diffusion amount
// that selects a blurred level of the opaque image, and a screen-space refraction offset that
// bends the background lookup. The composite replaces the opaque image where any surface
// absorbed light.
package phenomenological

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

//go:embed assets/shade.wgsl
var shadeSource string

//go:embed assets/depth_copy.wgsl
var depthCopySource string

//go:embed assets/mipgen.wgsl
var mipgenSource string

//go:embed assets/composite.wgsl
var compositeSource string

const (
	keyShade     = "phenomenological.shade"
	keyDepthCopy = "phenomenological.depth-copy"
	keyMipgen    = "phenomenological.mipgen"
	keyComposite = "phenomenological.composite"
	keyUniforms  = "phenomenological.params"
)

// phenomenological is the implementation of the Phenomenological interface.
type phenomenological struct {
	diffusion  bool
	refraction bool

	shade     pipeline.Pipeline
	depthCopy pipeline.Pipeline
	mipgen    pipeline.Pipeline
	composite pipeline.Pipeline
	uniforms  technique.SlotUniforms

	modulation *resource.Texture
	refract    *resource.Texture
	depth      *resource.Texture

	depthCopyGroup bind_group_provider.BindGroupProvider
	compositeGroup bind_group_provider.BindGroupProvider
	// mipGroups holds one provider per generated level, reading level i-1 and writing level i
	mipGroups []bind_group_provider.BindGroupProvider
}

// Phenomenological is the phenomenological transparency technique.
type Phenomenological interface {
	technique.Technique
	technique.BackgroundReader

	// Modulation returns the modulation target, nil before Allocate.
	Modulation() *resource.Texture

	// Refraction returns the refraction offset target, nil without the refraction feature.
	Refraction() *resource.Texture

	// DepthCopy returns the copy of the scene depth read by the shade pass, nil without the
	// diffusion feature.
	DepthCopy() *resource.Texture
}

var _ Phenomenological = &phenomenological{}

// New creates the phenomenological technique.
func New() Phenomenological {
	return &phenomenological{}
}

func (p *phenomenological) Type() technique.Type {
	return technique.TypePhenomenological
}

func (p *phenomenological) Modulation() *resource.Texture {
	return p.modulation
}

func (p *phenomenological) Refraction() *resource.Texture {
	return p.refract
}

func (p *phenomenological) DepthCopy() *resource.Texture {
	return p.depth
}

func (p *phenomenological) Supported(caps renderer.Capabilities) bool {
	return caps.MaxColorAttachments >= 2
}

func (p *phenomenological) Build(ctx *technique.Context, params technique.Params) error {
	if err := params.Phenomenological.Validate(); err != nil {
		return err
	}
	p.diffusion = ctx.Features.Diffusion
	p.refraction = ctx.Features.Refraction
	macros := ctx.Macros(shader.Macros{"PT_MAX_DIFFUSION_RADIUS": int(MaxDiffusionRadius)})

	vs, fs, err := technique.NewShaderPair(keyShade, shadeSource, macros)
	if err != nil {
		return err
	}
	add, absorb := pipeline.BlendStateAdd, pipeline.BlendStateAbsorb
	shadeOpts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithColorTarget(technique.AccumulationFormat, &add),
		pipeline.WithColorTarget(ModulationFormat, &absorb),
		pipeline.WithDepthFormat(technique.DepthFormat),
		pipeline.WithDepthWriteEnabled(false),
	}
	if p.refraction {
		shadeOpts = append(shadeOpts, pipeline.WithMaskedColorTarget(RefractionFormat, &add, pipeline.WriteMaskRed|pipeline.WriteMaskGreen))
	}
	p.shade = pipeline.NewPipeline(keyShade, pipeline.PipelineTypeRender, shadeOpts...)

	cvs, cfs, err := technique.NewShaderPair(keyComposite, compositeSource, macros)
	if err != nil {
		return err
	}
	p.composite = pipeline.NewPipeline(keyComposite, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(cvs),
		pipeline.WithFragmentShader(cfs),
		pipeline.WithColorTarget(ctx.SurfaceFormat, nil),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)
	pipelines := []pipeline.Pipeline{p.shade, p.composite}

	if p.diffusion {
		dvs, dfs, err := technique.NewShaderPair(keyDepthCopy, depthCopySource, macros)
		if err != nil {
			return err
		}
		p.depthCopy = pipeline.NewPipeline(keyDepthCopy, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(dvs),
			pipeline.WithFragmentShader(dfs),
			pipeline.WithColorTarget(DepthCopyFormat, nil),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		)
		cs, err := technique.NewShader(keyMipgen+".cs", shader.ShaderTypeCompute, mipgenSource, macros)
		if err != nil {
			return err
		}
		p.mipgen = pipeline.NewPipeline(keyMipgen, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
		pipelines = append(pipelines, p.depthCopy, p.mipgen)
	}

	if err := ctx.Renderer.RegisterPipelines(pipelines...); err != nil {
		return fmt.Errorf("phenomenological: %w", err)
	}

	var u GPUShadeUniform
	p.uniforms, err = ctx.CreateSlotUniforms(keyUniforms, uint64(u.Size()), 0)
	if err != nil {
		return fmt.Errorf("phenomenological: %w", err)
	}
	ctx.Log().Info("phenomenological pipelines built", "diffusion", p.diffusion, "refraction", p.refraction)
	return nil
}

func (p *phenomenological) Allocate(ctx *technique.Context) error {
	if p.shade == nil {
		return fmt.Errorf("phenomenological: allocate before build")
	}
	var err error
	if p.modulation, err = ctx.CreateTarget(technique.Target{
		Label:  "phenomenological.modulation",
		Format: ModulationFormat,
		Clear:  ModulationClear,
	}); err != nil {
		return fmt.Errorf("phenomenological: %w", err)
	}
	if p.refraction {
		if p.refract, err = ctx.CreateTarget(technique.Target{
			Label:  "phenomenological.refraction",
			Format: RefractionFormat,
			Clear:  resource.ColorTransparentBlack,
		}); err != nil {
			p.Release(ctx)
			return fmt.Errorf("phenomenological: %w", err)
		}
	}

	compositeOpts := []bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithLabel(keyComposite),
		bind_group_provider.WithTexture(0, ctx.SceneColor),
		bind_group_provider.WithSampler(1, resource.SamplerLinearMipClamp),
		bind_group_provider.WithTexture(2, ctx.Accumulation),
		bind_group_provider.WithTexture(3, p.modulation),
	}
	if p.refract != nil {
		compositeOpts = append(compositeOpts, bind_group_provider.WithTexture(4, p.refract))
	}
	p.compositeGroup = bind_group_provider.NewBindGroupProvider(compositeOpts...)

	if p.diffusion {
		if p.depth, err = ctx.CreateTarget(technique.Target{
			Label:  "phenomenological.depth-copy",
			Format: DepthCopyFormat,
			Clear:  resource.Color{R: 1},
		}); err != nil {
			p.Release(ctx)
			return fmt.Errorf("phenomenological: %w", err)
		}
		p.depthCopyGroup = bind_group_provider.NewBindGroupProvider(
			bind_group_provider.WithLabel(keyDepthCopy),
			bind_group_provider.WithTexture(0, ctx.Depth),
		)
		p.uniforms.SetTexture(1, p.depth)

		levels := int(ctx.SceneColor.Desc.MipLevels)
		for level := 1; level < levels; level++ {
			g := bind_group_provider.NewBindGroupProvider(bind_group_provider.WithLabel(fmt.Sprintf("%s[%d]", keyMipgen, level)))
			g.SetTextureMip(0, ctx.SceneColor, level-1)
			g.SetTextureMip(1, ctx.SceneColor, level)
			p.mipGroups = append(p.mipGroups, g)
		}
	}
	return nil
}

func (p *phenomenological) Release(ctx *technique.Context) {
	ctx.Renderer.Release(p.modulation, p.refract, p.depth)
	p.modulation, p.refract, p.depth = nil, nil, nil
	for _, g := range append([]bind_group_provider.BindGroupProvider{p.depthCopyGroup, p.compositeGroup}, p.mipGroups...) {
		if g != nil {
			g.Release()
		}
	}
	p.depthCopyGroup, p.compositeGroup, p.mipGroups = nil, nil, nil
}

func (p *phenomenological) ReleasePipelines(ctx *technique.Context) {
	ctx.Renderer.ReleasePipelines(keyShade, keyComposite, keyDepthCopy, keyMipgen)
	p.uniforms.Release(ctx.Renderer)
	p.uniforms = technique.SlotUniforms{}
	p.shade, p.composite, p.depthCopy, p.mipgen = nil, nil, nil, nil
}

func (p *phenomenological) Resources() []pass.Use {
	var uses []pass.Use
	for _, t := range []*resource.Texture{p.modulation, p.refract, p.depth} {
		if t != nil {
			uses = append(uses, pass.Use{Resource: t, State: resource.StateRenderTarget})
		}
	}
	return uses
}

// NeedsRebuild is always false: both scales are uniforms.
func (p *phenomenological) NeedsRebuild(_, _ technique.Params) bool {
	return false
}

func (p *phenomenological) Prepare(ctx *technique.Context, frame technique.Frame) error {
	u := NewShadeUniform(frame.Params)
	return p.uniforms.Write(ctx.Renderer, frame.Slot, u.Marshal())
}

func (p *phenomenological) BackgroundStages(ctx *technique.Context, _ technique.Frame) []pass.Stage {
	if !p.diffusion || len(p.mipGroups) == 0 {
		return nil
	}
	return []pass.Stage{{
		Name: pass.StageBackgroundMipGen,
		Uses: []pass.Use{{Resource: ctx.SceneColor, State: resource.StateUnorderedAccess}},
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginComputePass(keyMipgen)
			rec.SetPipeline(p.mipgen)
			for i, g := range p.mipGroups {
				w, h := ctx.SceneColor.MipSize(uint32(i + 1))
				x, y := Workgroups(w, h)
				rec.SetBindGroup(0, g)
				rec.Dispatch(x, y, 1)
			}
			rec.EndComputePass()
			return nil
		},
	}}
}

func (p *phenomenological) Accumulate(ctx *technique.Context, frame technique.Frame) []pass.Stage {
	var stages []pass.Stage
	if p.diffusion {
		stages = append(stages, pass.Stage{
			Name:  pass.StageAccumulate,
			Label: pass.StageAccumulate + "/DepthCopy",
			Uses: []pass.Use{
				{Resource: ctx.Depth, State: resource.StateShaderResource},
				{Resource: p.depth, State: resource.StateRenderTarget},
			},
			Record: func(rec renderer.CommandRecorder) error {
				rec.BeginRenderPass(renderer.RenderPassDesc{
					Label: keyDepthCopy,
					Color: []renderer.ColorAttachment{{Target: p.depth, Load: renderer.LoadActionDontCare}},
				})
				rec.SetPipeline(p.depthCopy)
				rec.SetBindGroup(0, p.depthCopyGroup)
				rec.Draw(3, 1, 0, 0)
				rec.EndRenderPass()
				return nil
			},
		})
	}

	uses := []pass.Use{
		{Resource: ctx.Accumulation, State: resource.StateRenderTarget},
		{Resource: p.modulation, State: resource.StateRenderTarget},
		{Resource: ctx.Depth, State: resource.StateDepthRead},
	}
	color := []renderer.ColorAttachment{
		{Target: ctx.Accumulation, Load: renderer.LoadActionClear},
		{Target: p.modulation, Load: renderer.LoadActionClear},
	}
	if p.refract != nil {
		uses = append(uses, pass.Use{Resource: p.refract, State: resource.StateRenderTarget})
		color = append(color, renderer.ColorAttachment{Target: p.refract, Load: renderer.LoadActionClear})
	}
	if p.depth != nil {
		uses = append(uses, pass.Use{Resource: p.depth, State: resource.StateShaderResource})
	}
	stages = append(stages, pass.Stage{
		Name:  pass.StageAccumulate,
		Label: pass.StageAccumulate + "/Shade",
		Uses:  append(uses, frame.SceneUses...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: keyShade,
				Color: color,
				Depth: &renderer.DepthAttachment{Target: ctx.Depth, Load: renderer.LoadActionLoad, ReadOnly: true},
			})
			rec.SetPipeline(p.shade)
			rec.SetBindGroup(2, p.uniforms.Group(frame.Slot))
			frame.DrawTransparent(rec)
			rec.EndRenderPass()
			return nil
		},
	})
	return stages
}

func (p *phenomenological) ResolveUses(ctx *technique.Context) []pass.Use {
	uses := []pass.Use{
		{Resource: ctx.Accumulation, State: resource.StateShaderResource},
		{Resource: p.modulation, State: resource.StateShaderResource},
		{Resource: ctx.SceneColor, State: resource.StateShaderResource},
	}
	if p.refract != nil {
		uses = append(uses, pass.Use{Resource: p.refract, State: resource.StateShaderResource})
	}
	return uses
}

func (p *phenomenological) Resolve(_ *technique.Context, rec renderer.CommandRecorder, _ technique.Frame) {
	rec.SetPipeline(p.composite)
	rec.SetBindGroup(0, p.compositeGroup)
	rec.Draw(3, 1, 0, 0)
}
