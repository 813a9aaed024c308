package transparency

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

// stages returns the stages of one frame in execution order.
func (s *system) stages(frame technique.Frame, res *slotResources, result draw_call.Result, swapchain *resource.Texture) []pass.Stage {
	var stages []pass.Stage
	if s.shadow != nil {
		stages = append(stages, s.shadowStages(res, result)...)
		if s.shadow.caustics != nil {
			stages = append(stages, s.causticsStage(res, result))
		}
	}
	stages = append(stages, s.opaqueStage(frame, res, result))
	if reader, ok := s.active.(technique.BackgroundReader); ok {
		stages = append(stages, reader.BackgroundStages(s.ctx, frame)...)
	}
	stages = append(stages, s.active.Accumulate(s.ctx, frame)...)
	return append(stages,
		s.compositeStage(frame, swapchain),
		s.uiStage(swapchain),
		pass.Stage{
			Name: pass.StagePresent,
			Uses: []pass.Use{{Resource: swapchain, State: resource.StatePresent}},
		},
	)
}

// shadowStages render the opaque casters into the variance shadow map, then blur it horizontally
// into the scratch map and vertically back.
func (s *system) shadowStages(res *slotResources, result draw_call.Result) []pass.Stage {
	m := s.shadow
	casters := pass.Stage{
		Name: pass.StageShadow,
		Uses: []pass.Use{
			{Resource: m.variance, State: resource.StateRenderTarget},
			{Resource: m.depth, State: resource.StateDepthWrite},
		},
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: PipelineShadow,
				Color: []renderer.ColorAttachment{{Target: m.variance, Load: renderer.LoadActionClear}},
				Depth: &renderer.DepthAttachment{Target: m.depth, Load: renderer.LoadActionClear},
			})
			rec.SetPipeline(s.pipelines[PipelineShadow])
			rec.SetBindGroup(0, res.scene)
			s.drawCalls(rec, res, result.Opaque, 0)
			rec.EndRenderPass()
			return nil
		},
	}

	blur := func(label string, src, dst *resource.Texture, group int) pass.Stage {
		provider := m.blurXGroup
		if group == 1 {
			provider = m.blurYGroup
		}
		return pass.Stage{
			Name:  pass.StageShadow,
			Label: pass.StageShadow + "/" + label,
			Uses: []pass.Use{
				{Resource: src, State: resource.StateShaderResource},
				{Resource: dst, State: resource.StateRenderTarget},
			},
			Record: func(rec renderer.CommandRecorder) error {
				rec.BeginRenderPass(renderer.RenderPassDesc{
					Label: PipelineBlur + "." + label,
					Color: []renderer.ColorAttachment{{Target: dst, Load: renderer.LoadActionDontCare}},
				})
				rec.SetPipeline(s.pipelines[PipelineBlur])
				rec.SetBindGroup(0, provider)
				rec.Draw(3, 1, 0, 0)
				rec.EndRenderPass()
				return nil
			},
		}
	}
	return []pass.Stage{
		casters,
		blur("blur-x", m.variance, m.scratch, 0),
		blur("blur-y", m.scratch, m.variance, 1),
	}
}

// causticsStage multiplies the transmittance of every transparent surface the light sees into the
// caustics map, testing against the opaque casters' depth.
func (s *system) causticsStage(res *slotResources, result draw_call.Result) pass.Stage {
	m := s.shadow
	return pass.Stage{
		Name: pass.StageStochasticShadow,
		Uses: []pass.Use{
			{Resource: m.caustics, State: resource.StateRenderTarget},
			{Resource: m.depth, State: resource.StateDepthRead},
		},
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: PipelineCaustics,
				Color: []renderer.ColorAttachment{{Target: m.caustics, Load: renderer.LoadActionClear}},
				Depth: &renderer.DepthAttachment{Target: m.depth, Load: renderer.LoadActionLoad, ReadOnly: true},
			})
			rec.SetPipeline(s.pipelines[PipelineCaustics])
			rec.SetBindGroup(0, res.scene)
			s.drawCalls(rec, res, result.Transparent, result.TransparentBase())
			rec.EndRenderPass()
			return nil
		},
	}
}

// opaqueStage draws the sky and the opaque objects into SceneColor and the shared depth target.
func (s *system) opaqueStage(frame technique.Frame, res *slotResources, result draw_call.Result) pass.Stage {
	uses := []pass.Use{
		{Resource: s.ctx.SceneColor, State: resource.StateRenderTarget},
		{Resource: s.ctx.Depth, State: resource.StateDepthWrite},
	}
	return pass.Stage{
		Name: pass.StageOpaque,
		Uses: append(uses, frame.SceneUses...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: PipelineOpaque,
				Color: []renderer.ColorAttachment{{Target: s.ctx.SceneColor, Load: renderer.LoadActionClear}},
				Depth: &renderer.DepthAttachment{Target: s.ctx.Depth, Load: renderer.LoadActionClear},
			})
			rec.SetPipeline(s.pipelines[PipelineSkybox])
			rec.Draw(3, 1, 0, 0)

			rec.SetPipeline(s.pipelines[PipelineOpaque])
			rec.SetBindGroup(0, frame.Scene)
			if frame.Shadow != nil {
				rec.SetBindGroup(1, frame.Shadow)
			}
			s.drawCalls(rec, res, result.Opaque, 0)
			rec.EndRenderPass()
			return nil
		},
	}
}

// compositeStage copies SceneColor to the swapchain image and lets the active technique blend its
// accumulated result over it in the same pass.
func (s *system) compositeStage(frame technique.Frame, swapchain *resource.Texture) pass.Stage {
	uses := []pass.Use{
		{Resource: s.ctx.SceneColor, State: resource.StateShaderResource},
		{Resource: swapchain, State: resource.StateRenderTarget},
	}
	return pass.Stage{
		Name: pass.StageComposite,
		Uses: append(uses, s.active.ResolveUses(s.ctx)...),
		Record: func(rec renderer.CommandRecorder) error {
			rec.BeginRenderPass(renderer.RenderPassDesc{
				Label: "transparency.composite",
				Color: []renderer.ColorAttachment{{Target: swapchain, Load: renderer.LoadActionClear}},
			})
			rec.SetPipeline(s.pipelines[PipelineBlit])
			rec.SetBindGroup(0, s.blitGroup)
			rec.Draw(3, 1, 0, 0)
			s.active.Resolve(s.ctx, rec, frame)
			rec.EndRenderPass()
			return nil
		},
	}
}

func (s *system) uiStage(swapchain *resource.Texture) pass.Stage {
	return pass.Stage{
		Name: pass.StageUI,
		Uses: []pass.Use{{Resource: swapchain, State: resource.StateRenderTarget}},
		Record: func(rec renderer.CommandRecorder) error {
			if s.ui == nil {
				return nil
			}
			return s.ui(rec, swapchain)
		},
	}
}
