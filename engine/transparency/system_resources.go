package transparency

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/frame_ring"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

//go:embed assets/skybox.wgsl
var skyboxSource string

//go:embed assets/opaque.wgsl
var opaqueSource string

//go:embed assets/shadow.wgsl
var shadowSource string

//go:embed assets/caustics.wgsl
var causticsSource string

//go:embed assets/blur.wgsl
var blurSource string

//go:embed assets/blit.wgsl
var blitSource string

// Pipeline keys of the stages the system records itself.
const (
	PipelineSkybox   = "transparency.skybox"
	PipelineOpaque   = "transparency.opaque"
	PipelineShadow   = "transparency.shadow"
	PipelineCaustics = "transparency.caustics"
	PipelineBlur     = "transparency.blur"
	PipelineBlit     = "transparency.blit"
)

// Formats of the light-space targets.
const (
	// ShadowVarianceFormat stores the first two moments of light-space depth.
	ShadowVarianceFormat = resource.FormatRG16Float
	ShadowDepthFormat    = resource.FormatDepth16Unorm
	// CausticsFormat stores the transmittance of transparent geometry seen from the light.
	CausticsFormat = resource.FormatRGBA16Float
)

// shadowMaps holds the resolution-independent targets of the shadow and stochastic shadow stages.
type shadowMaps struct {
	// variance is the shadow map sampled by object shaders; scratch holds the horizontal blur.
	variance *resource.Texture
	scratch  *resource.Texture
	depth    *resource.Texture
	// caustics is nil when the caustics feature is off.
	caustics *resource.Texture

	blurX, blurY           *resource.Buffer
	blurXGroup, blurYGroup bind_group_provider.BindGroupProvider

	// group binds the shadow map, its sampler and the caustics map at group 1 of object shaders.
	group bind_group_provider.BindGroupProvider
}

func (m *shadowMaps) textures() []*resource.Texture {
	out := []*resource.Texture{m.variance, m.scratch, m.depth}
	if m.caustics != nil {
		out = append(out, m.caustics)
	}
	return out
}

// setup creates every GPU resource of the current device: pipelines, meshes, shadow maps, the
// frame ring, the shared targets and the active technique.
func (s *system) setup() error {
	width, height := s.renderer.Size()
	features := s.ctx.Features
	s.ctx = &technique.Context{
		Renderer:      s.renderer,
		Features:      features,
		Logger:        s.logger,
		Width:         width,
		Height:        height,
		SurfaceFormat: s.renderer.Backend().SurfaceFormat(),
		MaxObjects:    s.maxObjects,
		Frames:        s.frames,
	}
	s.tracker = pass.NewTracker(pass.WithLogger(s.logger))
	s.swapchain = nil

	if err := s.buildPipelines(); err != nil {
		return err
	}
	if err := s.uploadMeshes(); err != nil {
		return err
	}
	if features.Shadows {
		if err := s.createShadowMaps(); err != nil {
			return err
		}
	}
	ring, err := frame_ring.New(s.frames, s.renderer.Fence, s.newSlot, func(res *slotResources) {
		res.release(s.renderer)
	})
	if err != nil {
		return fmt.Errorf("frame ring: %w", err)
	}
	s.ring = ring
	if err := s.allocateTargets(); err != nil {
		return err
	}
	return s.activate(s.selector.Active())
}

// teardown releases everything setup created. It is safe on a partially built system.
func (s *system) teardown() {
	if s.ctx == nil || s.ctx.Renderer == nil {
		return
	}
	s.deactivate()
	s.releaseTargets()
	s.releaseShadowMaps()
	s.releaseMeshes()
	if s.ring != nil {
		_ = s.ring.Each(func(_ int, res *slotResources) error {
			res.release(s.renderer)
			return nil
		})
		s.ring = nil
	}
	s.renderer.ReleasePipelines(PipelineSkybox, PipelineOpaque, PipelineShadow, PipelineCaustics, PipelineBlur, PipelineBlit)
	clear(s.pipelines)
	if s.tracker != nil {
		s.tracker.Reset()
	}
	s.swapchain = nil
}

// rebuild replaces the device and recreates every resource on it.
func (s *system) rebuild(reason string) error {
	s.logger.Warn("rebuilding device", "reason", reason, "generation", s.generation+1)
	s.teardown()
	// a partial setup is only ever replaced by another full rebuild
	s.resetRequested = true
	if err := s.renderer.Rebuild(); err != nil {
		return fmt.Errorf("rebuild device: %w", err)
	}
	if w, h := s.renderer.Size(); w != s.width || h != s.height {
		if err := s.renderer.Resize(s.width, s.height); err != nil {
			return fmt.Errorf("rebuild device: %w", err)
		}
	}
	s.generation++
	s.lost = false
	if err := s.setup(); err != nil {
		return fmt.Errorf("rebuild device: %w", err)
	}
	s.resetRequested = false
	return nil
}

// renderPipeline compiles source and creates a render pipeline with its vertex and fragment stages.
func (s *system) renderPipeline(key, source string, options ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	vs, fs, err := technique.NewShaderPair(key, source, s.ctx.Macros(nil))
	if err != nil {
		return nil, err
	}
	opts := append([]pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	}, options...)
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender, opts...), nil
}

func (s *system) buildPipelines() error {
	modulate := pipeline.BlendStateModulate
	builds := []struct {
		key     string
		source  string
		enabled bool
		options []pipeline.PipelineBuilderOption
	}{
		{PipelineSkybox, skyboxSource, true, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(technique.SceneColorFormat, nil),
			pipeline.WithDepthFormat(technique.DepthFormat),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		}},
		{PipelineOpaque, opaqueSource, true, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(technique.SceneColorFormat, nil),
			pipeline.WithDepthFormat(technique.DepthFormat),
		}},
		{PipelineShadow, shadowSource, s.ctx.Features.Shadows, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(ShadowVarianceFormat, nil),
			pipeline.WithDepthFormat(ShadowDepthFormat),
		}},
		{PipelineCaustics, causticsSource, s.ctx.Features.Caustics, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(CausticsFormat, &modulate),
			pipeline.WithDepthFormat(ShadowDepthFormat),
			pipeline.WithDepthWriteEnabled(false),
		}},
		{PipelineBlur, blurSource, s.ctx.Features.Shadows, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(ShadowVarianceFormat, nil),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		}},
		{PipelineBlit, blitSource, true, []pipeline.PipelineBuilderOption{
			pipeline.WithColorTarget(s.ctx.SurfaceFormat, nil),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
		}},
	}

	var created []pipeline.Pipeline
	for _, b := range builds {
		if !b.enabled {
			continue
		}
		p, err := s.renderPipeline(b.key, b.source, b.options...)
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", b.key, err)
		}
		created = append(created, p)
	}
	if err := s.renderer.RegisterPipelines(created...); err != nil {
		return err
	}
	for _, p := range created {
		s.pipelines[p.PipelineKey()] = p
	}
	return nil
}

// uploadMeshes creates the vertex and index buffers of every built-in and imported mesh.
func (s *system) uploadMeshes() error {
	var models []model.Model
	for id := model.MeshID(0); id < model.MeshCount; id++ {
		if m := model.NewBuiltin(id); m != nil {
			models = append(models, m)
		}
	}
	for i, data := range s.imported {
		models = append(models, model.NewModel(model.WithID(model.MeshImported+model.MeshID(i)), model.WithMeshData(data)))
	}

	for _, m := range models {
		id := m.ID()
		data := m.Mesh()
		if len(data.Vertices) == 0 || len(data.Indices) == 0 {
			return fmt.Errorf("mesh %s has no geometry", id)
		}
		vertices := model.MarshalVertices(data.Vertices)
		indices := model.MarshalIndices(data.Indices)

		vb, err := s.renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("transparency.mesh.%s.vertices", id),
			Size:  uint64(len(vertices)),
			Usage: resource.BufferUsageVertex | resource.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		ib, err := s.renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("transparency.mesh.%s.indices", id),
			Size:  uint64(len(indices)),
			Usage: resource.BufferUsageIndex | resource.BufferUsageCopyDst,
		})
		if err != nil {
			s.renderer.Release(vb)
			return err
		}
		m.SetMeshProvider(bind_group_provider.NewBindGroupProvider(
			bind_group_provider.WithLabel(fmt.Sprintf("transparency.mesh.%s", id)),
			bind_group_provider.WithVertexBuffer(vb),
			bind_group_provider.WithIndexBuffer(ib, len(data.Indices)),
		))
		s.meshes[id] = m

		if err := s.renderer.WriteBuffer(vb, 0, vertices); err != nil {
			return err
		}
		if err := s.renderer.WriteBuffer(ib, 0, indices); err != nil {
			return err
		}
	}
	return nil
}

func (s *system) releaseMeshes() {
	for id, m := range s.meshes {
		if p := m.MeshProvider(); p != nil {
			s.renderer.Release(p.VertexBuffer(), p.IndexBuffer())
			p.Release()
		}
		m.SetMeshProvider(nil)
		delete(s.meshes, id)
	}
}

// createShadowMaps creates the variance shadow map, its blur chain and the caustics map. The blur
// uniforms never change, so they are written once here.
func (s *system) createShadowMaps() error {
	const size = light.ShadowMapResolution
	m := &shadowMaps{}
	s.shadow = m

	texture := func(label string, format resource.TextureFormat, usage resource.TextureUsage, clearColor resource.Color, state resource.State) (*resource.Texture, error) {
		return s.renderer.CreateTexture(resource.TextureDesc{
			Label:        label,
			Width:        size,
			Height:       size,
			MipLevels:    1,
			Format:       format,
			Usage:        usage,
			ClearColor:   clearColor,
			ClearDepth:   1,
			InitialState: state,
		})
	}
	rtsr := resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource
	far := resource.Color{R: 1, G: 1, B: 0, A: 0}

	var err error
	if m.variance, err = texture("transparency.shadow.variance", ShadowVarianceFormat, rtsr, far, resource.StateRenderTarget); err != nil {
		return err
	}
	if m.scratch, err = texture("transparency.shadow.scratch", ShadowVarianceFormat, rtsr, far, resource.StateRenderTarget); err != nil {
		return err
	}
	if m.depth, err = texture("transparency.shadow.depth", ShadowDepthFormat, resource.TextureUsageDepthStencil, resource.Color{}, resource.StateDepthWrite); err != nil {
		return err
	}
	if s.ctx.Features.Caustics {
		if m.caustics, err = texture("transparency.shadow.caustics", CausticsFormat, rtsr, resource.ColorOpaqueWhite, resource.StateRenderTarget); err != nil {
			return err
		}
	}
	for _, tex := range m.textures() {
		s.tracker.Track(tex, tex.Desc.InitialState)
	}

	blur := func(axis int) (*resource.Buffer, error) {
		u := light.BlurUniform(axis, size)
		data := u.Marshal()
		buf, err := s.renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("transparency.shadow.blur[%d]", axis),
			Size:  uint64(len(data)),
			Usage: resource.BufferUsageUniform | resource.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		return buf, s.renderer.WriteBuffer(buf, 0, data)
	}
	if m.blurX, err = blur(0); err != nil {
		return err
	}
	if m.blurY, err = blur(1); err != nil {
		return err
	}

	m.blurXGroup = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel("transparency.shadow.blur-x"),
		bind_group_provider.WithTexture(0, m.variance),
		bind_group_provider.WithSampler(1, resource.SamplerLinearClamp),
		bind_group_provider.WithBuffer(2, m.blurX),
	)
	m.blurYGroup = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel("transparency.shadow.blur-y"),
		bind_group_provider.WithTexture(0, m.scratch),
		bind_group_provider.WithSampler(1, resource.SamplerLinearClamp),
		bind_group_provider.WithBuffer(2, m.blurY),
	)
	m.group = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel("transparency.shadow"),
		bind_group_provider.WithTexture(0, m.variance),
		bind_group_provider.WithSampler(1, resource.SamplerLinearClamp),
	)
	if m.caustics != nil {
		m.group.SetTexture(2, m.caustics)
	}
	return nil
}

func (s *system) releaseShadowMaps() {
	m := s.shadow
	if m == nil {
		return
	}
	for _, tex := range m.textures() {
		if tex != nil {
			s.tracker.Forget(tex.ID)
			s.renderer.Release(tex)
		}
	}
	s.renderer.Release(m.blurX, m.blurY)
	for _, g := range []bind_group_provider.BindGroupProvider{m.blurXGroup, m.blurYGroup, m.group} {
		if g != nil {
			g.Release()
		}
	}
	s.shadow = nil
}

// allocateTargets creates the shared resolution-dependent targets at the context size.
func (s *system) allocateTargets() error {
	depth, err := s.renderer.CreateTexture(resource.TextureDesc{
		Label:               "transparency.depth",
		Width:               s.ctx.Width,
		Height:              s.ctx.Height,
		MipLevels:           1,
		Format:              technique.DepthFormat,
		Usage:               resource.TextureUsageDepthStencil | resource.TextureUsageShaderResource,
		ClearDepth:          1,
		InitialState:        resource.StateDepthWrite,
		ResolutionDependent: true,
	})
	if err != nil {
		return err
	}
	s.ctx.Depth = depth

	sceneTarget := technique.Target{Label: "transparency.scene-color", Format: technique.SceneColorFormat}
	if s.ctx.Features.Diffusion {
		sceneTarget.MipLevels = common.MipLevelCount(s.ctx.Width, s.ctx.Height)
		sceneTarget.Usage = resource.TextureUsageRenderTarget | resource.TextureUsageShaderResource | resource.TextureUsageStorage
	}
	if s.ctx.SceneColor, err = s.ctx.CreateTarget(sceneTarget); err != nil {
		return err
	}
	if s.ctx.Accumulation, err = s.ctx.CreateTarget(technique.Target{
		Label:  "transparency.accumulation",
		Format: technique.AccumulationFormat,
		Clear:  resource.ColorTransparentBlack,
	}); err != nil {
		return err
	}

	for _, tex := range []*resource.Texture{s.ctx.Depth, s.ctx.SceneColor, s.ctx.Accumulation} {
		s.tracker.Track(tex, tex.Desc.InitialState)
	}
	s.blitGroup = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel("transparency.blit"),
		bind_group_provider.WithTexture(0, s.ctx.SceneColor),
		bind_group_provider.WithSampler(1, resource.SamplerLinearClamp),
	)
	return nil
}

func (s *system) releaseTargets() {
	for _, tex := range []*resource.Texture{s.ctx.Depth, s.ctx.SceneColor, s.ctx.Accumulation} {
		if tex != nil {
			s.tracker.Forget(tex.ID)
			s.renderer.Release(tex)
		}
	}
	s.ctx.Depth, s.ctx.SceneColor, s.ctx.Accumulation = nil, nil, nil
	if s.blitGroup != nil {
		s.blitGroup.Release()
		s.blitGroup = nil
	}
}

// activate builds t and allocates its targets.
func (s *system) activate(t technique.Type) error {
	tech, ok := s.registry.Get(t)
	if !ok {
		return fmt.Errorf("%w: %s", technique.ErrUnsupported, t)
	}
	if err := tech.Build(s.ctx, s.params); err != nil {
		tech.ReleasePipelines(s.ctx)
		return fmt.Errorf("build %s: %w", t, err)
	}
	s.active = tech
	s.built = s.params
	if err := s.allocateTechnique(); err != nil {
		s.deactivate()
		return err
	}
	return nil
}

// deactivate releases every resource of the active technique.
func (s *system) deactivate() {
	if s.active == nil {
		return
	}
	s.releaseTechniqueTargets()
	s.active.ReleasePipelines(s.ctx)
	s.active = nil
}

func (s *system) allocateTechnique() error {
	if err := s.active.Allocate(s.ctx); err != nil {
		return fmt.Errorf("allocate %s: %w", s.active.Type(), err)
	}
	for _, u := range s.active.Resources() {
		s.tracker.Track(u.Resource, u.State)
	}
	return nil
}

func (s *system) releaseTechniqueTargets() {
	if s.active == nil {
		return
	}
	for _, u := range s.active.Resources() {
		s.tracker.Forget(u.Resource.ResourceID())
	}
	s.active.Release(s.ctx)
}

// switchTechnique replaces the active technique at a frame boundary.
func (s *system) switchTechnique(prev technique.Type) error {
	if err := s.renderer.WaitIdle(); err != nil {
		return s.handleLoss(err, "switch technique")
	}
	s.deactivate()
	next := s.selector.Active()
	if err := s.activate(next); err != nil {
		return err
	}
	s.logger.Info("technique switched", "from", prev, "to", next)
	return nil
}

// rebuildTechnique rebuilds the active technique after a parameter change that alters its shaders.
func (s *system) rebuildTechnique() error {
	if err := s.renderer.WaitIdle(); err != nil {
		return s.handleLoss(err, "rebuild technique")
	}
	t := s.active.Type()
	s.deactivate()
	if err := s.activate(t); err != nil {
		return err
	}
	s.logger.Info("technique rebuilt", "technique", t)
	return nil
}
