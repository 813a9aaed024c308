package transparency

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/common"
	"github.com/Carmen-Shannon/oxy-oit/engine/camera"
	"github.com/Carmen-Shannon/oxy-oit/engine/draw_call"
	"github.com/Carmen-Shannon/oxy-oit/engine/light"
	"github.com/Carmen-Shannon/oxy-oit/engine/material"
	"github.com/Carmen-Shannon/oxy-oit/engine/model"
	"github.com/Carmen-Shannon/oxy-oit/engine/particle"
	"github.com/Carmen-Shannon/oxy-oit/engine/pass"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/technique"
)

// vertexRange is the slice of the particle vertex buffer holding one particle system.
type vertexRange struct {
	first, count uint32
}

// slotResources holds the scene data of one frame ring slot. A slot is only written after the
// ring has waited for the frame that last used it.
type slotResources struct {
	camera    *resource.Buffer
	light     *resource.Buffer
	materials *resource.Buffer
	instances *resource.Buffer
	particles *resource.Buffer

	// scene binds group 0 of object shaders.
	scene bind_group_provider.BindGroupProvider

	// vertices is reused across frames to build the particle billboards.
	vertices []model.GPUVertex
	// ranges is indexed by entry; only particle system entries have a range.
	ranges []vertexRange
}

func (r *slotResources) release(rr renderer.Renderer) {
	rr.Release(r.camera, r.light, r.materials, r.instances, r.particles)
	if r.scene != nil {
		r.scene.Release()
	}
}

func particleBufferSize(vertices int) uint64 {
	var v model.GPUVertex
	return uint64(vertices * v.Size())
}

// newSlot creates the buffers of one frame ring slot.
func (s *system) newSlot(slot int) (*slotResources, error) {
	var (
		cam  camera.GPUCameraUniform
		lig  light.GPULightUniform
		mat  material.GPUMaterial
		inst model.GPUInstanceData
	)
	res := &slotResources{}
	buffers := []struct {
		dst   **resource.Buffer
		label string
		size  uint64
		usage resource.BufferUsage
	}{
		{&res.camera, "camera", uint64(cam.Size()), resource.BufferUsageUniform | resource.BufferUsageCopyDst},
		{&res.light, "light", uint64(lig.Size()), resource.BufferUsageUniform | resource.BufferUsageCopyDst},
		{&res.materials, "materials", uint64(s.maxObjects * mat.Size()), resource.BufferUsageStorage | resource.BufferUsageCopyDst},
		{&res.instances, "instances", uint64(s.maxObjects * inst.Size()), resource.BufferUsageStorage | resource.BufferUsageCopyDst},
		{&res.particles, "particles", particleBufferSize(particle.DefaultCapacity * particle.VerticesPerParticle), resource.BufferUsageVertex | resource.BufferUsageCopyDst},
	}
	for _, b := range buffers {
		buf, err := s.renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("transparency.%s[%d]", b.label, slot),
			Size:  b.size,
			Usage: b.usage,
		})
		if err != nil {
			res.release(s.renderer)
			return nil, err
		}
		*b.dst = buf
	}
	res.scene = bind_group_provider.NewBindGroupProvider(
		bind_group_provider.WithLabel(fmt.Sprintf("transparency.scene[%d]", slot)),
		bind_group_provider.WithBuffer(0, res.camera),
		bind_group_provider.WithBuffer(1, res.light),
		bind_group_provider.WithBuffer(2, res.materials),
		bind_group_provider.WithBuffer(3, res.instances),
	)
	return res, nil
}

// upload writes the uniforms, materials, instances and particle billboards of a frame into its slot.
func (s *system) upload(slot int, res *slotResources, in FrameInput, result draw_call.Result) error {
	cam := in.Camera.Uniform()
	lig := in.Light.Uniform()
	writes := []bind_group_provider.BufferWrite{
		{Provider: res.scene, Binding: 0, Data: cam.Marshal()},
		{Provider: res.scene, Binding: 1, Data: lig.Marshal()},
	}
	if len(result.Materials) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: res.scene, Binding: 2, Data: material.MarshalMaterials(result.Materials)})
	}
	if instances := result.Instances(); len(instances) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: res.scene, Binding: 3, Data: model.MarshalInstances(instances)})
	}
	if err := s.renderer.WriteBuffers(writes); err != nil {
		return err
	}

	res.vertices = res.vertices[:0]
	res.ranges = append(res.ranges[:0], make([]vertexRange, len(in.Entries))...)
	view := in.Camera.View()
	for _, calls := range [][]draw_call.DrawCall{result.Opaque, result.Transparent} {
		for _, call := range calls {
			if !call.Particles {
				continue
			}
			entry := in.Entries[call.Object]
			first := len(res.vertices)
			res.vertices = entry.Particles.Billboards(res.vertices, entry.Position, view, result.ParticleOrders[call.Object])
			res.ranges[call.Object] = vertexRange{first: uint32(first), count: uint32(len(res.vertices) - first)}
		}
	}
	if len(res.vertices) == 0 {
		return nil
	}

	data := model.MarshalVertices(res.vertices)
	if res.particles == nil || uint64(len(data)) > res.particles.Desc.Size {
		s.renderer.Release(res.particles)
		buf, err := s.renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("transparency.particles[%d]", slot),
			Size:  uint64(common.NextPowerOfTwo(uint32(len(data)))),
			Usage: resource.BufferUsageVertex | resource.BufferUsageCopyDst,
		})
		if err != nil {
			res.particles = nil
			return err
		}
		res.particles = buf
		s.logger.Debug("particle buffer grown", "slot", slot, "bytes", buf.Desc.Size)
	}
	return s.renderer.WriteBuffer(res.particles, 0, data)
}

// frame assembles the per-frame inputs handed to the techniques.
func (s *system) frame(slot int, res *slotResources, in FrameInput, result draw_call.Result) technique.Frame {
	f := technique.Frame{
		Slot:   slot,
		Params: s.params,
		Far:    in.Camera.Far(),
		Scene:  res.scene,
	}
	if s.shadow != nil {
		f.Shadow = s.shadow.group
		f.SceneUses = append(f.SceneUses, pass.Use{Resource: s.shadow.variance, State: resource.StateShaderResource})
		if s.shadow.caustics != nil {
			f.SceneUses = append(f.SceneUses, pass.Use{Resource: s.shadow.caustics, State: resource.StateShaderResource})
		}
	}
	f.DrawTransparent = func(rec renderer.CommandRecorder) {
		rec.SetBindGroup(0, f.Scene)
		if f.Shadow != nil {
			rec.SetBindGroup(1, f.Shadow)
		}
		s.drawCalls(rec, res, result.Transparent, result.TransparentBase())
	}
	return f
}

// drawCalls binds the geometry of each draw call and issues it. Instance offsets are relative to
// base in the instance buffer.
func (s *system) drawCalls(rec renderer.CommandRecorder, res *slotResources, calls []draw_call.DrawCall, base uint32) {
	for _, call := range calls {
		if call.Particles {
			if call.Object >= len(res.ranges) || res.ranges[call.Object].count == 0 {
				continue
			}
			r := res.ranges[call.Object]
			rec.SetVertexBuffer(0, res.particles)
			rec.Draw(r.count, 1, r.first, base+call.InstanceOffset)
			continue
		}
		m, ok := s.meshes[call.Mesh]
		if !ok || m.MeshProvider() == nil {
			continue
		}
		mesh := m.MeshProvider()
		rec.SetVertexBuffer(0, mesh.VertexBuffer())
		rec.SetIndexBuffer(mesh.IndexBuffer())
		rec.DrawIndexed(uint32(mesh.IndexCount()), call.InstanceCount, 0, 0, base+call.InstanceOffset)
	}
}

// frameBoundary applies the switches, rebuilds and device resets requested since the last frame.
func (s *system) frameBoundary() error {
	prev, switched := s.selector.Commit()
	var err error
	switch {
	case s.lost:
		err = s.rebuild("device lost")
	case s.resetRequested:
		err = s.rebuild("reset requested")
	case s.active == nil:
		err = s.activate(s.selector.Active())
	case switched && prev != s.selector.Active():
		err = s.switchTechnique(prev)
	case s.active.NeedsRebuild(s.built, s.params):
		err = s.rebuildTechnique()
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, renderer.ErrDeviceLost) {
		return s.handleLoss(err, "frame boundary")
	}
	return err
}

// trackSwapchain registers the swapchain image with the tracker. The backend hands out a new
// image after every surface configuration.
func (s *system) trackSwapchain(tex *resource.Texture) {
	if s.swapchain != nil && s.swapchain.ID == tex.ID {
		return
	}
	if s.swapchain != nil {
		s.tracker.Forget(s.swapchain.ID)
	}
	s.swapchain = tex
	s.tracker.Track(tex, resource.StatePresent)
}

func (s *system) RenderFrame(in FrameInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.minimized {
		return nil
	}
	if err := s.frameBoundary(); err != nil {
		return err
	}
	if s.lost {
		return nil
	}

	slot, res, err := s.ring.Acquire()
	if err != nil {
		return s.handleLoss(err, "acquire slot")
	}
	opts := draw_call.OptionsFor(s.params)
	opts.MaxObjects = s.maxObjects
	result, err := draw_call.Compile(in.Entries, in.Camera.Position(), s.active.Type(), opts)
	if err != nil {
		return fmt.Errorf("compile draw calls: %w", err)
	}
	if err := s.upload(slot, res, in, result); err != nil {
		return s.handleLoss(err, "upload")
	}
	frame := s.frame(slot, res, in, result)
	if err := s.active.Prepare(s.ctx, frame); err != nil {
		return s.handleLoss(err, "prepare")
	}

	rec, swapchain, err := s.renderer.BeginFrame(slot)
	if err != nil {
		return s.handleLoss(err, "begin frame")
	}
	s.trackSwapchain(swapchain)
	if err := s.tracker.Execute(rec, s.stages(frame, res, result, swapchain)); err != nil {
		if errors.Is(err, renderer.ErrDeviceLost) {
			return s.handleLoss(err, "record")
		}
		// the tracker already advanced past the stages that recorded
		s.resetRequested = true
		return fmt.Errorf("record frame: %w", err)
	}
	if err := s.renderer.EndFrame(slot, rec); err != nil {
		return s.handleLoss(err, "submit")
	}

	status, err := s.renderer.Present()
	if err != nil {
		return s.handleLoss(err, "present")
	}
	switch status {
	case renderer.PresentStatusDeviceReset:
		s.logger.Warn("device reset reported by present, rebuilding on next frame")
		s.lost = true
	case renderer.PresentStatusOutdated:
		s.logger.Info("surface outdated, reconfiguring", "width", s.ctx.Width, "height", s.ctx.Height)
		if err := s.renderer.Resize(s.ctx.Width, s.ctx.Height); err != nil {
			return s.handleLoss(err, "reconfigure surface")
		}
	}
	return nil
}
