package wgpu_backend

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

var loadOps = map[renderer.LoadAction]wgpu.LoadOp{
	renderer.LoadActionClear:    wgpu.LoadOpClear,
	renderer.LoadActionLoad:     wgpu.LoadOpLoad,
	renderer.LoadActionDontCare: wgpu.LoadOpClear,
}

// recorder records one frame into a wgpu command encoder. WebGPU tracks resource usage itself,
// so barriers are validated against the recorded states and emitted as debug markers only.
type recorder struct {
	b          *backend
	slot       int
	generation uint64
	encoder    *wgpu.CommandEncoder

	renderPass  *wgpu.RenderPassEncoder
	computePass *wgpu.ComputePassEncoder
	pipeline    *nativePipeline
	debugDepth  int

	states map[resource.ID]resource.State
	err    error
}

var _ renderer.CommandRecorder = &recorder{}

func newRecorder(b *backend, slot int, encoder *wgpu.CommandEncoder) *recorder {
	return &recorder{
		b:          b,
		slot:       slot,
		generation: b.generation,
		encoder:    encoder,
		states:     make(map[resource.ID]resource.State),
	}
}

func (r *recorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *recorder) ok() bool {
	if r.err != nil {
		return false
	}
	if r.b.lost || r.generation != r.b.generation {
		r.err = renderer.ErrDeviceLost
		return false
	}
	return true
}

func (r *recorder) inPass() bool {
	return r.renderPass != nil || r.computePass != nil
}

func (r *recorder) stateOf(res resource.Resource) (resource.State, bool) {
	if s, ok := r.states[res.ResourceID()]; ok {
		return s, true
	}
	s, ok := r.b.states[res.ResourceID()]
	return s, ok
}

func (r *recorder) PushDebugGroup(label string) {
	if !r.ok() {
		return
	}
	r.debugDepth++
	switch {
	case r.renderPass != nil:
		r.renderPass.PushDebugGroup(label)
	case r.computePass != nil:
		r.computePass.PushDebugGroup(label)
	default:
		r.encoder.PushDebugGroup(label)
	}
}

func (r *recorder) PopDebugGroup() {
	if !r.ok() {
		return
	}
	if r.debugDepth == 0 {
		r.fail("pop debug group: no group is open")
		return
	}
	r.debugDepth--
	switch {
	case r.renderPass != nil:
		r.renderPass.PopDebugGroup()
	case r.computePass != nil:
		r.computePass.PopDebugGroup()
	default:
		r.encoder.PopDebugGroup()
	}
}

func (r *recorder) Barrier(transitions ...resource.Transition) {
	if !r.ok() {
		return
	}
	if r.inPass() {
		r.fail("barrier recorded inside a pass")
		return
	}

	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	for _, t := range transitions {
		current, live := r.stateOf(t.Resource)
		if !live {
			r.fail("barrier on released resource %q", t.Resource.ResourceLabel())
			return
		}
		if t.From == t.To {
			r.fail("barrier %s is a no-op", t)
			return
		}
		if current != t.From {
			r.fail("barrier %s does not match current state %s", t, current)
			return
		}
		r.states[t.Resource.ResourceID()] = t.To
		r.encoder.InsertDebugMarker(t.String())
	}
}

func (r *recorder) BeginRenderPass(desc renderer.RenderPassDesc) {
	if !r.ok() {
		return
	}
	if r.inPass() {
		r.fail("render pass %q begun inside another pass", desc.Label)
		return
	}

	r.b.mu.Lock()
	defer r.b.mu.Unlock()

	colors := make([]wgpu.RenderPassColorAttachment, len(desc.Color))
	for i, c := range desc.Color {
		if state, live := r.stateOf(c.Target); !live || state != resource.StateRenderTarget {
			r.fail("render pass %q: color attachment %q is not in render-target state", desc.Label, c.Target.Desc.Label)
			return
		}
		view, err := textureView(c.Target, c.MipLevel)
		if err != nil {
			r.fail("render pass %q: %v", desc.Label, err)
			return
		}
		clearColor := c.Target.Desc.ClearColor
		colors[i] = wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  loadOps[c.Load],
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: clearColor.R, G: clearColor.G, B: clearColor.B, A: clearColor.A,
			},
		}
	}

	passDesc := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if d := desc.Depth; d != nil {
		state, live := r.stateOf(d.Target)
		if !live || (state != resource.StateDepthWrite && !(d.ReadOnly && state == resource.StateDepthRead)) {
			r.fail("render pass %q: depth attachment %q is in state %s", desc.Label, d.Target.Desc.Label, state)
			return
		}
		view, err := textureView(d.Target, 0)
		if err != nil {
			r.fail("render pass %q: %v", desc.Label, err)
			return
		}
		depth := &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     loadOps[d.Load],
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: d.Target.Desc.ClearDepth,
			DepthReadOnly:   d.ReadOnly,
		}
		if d.ReadOnly {
			depth.DepthLoadOp = wgpu.LoadOpUndefined
			depth.DepthStoreOp = wgpu.StoreOpUndefined
		}
		passDesc.DepthStencilAttachment = depth
	}

	r.renderPass = r.encoder.BeginRenderPass(passDesc)
}

func (r *recorder) EndRenderPass() {
	if !r.ok() {
		return
	}
	if r.renderPass == nil {
		r.fail("end render pass: no render pass is open")
		return
	}
	r.renderPass.End()
	r.renderPass.Release()
	r.renderPass = nil
	r.pipeline = nil
}

func (r *recorder) BeginComputePass(label string) {
	if !r.ok() {
		return
	}
	if r.inPass() {
		r.fail("compute pass %q begun inside another pass", label)
		return
	}
	r.computePass = r.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
}

func (r *recorder) EndComputePass() {
	if !r.ok() {
		return
	}
	if r.computePass == nil {
		r.fail("end compute pass: no compute pass is open")
		return
	}
	r.computePass.End()
	r.computePass.Release()
	r.computePass = nil
	r.pipeline = nil
}

func (r *recorder) SetPipeline(p pipeline.Pipeline) {
	if !r.ok() {
		return
	}
	native, ok := p.Native().(*nativePipeline)
	if !ok || native.generation != r.generation {
		r.fail("pipeline %q is not compiled for the current device", p.PipelineKey())
		return
	}

	switch {
	case r.renderPass != nil && native.render != nil:
		r.renderPass.SetPipeline(native.render)
	case r.computePass != nil && native.compute != nil:
		r.computePass.SetPipeline(native.compute)
	default:
		r.fail("pipeline %q does not match the open pass", p.PipelineKey())
		return
	}
	r.pipeline = native
}

func (r *recorder) SetBindGroup(index int, provider bind_group_provider.BindGroupProvider) {
	if !r.ok() {
		return
	}
	if r.pipeline == nil {
		r.fail("set bind group %d: no pipeline bound", index)
		return
	}
	if index < 0 || index >= len(r.pipeline.layouts) {
		r.fail("set bind group %d: pipeline has %d groups", index, len(r.pipeline.layouts))
		return
	}

	r.b.mu.Lock()
	group, err := r.b.bindGroupLocked(provider, r.pipeline.layouts[index])
	r.b.mu.Unlock()
	if err != nil {
		r.fail("set bind group %d: %v", index, err)
		return
	}

	if r.renderPass != nil {
		r.renderPass.SetBindGroup(uint32(index), group, nil)
	} else {
		r.computePass.SetBindGroup(uint32(index), group, nil)
	}
}

func (r *recorder) SetVertexBuffer(slot int, buf *resource.Buffer) {
	if !r.ok() {
		return
	}
	native, ok := buf.Native.(*wgpu.Buffer)
	if r.renderPass == nil || !ok || native == nil {
		r.fail("set vertex buffer %q: no render pass or released buffer", buf.Desc.Label)
		return
	}
	r.renderPass.SetVertexBuffer(uint32(slot), native, 0, wgpu.WholeSize)
}

func (r *recorder) SetIndexBuffer(buf *resource.Buffer) {
	if !r.ok() {
		return
	}
	native, ok := buf.Native.(*wgpu.Buffer)
	if r.renderPass == nil || !ok || native == nil {
		r.fail("set index buffer %q: no render pass or released buffer", buf.Desc.Label)
		return
	}
	r.renderPass.SetIndexBuffer(native, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !r.ok() {
		return
	}
	if r.renderPass == nil || r.pipeline == nil {
		r.fail("draw outside of a render pass with a bound pipeline")
		return
	}
	r.renderPass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if !r.ok() {
		return
	}
	if r.renderPass == nil || r.pipeline == nil {
		r.fail("indexed draw outside of a render pass with a bound pipeline")
		return
	}
	r.renderPass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (r *recorder) Dispatch(x, y, z uint32) {
	if !r.ok() {
		return
	}
	if r.computePass == nil || r.pipeline == nil {
		r.fail("dispatch outside of a compute pass with a bound pipeline")
		return
	}
	if x == 0 || y == 0 || z == 0 {
		r.fail("dispatch with an empty grid %dx%dx%d", x, y, z)
		return
	}
	r.computePass.DispatchWorkgroups(x, y, z)
}

func (r *recorder) Err() error {
	return r.err
}

// finish checks that the stream is complete. Called by Submit with the backend lock held.
func (r *recorder) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.inPass() {
		return fmt.Errorf("submit: a pass is still open")
	}
	if r.debugDepth != 0 {
		return fmt.Errorf("submit: %d debug groups are still open", r.debugDepth)
	}
	return nil
}
