package headless

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// recorder is the headless CommandRecorder. It validates every command against the state the
// resources are in and executes draws on the probe pixel immediately.
type recorder struct {
	b          *backend
	slot       int
	generation uint64

	commands []Command
	err      error
	finished bool

	debugDepth int
	inRender   bool
	inCompute  bool

	pass     renderer.RenderPassDesc
	pipeline pipeline.Pipeline
	groups   map[int]bind_group_provider.BindGroupProvider
	vertex   *resource.Buffer
	index    *resource.Buffer

	// states holds the transitions recorded in this stream, committed on submit
	states map[resource.ID]resource.State
}

var _ renderer.CommandRecorder = &recorder{}

func newRecorder(b *backend, slot int) *recorder {
	return &recorder{
		b:          b,
		slot:       slot,
		generation: b.generation,
		groups:     make(map[int]bind_group_provider.BindGroupProvider),
		states:     make(map[resource.ID]resource.State),
	}
}

func (r *recorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("headless: "+format, args...)
	}
}

// ok reports whether recording may continue.
func (r *recorder) ok() bool {
	if r.err != nil {
		return false
	}
	if r.finished {
		r.fail("recording into a submitted command stream")
		return false
	}
	r.b.mu.Lock()
	lost, gen := r.b.lost, r.b.generation
	r.b.mu.Unlock()
	if lost || gen != r.generation {
		r.err = renderer.ErrDeviceLost
		return false
	}
	return true
}

func (r *recorder) record(c Command) {
	r.commands = append(r.commands, c)
}

func (r *recorder) stateOf(res resource.Resource) resource.State {
	if st, ok := r.states[res.ResourceID()]; ok {
		return st
	}
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.resourceStateLocked(res)
}

func (r *recorder) live(res resource.Resource) bool {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	return r.b.isLiveLocked(res)
}

func (r *recorder) PushDebugGroup(label string) {
	if !r.ok() {
		return
	}
	r.debugDepth++
	r.record(Command{Kind: CommandPushDebugGroup, Label: label})
}

func (r *recorder) PopDebugGroup() {
	if !r.ok() {
		return
	}
	if r.debugDepth == 0 {
		r.fail("pop of an empty debug group stack")
		return
	}
	r.debugDepth--
	r.record(Command{Kind: CommandPopDebugGroup})
}

func (r *recorder) Barrier(transitions ...resource.Transition) {
	if !r.ok() {
		return
	}
	if r.inRender || r.inCompute {
		r.fail("barrier recorded inside a pass")
		return
	}
	for _, t := range transitions {
		if t.Resource == nil {
			r.fail("barrier on a nil resource")
			return
		}
		if !r.live(t.Resource) {
			r.fail("barrier on released resource %q", t.Resource.ResourceLabel())
			return
		}
		if t.From == t.To {
			r.fail("redundant transition %s", t)
			return
		}
		if cur := r.stateOf(t.Resource); cur != t.From {
			r.fail("transition %s does not match current state %s", t, cur)
			return
		}
		r.states[t.Resource.ResourceID()] = t.To
	}
	r.record(Command{Kind: CommandBarrier, Transitions: append([]resource.Transition(nil), transitions...)})
}

func (r *recorder) BeginRenderPass(desc renderer.RenderPassDesc) {
	if !r.ok() {
		return
	}
	if r.inRender || r.inCompute {
		r.fail("render pass %q begun inside another pass", desc.Label)
		return
	}
	if len(desc.Color) == 0 && desc.Depth == nil {
		r.fail("render pass %q has no attachments", desc.Label)
		return
	}

	var width, height uint32
	checkSize := func(tex *resource.Texture, mip int) bool {
		w, h := tex.MipSize(uint32(max(mip, 0)))
		if width == 0 {
			width, height = w, h
			return true
		}
		return w == width && h == height
	}

	for i, c := range desc.Color {
		if c.Target == nil || !r.live(c.Target) {
			r.fail("render pass %q color attachment %d is not live", desc.Label, i)
			return
		}
		if c.Target.Desc.Format.IsDepth() {
			r.fail("render pass %q color attachment %q has a depth format", desc.Label, c.Target.Desc.Label)
			return
		}
		if st := r.stateOf(c.Target); st != resource.StateRenderTarget {
			r.fail("render pass %q color attachment %q is in state %s", desc.Label, c.Target.Desc.Label, st)
			return
		}
		if !checkSize(c.Target, c.MipLevel) {
			r.fail("render pass %q attachment %q size mismatch", desc.Label, c.Target.Desc.Label)
			return
		}
	}
	if d := desc.Depth; d != nil {
		if d.Target == nil || !r.live(d.Target) {
			r.fail("render pass %q depth attachment is not live", desc.Label)
			return
		}
		if !d.Target.Desc.Format.IsDepth() {
			r.fail("render pass %q depth attachment %q is not a depth format", desc.Label, d.Target.Desc.Label)
			return
		}
		st := r.stateOf(d.Target)
		if st != resource.StateDepthWrite && !(d.ReadOnly && st == resource.StateDepthRead) {
			r.fail("render pass %q depth attachment %q is in state %s", desc.Label, d.Target.Desc.Label, st)
			return
		}
		if !checkSize(d.Target, 0) {
			r.fail("render pass %q depth attachment %q size mismatch", desc.Label, d.Target.Desc.Label)
			return
		}
	}

	r.inRender = true
	r.pass = desc
	r.pipeline = nil
	clear(r.groups)
	r.vertex, r.index = nil, nil

	r.b.mu.Lock()
	for _, c := range desc.Color {
		if c.Load != renderer.LoadActionClear {
			continue
		}
		cc := c.Target.Desc.ClearColor
		if st := r.b.stateLocked(c.Target); st != nil {
			st.probe = quantize(c.Target.Desc.Format, [4]float32{float32(cc.R), float32(cc.G), float32(cc.B), float32(cc.A)})
		}
	}
	if d := desc.Depth; d != nil && d.Load == renderer.LoadActionClear {
		if st := r.b.stateLocked(d.Target); st != nil {
			st.probe = quantize(d.Target.Desc.Format, [4]float32{d.Target.Desc.ClearDepth})
		}
	}
	r.b.mu.Unlock()

	r.record(Command{Kind: CommandBeginRenderPass, Label: desc.Label, Pass: desc})
}

func (r *recorder) EndRenderPass() {
	if !r.ok() {
		return
	}
	if !r.inRender {
		r.fail("end of a render pass that was not begun")
		return
	}
	r.inRender = false
	r.pipeline = nil
	r.record(Command{Kind: CommandEndRenderPass})
}

func (r *recorder) BeginComputePass(label string) {
	if !r.ok() {
		return
	}
	if r.inRender || r.inCompute {
		r.fail("compute pass %q begun inside another pass", label)
		return
	}
	r.inCompute = true
	r.pipeline = nil
	clear(r.groups)
	r.record(Command{Kind: CommandBeginComputePass, Label: label})
}

func (r *recorder) EndComputePass() {
	if !r.ok() {
		return
	}
	if !r.inCompute {
		r.fail("end of a compute pass that was not begun")
		return
	}
	r.inCompute = false
	r.pipeline = nil
	r.record(Command{Kind: CommandEndComputePass})
}

func (r *recorder) SetPipeline(p pipeline.Pipeline) {
	if !r.ok() {
		return
	}
	if p == nil {
		r.fail("nil pipeline")
		return
	}
	if gen, compiled := p.Native().(uint64); !compiled || gen != r.generation {
		r.fail("pipeline %q is not compiled for the current device", p.PipelineKey())
		return
	}

	switch {
	case r.inCompute:
		if p.Type() != pipeline.PipelineTypeCompute {
			r.fail("render pipeline %q set in a compute pass", p.PipelineKey())
			return
		}
	case r.inRender:
		if p.Type() != pipeline.PipelineTypeRender {
			r.fail("compute pipeline %q set in a render pass", p.PipelineKey())
			return
		}
		if err := matchAttachments(p, r.pass); err != nil {
			r.fail("%v", err)
			return
		}
	default:
		r.fail("pipeline %q set outside of a pass", p.PipelineKey())
		return
	}

	r.pipeline = p
	r.record(Command{Kind: CommandSetPipeline, PipelineKey: p.PipelineKey()})
}

// matchAttachments checks that a render pipeline's targets match the pass attachments.
func matchAttachments(p pipeline.Pipeline, pass renderer.RenderPassDesc) error {
	targets := p.ColorTargets()
	if len(targets) != len(pass.Color) {
		return fmt.Errorf("pipeline %q writes %d color targets, pass %q has %d", p.PipelineKey(), len(targets), pass.Label, len(pass.Color))
	}
	for i, t := range targets {
		if got := pass.Color[i].Target.Desc.Format; got != t.Format {
			return fmt.Errorf("pipeline %q target %d format %s does not match attachment format %s", p.PipelineKey(), i, t.Format, got)
		}
	}
	if p.DepthFormat() == resource.FormatUndefined {
		return nil
	}
	if pass.Depth == nil {
		return fmt.Errorf("pipeline %q needs a depth attachment in pass %q", p.PipelineKey(), pass.Label)
	}
	if got := pass.Depth.Target.Desc.Format; got != p.DepthFormat() {
		return fmt.Errorf("pipeline %q depth format %s does not match attachment format %s", p.PipelineKey(), p.DepthFormat(), got)
	}
	if p.DepthWriteEnabled() && pass.Depth.ReadOnly {
		return fmt.Errorf("pipeline %q writes depth in read-only pass %q", p.PipelineKey(), pass.Label)
	}
	return nil
}

func (r *recorder) SetBindGroup(index int, provider bind_group_provider.BindGroupProvider) {
	if !r.ok() {
		return
	}
	if !r.inRender && !r.inCompute {
		r.fail("bind group %d set outside of a pass", index)
		return
	}
	if provider == nil {
		r.fail("nil bind group provider at index %d", index)
		return
	}

	for _, e := range provider.Entries() {
		switch e.Kind {
		case bind_group_provider.EntryKindBuffer:
			if e.Buffer == nil || !r.live(e.Buffer) {
				r.fail("bind group %q binding %d refers to a released buffer", provider.Label(), e.Binding)
				return
			}
		case bind_group_provider.EntryKindTexture:
			if e.Texture == nil || !r.live(e.Texture) {
				r.fail("bind group %q binding %d refers to a released texture", provider.Label(), e.Binding)
				return
			}
			switch st := r.stateOf(e.Texture); st {
			case resource.StateShaderResource, resource.StateUnorderedAccess, resource.StateDepthRead:
			default:
				r.fail("bind group %q binds %q in state %s", provider.Label(), e.Texture.Desc.Label, st)
				return
			}
			if r.inRender && r.isAttachment(e.Texture) {
				r.fail("bind group %q binds %q which is an attachment of pass %q", provider.Label(), e.Texture.Desc.Label, r.pass.Label)
				return
			}
		}
	}

	r.groups[index] = provider
	r.record(Command{Kind: CommandSetBindGroup, Group: index, Provider: provider})
}

func (r *recorder) isAttachment(tex *resource.Texture) bool {
	for _, c := range r.pass.Color {
		if c.Target.ID == tex.ID {
			return true
		}
	}
	return r.pass.Depth != nil && r.pass.Depth.Target.ID == tex.ID && !r.pass.Depth.ReadOnly
}

func (r *recorder) SetVertexBuffer(slot int, buf *resource.Buffer) {
	if !r.ok() {
		return
	}
	if !r.inRender {
		r.fail("vertex buffer set outside of a render pass")
		return
	}
	if buf == nil || !r.live(buf) {
		r.fail("vertex buffer at slot %d is not live", slot)
		return
	}
	if !buf.Desc.Usage.Has(resource.BufferUsageVertex) {
		r.fail("buffer %q lacks vertex usage", buf.Desc.Label)
		return
	}
	r.vertex = buf
	r.record(Command{Kind: CommandSetVertexBuffer, Group: slot, Buffer: buf})
}

func (r *recorder) SetIndexBuffer(buf *resource.Buffer) {
	if !r.ok() {
		return
	}
	if !r.inRender {
		r.fail("index buffer set outside of a render pass")
		return
	}
	if buf == nil || !r.live(buf) {
		r.fail("index buffer is not live")
		return
	}
	if !buf.Desc.Usage.Has(resource.BufferUsageIndex) {
		r.fail("buffer %q lacks index usage", buf.Desc.Label)
		return
	}
	r.index = buf
	r.record(Command{Kind: CommandSetIndexBuffer, Buffer: buf})
}

func (r *recorder) checkDraw() bool {
	if !r.inRender {
		r.fail("draw outside of a render pass")
		return false
	}
	if r.pipeline == nil {
		r.fail("draw without a pipeline in pass %q", r.pass.Label)
		return false
	}
	if vs := r.pipeline.Shader(shader.ShaderTypeVertex); vs != nil && vs.VertexLayout() != nil && r.vertex == nil {
		r.fail("pipeline %q needs a vertex buffer", r.pipeline.PipelineKey())
		return false
	}
	return true
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !r.ok() || !r.checkDraw() {
		return
	}
	r.record(Command{
		Kind:          CommandDraw,
		PipelineKey:   r.pipeline.PipelineKey(),
		Count:         vertexCount,
		InstanceCount: instanceCount,
		First:         firstVertex,
		FirstInstance: firstInstance,
	})
	r.shadeDraw(false, vertexCount, instanceCount, firstInstance)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if !r.ok() || !r.checkDraw() {
		return
	}
	if r.index == nil {
		r.fail("indexed draw without an index buffer in pass %q", r.pass.Label)
		return
	}
	r.record(Command{
		Kind:          CommandDrawIndexed,
		PipelineKey:   r.pipeline.PipelineKey(),
		Count:         indexCount,
		InstanceCount: instanceCount,
		First:         firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
	r.shadeDraw(true, indexCount, instanceCount, firstInstance)
}

func (r *recorder) Dispatch(x, y, z uint32) {
	if !r.ok() {
		return
	}
	if !r.inCompute {
		r.fail("dispatch outside of a compute pass")
		return
	}
	if r.pipeline == nil {
		r.fail("dispatch without a pipeline")
		return
	}
	if x == 0 || y == 0 || z == 0 {
		r.fail("empty dispatch %dx%dx%d", x, y, z)
		return
	}
	r.record(Command{Kind: CommandDispatch, PipelineKey: r.pipeline.PipelineKey(), Workgroups: [3]uint32{x, y, z}})
}

func (r *recorder) Err() error {
	return r.err
}

// finish closes the stream and returns the first recording error.
func (r *recorder) finish() error {
	if r.err == nil {
		switch {
		case r.inRender || r.inCompute:
			r.fail("submitted with an open pass")
		case r.debugDepth != 0:
			r.fail("submitted with %d open debug groups", r.debugDepth)
		}
	}
	r.finished = true
	return r.err
}

// shadeDraw runs the ShadeFunc for a draw and merges its fragments into the pass attachments.
func (r *recorder) shadeDraw(indexed bool, count, instanceCount, firstInstance uint32) {
	r.b.mu.Lock()
	shade := r.b.shade
	r.b.mu.Unlock()
	if shade == nil || instanceCount == 0 {
		return
	}

	groups := make(map[int]bind_group_provider.BindGroupProvider, len(r.groups))
	for k, v := range r.groups {
		groups[k] = v
	}
	frags := shade(DrawInfo{
		Pipeline:      r.pipeline,
		Pass:          r.pass,
		BindGroups:    groups,
		Indexed:       indexed,
		Count:         count,
		InstanceCount: instanceCount,
		FirstInstance: firstInstance,
		Probe:         r.b.Probe,
		BufferData:    r.b.BufferData,
	})

	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	for _, f := range frags {
		r.b.mergeFragmentLocked(r.pipeline, r.pass, f)
	}
}

// mergeFragmentLocked applies the depth test, depth write and blend state of a pipeline to one
// fragment at the probe pixel.
func (b *backend) mergeFragmentLocked(p pipeline.Pipeline, pass renderer.RenderPassDesc, f Fragment) {
	if pass.Depth != nil && p.DepthTestEnabled() {
		depth := b.stateLocked(pass.Depth.Target)
		if depth != nil {
			if !compareDepth(p.DepthCompare(), f.Depth, depth.probe[0]) {
				return
			}
			if p.DepthWriteEnabled() && !pass.Depth.ReadOnly {
				depth.probe = quantize(pass.Depth.Target.Desc.Format, [4]float32{f.Depth})
			}
		}
	}

	for i, target := range p.ColorTargets() {
		if i >= len(pass.Color) || i >= len(f.Outputs) {
			break
		}
		st := b.stateLocked(pass.Color[i].Target)
		if st == nil {
			continue
		}
		dst := st.probe
		out := f.Outputs[i]
		if target.Blend != nil {
			out = target.Blend.Apply(out, dst)
		}
		mask := target.WriteMask
		if mask == 0 {
			mask = pipeline.WriteMaskAll
		}
		for c, bit := range [4]pipeline.WriteMask{pipeline.WriteMaskRed, pipeline.WriteMaskGreen, pipeline.WriteMaskBlue, pipeline.WriteMaskAlpha} {
			if mask&bit == 0 {
				out[c] = dst[c]
			}
		}
		st.probe = quantize(pass.Color[i].Target.Desc.Format, out)
	}
}

func compareDepth(fn pipeline.CompareFunction, src, dst float32) bool {
	switch fn {
	case pipeline.CompareLess:
		return src < dst
	case pipeline.CompareLessEqual:
		return src <= dst
	case pipeline.CompareGreater:
		return src > dst
	}
	return true
}
