package headless

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// CommandKind identifies a recorded command.
type CommandKind int

const (
	CommandPushDebugGroup CommandKind = iota
	CommandPopDebugGroup
	CommandBarrier
	CommandBeginRenderPass
	CommandEndRenderPass
	CommandBeginComputePass
	CommandEndComputePass
	CommandSetPipeline
	CommandSetBindGroup
	CommandSetVertexBuffer
	CommandSetIndexBuffer
	CommandDraw
	CommandDrawIndexed
	CommandDispatch
)

var commandNames = [...]string{
	CommandPushDebugGroup:   "push-debug-group",
	CommandPopDebugGroup:    "pop-debug-group",
	CommandBarrier:          "barrier",
	CommandBeginRenderPass:  "begin-render-pass",
	CommandEndRenderPass:    "end-render-pass",
	CommandBeginComputePass: "begin-compute-pass",
	CommandEndComputePass:   "end-compute-pass",
	CommandSetPipeline:      "set-pipeline",
	CommandSetBindGroup:     "set-bind-group",
	CommandSetVertexBuffer:  "set-vertex-buffer",
	CommandSetIndexBuffer:   "set-index-buffer",
	CommandDraw:             "draw",
	CommandDrawIndexed:      "draw-indexed",
	CommandDispatch:         "dispatch",
}

func (k CommandKind) String() string {
	if int(k) >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is a single recorded command. Only the fields relevant to Kind are set.
type Command struct {
	Kind CommandKind
	// Label is the debug group, render pass or compute pass label.
	Label string

	Transitions []resource.Transition
	Pass        renderer.RenderPassDesc

	PipelineKey string
	Group       int
	Provider    bind_group_provider.BindGroupProvider
	Buffer      *resource.Buffer

	// Count is the vertex count of a draw or the index count of an indexed draw.
	Count         uint32
	InstanceCount uint32
	First         uint32
	FirstInstance uint32
	BaseVertex    int32

	Workgroups [3]uint32
}

// Submission is the command stream of one submitted frame.
type Submission struct {
	Slot     int
	Frame    uint64
	Commands []Command
}

// Filter returns the commands of the given kinds in recording order.
func (s Submission) Filter(kinds ...CommandKind) []Command {
	var out []Command
	for _, c := range s.Commands {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// DebugGroups returns the labels of the top-level debug groups in recording order.
func (s Submission) DebugGroups() []string {
	var out []string
	depth := 0
	for _, c := range s.Commands {
		switch c.Kind {
		case CommandPushDebugGroup:
			if depth == 0 {
				out = append(out, c.Label)
			}
			depth++
		case CommandPopDebugGroup:
			depth--
		}
	}
	return out
}

// Fragment is one shaded fragment produced for the probe pixel by a ShadeFunc.
type Fragment struct {
	// Depth is the post-projection depth in [0, 1] used for the depth test.
	Depth float32
	// Outputs holds one source color per color target of the bound pipeline.
	Outputs [][4]float32
}

// DrawInfo describes a draw handed to a ShadeFunc.
type DrawInfo struct {
	Pipeline   pipeline.Pipeline
	Pass       renderer.RenderPassDesc
	BindGroups map[int]bind_group_provider.BindGroupProvider

	Indexed       bool
	Count         uint32
	InstanceCount uint32
	FirstInstance uint32

	// Probe returns the current probe pixel value of a texture.
	Probe func(tex *resource.Texture) [4]float32
	// BufferData returns a copy of a buffer's contents.
	BufferData func(buf *resource.Buffer) []byte
}

// ShadeFunc produces the fragments a draw generates at the probe pixel. Returned fragments are
// depth tested and blended into the pass attachments in order, using the pipeline's state.
type ShadeFunc func(info DrawInfo) []Fragment
