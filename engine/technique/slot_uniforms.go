package technique

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
)

// Formats of the targets every technique shares.
const (
	DepthFormat        = resource.FormatDepth32Float
	SceneColorFormat   = resource.FormatRGBA8Unorm
	AccumulationFormat = resource.FormatRGBA16Float
)

// SlotUniforms holds one uniform buffer per frame ring slot, each bound at the same binding of its
// own bind group provider. Writing slot i never touches a buffer the GPU may still read for
// another in-flight frame.
type SlotUniforms struct {
	Buffers []*resource.Buffer
	Groups  []bind_group_provider.BindGroupProvider
}

// CreateSlotUniforms allocates ctx.Frames uniform buffers of the given size.
//
// Parameters:
//   - label: the debug label prefix
//   - size: the buffer size in bytes
//   - binding: the binding index of the buffer in each provider
//
// Returns:
//   - SlotUniforms: the buffers and their providers
//   - error: the first creation error; buffers created before it are released
func (c *Context) CreateSlotUniforms(label string, size uint64, binding int) (SlotUniforms, error) {
	frames := max(c.Frames, 1)
	var s SlotUniforms
	for slot := range frames {
		buf, err := c.Renderer.CreateBuffer(resource.BufferDesc{
			Label: fmt.Sprintf("%s[%d]", label, slot),
			Size:  size,
			Usage: resource.BufferUsageUniform | resource.BufferUsageCopyDst,
		})
		if err != nil {
			s.Release(c.Renderer)
			return SlotUniforms{}, err
		}
		s.Buffers = append(s.Buffers, buf)
		s.Groups = append(s.Groups, bind_group_provider.NewBindGroupProvider(
			bind_group_provider.WithLabel(fmt.Sprintf("%s[%d]", label, slot)),
			bind_group_provider.WithBuffer(binding, buf),
		))
	}
	return s, nil
}

// Write uploads data into the buffer of a slot.
func (s SlotUniforms) Write(r renderer.Renderer, slot int, data []byte) error {
	if slot < 0 || slot >= len(s.Buffers) {
		return fmt.Errorf("slot %d out of range [0, %d)", slot, len(s.Buffers))
	}
	return r.WriteBuffer(s.Buffers[slot], 0, data)
}

// Group returns the provider of a slot.
func (s SlotUniforms) Group(slot int) bind_group_provider.BindGroupProvider {
	return s.Groups[slot]
}

// SetTexture binds tex at binding in every slot's provider.
func (s SlotUniforms) SetTexture(binding int, tex *resource.Texture) {
	for _, g := range s.Groups {
		g.SetTexture(binding, tex)
	}
}

// SetBuffer binds buf at binding in every slot's provider.
func (s SlotUniforms) SetBuffer(binding int, buf *resource.Buffer) {
	for _, g := range s.Groups {
		g.SetBuffer(binding, buf)
	}
}

// SetSampler binds a sampler at binding in every slot's provider.
func (s SlotUniforms) SetSampler(binding int, kind resource.SamplerKind) {
	for _, g := range s.Groups {
		g.SetSampler(binding, kind)
	}
}

// Release destroys the buffers and empties the providers.
func (s SlotUniforms) Release(r renderer.Renderer) {
	for _, b := range s.Buffers {
		r.Release(b)
	}
	for _, g := range s.Groups {
		g.Release()
	}
}
