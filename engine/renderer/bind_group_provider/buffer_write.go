package bind_group_provider

import "github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"

// BufferWrite describes a single GPU buffer write targeting the buffer bound at a binding of a
// provider, at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Target resolves the buffer the write lands in, or nil if the binding holds no buffer.
func (w BufferWrite) Target() *resource.Buffer {
	if w.Provider == nil {
		return nil
	}
	return w.Provider.Buffer(w.Binding)
}
