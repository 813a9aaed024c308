package aoit

import (
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/shader"
)

// ClearMaskFormat is the format of the per-pixel flag telling the shade pass whether the node
// list of a pixel was initialized this frame.
const ClearMaskFormat = resource.FormatR32Uint

// nodeBlockSize is the byte size of one vec4 node block.
const nodeBlockSize = 16

// RTCount returns the number of vec4 blocks each pixel needs to hold k nodes. With two nodes the
// depths fit next to the packed colors of a single block.
func RTCount(k int) int {
	if k <= 2 {
		return 1
	}
	return (k + 3) / 4
}

// HasDepthBuffer reports whether k nodes need a separate depth buffer.
func HasDepthBuffer(k int) bool {
	return k > 2
}

// BufferSize returns the byte size of the color or depth node buffer at the given resolution.
func BufferSize(k int, width, height uint32) uint64 {
	return uint64(width) * uint64(height) * uint64(RTCount(k)) * nodeBlockSize
}

// Macros returns the shader macros of a node count.
func Macros(k int) shader.Macros {
	return shader.Macros{
		"AOIT_NODE_COUNT":   k,
		"AOIT_RT_COUNT":     RTCount(k),
		"AOIT_DEPTH_BUFFER": shader.Flag(HasDepthBuffer(k)),
	}
}
