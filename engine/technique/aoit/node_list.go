package aoit

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Node is one entry of a per-pixel visibility function.
type Node struct {
	// Depth is the view depth of the nearest fragment folded into the node.
	Depth float32
	// Trans is the transmittance behind the node.
	Trans float32
	// Color is the premultiplied color of the node, before attenuation by the nodes in front.
	Color mgl32.Vec3
}

// NodeList is the CPU form of the per-pixel node list the shade pass maintains. Fragments are
// inserted in any order. When the list exceeds its capacity the adjacent pair enclosing the
// smallest visibility area is merged, so the list always approximates the visibility function
// with at most Capacity nodes.
type NodeList struct {
	capacity int
	nodes    []Node
}

// NewNodeList creates an empty list keeping at most k nodes.
func NewNodeList(k int) *NodeList {
	return &NodeList{capacity: k, nodes: make([]Node, 0, k+1)}
}

// Capacity returns the node budget.
func (l *NodeList) Capacity() int {
	return l.capacity
}

// Nodes returns the nodes ordered front to back.
func (l *NodeList) Nodes() []Node {
	return slices.Clone(l.nodes)
}

// Len returns the number of nodes in use.
func (l *NodeList) Len() int {
	return len(l.nodes)
}

// transBefore returns the transmittance in front of node i.
func (l *NodeList) transBefore(i int) float32 {
	if i == 0 {
		return 1
	}
	return l.nodes[i-1].Trans
}

// Insert adds a fragment. Fragments at the depth of an existing node go behind it.
//
// Parameters:
//   - depth: the view depth of the fragment
//   - color: the straight (not premultiplied) fragment color
//   - alpha: the fragment opacity
func (l *NodeList) Insert(depth float32, color mgl32.Vec3, alpha float32) {
	i, _ := slices.BinarySearchFunc(l.nodes, depth, func(n Node, d float32) int {
		if n.Depth <= d {
			return -1
		}
		return 1
	})

	node := Node{
		Depth: depth,
		Trans: l.transBefore(i) * (1 - alpha),
		Color: color.Mul(alpha),
	}
	l.nodes = slices.Insert(l.nodes, i, node)
	for j := i + 1; j < len(l.nodes); j++ {
		l.nodes[j].Trans *= 1 - alpha
	}

	if len(l.nodes) > l.capacity {
		l.merge()
	}
}

// merge folds the node closing the smallest visibility area into its front neighbour. The merged
// node composites exactly what the two did.
func (l *NodeList) merge() {
	best, bestArea := -1, float32(0)
	for i := 1; i < len(l.nodes); i++ {
		area := (l.nodes[i].Depth - l.nodes[i-1].Depth) * (l.transBefore(i) - l.nodes[i].Trans)
		if best < 0 || area < bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return
	}

	front := &l.nodes[best-1]
	back := l.nodes[best]
	if tf := l.transBefore(best - 1); tf > 0 {
		front.Color = front.Color.Add(back.Color.Mul(front.Trans / tf))
	}
	front.Trans = back.Trans
	l.nodes = slices.Delete(l.nodes, best, best+1)
}

// Composite returns the premultiplied color and coverage of the list.
//
// Returns:
//   - [4]float32: sum of each node's color attenuated by the transmittance in front of it, and
//     one minus the final transmittance
func (l *NodeList) Composite() [4]float32 {
	var c mgl32.Vec3
	for i, n := range l.nodes {
		c = c.Add(n.Color.Mul(l.transBefore(i)))
	}
	trans := float32(1)
	if len(l.nodes) > 0 {
		trans = l.nodes[len(l.nodes)-1].Trans
	}
	return [4]float32{c[0], c[1], c[2], 1 - trans}
}

// Over blends the composite onto an opaque background.
func (l *NodeList) Over(background [4]float32) [4]float32 {
	src := l.Composite()
	out := background
	for c := range 3 {
		out[c] = src[c] + background[c]*(1-src[3])
	}
	out[3] = src[3] + background[3]*(1-src[3])
	return out
}

// Fragment is a transparent surface sample used by the sorted reference.
type Fragment struct {
	Depth float32
	Color mgl32.Vec3
	Alpha float32
}

// Sorted composites fragments front to back in exact depth order. It is the result the node
// list converges to when no merges occur.
func Sorted(frags []Fragment) [4]float32 {
	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(a, b Fragment) int {
		switch {
		case a.Depth < b.Depth:
			return -1
		case a.Depth > b.Depth:
			return 1
		}
		return 0
	})

	var c mgl32.Vec3
	trans := float32(1)
	for _, f := range sorted {
		c = c.Add(f.Color.Mul(f.Alpha * trans))
		trans *= 1 - f.Alpha
	}
	return [4]float32{c[0], c[1], c[2], 1 - trans}
}
