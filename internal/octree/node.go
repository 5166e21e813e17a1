// Package octree implements an implicit octree stored as a set of leaf
// nodes, plus the distance-driven refinement that grows and shrinks it.
package octree

import (
	"fmt"

	"voxellod.ai/internal/mathx"
)

// Node identifies an octree cell. Coordinates are in units of the node's own
// LOD; lower LOD is finer.
type Node struct {
	X, Y, Z int32
	LOD     int32
}

func NewNode(x, y, z, lod int32) Node {
	return Node{X: x, Y: y, Z: z, LOD: lod}
}

func (n Node) String() string {
	return fmt.Sprintf("L%d(%d,%d,%d)", n.LOD, n.X, n.Y, n.Z)
}

// Child returns the child in the given octant (bit 0 = +X, bit 1 = +Y,
// bit 2 = +Z). ok is false at LOD 0.
func (n Node) Child(octant uint8) (Node, bool) {
	if n.LOD <= 0 {
		return Node{}, false
	}
	return Node{
		X:   n.X*2 + int32(octant&1),
		Y:   n.Y*2 + int32((octant>>1)&1),
		Z:   n.Z*2 + int32((octant>>2)&1),
		LOD: n.LOD - 1,
	}, true
}

// Children returns all 8 children, or nil at LOD 0.
func (n Node) Children() []Node {
	if n.LOD <= 0 {
		return nil
	}
	out := make([]Node, 0, 8)
	for o := uint8(0); o < 8; o++ {
		c, _ := n.Child(o)
		out = append(out, c)
	}
	return out
}

// Parent returns the enclosing node one LOD coarser. ok is false once
// maxLOD is reached. Negative coordinates round toward negative infinity.
func (n Node) Parent(maxLOD int32) (Node, bool) {
	if n.LOD >= maxLOD {
		return Node{}, false
	}
	return Node{
		X:   mathx.FloorDiv(n.X, 2),
		Y:   mathx.FloorDiv(n.Y, 2),
		Z:   mathx.FloorDiv(n.Z, 2),
		LOD: n.LOD + 1,
	}, true
}

// Ancestor returns the node at lod that contains n. lod must be >= n.LOD.
func (n Node) Ancestor(lod int32) Node {
	shift := lod - n.LOD
	if shift <= 0 {
		return n
	}
	scale := int32(1) << uint(shift)
	return Node{
		X:   mathx.FloorDiv(n.X, scale),
		Y:   mathx.FloorDiv(n.Y, scale),
		Z:   mathx.FloorDiv(n.Z, scale),
		LOD: lod,
	}
}

// Offset returns the same-LOD node displaced by (dx, dy, dz).
func (n Node) Offset(dx, dy, dz int32) Node {
	return Node{X: n.X + dx, Y: n.Y + dy, Z: n.Z + dz, LOD: n.LOD}
}

// IsAncestorOf reports whether n strictly contains other.
func (n Node) IsAncestorOf(other Node) bool {
	return n.LOD > other.LOD && other.Ancestor(n.LOD) == n
}

// Less orders nodes by LOD then coordinates.
func (n Node) Less(o Node) bool {
	if n.LOD != o.LOD {
		return n.LOD < o.LOD
	}
	if n.X != o.X {
		return n.X < o.X
	}
	if n.Y != o.Y {
		return n.Y < o.Y
	}
	return n.Z < o.Z
}

func CompareNodes(a, b Node) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
