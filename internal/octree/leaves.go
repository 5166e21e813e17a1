package octree

import "slices"

// Leaves is the entire persistent state of an implicit octree. No leaf may
// be an ancestor of another; this holds by construction.
type Leaves map[Node]struct{}

func NewLeaves(nodes ...Node) Leaves {
	l := make(Leaves, len(nodes))
	for _, n := range nodes {
		l[n] = struct{}{}
	}
	return l
}

// NewLeavesWithInitial seeds a single leaf at the origin at the given LOD.
func NewLeavesWithInitial(lod int32) Leaves {
	return NewLeaves(NewNode(0, 0, 0, lod))
}

func (l Leaves) Contains(n Node) bool {
	_, ok := l[n]
	return ok
}

// Insert adds n and reports whether it was absent.
func (l Leaves) Insert(n Node) bool {
	if _, ok := l[n]; ok {
		return false
	}
	l[n] = struct{}{}
	return true
}

// Remove deletes n and reports whether it was present.
func (l Leaves) Remove(n Node) bool {
	if _, ok := l[n]; !ok {
		return false
	}
	delete(l, n)
	return true
}

func (l Leaves) Len() int { return len(l) }

func (l Leaves) Clone() Leaves {
	out := make(Leaves, len(l))
	for n := range l {
		out[n] = struct{}{}
	}
	return out
}

// Sorted returns the leaves in a deterministic order.
func (l Leaves) Sorted() []Node {
	out := make([]Node, 0, len(l))
	for n := range l {
		out = append(out, n)
	}
	slices.SortFunc(out, CompareNodes)
	return out
}

// EffectiveMaxLOD is the coarsest LOD present, or 0 when empty.
func (l Leaves) EffectiveMaxLOD() int32 {
	var m int32
	for n := range l {
		if n.LOD > m {
			m = n.LOD
		}
	}
	return m
}

// Apply replays a transition group: removals first, then additions.
func (l Leaves) Apply(g TransitionGroup) {
	for _, n := range g.NodesToRemove {
		delete(l, n)
	}
	for _, n := range g.NodesToAdd {
		l[n] = struct{}{}
	}
}

// FindCoarser returns the leaf covering n at n's LOD or any coarser LOD up
// to maxLOD.
func (l Leaves) FindCoarser(n Node, maxLOD int32) (Node, bool) {
	for lod := n.LOD; lod <= maxLOD; lod++ {
		a := n.Ancestor(lod)
		if l.Contains(a) {
			return a, true
		}
	}
	return Node{}, false
}
