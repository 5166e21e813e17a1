package octree

// TransitionType distinguishes the two atomic leaf-set changes.
type TransitionType uint8

const (
	Subdivide TransitionType = iota + 1
	Merge
)

func (t TransitionType) String() string {
	switch t {
	case Subdivide:
		return "subdivide"
	case Merge:
		return "merge"
	}
	return "unknown"
}

// TransitionGroup is one atomic subdivide (1 -> up to 8) or merge (8 -> 1).
// GroupKey is always the parent node.
type TransitionGroup struct {
	Type          TransitionType
	GroupKey      Node
	NodesToAdd    []Node
	NodesToRemove []Node
}

// NewSubdivide replaces parent with its 8 children. ok is false at LOD 0.
func NewSubdivide(parent Node) (TransitionGroup, bool) {
	children := parent.Children()
	if len(children) != 8 {
		return TransitionGroup{}, false
	}
	return TransitionGroup{
		Type:          Subdivide,
		GroupKey:      parent,
		NodesToAdd:    children,
		NodesToRemove: []Node{parent},
	}, true
}

// NewSubdivideFiltered replaces parent with a caller-filtered child subset.
func NewSubdivideFiltered(parent Node, children []Node) (TransitionGroup, bool) {
	if parent.LOD <= 0 || len(children) == 0 {
		return TransitionGroup{}, false
	}
	return TransitionGroup{
		Type:          Subdivide,
		GroupKey:      parent,
		NodesToAdd:    children,
		NodesToRemove: []Node{parent},
	}, true
}

// NewMerge replaces exactly 8 children with parent.
func NewMerge(parent Node, children []Node) (TransitionGroup, bool) {
	if len(children) != 8 {
		return TransitionGroup{}, false
	}
	return TransitionGroup{
		Type:          Merge,
		GroupKey:      parent,
		NodesToAdd:    []Node{parent},
		NodesToRemove: children,
	}, true
}

// RenderNodes are the nodes whose meshes this group produces.
func (g TransitionGroup) RenderNodes() []Node {
	return g.NodesToAdd
}
