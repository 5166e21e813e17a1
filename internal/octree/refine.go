package octree

import (
	"sort"

	"github.com/golang/geo/r3"
)

// RefineInput is everything Refine looks at. Refine does not mutate
// PrevLeaves.
type RefineInput struct {
	Viewer     r3.Vector
	Config     Config
	PrevLeaves Leaves
	Budget     Budget
}

type RefineOutput struct {
	NextLeaves  Leaves
	Transitions []TransitionGroup
	Stats       Stats
}

var faceOffsets = [6][3]int32{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Refine computes the next leaf set for a viewer position.
//
// Collapses run before subdivisions, each bounded by its budget: collapse
// candidates farthest-first and subdivide candidates nearest-first. A
// neighbor pass then force-subdivides leaves whose face neighbors are more
// than Budget.MaxRelativeLOD levels finer. Budgeted groups come out sorted
// by the distance from the viewer to their group key; neighbor groups follow
// in the order they were applied, so replaying Transitions over PrevLeaves
// in order always yields NextLeaves.
func Refine(in RefineInput) RefineOutput {
	cfg := in.Config
	next := in.PrevLeaves.Clone()
	var stats Stats

	var subdivide []Node
	coarsen := map[Node]struct{}{}

	for _, n := range in.PrevLeaves.Sorted() {
		if !cfg.InBounds(n) {
			continue
		}
		if n.LOD > cfg.MinLOD {
			if in.Viewer.Distance(cfg.NodeCenter(n)) < cfg.Threshold(n.LOD) {
				subdivide = append(subdivide, n)
				continue
			}
		}
		if n.LOD < cfg.MaxLOD {
			if p, ok := n.Parent(cfg.MaxLOD); ok {
				if in.Viewer.Distance(cfg.NodeCenter(p)) >= cfg.Threshold(p.LOD) {
					coarsen[p] = struct{}{}
				}
			}
		}
	}

	collapse := make([]Node, 0, len(coarsen))
	for p := range coarsen {
		if allChildrenAreLeaves(p, next) {
			collapse = append(collapse, p)
		}
	}
	// Stable order before sorting so ties resolve the same way every call.
	sort.Slice(collapse, func(i, j int) bool { return collapse[i].Less(collapse[j]) })

	dist2 := func(n Node) float64 { return in.Viewer.Sub(cfg.NodeCenter(n)).Norm2() }
	sort.SliceStable(subdivide, func(i, j int) bool { return dist2(subdivide[i]) < dist2(subdivide[j]) })
	sort.SliceStable(collapse, func(i, j int) bool { return dist2(collapse[i]) > dist2(collapse[j]) })

	var groups []TransitionGroup
	var interior map[Node]struct{}
	if in.Budget.NeighborEnforcementEnabled() && len(collapse) > 0 {
		interior = interiorNodes(next, cfg.MaxLOD)
	}
	for _, p := range collapse {
		if !in.Budget.CanCollapse(stats.Collapses) {
			break
		}
		if interior != nil && !mergeKeepsGradation(p, in.Budget.MaxRelativeLOD, interior) {
			continue
		}
		if applyMerge(p, next, &groups) {
			stats.Collapses++
		}
	}
	for _, n := range subdivide {
		if !in.Budget.CanSubdivide(stats.Subdivisions) {
			break
		}
		if !next.Contains(n) {
			continue
		}
		if applySubdivide(n, cfg, next, &groups) {
			stats.Subdivisions++
		}
	}

	sort.SliceStable(groups, func(i, j int) bool { return dist2(groups[i].GroupKey) < dist2(groups[j].GroupKey) })
	merged := map[Node]int{}
	for i, g := range groups {
		if g.Type == Merge {
			merged[g.GroupKey] = i
		}
	}

	forced, undone := enforceNeighborGradation(cfg, in.Budget, next, &groups, merged)
	stats.NeighborSubdivisions = forced
	stats.Collapses -= undone

	return RefineOutput{NextLeaves: next, Transitions: groups, Stats: stats}
}

func allChildrenAreLeaves(parent Node, leaves Leaves) bool {
	if parent.LOD <= 0 {
		return false
	}
	for o := uint8(0); o < 8; o++ {
		c, _ := parent.Child(o)
		if !leaves.Contains(c) {
			return false
		}
	}
	return true
}

func applySubdivide(parent Node, cfg Config, leaves Leaves, groups *[]TransitionGroup) bool {
	if parent.LOD <= 0 {
		return false
	}
	var (
		g  TransitionGroup
		ok bool
	)
	if cfg.WorldBounds != nil {
		var kept []Node
		for _, c := range parent.Children() {
			if cfg.InBounds(c) {
				kept = append(kept, c)
			}
		}
		g, ok = NewSubdivideFiltered(parent, kept)
	} else {
		g, ok = NewSubdivide(parent)
	}
	if !ok {
		return false
	}
	leaves.Apply(g)
	*groups = append(*groups, g)
	return true
}

func applyMerge(parent Node, leaves Leaves, groups *[]TransitionGroup) bool {
	g, ok := NewMerge(parent, parent.Children())
	if !ok {
		return false
	}
	leaves.Apply(g)
	*groups = append(*groups, g)
	return true
}

// faceNeighbor finds the leaf across the given face at the same or a
// coarser LOD.
func faceNeighbor(n Node, dir int, leaves Leaves, maxLOD int32) (Node, bool) {
	o := faceOffsets[dir]
	return leaves.FindCoarser(n.Offset(o[0], o[1], o[2]), maxLOD)
}

// enforceNeighborGradation subdivides coarse neighbors until every face
// pair is within b.MaxRelativeLOD. A neighbor that was collapsed earlier in
// the same call gets its merge undone instead, so no group key is both
// merged and subdivided. merged maps merge keys to their index in groups.
func enforceNeighborGradation(cfg Config, b Budget, leaves Leaves, groups *[]TransitionGroup, merged map[Node]int) (performed, undone int) {
	if !b.NeighborEnforcementEnabled() {
		return 0, 0
	}
	dropped := map[int]bool{}
	defer func() {
		if len(dropped) == 0 {
			return
		}
		kept := (*groups)[:0]
		for i, g := range *groups {
			if !dropped[i] {
				kept = append(kept, g)
			}
		}
		*groups = kept
	}()

	for iter := 0; iter < b.neighborIterations(); iter++ {
		changed := false
		for _, n := range leaves.Sorted() {
			if !leaves.Contains(n) {
				continue
			}
			for dir := range faceOffsets {
				nb, ok := faceNeighbor(n, dir, leaves, cfg.MaxLOD)
				if !ok || nb.LOD-n.LOD <= b.MaxRelativeLOD {
					continue
				}
				if idx, ok := merged[nb]; ok && leaves.Contains(nb) {
					g := (*groups)[idx]
					leaves.Remove(nb)
					for _, c := range g.NodesToRemove {
						leaves.Insert(c)
					}
					delete(merged, nb)
					dropped[idx] = true
					undone++
					changed = true
					continue
				}
				if nb.LOD > cfg.MinLOD && leaves.Contains(nb) && allChildrenInBounds(nb, cfg) {
					if applySubdivide(nb, cfg, leaves, groups) {
						performed++
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return performed, undone
}

// allChildrenInBounds is false for nodes straddling the world bounds. Forced
// subdivision skips them so partial subdivisions cannot cascade along the
// boundary.
func allChildrenInBounds(n Node, cfg Config) bool {
	if cfg.WorldBounds == nil {
		return true
	}
	for _, c := range n.Children() {
		if !cfg.InBounds(c) {
			return false
		}
	}
	return true
}

// interiorNodes returns every strict ancestor of a leaf up to maxLOD.
func interiorNodes(leaves Leaves, maxLOD int32) map[Node]struct{} {
	out := make(map[Node]struct{}, len(leaves))
	for n := range leaves {
		cur := n
		for {
			p, ok := cur.Parent(maxLOD)
			if !ok {
				break
			}
			if _, seen := out[p]; seen {
				break
			}
			out[p] = struct{}{}
			cur = p
		}
	}
	return out
}

// mergeKeepsGradation reports whether collapsing into parent leaves every
// face neighbor within maxRel levels. A neighbor slab node at LOD
// parent.LOD-maxRel that still has descendants means a finer leaf touches
// the face.
func mergeKeepsGradation(parent Node, maxRel int32, interior map[Node]struct{}) bool {
	t := parent.LOD - maxRel
	if t < 1 {
		return true
	}
	s := int32(1) << uint(maxRel)
	bx, by, bz := parent.X*s, parent.Y*s, parent.Z*s
	for axis := 0; axis < 3; axis++ {
		for _, side := range [2]int32{-1, s} {
			for u := int32(0); u < s; u++ {
				for v := int32(0); v < s; v++ {
					var n Node
					switch axis {
					case 0:
						n = NewNode(bx+side, by+u, bz+v, t)
					case 1:
						n = NewNode(bx+u, by+side, bz+v, t)
					default:
						n = NewNode(bx+u, by+v, bz+side, t)
					}
					if _, ok := interior[n]; ok {
						return false
					}
				}
			}
		}
	}
	return true
}
