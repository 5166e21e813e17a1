package octree

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
)

func refineOnce(cfg Config, leaves Leaves, viewer r3.Vector, b Budget) RefineOutput {
	return Refine(RefineInput{Viewer: viewer, Config: cfg, PrevLeaves: leaves, Budget: b})
}

func checkGroupInvariants(t *testing.T, groups []TransitionGroup) {
	t.Helper()
	for _, g := range groups {
		removed := map[Node]bool{}
		for _, n := range g.NodesToRemove {
			removed[n] = true
		}
		for _, n := range g.NodesToAdd {
			if removed[n] {
				t.Fatalf("group %v: %v both added and removed", g.GroupKey, n)
			}
		}
		switch g.Type {
		case Subdivide:
			if len(g.NodesToRemove) != 1 || g.NodesToRemove[0] != g.GroupKey {
				t.Fatalf("subdivide must remove only its key")
			}
			if len(g.NodesToAdd) == 0 || len(g.NodesToAdd) > 8 {
				t.Fatalf("subdivide adds %d nodes", len(g.NodesToAdd))
			}
			for _, c := range g.NodesToAdd {
				if p, ok := c.Parent(64); !ok || p != g.GroupKey {
					t.Fatalf("added %v is not a child of %v", c, g.GroupKey)
				}
			}
		case Merge:
			if len(g.NodesToAdd) != 1 || g.NodesToAdd[0] != g.GroupKey {
				t.Fatalf("merge must add only its key")
			}
			want := map[Node]bool{}
			for _, c := range g.GroupKey.Children() {
				want[c] = true
			}
			if len(g.NodesToRemove) != 8 {
				t.Fatalf("merge removes %d nodes", len(g.NodesToRemove))
			}
			for _, c := range g.NodesToRemove {
				if !want[c] {
					t.Fatalf("merge removed non-child %v", c)
				}
			}
		default:
			t.Fatalf("unknown transition type %v", g.Type)
		}
	}
}

func checkNoNestedLeaves(t *testing.T, leaves Leaves, maxLOD int32) {
	t.Helper()
	for n := range leaves {
		cur := n
		for {
			p, ok := cur.Parent(maxLOD)
			if !ok {
				break
			}
			if leaves.Contains(p) {
				t.Fatalf("leaf %v has ancestor leaf %v", n, p)
			}
			cur = p
		}
	}
}

func TestTransitionConstructors(t *testing.T) {
	if _, ok := NewSubdivide(NewNode(0, 0, 0, 0)); ok {
		t.Fatalf("LOD 0 subdivide must be rejected")
	}
	g, ok := NewSubdivide(NewNode(1, 1, 1, 2))
	if !ok || len(g.NodesToAdd) != 8 || g.Type != Subdivide {
		t.Fatalf("subdivide group: %+v", g)
	}
	if _, ok := NewMerge(NewNode(0, 0, 0, 1), NewNode(0, 0, 0, 1).Children()[:7]); ok {
		t.Fatalf("merge with 7 children must be rejected")
	}
	if _, ok := NewSubdivideFiltered(NewNode(0, 0, 0, 1), nil); ok {
		t.Fatalf("filtered subdivide with no children must be rejected")
	}
	checkGroupInvariants(t, []TransitionGroup{g})
}

func TestViewerAtCenterSubdivides(t *testing.T) {
	cfg := DefaultConfig()
	root := NewNode(0, 0, 0, 3)
	out := refineOnce(cfg, NewLeaves(root), cfg.NodeCenter(root), UnlimitedBudget)
	if out.Stats.Subdivisions != 1 || len(out.Transitions) == 0 {
		t.Fatalf("expected a subdivision, stats=%+v", out.Stats)
	}
	if out.NextLeaves.Contains(root) {
		t.Fatalf("parent must be removed")
	}
	checkGroupInvariants(t, out.Transitions)
}

func TestViewerFarCollapses(t *testing.T) {
	cfg := DefaultConfig()
	parent := NewNode(0, 0, 0, 2)
	leaves := NewLeaves(parent.Children()...)
	out := refineOnce(cfg, leaves, r3.Vector{X: 1e6, Y: 1e6, Z: 1e6}, UnlimitedBudget)
	if out.Stats.Collapses != 1 || !out.NextLeaves.Contains(parent) || out.NextLeaves.Len() != 1 {
		t.Fatalf("expected merge into %v, got %v", parent, out.NextLeaves.Sorted())
	}
	if out.Transitions[0].Type != Merge || out.Transitions[0].GroupKey != parent {
		t.Fatalf("unexpected group %+v", out.Transitions[0])
	}
}

func TestMergeRequiresAllSiblings(t *testing.T) {
	cfg := DefaultConfig()
	parent := NewNode(0, 0, 0, 2)
	leaves := NewLeaves(parent.Children()[:7]...)
	out := refineOnce(cfg, leaves, r3.Vector{X: 1e6}, UnlimitedBudget)
	if out.Stats.Collapses != 0 {
		t.Fatalf("partial sibling set must not merge")
	}
}

func TestSubdivideNearestFirstUnderBudget(t *testing.T) {
	cfg := DefaultConfig()
	near := NewNode(0, 0, 0, 2)
	far := NewNode(1, 0, 0, 2)
	// Both centers are within the LOD 2 threshold (112); near is closer.
	viewer := r3.Vector{X: 100, Y: 56, Z: 56}
	b := Budget{MaxSubdivisions: 1, MaxCollapses: 1}
	out := refineOnce(cfg, NewLeaves(near, far), viewer, b)
	if out.Stats.Subdivisions != 1 {
		t.Fatalf("budget should allow exactly one subdivision: %+v", out.Stats)
	}
	if out.NextLeaves.Contains(near) || !out.NextLeaves.Contains(far) {
		t.Fatalf("nearest node must be subdivided first")
	}
}

func TestCollapseFarthestFirstUnderBudget(t *testing.T) {
	cfg := DefaultConfig()
	a := NewNode(10, 0, 0, 1)
	b := NewNode(40, 0, 0, 1)
	leaves := NewLeaves(append(a.Children(), b.Children()...)...)
	out := refineOnce(cfg, leaves, r3.Vector{}, Budget{MaxSubdivisions: 1, MaxCollapses: 1})
	if out.Stats.Collapses != 1 || !out.NextLeaves.Contains(b) || out.NextLeaves.Contains(a) {
		t.Fatalf("farthest parent must collapse first: %+v", out.Stats)
	}
}

func TestGroupsSortedByDistance(t *testing.T) {
	cfg := DefaultConfig()
	var nodes []Node
	for x := int32(0); x < 3; x++ {
		nodes = append(nodes, NewNode(x, 0, 0, 1))
	}
	viewer := cfg.NodeCenter(nodes[1])
	out := refineOnce(cfg, NewLeaves(nodes...), viewer, NoNeighborEnforcement)
	prev := -1.0
	for _, g := range out.Transitions {
		d := viewer.Sub(cfg.NodeCenter(g.GroupKey)).Norm2()
		if d < prev {
			t.Fatalf("groups not sorted by distance")
		}
		prev = d
	}
}

func TestNeighborEnforcementDisabled(t *testing.T) {
	cfg := DefaultConfig()
	leaves := NewLeaves(NewNode(0, 0, 0, 0), NewNode(-1, 0, 0, 5))
	out := refineOnce(cfg, leaves, r3.Vector{X: 14, Y: 14, Z: 14}, Budget{MaxSubdivisions: 0, MaxCollapses: 0, MaxRelativeLOD: 0})
	if out.Stats.NeighborSubdivisions != 0 {
		t.Fatalf("enforcement disabled but performed %d", out.Stats.NeighborSubdivisions)
	}
}

func TestNeighborEnforcementSubdividesCoarseNeighbor(t *testing.T) {
	cfg := DefaultConfig()
	fine := NewNode(0, 0, 0, 0)
	coarse := NewNode(-1, 0, 0, 3)
	leaves := NewLeaves(fine, coarse)
	out := refineOnce(cfg, leaves, r3.Vector{X: 14, Y: 14, Z: 14}, Budget{MaxSubdivisions: 0, MaxCollapses: 0, MaxRelativeLOD: 1, MaxNeighborIterations: 10})
	if out.Stats.NeighborSubdivisions == 0 {
		t.Fatalf("expected forced subdivisions")
	}
	nb, ok := out.NextLeaves.FindCoarser(fine.Offset(-1, 0, 0), cfg.MaxLOD)
	if !ok || nb.LOD-fine.LOD > 1 {
		t.Fatalf("face neighbor %v still too coarse", nb)
	}
	checkGroupInvariants(t, out.Transitions)
	checkNoNestedLeaves(t, out.NextLeaves, cfg.MaxLOD)
}

func TestSubdivideFilteredAtWorldBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLOD = 20
	b := NewBounds(r3.Vector{}, r3.Vector{X: 1000, Y: 1000, Z: 1000})
	cfg.WorldBounds = &b
	node := NewNode(-1, 0, 0, 5)
	leaves := NewLeaves(node)
	var groups []TransitionGroup
	if !applySubdivide(node, cfg, leaves, &groups) {
		t.Fatalf("boundary subdivide should still happen")
	}
	if leaves.Len() != 4 {
		t.Fatalf("expected the +X half only, got %d", leaves.Len())
	}
	for n := range leaves {
		if n.X != -1 {
			t.Fatalf("unexpected child %v", n)
		}
	}
}

func TestBoundarySubdivisionDoesNotCascade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLOD = 20
	cfg.LODExponent = 2
	b := NewBounds(r3.Vector{}, r3.Vector{X: 50000, Y: 50000, Z: 50000})
	cfg.WorldBounds = &b
	leaves := NewLeaves(NewNode(0, 0, 0, 0), NewNode(-1, 0, 0, 10))
	out := refineOnce(cfg, leaves, r3.Vector{X: 14, Y: 14, Z: 14}, Budget{MaxSubdivisions: 100000, MaxRelativeLOD: 1, MaxNeighborIterations: 20})
	if out.Stats.NeighborSubdivisions != 0 {
		t.Fatalf("boundary nodes must not be force-subdivided, got %d", out.Stats.NeighborSubdivisions)
	}
	if out.NextLeaves.Len() > 100 {
		t.Fatalf("leaf count exploded: %d", out.NextLeaves.Len())
	}
}

func TestRefineDoesNotMutateInput(t *testing.T) {
	cfg := DefaultConfig()
	prev := NewLeavesWithInitial(3)
	_ = refineOnce(cfg, prev, r3.Vector{}, UnlimitedBudget)
	if prev.Len() != 1 || !prev.Contains(NewNode(0, 0, 0, 3)) {
		t.Fatalf("input leaves mutated")
	}
}

func TestRefinementConvergesFromLOD4(t *testing.T) {
	cfg := DefaultConfig()
	viewer := r3.Vector{}
	leaves := NewLeavesWithInitial(4)
	lodAtViewer := func(l Leaves) int32 {
		n, ok := l.FindCoarser(cfg.NodeAt(viewer, 0), cfg.MaxLOD)
		if !ok {
			t.Fatalf("no leaf covers the viewer")
		}
		return n.LOD
	}

	prevLOD := lodAtViewer(leaves)
	converged := false
	for i := 0; i < 64; i++ {
		out := refineOnce(cfg, leaves, viewer, UnlimitedBudget)
		checkGroupInvariants(t, out.Transitions)
		checkNoNestedLeaves(t, out.NextLeaves, cfg.MaxLOD)
		leaves = out.NextLeaves
		lod := lodAtViewer(leaves)
		if lod > prevLOD {
			t.Fatalf("LOD at viewer increased from %d to %d", prevLOD, lod)
		}
		prevLOD = lod
		if len(out.Transitions) == 0 {
			converged = true
			break
		}
	}
	if !converged {
		t.Fatalf("refinement did not reach a fixed point")
	}
	if prevLOD != cfg.MinLOD {
		t.Fatalf("viewer leaf should reach LOD %d, got %d", cfg.MinLOD, prevLOD)
	}

	stable := leaves.Len()
	for i := 0; i < 3; i++ {
		out := refineOnce(cfg, leaves, viewer, UnlimitedBudget)
		if len(out.Transitions) != 0 || out.NextLeaves.Len() != stable {
			t.Fatalf("fixed point is not stable")
		}
	}
	for n := range leaves {
		d := viewer.Distance(cfg.NodeCenter(n))
		if n.LOD > cfg.MinLOD && d < cfg.Threshold(n.LOD) {
			t.Fatalf("leaf %v still inside its subdivide threshold", n)
		}
	}
}

func TestRefinementConvergesWithDefaultBudget(t *testing.T) {
	cfg := DefaultConfig()
	viewer := r3.Vector{X: 300, Y: 40, Z: 500}
	leaves := NewLeaves()
	for x := int32(0); x < 2; x++ {
		for z := int32(0); z < 2; z++ {
			leaves.Insert(NewNode(x, 0, z, 5))
		}
	}
	for i := 0; i < 200; i++ {
		out := refineOnce(cfg, leaves, viewer, DefaultBudget)
		leaves = out.NextLeaves
		if len(out.Transitions) == 0 {
			checkNoNestedLeaves(t, leaves, cfg.MaxLOD)
			return
		}
	}
	t.Fatalf("no fixed point after 200 calls")
}

// randomLeaves grows an ungraded tree by subdividing random leaves.
func randomLeaves(rng *rand.Rand, root Node, steps int) Leaves {
	l := NewLeaves(root)
	for i := 0; i < steps; i++ {
		s := l.Sorted()
		if g, ok := NewSubdivide(s[rng.Intn(len(s))]); ok {
			l.Apply(g)
		}
	}
	return l
}

func TestTransitionsReplayFromUngradedLeaves(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(7))
	root := NewNode(0, 0, 0, 4)
	size := cfg.CellSize(root.LOD)
	lo := cfg.NodeMin(root)
	budgets := []Budget{UnlimitedBudget, DefaultBudget}

	for i := 0; i < 200; i++ {
		prev := randomLeaves(rng, root, 1+rng.Intn(40))
		viewer := lo.Add(r3.Vector{X: rng.Float64() * size, Y: rng.Float64() * size, Z: rng.Float64() * size})
		out := refineOnce(cfg, prev, viewer, budgets[i%len(budgets)])
		checkGroupInvariants(t, out.Transitions)
		checkNoNestedLeaves(t, out.NextLeaves, cfg.MaxLOD)

		replay := prev.Clone()
		kinds := map[Node]TransitionType{}
		for _, g := range out.Transitions {
			if k, ok := kinds[g.GroupKey]; ok && k != g.Type {
				t.Fatalf("case %d: %v both merged and subdivided", i, g.GroupKey)
			}
			kinds[g.GroupKey] = g.Type
			for _, n := range g.NodesToRemove {
				if !replay.Contains(n) {
					t.Fatalf("case %d: group %v removes %v which is not a leaf yet", i, g.GroupKey, n)
				}
			}
			replay.Apply(g)
		}
		if replay.Len() != out.NextLeaves.Len() {
			t.Fatalf("case %d: replay has %d leaves, want %d", i, replay.Len(), out.NextLeaves.Len())
		}
		for n := range out.NextLeaves {
			if !replay.Contains(n) {
				t.Fatalf("case %d: replay is missing %v", i, n)
			}
		}
	}
}
