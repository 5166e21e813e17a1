package octree

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestConfigFormulas(t *testing.T) {
	c := DefaultConfig()
	if c.CellSize(0) != 28 || c.CellSize(3) != 224 {
		t.Fatalf("cell sizes: %v %v", c.CellSize(0), c.CellSize(3))
	}
	if c.VoxelSizeAt(2) != 4 {
		t.Fatalf("voxel size at 2: %v", c.VoxelSizeAt(2))
	}
	if c.Threshold(1) != 56 {
		t.Fatalf("threshold: %v", c.Threshold(1))
	}
	c.LODExponent = 1
	if c.Threshold(1) != 112 {
		t.Fatalf("threshold with exponent: %v", c.Threshold(1))
	}
}

func TestNodeGeometry(t *testing.T) {
	c := DefaultConfig()
	c.WorldOrigin = r3.Vector{X: 10, Y: 0, Z: -10}
	n := NewNode(1, -1, 0, 0)
	if got := c.NodeMin(n); got != (r3.Vector{X: 38, Y: -28, Z: -10}) {
		t.Fatalf("NodeMin = %v", got)
	}
	if got := c.NodeCenter(n); got != (r3.Vector{X: 52, Y: -14, Z: 4}) {
		t.Fatalf("NodeCenter = %v", got)
	}
	if got := c.NodeAt(c.NodeCenter(n), 0); got != n {
		t.Fatalf("NodeAt = %v", got)
	}
	if off := c.GridOffset(NewNode(1, 0, 0, 1)); off != [3]int64{33, 0, -5} {
		t.Fatalf("GridOffset = %v", off)
	}
}

func TestBounds(t *testing.T) {
	a := NewBounds(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10})
	b := BoundsFromCenterHalfExtents(r3.Vector{X: 10, Y: 10, Z: 10}, r3.Vector{X: 5, Y: 5, Z: 5})
	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Fatalf("expected overlap")
	}
	touch := NewBounds(r3.Vector{X: 10}, r3.Vector{X: 20, Y: 1, Z: 1})
	if !a.Overlaps(touch) {
		t.Fatalf("touching boxes overlap")
	}
	far := NewBounds(r3.Vector{X: 11}, r3.Vector{X: 20, Y: 1, Z: 1})
	if a.Overlaps(far) {
		t.Fatalf("disjoint boxes must not overlap")
	}
	if !a.ContainsPoint(r3.Vector{X: 10, Y: 0, Z: 5}) || a.ContainsPoint(r3.Vector{X: -0.1}) {
		t.Fatalf("ContainsPoint mismatch")
	}
	if a.Size() != (r3.Vector{X: 10, Y: 10, Z: 10}) || a.Center() != (r3.Vector{X: 5, Y: 5, Z: 5}) {
		t.Fatalf("size/center mismatch")
	}
	if math.IsNaN(b.Center().X) {
		t.Fatalf("nan center")
	}
}

func TestBudgetChecks(t *testing.T) {
	b := Budget{MaxSubdivisions: 5, MaxCollapses: 3}
	if !b.CanSubdivide(4) || b.CanSubdivide(5) {
		t.Fatalf("subdivide budget")
	}
	if !b.CanCollapse(2) || b.CanCollapse(3) {
		t.Fatalf("collapse budget")
	}
	if !(Budget{}).CanSubdivide(1 << 30) {
		t.Fatalf("zero budget means unlimited")
	}
	if !DefaultBudget.NeighborEnforcementEnabled() || NoNeighborEnforcement.NeighborEnforcementEnabled() {
		t.Fatalf("neighbor enforcement flags")
	}
	s := Stats{Subdivisions: 5, Collapses: 3, NeighborSubdivisions: 2}
	if s.TotalTransitions() != 10 || s.TotalSubdivisions() != 7 {
		t.Fatalf("stats totals")
	}
}
