package octree

import "testing"

func TestChildParentRoundTrip(t *testing.T) {
	for _, n := range []Node{NewNode(0, 0, 0, 3), NewNode(-3, 5, -7, 2), NewNode(10, -1, 0, 1)} {
		for o := uint8(0); o < 8; o++ {
			c, ok := n.Child(o)
			if !ok {
				t.Fatalf("%v should have child %d", n, o)
			}
			p, ok := c.Parent(30)
			if !ok || p != n {
				t.Fatalf("parent of %v = %v (ok=%v), want %v", c, p, ok, n)
			}
			if !n.IsAncestorOf(c) {
				t.Fatalf("%v should be ancestor of %v", n, c)
			}
		}
	}
}

func TestChildOctantBits(t *testing.T) {
	n := NewNode(1, 2, 3, 4)
	c, _ := n.Child(5) // +X, +Z
	if c != NewNode(3, 4, 7, 3) {
		t.Fatalf("octant 5 child = %v", c)
	}
}

func TestNoChildAtLOD0NoParentAtMax(t *testing.T) {
	if _, ok := NewNode(0, 0, 0, 0).Child(0); ok {
		t.Fatalf("LOD 0 must not have children")
	}
	if NewNode(0, 0, 0, 0).Children() != nil {
		t.Fatalf("LOD 0 Children must be nil")
	}
	if _, ok := NewNode(0, 0, 0, 5).Parent(5); ok {
		t.Fatalf("node at max LOD must not have a parent")
	}
}

func TestAncestorNegativeCoords(t *testing.T) {
	n := NewNode(-1, -4, 3, 0)
	if a := n.Ancestor(2); a != NewNode(-1, -1, 0, 2) {
		t.Fatalf("Ancestor = %v", a)
	}
}

func TestLeavesFindCoarser(t *testing.T) {
	coarse := NewNode(0, 0, 0, 3)
	l := NewLeaves(coarse, NewNode(-1, 0, 0, 0))
	if got, ok := l.FindCoarser(NewNode(5, 5, 5, 0), 10); !ok || got != coarse {
		t.Fatalf("FindCoarser = %v %v", got, ok)
	}
	if got, ok := l.FindCoarser(NewNode(-1, 0, 0, 0), 10); !ok || got != NewNode(-1, 0, 0, 0) {
		t.Fatalf("same-LOD lookup = %v %v", got, ok)
	}
	if _, ok := l.FindCoarser(NewNode(100, 0, 0, 0), 10); ok {
		t.Fatalf("expected no leaf")
	}
	if l.EffectiveMaxLOD() != 3 {
		t.Fatalf("EffectiveMaxLOD = %d", l.EffectiveMaxLOD())
	}
}
