package surfacenets

import (
	"math/bits"
	"testing"
)

func samplesForMask(mask int, solid, air int8) [8]int8 {
	var s [8]int8
	for i := range s {
		if mask&(1<<i) != 0 {
			s[i] = solid
		} else {
			s[i] = air
		}
	}
	return s
}

func TestCornerMaskMatchesScalar(t *testing.T) {
	pairs := [][2]int8{{-1, 0}, {-128, 127}, {-127, 1}, {-5, 5}}
	for _, p := range pairs {
		for mask := 0; mask < 256; mask++ {
			s := samplesForMask(mask, p[0], p[1])
			fast, ref := CornerMask(s), cornerMaskScalar(s)
			if fast != ref {
				t.Fatalf("mask %08b (solid=%d air=%d): fast=%08b scalar=%08b", mask, p[0], p[1], fast, ref)
			}
			if int(fast) != mask {
				t.Fatalf("mask %08b: got %08b", mask, fast)
			}
		}
	}
}

func TestEdgeTableNoCrossingAtUniformMasks(t *testing.T) {
	if EdgeTable[0] != 0 || EdgeTable[255] != 0 {
		t.Fatalf("uniform masks must have no crossings: %012b %012b", EdgeTable[0], EdgeTable[255])
	}
}

func TestEdgeTableSingleCorner(t *testing.T) {
	for c := 0; c < 8; c++ {
		if n := bits.OnesCount16(EdgeTable[1<<c]); n != 3 {
			t.Fatalf("corner %d: %d crossing edges, want 3", c, n)
		}
		if n := bits.OnesCount16(EdgeTable[255^(1<<c)]); n != 3 {
			t.Fatalf("all but corner %d: %d crossing edges, want 3", c, n)
		}
	}
}

func TestEdgeTableComplementSymmetry(t *testing.T) {
	for m := 0; m < 256; m++ {
		if EdgeTable[m] != EdgeTable[255-m] {
			t.Fatalf("mask %d and %d differ: %012b vs %012b", m, 255-m, EdgeTable[m], EdgeTable[255-m])
		}
	}
}

func TestEdgeCornersAreUnitEdges(t *testing.T) {
	seen := map[[2]uint8]bool{}
	for e, c := range EdgeCorners {
		if bits.OnesCount8(c[0]^c[1]) != 1 {
			t.Fatalf("edge %d joins non-adjacent corners %v", e, c)
		}
		if seen[c] {
			t.Fatalf("edge %d duplicated", e)
		}
		seen[c] = true
	}
	for axis := 0; axis < 3; axis++ {
		if EdgeCorners[axis][0] != 0 || EdgeCorners[axis][1] != 1<<axis {
			t.Fatalf("edge %d must leave corner 0 along axis %d", axis, axis)
		}
	}
}

func TestCellVertexPlane(t *testing.T) {
	// Plane at y=0.25 in cell-local space.
	var s [8]float32
	for c := uint8(0); c < 8; c++ {
		s[c] = cornerPos(c)[1] - 0.25
	}
	var raw [8]int8
	for i, v := range s {
		if v < 0 {
			raw[i] = -1
		} else {
			raw[i] = 1
		}
	}
	p := cellVertex(&s, EdgeTable[CornerMask(raw)])
	want := [3]float32{0.5, 0.25, 0.5}
	for i := range p {
		if d := p[i] - want[i]; d > 1e-5 || d < -1e-5 {
			t.Fatalf("vertex = %v, want %v", p, want)
		}
	}
	if got := cellVertex(&s, 0); got != [3]float32{0.5, 0.5, 0.5} {
		t.Fatalf("no edges must fall back to center, got %v", got)
	}
}
