package surfacenets

// EdgeCorners lists the two corners joined by each of the 12 cell edges.
// Edges 0, 1 and 2 leave corner 0 along X, Y and Z; triangulation relies
// on that ordering.
var EdgeCorners = [12][2]uint8{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// EdgeTable maps a corner mask to the 12-bit set of edges with a sign change.
var EdgeTable = buildEdgeTable()

func buildEdgeTable() [256]uint16 {
	var t [256]uint16
	for mask := 0; mask < 256; mask++ {
		var edges uint16
		for e, c := range EdgeCorners {
			a := mask>>c[0]&1 != 0
			b := mask>>c[1]&1 != 0
			if a != b {
				edges |= 1 << e
			}
		}
		t[mask] = edges
	}
	return t
}

// CornerMask packs the sign bits of the 8 corner samples. Bit i is set
// when sample i is negative (solid).
func CornerMask(s [8]int8) uint8 {
	return uint8(s[0])>>7 |
		uint8(s[1])>>7<<1 |
		uint8(s[2])>>7<<2 |
		uint8(s[3])>>7<<3 |
		uint8(s[4])>>7<<4 |
		uint8(s[5])>>7<<5 |
		uint8(s[6])>>7<<6 |
		uint8(s[7])>>7<<7
}

func cornerMaskScalar(s [8]int8) uint8 {
	var m uint8
	for i, v := range s {
		if v < 0 {
			m |= 1 << i
		}
	}
	return m
}

func cornerPos(c uint8) [3]float32 {
	return [3]float32{float32(c & 1), float32(c >> 1 & 1), float32(c >> 2 & 1)}
}

// cellVertex returns the centroid of the interpolated zero crossings of
// the cell in cell-local [0,1] coordinates.
func cellVertex(samples *[8]float32, edgeMask uint16) [3]float32 {
	var sum [3]float32
	n := 0
	for e := 0; e < 12; e++ {
		if edgeMask&(1<<e) == 0 {
			continue
		}
		c0, c1 := EdgeCorners[e][0], EdgeCorners[e][1]
		s0, s1 := samples[c0], samples[c1]
		t := float32(0.5)
		if d := s0 - s1; d > 1e-6 || d < -1e-6 {
			t = s0 / d
		}
		p0, p1 := cornerPos(c0), cornerPos(c1)
		for k := 0; k < 3; k++ {
			sum[k] += p0[k] + t*(p1[k]-p0[k])
		}
		n++
	}
	if n == 0 {
		return [3]float32{0.5, 0.5, 0.5}
	}
	inv := 1 / float32(n)
	return [3]float32{sum[0] * inv, sum[1] * inv, sum[2] * inv}
}
