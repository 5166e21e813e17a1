package surfacenets

import "voxellod.ai/internal/volume"

// Neighbor mask bits. A set transition bit means the neighbor in that
// direction is one LOD coarser. Corner and edge names list the signs of
// the axes involved in x, y, z order (edges omit their own axis).
const (
	AllSameLOD uint32 = 1 << 0

	FacePosX uint32 = 1 << 1
	FaceNegX uint32 = 1 << 2
	FacePosY uint32 = 1 << 3
	FaceNegY uint32 = 1 << 4
	FacePosZ uint32 = 1 << 5
	FaceNegZ uint32 = 1 << 6

	CornerNNN uint32 = 1 << 7
	CornerPNN uint32 = 1 << 8
	CornerNPN uint32 = 1 << 9
	CornerPPN uint32 = 1 << 10
	CornerNNP uint32 = 1 << 11
	CornerPNP uint32 = 1 << 12
	CornerNPP uint32 = 1 << 13
	CornerPPP uint32 = 1 << 14

	EdgeXNN uint32 = 1 << 15
	EdgeXPN uint32 = 1 << 16
	EdgeXNP uint32 = 1 << 17
	EdgeXPP uint32 = 1 << 18
	EdgeYNN uint32 = 1 << 19
	EdgeYPN uint32 = 1 << 20
	EdgeYNP uint32 = 1 << 21
	EdgeYPP uint32 = 1 << 22
	EdgeZNN uint32 = 1 << 23
	EdgeZPN uint32 = 1 << 24
	EdgeZNP uint32 = 1 << 25
	EdgeZPP uint32 = 1 << 26

	FaceBits       uint32 = FacePosX | FaceNegX | FacePosY | FaceNegY | FacePosZ | FaceNegZ
	CornerBits     uint32 = 0xff << 7
	EdgeBits       uint32 = 0xfff << 15
	TransitionBits uint32 = FaceBits | CornerBits | EdgeBits
)

// DirectionBit returns the transition bit for a neighbor direction with
// components in {-1,0,1}. The zero direction has no bit.
func DirectionBit(dx, dy, dz int) uint32 {
	nz := 0
	if dx != 0 {
		nz++
	}
	if dy != 0 {
		nz++
	}
	if dz != 0 {
		nz++
	}
	switch nz {
	case 1:
		switch {
		case dx > 0:
			return FacePosX
		case dx < 0:
			return FaceNegX
		case dy > 0:
			return FacePosY
		case dy < 0:
			return FaceNegY
		case dz > 0:
			return FacePosZ
		default:
			return FaceNegZ
		}
	case 2:
		// Within an axis group the first named sign is the low bit.
		switch {
		case dx == 0:
			return EdgeXNN << (sign01(dy) | sign01(dz)<<1)
		case dy == 0:
			return EdgeYNN << (sign01(dx) | sign01(dz)<<1)
		default:
			return EdgeZNN << (sign01(dx) | sign01(dy)<<1)
		}
	case 3:
		return CornerNNN << (sign01(dx) | sign01(dy)<<1 | sign01(dz)<<2)
	}
	return 0
}

func sign01(d int) uint32 {
	if d > 0 {
		return 1
	}
	return 0
}

const (
	neighborStep = 2
	interiorMin  = volume.FirstInteriorCell + neighborStep
	interiorMax  = volume.LastInteriorCell - neighborStep
)

// isBoundaryVertex reports whether a cell lies close enough to a flagged
// coarser neighbor to need seam displacement.
func isBoundaryVertex(cell [3]int32, mask uint32) bool {
	if mask&TransitionBits == 0 {
		return false
	}
	x, y, z := cell[0], cell[1], cell[2]
	if x >= interiorMin && x <= interiorMax &&
		y >= interiorMin && y <= interiorMax &&
		z >= interiorMin && z <= interiorMax {
		return false
	}
	// near[axis][0] is the negative side, near[axis][1] the positive.
	var near [3][2]bool
	for a := 0; a < 3; a++ {
		near[a][0] = cell[a] < interiorMin
		near[a][1] = cell[a] > interiorMax
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				bit := DirectionBit(dx, dy, dz)
				if bit == 0 || mask&bit == 0 {
					continue
				}
				if nearSide(near[0], dx) && nearSide(near[1], dy) && nearSide(near[2], dz) {
					return true
				}
			}
		}
	}
	return false
}

func nearSide(n [2]bool, d int) bool {
	switch {
	case d < 0:
		return n[0]
	case d > 0:
		return n[1]
	}
	return true
}

// displacedPosition recomputes a vertex at the coarser neighbor's stride so
// it lands where the coarser mesh places its vertex.
func displacedPosition(vol *volume.Volume, cell [3]int32, original [3]float32) [3]float32 {
	var parent [3]int32
	for a := 0; a < 3; a++ {
		parent[a] = cell[a] / neighborStep * neighborStep
	}
	var samples [8]float32
	var raw [8]int8
	for c := 0; c < 8; c++ {
		sx := clampSample(parent[0] + int32(c&1)*neighborStep)
		sy := clampSample(parent[1] + int32(c>>1&1)*neighborStep)
		sz := clampSample(parent[2] + int32(c>>2&1)*neighborStep)
		raw[c] = vol[volume.Index(sx, sy, sz)]
		samples[c] = volume.ToFloat(raw[c], 1)
	}
	mask := CornerMask(raw)
	if mask == 0 || mask == 255 {
		return original
	}
	local := cellVertex(&samples, EdgeTable[mask])
	return [3]float32{
		float32(parent[0]) + local[0]*neighborStep,
		float32(parent[1]) + local[1]*neighborStep,
		float32(parent[2]) + local[2]*neighborStep,
	}
}

func clampSample(v int32) int {
	if v < 0 {
		return 0
	}
	if v > volume.MaxSampleIndex {
		return volume.MaxSampleIndex
	}
	return int(v)
}

// needsBoundaryBlend reports whether a vertex sits within the blend band.
func needsBoundaryBlend(cell [3]int32, blendDistance float32) bool {
	d := int32(blendDistance)
	lo := int32(volume.FirstInteriorCell) + d
	hi := int32(volume.LastInteriorCell) - d
	for _, c := range cell {
		if c < lo || c > hi {
			return true
		}
	}
	return false
}

// boundaryBlendFactor is 0 at the chunk boundary and 1 at blendDistance
// cells inside it.
func boundaryBlendFactor(cell [3]int32, blendDistance float32) float32 {
	if blendDistance <= 0 {
		return 1
	}
	minDist := float32(volume.InteriorCells)
	for _, c := range cell {
		dLo := float32(c - volume.FirstInteriorCell)
		dHi := float32(volume.LastInteriorCell - c)
		if dLo < minDist {
			minDist = dLo
		}
		if dHi < minDist {
			minDist = dHi
		}
	}
	f := minDist / blendDistance
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
