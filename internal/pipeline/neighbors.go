package pipeline

import (
	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/surfacenets"
)

// NeighborMask flags every one of the 26 neighbors of n that is covered
// by a coarser leaf. AllSameLOD is set when none is. Neighbors outside
// the leaf set, or finer than n, contribute nothing.
func NeighborMask(n octree.Node, leaves octree.Leaves, maxLOD int32) uint32 {
	var mask uint32
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				leaf, ok := leaves.FindCoarser(n.Offset(dx, dy, dz), maxLOD)
				if ok && leaf.LOD > n.LOD {
					mask |= surfacenets.DirectionBit(int(dx), int(dy), int(dz))
				}
			}
		}
	}
	if mask == 0 {
		mask = surfacenets.AllSameLOD
	}
	return mask
}
