package surfacenets

import "voxellod.ai/internal/volume"

// MaterialSlots is the number of blend weights per vertex. Material ids
// above the last slot fold into it.
const MaterialSlots = 4

// materialWeights gives every solid corner one unit of weight in its
// material's slot and normalizes. Without solid corners all weight goes
// to slot 0.
func materialWeights(mats *volume.Materials, cornerMask uint8, base int) [MaterialSlots]float32 {
	var w [MaterialSlots]float32
	for c := 0; c < 8; c++ {
		if cornerMask&(1<<c) == 0 {
			continue
		}
		m := int(mats[base+volume.CornerOffsets[c]])
		if m >= MaterialSlots {
			m = MaterialSlots - 1
		}
		w[m]++
	}
	sum := w[0] + w[1] + w[2] + w[3]
	if sum <= 0.0001 {
		return [MaterialSlots]float32{1, 0, 0, 0}
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
