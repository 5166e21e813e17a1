package volume

// Sampler fills a volume and its materials for the grid-space origin
// gridOffset at the given voxel size. Implementations must be deterministic
// and produce identical samples wherever two invocations overlap.
type Sampler interface {
	SampleVolume(gridOffset [3]int64, voxelSize float64, vol *Volume, mats *Materials)
}

// SamplerFunc adapts a per-point SDF to the Sampler interface.
// The function receives world coordinates and returns distance and material.
type SamplerFunc func(x, y, z float64) (float64, uint8)

func (f SamplerFunc) SampleVolume(gridOffset [3]int64, voxelSize float64, vol *Volume, mats *Materials) {
	Fill(gridOffset, voxelSize, vol, mats, f)
}

// Fill evaluates sdf at every sample position of the grid.
func Fill(gridOffset [3]int64, voxelSize float64, vol *Volume, mats *Materials, sdf func(x, y, z float64) (float64, uint8)) {
	vs := float32(voxelSize)
	for xi := 0; xi < SampleSize; xi++ {
		wx := float64(gridOffset[0]+int64(xi)) * voxelSize
		for yi := 0; yi < SampleSize; yi++ {
			wy := float64(gridOffset[1]+int64(yi)) * voxelSize
			for zi := 0; zi < SampleSize; zi++ {
				wz := float64(gridOffset[2]+int64(zi)) * voxelSize
				d, m := sdf(wx, wy, wz)
				i := Index(xi, yi, zi)
				vol[i] = ToStorage(float32(d), vs)
				mats[i] = m
			}
		}
	}
}
