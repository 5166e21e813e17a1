// Package volume defines the fixed-size sampled SDF grid shared by the
// sampler, the mesher and the pipeline.
package volume

import "github.com/chewxy/math32"

const (
	// SampleSize is the number of samples per axis.
	SampleSize   = 32
	SampleSizeSq = SampleSize * SampleSize
	SampleSizeCb = SampleSize * SampleSize * SampleSize

	MaxSampleIndex = SampleSize - 1

	XShift    = 10
	YShift    = 5
	IndexMask = 0x1f

	// Cells 1..28 produce geometry; sample 0 is the negative apron and
	// samples 30..31 pad stride-2 neighbor sampling.
	InteriorCells       = 28
	FirstInteriorCell   = 1
	LastInteriorCell    = 28
	NegativeApron       = 1
	DisplacementPadding = 2
	LastInteriorSample  = LastInteriorCell + 1
)

// Volume holds quantized SDF samples; negative is solid.
type Volume [SampleSizeCb]int8

// Materials holds one material id per sample.
type Materials [SampleSizeCb]uint8

// CornerOffsets are index deltas for the 8 corners of a cell.
// Corner bit 0 is +X, bit 1 is +Y, bit 2 is +Z.
var CornerOffsets = [8]int{
	0,
	1 << XShift,
	1 << YShift,
	1<<XShift | 1<<YShift,
	1,
	1<<XShift | 1,
	1<<YShift | 1,
	1<<XShift | 1<<YShift | 1,
}

// Index maps sample coordinates to a flat index.
func Index(x, y, z int) int {
	return x<<XShift | y<<YShift | z
}

// Coords is the inverse of Index.
func Coords(i int) (x, y, z int) {
	return i >> XShift, (i >> YShift) & IndexMask, i & IndexMask
}

// RangeVoxels is how many voxels from the surface the int8 range spans.
const RangeVoxels float32 = 1.0

const baseScale = 127.0 / RangeVoxels

// ToStorage quantizes a world-space SDF value. Out-of-range values clamp
// and NaN reads as air.
func ToStorage(sdf, voxelSize float32) int8 {
	v := sdf / voxelSize * baseScale
	if math32.IsNaN(v) {
		return 127
	}
	if v > 127 {
		v = 127
	} else if v < -127 {
		v = -127
	}
	return int8(math32.Round(v))
}

// ToFloat recovers an approximate world-space SDF value.
func ToFloat(v int8, voxelSize float32) float32 {
	return float32(v) / baseScale * voxelSize
}

// QuantizationStep is the world-space size of one storage unit.
func QuantizationStep(voxelSize float32) float32 {
	return voxelSize / baseScale
}

// IsHomogeneous reports whether every sample shares the sign of the first.
func IsHomogeneous(vol *Volume) bool {
	solid := vol[0] < 0
	for _, s := range vol[1:] {
		if (s < 0) != solid {
			return false
		}
	}
	return true
}
