package surfacenets

import (
	"fmt"
	"strings"

	"voxellod.ai/internal/volume"
)

// SupportedSizes lists the chunk sizes (samples per axis) Generate accepts.
var SupportedSizes = []int{volume.SampleSize}

// NormalMode selects how vertex normals are computed.
type NormalMode uint8

const (
	// NormalBlended uses geometry normals in the interior and fades to SDF
	// gradients within BlendDistance cells of the chunk boundary.
	NormalBlended NormalMode = iota
	// NormalGradient uses the central SDF gradient of the cell.
	NormalGradient
	// NormalGeometry uses angle-weighted face normals.
	NormalGeometry
	// NormalInterpolatedGradient trilinearly interpolates corner gradients
	// to the vertex position inside the cell.
	NormalInterpolatedGradient
)

func (m NormalMode) String() string {
	switch m {
	case NormalBlended:
		return "blended"
	case NormalGradient:
		return "gradient"
	case NormalGeometry:
		return "geometry"
	case NormalInterpolatedGradient:
		return "interpolated_gradient"
	default:
		return fmt.Sprintf("NormalMode(%d)", uint8(m))
	}
}

// ParseNormalMode accepts the names produced by String.
func ParseNormalMode(s string) (NormalMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blended":
		return NormalBlended, nil
	case "gradient":
		return NormalGradient, nil
	case "geometry":
		return NormalGeometry, nil
	case "interpolated_gradient", "interpolated":
		return NormalInterpolatedGradient, nil
	}
	return 0, fmt.Errorf("unknown normal mode %q", s)
}

const DefaultBlendDistance float32 = 2

// Config controls a single Generate call.
type Config struct {
	// Size is the number of samples per axis. Zero means volume.SampleSize.
	Size int
	// VoxelSize is carried for consumers that scale sample-space output;
	// Generate itself works in sample units.
	VoxelSize float32
	// NeighborMask flags coarser neighbors; see the Face*, Edge* and
	// Corner* bits.
	NeighborMask uint32

	NormalMode    NormalMode
	BlendDistance float32

	// ShortestDiagonal splits each quad along its shorter diagonal instead
	// of the fixed A-B diagonal.
	ShortestDiagonal bool
}

func DefaultConfig() Config {
	return Config{
		Size:          volume.SampleSize,
		VoxelSize:     1,
		NormalMode:    NormalBlended,
		BlendDistance: DefaultBlendDistance,
	}
}

func (c Config) size() int {
	if c.Size == 0 {
		return volume.SampleSize
	}
	return c.Size
}
