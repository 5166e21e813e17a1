package octree

import (
	"math"

	"github.com/golang/geo/r3"

	"voxellod.ai/internal/mathx"
	"voxellod.ai/internal/volume"
)

// VoxelsPerCell is the interior span of one node, in voxels of its LOD.
const VoxelsPerCell = volume.InteriorCells

// Config is the immutable per-world octree configuration.
type Config struct {
	VoxelSize   float64
	WorldOrigin r3.Vector
	MinLOD      int32
	MaxLOD      int32
	// LODExponent scales refinement thresholds by 2^LODExponent.
	LODExponent float64
	// WorldBounds restricts which nodes exist; nil means unbounded.
	WorldBounds *Bounds
}

func DefaultConfig() Config {
	return Config{
		VoxelSize: 1,
		MinLOD:    0,
		MaxLOD:    30,
	}
}

func (c Config) CellSize(lod int32) float64 {
	return c.VoxelSize * VoxelsPerCell * mathx.Pow2(lod)
}

func (c Config) VoxelSizeAt(lod int32) float64 {
	return c.VoxelSize * mathx.Pow2(lod)
}

// Threshold is the distance below which a node at lod subdivides.
func (c Config) Threshold(lod int32) float64 {
	return c.CellSize(lod) * math.Pow(2, c.LODExponent)
}

func (c Config) NodeMin(n Node) r3.Vector {
	cs := c.CellSize(n.LOD)
	return c.WorldOrigin.Add(r3.Vector{X: float64(n.X) * cs, Y: float64(n.Y) * cs, Z: float64(n.Z) * cs})
}

func (c Config) NodeMax(n Node) r3.Vector {
	cs := c.CellSize(n.LOD)
	return c.NodeMin(n).Add(r3.Vector{X: cs, Y: cs, Z: cs})
}

func (c Config) NodeCenter(n Node) r3.Vector {
	h := c.CellSize(n.LOD) * 0.5
	return c.NodeMin(n).Add(r3.Vector{X: h, Y: h, Z: h})
}

func (c Config) NodeBounds(n Node) Bounds {
	return Bounds{Min: c.NodeMin(n), Max: c.NodeMax(n)}
}

// NodeAt returns the node at lod containing the world position p.
func (c Config) NodeAt(p r3.Vector, lod int32) Node {
	cs := c.CellSize(lod)
	rel := p.Sub(c.WorldOrigin)
	return Node{
		X:   int32(math.Floor(rel.X / cs)),
		Y:   int32(math.Floor(rel.Y / cs)),
		Z:   int32(math.Floor(rel.Z / cs)),
		LOD: lod,
	}
}

// InBounds reports whether n overlaps the world bounds, if any.
func (c Config) InBounds(n Node) bool {
	if c.WorldBounds == nil {
		return true
	}
	return c.WorldBounds.Overlaps(c.NodeBounds(n))
}

// GridOffset is the sample-space origin used when sampling n.
func (c Config) GridOffset(n Node) [3]int64 {
	lo := c.NodeMin(n)
	vs := c.VoxelSizeAt(n.LOD)
	return [3]int64{
		int64(math.Round(lo.X / vs)),
		int64(math.Round(lo.Y / vs)),
		int64(math.Round(lo.Z / vs)),
	}
}
