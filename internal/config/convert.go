package config

import (
	"fmt"

	"github.com/golang/geo/r3"

	"voxellod.ai/internal/octree"
	"voxellod.ai/internal/sampler"
	"voxellod.ai/internal/surfacenets"
	"voxellod.ai/internal/volume"
)

func (v Vec3) Vector() r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

func (c Config) OctreeConfig() octree.Config {
	oc := octree.Config{
		VoxelSize:   c.Octree.VoxelSize,
		WorldOrigin: c.Octree.Origin.Vector(),
		MinLOD:      c.Octree.MinLOD,
		MaxLOD:      c.Octree.MaxLOD,
		LODExponent: c.Octree.LODExponent,
	}
	if b := c.Octree.WorldBounds; b != nil {
		wb := octree.NewBounds(b.Min.Vector(), b.Max.Vector())
		oc.WorldBounds = &wb
	}
	return oc
}

func (c Config) OctreeBudget() octree.Budget {
	return octree.Budget{
		MaxSubdivisions:       c.Budget.MaxSubdivisions,
		MaxCollapses:          c.Budget.MaxCollapses,
		MaxRelativeLOD:        c.Budget.MaxRelativeLOD,
		MaxNeighborIterations: c.Budget.MaxNeighborIterations,
	}
}

func (c Config) MeshConfig() (surfacenets.Config, error) {
	mode, err := surfacenets.ParseNormalMode(c.Mesh.NormalMode)
	if err != nil {
		return surfacenets.Config{}, err
	}
	mc := surfacenets.DefaultConfig()
	mc.VoxelSize = float32(c.Octree.VoxelSize)
	mc.NormalMode = mode
	mc.BlendDistance = c.Mesh.BlendDistance
	mc.ShortestDiagonal = c.Mesh.ShortestDiagonal
	return mc, nil
}

// BuildSampler builds the configured SDF source.
func (c Config) BuildSampler() (volume.Sampler, error) {
	s := c.Sampler
	switch s.Kind {
	case SamplerTerrain:
		return sampler.NewTerrain(sampler.TerrainParams{
			Seed:          s.Seed,
			BaseHeight:    s.BaseHeight,
			Amplitude:     s.Amplitude,
			Frequency:     s.Frequency,
			Octaves:       s.Octaves,
			Persistence:   s.Persistence,
			Lacunarity:    s.Lacunarity,
			CaveThreshold: s.CaveThreshold,
			CaveFrequency: s.CaveFrequency,
			DirtDepth:     s.DirtDepth,
		}), nil
	case SamplerSphere:
		return sampler.Sphere{Center: s.Center.Vector(), Radius: s.Radius, Material: s.Material}, nil
	case SamplerPlane:
		return sampler.GroundPlane{Height: s.Height, Material: s.Material}, nil
	case SamplerTiltedPlane:
		p := sampler.NewTiltedPlane()
		if s.AngleDeg != 0 {
			p = p.WithAngleDegrees(s.AngleDeg)
		}
		p.Height = s.Height
		p.Material = s.Material
		return p, nil
	case SamplerBox:
		return sampler.Box{Center: s.Center.Vector(), HalfExtents: s.HalfExtents.Vector(), Material: s.Material}, nil
	}
	return nil, fmt.Errorf("unknown sampler kind %q", s.Kind)
}
