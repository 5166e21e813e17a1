package sampler

import (
	"github.com/ojrac/opensimplex-go"

	"voxellod.ai/internal/mathx"
	"voxellod.ai/internal/volume"
)

// Material ids produced by Terrain.
const (
	MaterialGrass uint8 = iota
	MaterialDirt
	MaterialStone
	MaterialCave
)

// TerrainParams configures Terrain. Zero fields take the defaults.
type TerrainParams struct {
	Seed        int64
	BaseHeight  float64
	Amplitude   float64
	Frequency   float64
	Octaves     int
	Persistence float64
	Lacunarity  float64

	// Caves are carved where 3D noise exceeds CaveThreshold. Zero disables caves.
	CaveThreshold float64
	CaveFrequency float64

	// DirtDepth is how far below the surface dirt turns to stone.
	DirtDepth float64
}

func DefaultTerrainParams() TerrainParams {
	return TerrainParams{
		Amplitude:     8,
		Frequency:     0.1,
		Octaves:       4,
		Persistence:   0.5,
		Lacunarity:    2,
		CaveFrequency: 0.05,
		DirtDepth:     4,
	}
}

// Terrain is a heightmap terrain with optional caves. It is safe for
// concurrent use.
type Terrain struct {
	p      TerrainParams
	height opensimplex.Noise
	caves  opensimplex.Noise
}

func NewTerrain(p TerrainParams) *Terrain {
	d := DefaultTerrainParams()
	if p.Amplitude == 0 {
		p.Amplitude = d.Amplitude
	}
	if p.Frequency == 0 {
		p.Frequency = d.Frequency
	}
	if p.Octaves <= 0 {
		p.Octaves = d.Octaves
	}
	if p.Persistence == 0 {
		p.Persistence = d.Persistence
	}
	if p.Lacunarity == 0 {
		p.Lacunarity = d.Lacunarity
	}
	if p.CaveFrequency == 0 {
		p.CaveFrequency = d.CaveFrequency
	}
	if p.DirtDepth == 0 {
		p.DirtDepth = d.DirtDepth
	}
	return &Terrain{
		p:      p,
		height: opensimplex.New(p.Seed),
		caves:  opensimplex.New(p.Seed + 1000),
	}
}

func (t *Terrain) Params() TerrainParams { return t.p }

// HeightAt returns the surface height at a world column.
func (t *Terrain) HeightAt(x, z float64) float64 {
	var sum, norm float64
	amp, freq := 1.0, t.p.Frequency
	for o := 0; o < t.p.Octaves; o++ {
		sum += amp * t.height.Eval2(x*freq, z*freq)
		norm += amp
		amp *= t.p.Persistence
		freq *= t.p.Lacunarity
	}
	return t.p.BaseHeight + t.p.Amplitude*sum/norm
}

func (t *Terrain) cave(x, y, z float64) float64 {
	f := t.p.CaveFrequency
	return t.caves.Eval3(x*f, y*f, z*f)
}

func (t *Terrain) SampleVolume(g [3]int64, vs float64, vol *volume.Volume, mats *volume.Materials) {
	var heights [volume.SampleSize][volume.SampleSize]float64
	for xi := 0; xi < volume.SampleSize; xi++ {
		wx := float64(g[0]+int64(xi)) * vs
		for zi := 0; zi < volume.SampleSize; zi++ {
			wz := float64(g[2]+int64(zi)) * vs
			heights[xi][zi] = t.HeightAt(wx, wz)
		}
	}
	fvs := float32(vs)
	for xi := 0; xi < volume.SampleSize; xi++ {
		gx := g[0] + int64(xi)
		wx := float64(gx) * vs
		for yi := 0; yi < volume.SampleSize; yi++ {
			gy := g[1] + int64(yi)
			wy := float64(gy) * vs
			for zi := 0; zi < volume.SampleSize; zi++ {
				gz := g[2] + int64(zi)
				wz := float64(gz) * vs

				h := heights[xi][zi]
				sdf := wy - h
				mat := t.layer(h-wy, gx, gy, gz)
				if t.p.CaveThreshold > 0 {
					if c := t.p.CaveThreshold - t.cave(wx, wy, wz); c > sdf {
						sdf = c
						mat = MaterialCave
					}
				}
				i := volume.Index(xi, yi, zi)
				vol[i] = volume.ToStorage(float32(sdf), fvs)
				mats[i] = mat
			}
		}
	}
}

// layer picks a material from depth below the surface. The dirt/stone
// boundary is jittered per lattice point so it does not form a flat shell.
func (t *Terrain) layer(depth float64, gx, gy, gz int64) uint8 {
	if depth < 1 {
		return MaterialGrass
	}
	jitter := mathx.Unit(mathx.Hash3(t.p.Seed, gx, gy, gz))
	if depth < t.p.DirtDepth+jitter*2 {
		return MaterialDirt
	}
	return MaterialStone
}
