// Package config loads voxellod.yaml.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

type Vec3 [3]float64

type Config struct {
	Octree   OctreeSpec   `yaml:"octree"`
	Budget   BudgetSpec   `yaml:"budget"`
	Mesh     MeshSpec     `yaml:"mesh"`
	Sampler  SamplerSpec  `yaml:"sampler"`
	Pipeline PipelineSpec `yaml:"pipeline"`
	Viewer   ViewerSpec   `yaml:"viewer"`
	Outputs  OutputsSpec  `yaml:"outputs"`
}

type OctreeSpec struct {
	VoxelSize   float64     `yaml:"voxel_size"`
	Origin      Vec3        `yaml:"origin"`
	MinLOD      int32       `yaml:"min_lod"`
	MaxLOD      int32       `yaml:"max_lod"`
	InitialLOD  int32       `yaml:"initial_lod"`
	LODExponent float64     `yaml:"lod_exponent"`
	WorldBounds *BoundsSpec `yaml:"world_bounds,omitempty"`
}

type BoundsSpec struct {
	Min Vec3 `yaml:"min"`
	Max Vec3 `yaml:"max"`
}

type BudgetSpec struct {
	MaxSubdivisions       int   `yaml:"max_subdivisions"`
	MaxCollapses          int   `yaml:"max_collapses"`
	MaxRelativeLOD        int32 `yaml:"max_relative_lod"`
	MaxNeighborIterations int   `yaml:"max_neighbor_iterations"`
}

type MeshSpec struct {
	NormalMode       string  `yaml:"normal_mode"`
	BlendDistance    float32 `yaml:"blend_distance"`
	ShortestDiagonal bool    `yaml:"shortest_diagonal"`
}

// SamplerSpec selects one SDF source. Fields that do not apply to Kind
// are ignored.
type SamplerSpec struct {
	Kind     string `yaml:"kind"`
	Material uint8  `yaml:"material"`

	Seed          int64   `yaml:"seed"`
	BaseHeight    float64 `yaml:"base_height"`
	Amplitude     float64 `yaml:"amplitude"`
	Frequency     float64 `yaml:"frequency"`
	Octaves       int     `yaml:"octaves"`
	Persistence   float64 `yaml:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity"`
	CaveThreshold float64 `yaml:"cave_threshold"`
	CaveFrequency float64 `yaml:"cave_frequency"`
	DirtDepth     float64 `yaml:"dirt_depth"`

	Center      Vec3    `yaml:"center"`
	Radius      float64 `yaml:"radius"`
	Height      float64 `yaml:"height"`
	AngleDeg    float64 `yaml:"angle_deg"`
	HalfExtents Vec3    `yaml:"half_extents"`
}

type PipelineSpec struct {
	Workers int  `yaml:"workers"`
	Metrics bool `yaml:"metrics"`
}

// ViewerSpec describes the scripted camera path of the headless driver.
type ViewerSpec struct {
	Start    Vec3 `yaml:"start"`
	Velocity Vec3 `yaml:"velocity"`
	Frames   int  `yaml:"frames"`
	FrameMs  int  `yaml:"frame_ms"`
}

// OutputsSpec enables the optional presentation sinks. Empty disables.
type OutputsSpec struct {
	EventLogDir  string `yaml:"event_log_dir"`
	IndexDB      string `yaml:"index_db"`
	ObserverAddr string `yaml:"observer_addr"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

const (
	SamplerTerrain     = "terrain"
	SamplerSphere      = "sphere"
	SamplerPlane       = "plane"
	SamplerTiltedPlane = "tilted_plane"
	SamplerBox         = "box"
)

func Defaults() Config {
	return Config{
		Octree: OctreeSpec{
			VoxelSize:  1,
			MinLOD:     0,
			MaxLOD:     8,
			InitialLOD: 8,
		},
		Budget: BudgetSpec{
			MaxSubdivisions:       32,
			MaxCollapses:          32,
			MaxRelativeLOD:        1,
			MaxNeighborIterations: 4,
		},
		Mesh: MeshSpec{
			NormalMode:    "blended",
			BlendDistance: 2,
		},
		Sampler: SamplerSpec{
			Kind:          SamplerTerrain,
			Amplitude:     8,
			Frequency:     0.1,
			Octaves:       4,
			Persistence:   0.5,
			Lacunarity:    2,
			CaveFrequency: 0.05,
			DirtDepth:     4,
		},
		Pipeline: PipelineSpec{Metrics: true},
		Viewer: ViewerSpec{
			Start:    Vec3{0, 16, 0},
			Velocity: Vec3{4, 0, 0},
			Frames:   600,
			FrameMs:  16,
		},
		Outputs: OutputsSpec{MetricsAddr: "127.0.0.1:9464"},
	}
}

var compiled *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiled != nil {
		return compiled, nil
	}
	s, err := jsonschema.CompileString("voxellod.schema.json", schemaJSON)
	if err != nil {
		return nil, err
	}
	compiled = s
	return s, nil
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

// Parse decodes a YAML document over the defaults.
func Parse(b []byte) (Config, error) {
	cfg := Defaults()
	if err := validateDocument(b); err != nil {
		return cfg, fmt.Errorf("voxellod.yaml: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("voxellod.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("voxellod.yaml: %w", err)
	}
	return cfg, nil
}

// validateDocument checks the raw document against the embedded schema.
// The YAML tree is round-tripped through JSON so the validator sees the
// same types it would for a JSON document.
func validateDocument(b []byte) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return s.Validate(v)
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Mesh.NormalMode = strings.ToLower(strings.TrimSpace(c.Mesh.NormalMode))
	if c.Mesh.NormalMode == "" {
		c.Mesh.NormalMode = "blended"
	}
	c.Sampler.Kind = strings.ToLower(strings.TrimSpace(c.Sampler.Kind))
	if c.Sampler.Kind == "" {
		c.Sampler.Kind = SamplerTerrain
	}
	if c.Octree.VoxelSize <= 0 {
		c.Octree.VoxelSize = 1
	}
	if c.Octree.InitialLOD > c.Octree.MaxLOD {
		c.Octree.InitialLOD = c.Octree.MaxLOD
	}
	if c.Octree.InitialLOD < c.Octree.MinLOD {
		c.Octree.InitialLOD = c.Octree.MinLOD
	}
	if c.Viewer.FrameMs <= 0 {
		c.Viewer.FrameMs = 16
	}
}

func (c Config) Validate() error {
	if c.Octree.VoxelSize <= 0 {
		return fmt.Errorf("octree.voxel_size must be > 0")
	}
	if c.Octree.MinLOD < 0 {
		return fmt.Errorf("octree.min_lod must be >= 0")
	}
	if c.Octree.MaxLOD < c.Octree.MinLOD {
		return fmt.Errorf("octree.max_lod %d must be >= min_lod %d", c.Octree.MaxLOD, c.Octree.MinLOD)
	}
	if c.Octree.MaxLOD > 30 {
		return fmt.Errorf("octree.max_lod must be <= 30")
	}
	if b := c.Octree.WorldBounds; b != nil {
		for i := range b.Min {
			if b.Max[i] <= b.Min[i] {
				return fmt.Errorf("octree.world_bounds max must exceed min on every axis")
			}
		}
	}
	if c.Budget.MaxSubdivisions < 0 || c.Budget.MaxCollapses < 0 || c.Budget.MaxNeighborIterations < 0 {
		return fmt.Errorf("budget counts must be >= 0")
	}
	if c.Budget.MaxRelativeLOD < 0 {
		return fmt.Errorf("budget.max_relative_lod must be >= 0")
	}
	if _, err := c.MeshConfig(); err != nil {
		return fmt.Errorf("mesh.normal_mode: %w", err)
	}
	if c.Mesh.BlendDistance < 0 {
		return fmt.Errorf("mesh.blend_distance must be >= 0")
	}
	switch c.Sampler.Kind {
	case SamplerTerrain, SamplerPlane, SamplerTiltedPlane:
	case SamplerSphere:
		if c.Sampler.Radius < 0 {
			return fmt.Errorf("sampler.radius must be > 0")
		}
	case SamplerBox:
		for _, h := range c.Sampler.HalfExtents {
			if h <= 0 {
				return fmt.Errorf("sampler.half_extents must be > 0 on every axis")
			}
		}
	default:
		return fmt.Errorf("unknown sampler.kind %q", c.Sampler.Kind)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must be >= 0")
	}
	if c.Viewer.Frames < 0 {
		return fmt.Errorf("viewer.frames must be >= 0")
	}
	return nil
}
