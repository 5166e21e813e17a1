package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxellod.ai/internal/sampler"
	"voxellod.ai/internal/surfacenets"
)

func TestLoad_VoxellodYAML(t *testing.T) {
	cfg, err := Load("../../configs/voxellod.yaml")
	if err != nil {
		t.Fatalf("load voxellod.yaml: %v", err)
	}
	if cfg.Sampler.Kind != SamplerTerrain {
		t.Fatalf("sampler kind: got %q", cfg.Sampler.Kind)
	}
	if cfg.Octree.MaxLOD != 8 || cfg.Octree.InitialLOD != 8 {
		t.Fatalf("lod range: %+v", cfg.Octree)
	}
	s, err := cfg.BuildSampler()
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	terrain, ok := s.(*sampler.Terrain)
	if !ok {
		t.Fatalf("sampler type %T", s)
	}
	if got := terrain.Params().Seed; got != 1337 {
		t.Fatalf("seed: got %d want 1337", got)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	mc, err := cfg.MeshConfig()
	if err != nil {
		t.Fatalf("mesh config: %v", err)
	}
	if mc.NormalMode != surfacenets.NormalBlended || mc.BlendDistance != 2 {
		t.Fatalf("mesh defaults: %+v", mc)
	}
	if b := cfg.OctreeBudget(); b.MaxSubdivisions != 32 || b.MaxRelativeLOD != 1 {
		t.Fatalf("budget defaults: %+v", b)
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
octree:
  max_lod: 5
  initial_lod: 12
  world_bounds:
    min: [-64, -64, -64]
    max: [64, 64, 64]
mesh:
  normal_mode: geometry
sampler:
  kind: sphere
  radius: 12
  center: [1, 2, 3]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Octree.InitialLOD != 5 {
		t.Fatalf("initial_lod should clamp to max_lod: got %d", cfg.Octree.InitialLOD)
	}
	if cfg.Budget.MaxCollapses != 32 {
		t.Fatalf("unset sections keep defaults: %+v", cfg.Budget)
	}
	oc := cfg.OctreeConfig()
	if oc.WorldBounds == nil || oc.WorldBounds.Min.X != -64 || oc.WorldBounds.Max.Z != 64 {
		t.Fatalf("world bounds: %+v", oc.WorldBounds)
	}
	mc, err := cfg.MeshConfig()
	if err != nil || mc.NormalMode != surfacenets.NormalGeometry {
		t.Fatalf("normal mode: %v %v", mc.NormalMode, err)
	}
	s, err := cfg.BuildSampler()
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	sp, ok := s.(sampler.Sphere)
	if !ok || sp.Radius != 12 || sp.Center.Y != 2 {
		t.Fatalf("sphere: %#v", s)
	}
}

func TestParse_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown section":  "render:\n  fov: 90\n",
		"unknown field":    "octree:\n  voxelsize: 1\n",
		"bad sampler kind": "sampler:\n  kind: torus\n",
		"bad normal mode":  "mesh:\n  normal_mode: flat\n",
		"short vector":     "viewer:\n  start: [1, 2]\n",
		"negative lod":     "octree:\n  min_lod: -1\n",
		"zero voxel size":  "octree:\n  voxel_size: 0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.HasPrefix(err.Error(), "voxellod.yaml: ") {
				t.Fatalf("error should name the file: %v", err)
			}
		})
	}
}

func TestValidate_Semantics(t *testing.T) {
	cfg := Defaults()
	cfg.Octree.MinLOD = 4
	cfg.Octree.MaxLOD = 2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("max_lod below min_lod should fail")
	}

	cfg = Defaults()
	cfg.Octree.WorldBounds = &BoundsSpec{Min: Vec3{0, 0, 0}, Max: Vec3{10, 0, 10}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("flat world bounds should fail")
	}

	cfg = Defaults()
	cfg.Sampler.Kind = SamplerBox
	if err := cfg.Validate(); err == nil {
		t.Fatalf("box without half extents should fail")
	}
	cfg.Sampler.HalfExtents = Vec3{4, 4, 4}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("box: %v", err)
	}
}

func TestSampler_AllKinds(t *testing.T) {
	for _, kind := range []string{SamplerTerrain, SamplerSphere, SamplerPlane, SamplerTiltedPlane, SamplerBox} {
		cfg := Defaults()
		cfg.Sampler.Kind = kind
		cfg.Sampler.HalfExtents = Vec3{2, 2, 2}
		if _, err := cfg.BuildSampler(); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
	cfg := Defaults()
	cfg.Sampler.Kind = "torus"
	if _, err := cfg.BuildSampler(); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
