// Package snapshot saves and restores the leaf set of a world so a run
// can resume without re-refining from the root.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxellod.ai/internal/octree"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	World   uint64 `json:"world"`
	SavedAt string `json:"saved_at"`
	Leaves  int    `json:"leaves"`
}

// SnapshotV1 captures everything the leaf set depends on. A snapshot only
// restores into a world with the same octree geometry.
type SnapshotV1 struct {
	Header Header `json:"header"`

	VoxelSize   float64    `json:"voxel_size"`
	WorldOrigin [3]float64 `json:"world_origin"`
	MinLOD      int32      `json:"min_lod"`
	MaxLOD      int32      `json:"max_lod"`
	Offset      [3]float64 `json:"offset"`
	Viewer      [3]float64 `json:"viewer"`

	Leaves []NodeV1 `json:"leaves"`
}

type NodeV1 struct {
	X   int32 `json:"x"`
	Y   int32 `json:"y"`
	Z   int32 `json:"z"`
	LOD int32 `json:"lod"`
}

// FromLeaves encodes leaves in sorted order.
func FromLeaves(leaves octree.Leaves) []NodeV1 {
	sorted := leaves.Sorted()
	out := make([]NodeV1, len(sorted))
	for i, n := range sorted {
		out[i] = NodeV1{X: n.X, Y: n.Y, Z: n.Z, LOD: n.LOD}
	}
	return out
}

// ToLeaves rebuilds the leaf set. It rejects snapshots where a leaf falls
// outside the LOD range or covers another leaf.
func (s SnapshotV1) ToLeaves() (octree.Leaves, error) {
	leaves := octree.NewLeaves()
	for _, n := range s.Leaves {
		node := octree.NewNode(n.X, n.Y, n.Z, n.LOD)
		if n.LOD < s.MinLOD || n.LOD > s.MaxLOD {
			return nil, fmt.Errorf("leaf %s outside lod range [%d,%d]", node, s.MinLOD, s.MaxLOD)
		}
		if !leaves.Insert(node) {
			return nil, fmt.Errorf("duplicate leaf %s", node)
		}
	}
	for n := range leaves {
		if n.LOD == s.MaxLOD {
			continue
		}
		if c, ok := leaves.FindCoarser(n.Ancestor(n.LOD+1), s.MaxLOD); ok {
			return nil, fmt.Errorf("leaf %s is covered by %s", n, c)
		}
	}
	return leaves, nil
}

// Compatible reports whether the snapshot was taken with cfg's geometry.
func (s SnapshotV1) Compatible(cfg octree.Config) error {
	if s.Header.Version != Version {
		return fmt.Errorf("snapshot version %d, want %d", s.Header.Version, Version)
	}
	if s.VoxelSize != cfg.VoxelSize {
		return fmt.Errorf("snapshot voxel_size %v, config %v", s.VoxelSize, cfg.VoxelSize)
	}
	if s.MinLOD != cfg.MinLOD || s.MaxLOD != cfg.MaxLOD {
		return fmt.Errorf("snapshot lod range [%d,%d], config [%d,%d]", s.MinLOD, s.MaxLOD, cfg.MinLOD, cfg.MaxLOD)
	}
	o := cfg.WorldOrigin
	if s.WorldOrigin != [3]float64{o.X, o.Y, o.Z} {
		return fmt.Errorf("snapshot world_origin %v differs from config", s.WorldOrigin)
	}
	return nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	return h, json.Unmarshal(line, &h)
}
