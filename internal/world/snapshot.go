package world

import (
	"time"

	"github.com/golang/geo/r3"

	"voxellod.ai/internal/persistence/snapshot"
)

// Snapshot captures the leaf set and placement for a later Restore.
func (w *World) Snapshot(viewer r3.Vector) snapshot.SnapshotV1 {
	o := w.Config.WorldOrigin
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			World:   uint64(w.ID),
			SavedAt: time.Now().UTC().Format(time.RFC3339),
			Leaves:  w.Leaves.Len(),
		},
		VoxelSize:   w.Config.VoxelSize,
		WorldOrigin: [3]float64{o.X, o.Y, o.Z},
		MinLOD:      w.Config.MinLOD,
		MaxLOD:      w.Config.MaxLOD,
		Offset:      [3]float64{w.Offset.X, w.Offset.Y, w.Offset.Z},
		Viewer:      [3]float64{viewer.X, viewer.Y, viewer.Z},
		Leaves:      snapshot.FromLeaves(w.Leaves),
	}
}

// Restore replaces the leaf set and offset with a compatible snapshot's
// and marks every leaf for meshing, since nothing is presented yet.
func (w *World) Restore(s snapshot.SnapshotV1) error {
	if err := s.Compatible(w.Config); err != nil {
		return err
	}
	leaves, err := s.ToLeaves()
	if err != nil {
		return err
	}
	w.Leaves = leaves
	w.Offset = r3.Vector{X: s.Offset[0], Y: s.Offset[1], Z: s.Offset[2]}
	w.dirty = leaves.Sorted()
	return nil
}
